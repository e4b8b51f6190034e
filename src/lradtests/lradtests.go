// Package lradtests contains helpers shared by tests across the module.
package lradtests

import (
	"context"
	"crypto/ecdsa"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"github.com/Tubbz-alt/lrad/src/kademlia"
)

func Context(t testing.TB) context.Context {
	l, err := zap.NewDevelopment()
	require.NoError(t, err)
	ctx := context.Background()
	ctx = logctx.NewContext(ctx, l)
	return ctx
}

// NewIdentity creates an insecure identity suitable for tests. Keys for
// distinct i are distinct; the seeding keeps generation cheap.
func NewIdentity(t testing.TB, size kademlia.IdentifierSize, i int) kademlia.NodeIdentity {
	rng := rand.New(rand.NewSource(int64(i)))
	priv, err := ecdsa.GenerateKey(size.Curve(), rng)
	require.NoError(t, err)
	ident, err := kademlia.IdentityFromPrivateKey(priv)
	require.NoError(t, err)
	return ident
}

// NewIdentityLeadingBit creates an identity whose identifier starts with the
// given bit. Tests use it to pin which bucket one node occupies in another's
// table.
func NewIdentityLeadingBit(t testing.TB, size kademlia.IdentifierSize, bit bool) kademlia.NodeIdentity {
	for {
		ident, err := kademlia.GenerateIdentity(size)
		require.NoError(t, err)
		leading := ident.ID(size).Bytes()[0]&0x80 != 0
		if leading == bit {
			return ident
		}
	}
}
