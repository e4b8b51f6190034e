package kademlia

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"

	"github.com/pkg/errors"
)

// NodeIdentity is an asymmetric keypair naming a node. The public key is
// always present; the private key is only held for the local node and is
// stripped before an identity goes out on the wire.
//
// Equality is defined over the public key material alone.
type NodeIdentity struct {
	pub  []byte
	priv *ecdsa.PrivateKey
}

// GenerateIdentity creates a fresh keypair on the curve bound to size.
func GenerateIdentity(size IdentifierSize) (NodeIdentity, error) {
	priv, err := ecdsa.GenerateKey(size.Curve(), rand.Reader)
	if err != nil {
		return NodeIdentity{}, errors.Wrap(err, "generating identity key")
	}
	return IdentityFromPrivateKey(priv)
}

// IdentityFromPrivateKey builds an identity from an existing key.
// The key's curve must be one bound to a supported identifier size.
func IdentityFromPrivateKey(priv *ecdsa.PrivateKey) (NodeIdentity, error) {
	if _, err := SizeForCurve(priv.Curve); err != nil {
		return NodeIdentity{}, err
	}
	pub := elliptic.MarshalCompressed(priv.Curve, priv.X, priv.Y)
	return NodeIdentity{pub: pub, priv: priv}, nil
}

// ParseIdentity validates pub as a compressed point on the curve bound to
// size and returns the public-only identity for it.
func ParseIdentity(pub []byte, size IdentifierSize) (NodeIdentity, error) {
	x, _ := elliptic.UnmarshalCompressed(size.Curve(), pub)
	if x == nil {
		return NodeIdentity{}, errors.Errorf("kademlia: invalid public key for %d bit identifiers", size.Bits())
	}
	return NodeIdentity{pub: bytes.Clone(pub)}, nil
}

// PublicKey returns the compressed public point.
func (ni NodeIdentity) PublicKey() []byte {
	return bytes.Clone(ni.pub)
}

// PrivateKey returns the private key, or nil for a public-only identity.
func (ni NodeIdentity) PrivateKey() *ecdsa.PrivateKey {
	return ni.priv
}

func (ni NodeIdentity) HasPrivate() bool {
	return ni.priv != nil
}

// StripPrivate returns a copy of the identity safe to send to peers.
func (ni NodeIdentity) StripPrivate() NodeIdentity {
	return NodeIdentity{pub: ni.pub}
}

func (ni NodeIdentity) Equal(other NodeIdentity) bool {
	return bytes.Equal(ni.pub, other.pub)
}

func (ni NodeIdentity) IsZero() bool {
	return len(ni.pub) == 0
}

// ID derives the identifier naming this identity: the width's hash of the
// public key bytes.
func (ni NodeIdentity) ID(size IdentifierSize) Identifier {
	return HashOf(size, ni.pub)
}
