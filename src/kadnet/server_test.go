package kadnet

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tubbz-alt/lrad/src/kademlia"
	"github.com/Tubbz-alt/lrad/src/lradtests"
)

func TestServerAnswersBackToBack(t *testing.T) {
	t.Parallel()
	ctx := lradtests.Context(t)
	b := newTestSide(t, ctx, 1)
	me := lradtests.NewIdentity(t, kademlia.Size256, 2)

	tcp, err := net.Dial("tcp", b.addr)
	require.NoError(t, err)
	defer tcp.Close()
	for i := 0; i < 3; i++ {
		cookie := kademlia.NewMagicCookie(kademlia.Size256).Bytes()
		require.NoError(t, writeFrame(tcp, &Message{
			Type:      MsgPing,
			Cookie:    cookie,
			PublicKey: me.PublicKey(),
		}))
		resp, err := readFrame(tcp)
		require.NoError(t, err)
		require.Equal(t, MsgPing, resp.Type)
		require.Equal(t, cookie, resp.Cookie)
		require.Equal(t, b.node.Identity().PublicKey(), resp.PublicKey)
	}
}

func TestServerDropsBadCookie(t *testing.T) {
	t.Parallel()
	ctx := lradtests.Context(t)
	b := newTestSide(t, ctx, 1)

	tcp, err := net.Dial("tcp", b.addr)
	require.NoError(t, err)
	defer tcp.Close()
	require.NoError(t, writeFrame(tcp, &Message{Type: MsgPing, Cookie: []byte("short")}))
	_, err = readFrame(tcp)
	require.Error(t, err)
}

func TestServerDropsUnknownType(t *testing.T) {
	t.Parallel()
	ctx := lradtests.Context(t)
	b := newTestSide(t, ctx, 1)

	tcp, err := net.Dial("tcp", b.addr)
	require.NoError(t, err)
	defer tcp.Close()
	require.NoError(t, writeFrame(tcp, &Message{
		Type:   MessageType(9),
		Cookie: kademlia.NewMagicCookie(kademlia.Size256).Bytes(),
	}))
	_, err = readFrame(tcp)
	require.Error(t, err)
}

func TestServerFindValueFallsBackToContacts(t *testing.T) {
	t.Parallel()
	ctx := lradtests.Context(t)
	b := newTestSide(t, ctx, 1)
	other := lradtests.NewIdentity(t, kademlia.Size256, 2)
	known := kademlia.NewContact("10.0.0.9:16840", other, kademlia.Size256, 0)
	b.node.Insert(known)

	tcp, err := net.Dial("tcp", b.addr)
	require.NoError(t, err)
	defer tcp.Close()

	// A target one bit away from b's own id keeps the bucket scan starting
	// at distance 1, so the known contact is returned wherever it landed.
	raw := b.node.LocalID().Bytes()
	raw[len(raw)-1] ^= 0x01
	target, err := kademlia.NewIdentifier(kademlia.Size256, raw)
	require.NoError(t, err)
	require.NoError(t, writeFrame(tcp, &Message{
		Type:   MsgFindValue,
		Cookie: kademlia.NewMagicCookie(kademlia.Size256).Bytes(),
		Target: target.Bytes(),
	}))
	resp, err := readFrame(tcp)
	require.NoError(t, err)
	require.False(t, resp.Found)
	require.Len(t, resp.Contacts, 1)
	got, err := contactFromWire(resp.Contacts[0], kademlia.Size256)
	require.NoError(t, err)
	require.Equal(t, known, got)
}
