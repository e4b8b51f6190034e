package kadnet

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tubbz-alt/lrad/src/kademlia"
	"github.com/Tubbz-alt/lrad/src/lradtests"
)

// testSide is one full peer: node state, a server on a loopback listener,
// and a client issuing calls on the node's behalf.
type testSide struct {
	node   *kademlia.Node
	client *Client
	addr   string
}

func newTestSide(t testing.TB, ctx context.Context, i int) *testSide {
	return newTestSideIdent(t, ctx, lradtests.NewIdentity(t, kademlia.Size256, i))
}

func newTestSideIdent(t testing.TB, ctx context.Context, ident kademlia.NodeIdentity) *testSide {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	node, err := kademlia.NewNode(ident, kademlia.Size256, l.Addr().String(), kademlia.DefaultK, kademlia.DefaultAlpha)
	require.NoError(t, err)
	srv := NewServer(node, nil)
	sctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Serve(sctx, l)
	}()
	client := NewClient(ClientParams{Node: node, CallTimeout: time.Second})
	t.Cleanup(func() {
		require.NoError(t, client.Close())
		cancel()
		<-done
	})
	return &testSide{node: node, client: client, addr: l.Addr().String()}
}

func bootstrapTo(t testing.TB, ctx context.Context, s *testSide, addrs ...string) int {
	added, err := s.client.Bootstrap(ctx, addrs)
	require.NoError(t, err)
	return added
}

func tablePeerIDs(n *kademlia.Node) []kademlia.Identifier {
	var ids []kademlia.Identifier
	for _, ps := range n.Peers() {
		ids = append(ids, ps.Contact.ID)
	}
	return ids
}

func TestPing(t *testing.T) {
	t.Parallel()
	ctx := lradtests.Context(t)
	a := newTestSide(t, ctx, 1)
	b := newTestSide(t, ctx, 2)

	contact, err := a.client.Ping(ctx, b.addr)
	require.NoError(t, err)
	require.Equal(t, b.node.LocalID(), contact.ID)
	require.Equal(t, b.addr, contact.Addr)
	require.Greater(t, contact.RTT, time.Duration(0))
	// ping alone teaches neither side anything; insertion is explicit
	require.Equal(t, 0, a.node.PeerCount())
	require.Equal(t, 0, b.node.PeerCount())
}

func TestBootstrap(t *testing.T) {
	t.Parallel()
	ctx := lradtests.Context(t)
	a := newTestSide(t, ctx, 1)
	b := newTestSide(t, ctx, 2)
	c := newTestSide(t, ctx, 3)

	added := bootstrapTo(t, ctx, a, b.addr, c.addr, a.addr)
	// our own address answers but is never inserted
	require.Equal(t, 2, added)
	require.ElementsMatch(t,
		[]kademlia.Identifier{b.node.LocalID(), c.node.LocalID()},
		tablePeerIDs(a.node))
}

func TestBootstrapUnreachable(t *testing.T) {
	t.Parallel()
	ctx := lradtests.Context(t)
	a := newTestSide(t, ctx, 1)
	b := newTestSide(t, ctx, 2)

	added := bootstrapTo(t, ctx, a, "127.0.0.1:1", b.addr)
	require.Equal(t, 1, added)
	require.ElementsMatch(t, []kademlia.Identifier{b.node.LocalID()}, tablePeerIDs(a.node))
}

func TestStoreAndFindValue(t *testing.T) {
	t.Parallel()
	ctx := lradtests.Context(t)
	a := newTestSide(t, ctx, 1)
	b := newTestSide(t, ctx, 2)
	reader := newTestSide(t, ctx, 3)
	bootstrapTo(t, ctx, a, b.addr)
	bootstrapTo(t, ctx, reader, b.addr)

	data := []byte("the cloud is other people's computers")
	id, err := a.client.Store(ctx, data)
	require.NoError(t, err)
	require.Equal(t, kademlia.HashOf(kademlia.Size256, data), id)

	// copies live on the closest nodes, not on the publisher
	require.Equal(t, 0, a.node.ValueCount())
	stored, ok := b.node.Get(id)
	require.True(t, ok)
	require.Equal(t, data, stored)

	got, err := reader.client.FindValue(ctx, id)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestFindValueNotFound(t *testing.T) {
	t.Parallel()
	ctx := lradtests.Context(t)
	a := newTestSide(t, ctx, 1)
	b := newTestSide(t, ctx, 2)
	bootstrapTo(t, ctx, a, b.addr)

	id := kademlia.HashOf(kademlia.Size256, []byte("never stored"))
	_, err := a.client.FindValue(ctx, id)
	require.True(t, IsErrValueNotFound(err), "got %v", err)
}

func TestLookupWithEmptyTable(t *testing.T) {
	t.Parallel()
	ctx := lradtests.Context(t)
	a := newTestSide(t, ctx, 1)

	id := kademlia.HashOf(kademlia.Size256, []byte("anything"))
	_, err := a.client.FindValue(ctx, id)
	require.True(t, IsErrNoPeers(err), "got %v", err)
	_, err = a.client.Store(ctx, []byte("anything"))
	require.True(t, IsErrNoPeers(err), "got %v", err)
}

func TestFindNodeAcrossHops(t *testing.T) {
	t.Parallel()
	ctx := lradtests.Context(t)
	a := newTestSide(t, ctx, 1)
	b := newTestSide(t, ctx, 2)
	c := newTestSide(t, ctx, 3)
	// a only knows b; b only knows c
	bootstrapTo(t, ctx, a, b.addr)
	bootstrapTo(t, ctx, b, c.addr)

	found, closest, err := a.client.FindNode(ctx, c.node.LocalID())
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, c.node.LocalID(), found.ID)
	require.Equal(t, c.addr, found.Addr)
	require.NotEmpty(t, closest)
	// the lookup taught a about both hops
	require.Contains(t, tablePeerIDs(a.node), b.node.LocalID())
	require.Contains(t, tablePeerIDs(a.node), c.node.LocalID())
}

func TestFindNodeNoSuchNode(t *testing.T) {
	t.Parallel()
	ctx := lradtests.Context(t)
	a := newTestSide(t, ctx, 1)
	b := newTestSide(t, ctx, 2)
	bootstrapTo(t, ctx, a, b.addr)

	target := lradtests.NewIdentity(t, kademlia.Size256, 99).ID(kademlia.Size256)
	found, closest, err := a.client.FindNode(ctx, target)
	require.NoError(t, err)
	require.Nil(t, found)
	require.NotEmpty(t, closest)
}

func TestStoreRefreshDiscoversNewPeer(t *testing.T) {
	t.Parallel()
	ctx := lradtests.Context(t)
	// a and c share a leading bit that differs from b's, so b sits in a's
	// top bucket and c sits in b's. Top-bucket entries survive every bucket
	// range scan, whatever the stored value hashes to.
	a := newTestSideIdent(t, ctx, lradtests.NewIdentityLeadingBit(t, kademlia.Size256, false))
	b := newTestSideIdent(t, ctx, lradtests.NewIdentityLeadingBit(t, kademlia.Size256, true))
	c := newTestSideIdent(t, ctx, lradtests.NewIdentityLeadingBit(t, kademlia.Size256, false))
	// a knows only b, b knows only c; the lookup inside Store has to walk
	// through b to find c
	bootstrapTo(t, ctx, a, b.addr)
	bootstrapTo(t, ctx, b, c.addr)

	data := []byte("replicate me")
	id, err := a.client.Store(ctx, data)
	require.NoError(t, err)
	got, ok := b.node.Get(id)
	require.True(t, ok)
	require.Equal(t, data, got)
	// walking through b taught a about c
	require.Contains(t, tablePeerIDs(a.node), c.node.LocalID())
}

func TestClientClosed(t *testing.T) {
	t.Parallel()
	ctx := lradtests.Context(t)
	a := newTestSide(t, ctx, 1)
	b := newTestSide(t, ctx, 2)

	require.NoError(t, a.client.Close())
	_, err := a.client.Ping(ctx, b.addr)
	require.True(t, IsErrClosed(err), "got %v", err)
}

func TestPingAlive(t *testing.T) {
	t.Parallel()
	ctx := lradtests.Context(t)
	a := newTestSide(t, ctx, 1)
	b := newTestSide(t, ctx, 2)
	dead := kademlia.NewContact("127.0.0.1:1", lradtests.NewIdentity(t, kademlia.Size256, 3), kademlia.Size256, 0)

	alive := a.client.pingAlive(ctx)
	require.True(t, alive(b.node.LocalContact()))
	require.False(t, alive(dead))

	// once shutdown begins, incumbents are presumed alive so nobody gets
	// evicted on the way out
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	require.True(t, a.client.pingAlive(cctx)(dead))
}
