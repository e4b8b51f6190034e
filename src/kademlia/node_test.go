package kademlia

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestNode(t testing.TB, k, alpha int) *Node {
	ni, err := GenerateIdentity(DefaultSize)
	require.NoError(t, err)
	n, err := NewNode(ni, DefaultSize, "127.0.0.1:0", k, alpha)
	require.NoError(t, err)
	return n
}

// contactAtDistance builds a contact whose identifier is at exactly distance
// d from n's identifier. salt varies the low bits so multiple distinct
// contacts can share a distance.
func contactAtDistance(t testing.TB, n *Node, d int, salt byte) ContactInfo {
	require.GreaterOrEqual(t, d, 9, "salting needs room below the differing bit")
	buf := n.LocalID().Bytes()
	bit := n.Size().Bits() - d
	buf[bit/8] ^= 128 >> (bit % 8)
	buf[len(buf)-1] ^= salt
	id, err := NewIdentifier(n.Size(), buf)
	require.NoError(t, err)
	require.Equal(t, d, n.LocalID().Distance(id))
	return ContactInfo{
		Addr: fmt.Sprintf("10.0.0.%d:16840", salt),
		ID:   id,
	}
}

func TestNewNodeValidation(t *testing.T) {
	ni, err := GenerateIdentity(DefaultSize)
	require.NoError(t, err)
	_, err = NewNode(ni.StripPrivate(), DefaultSize, "127.0.0.1:0", 20, 3)
	require.Error(t, err)
	_, err = NewNode(ni, DefaultSize, "127.0.0.1:0", 0, 3)
	require.Error(t, err)
	_, err = NewNode(ni, DefaultSize, "127.0.0.1:0", 20, 0)
	require.Error(t, err)

	n, err := NewNode(ni, DefaultSize, "127.0.0.1:0", DefaultK, DefaultAlpha)
	require.NoError(t, err)
	require.Equal(t, DefaultK, n.K())
	require.Equal(t, DefaultAlpha, n.Alpha())
	require.Equal(t, ni.ID(DefaultSize), n.LocalID())
	require.False(t, n.LocalContact().Identity.HasPrivate())
	require.True(t, n.Identity().HasPrivate())
}

func TestNodeInsertIgnoresSelf(t *testing.T) {
	n := newTestNode(t, 3, 1)
	n.Insert(n.LocalContact())
	require.Equal(t, 0, n.PeerCount())
	n.Update(n.LocalContact(), func(ContactInfo) bool { return true })
	require.Equal(t, 0, n.PeerCount())
}

func TestNodeInsertAndQuery(t *testing.T) {
	n := newTestNode(t, 20, 3)
	a := contactAtDistance(t, n, 16, 1)
	b := contactAtDistance(t, n, 32, 2)
	n.Insert(a)
	n.Insert(b)
	require.Equal(t, 2, n.PeerCount())

	closest := n.KClosest()
	require.Len(t, closest, 2)
	require.Equal(t, a.ID, closest[0].ID)
	require.Equal(t, b.ID, closest[1].ID)

	near := n.KClosestTo(b.ID)
	require.NotEmpty(t, near)
	require.Equal(t, b.ID, near[0].ID)
}

func TestNodeUpdateEvictsDeadIncumbent(t *testing.T) {
	n := newTestNode(t, 1, 1)
	a := contactAtDistance(t, n, 16, 1)
	b := contactAtDistance(t, n, 16, 2)
	n.Insert(a)

	var pinged []ContactInfo
	alivePing := func(c ContactInfo) bool { pinged = append(pinged, c); return true }
	deadPing := func(c ContactInfo) bool { pinged = append(pinged, c); return false }

	n.Update(b, alivePing)
	require.Len(t, pinged, 1)
	require.Equal(t, a.ID, pinged[0].ID)
	require.Equal(t, []Identifier{a.ID}, peerIDs(n))

	n.Update(b, deadPing)
	require.Equal(t, []Identifier{b.ID}, peerIDs(n))
}

func TestNodeUpdateRefreshesWithoutPing(t *testing.T) {
	n := newTestNode(t, 2, 1)
	a := contactAtDistance(t, n, 16, 1)
	b := contactAtDistance(t, n, 16, 2)
	n.Insert(a)
	n.Insert(b)

	// a is already present: refreshing it must not ping anyone.
	n.Update(a, func(ContactInfo) bool {
		t.Fatal("unexpected ping")
		return false
	})
	require.Equal(t, []Identifier{b.ID, a.ID}, peerIDs(n))
}

func TestNodeUpdateAddressChange(t *testing.T) {
	n := newTestNode(t, 3, 1)
	a := contactAtDistance(t, n, 16, 1)
	n.Insert(a)
	moved := a
	moved.Addr = "10.9.9.9:16840"
	n.Insert(moved)
	require.Equal(t, 1, n.PeerCount())
	require.Equal(t, "10.9.9.9:16840", n.KClosest()[0].Addr)
}

func TestNodePutGet(t *testing.T) {
	n := newTestNode(t, 3, 1)
	id := HashOf(n.Size(), []byte("payload"))
	_, ok := n.Get(id)
	require.False(t, ok)

	n.Put(id, []byte("payload"))
	got, ok := n.Get(id)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), got)

	// Mutating the returned slice must not corrupt the store.
	got[0] = 'X'
	again, ok := n.Get(id)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), again)

	n.Put(id, []byte("replaced"))
	got, ok = n.Get(id)
	require.True(t, ok)
	require.Equal(t, []byte("replaced"), got)
	require.Equal(t, 1, n.ValueCount())
}

func TestNodePeers(t *testing.T) {
	n := newTestNode(t, 1, 1)
	a := contactAtDistance(t, n, 16, 1)
	n.Insert(a)
	peers := n.Peers()
	require.Len(t, peers, 1)
	require.Equal(t, a.ID, peers[0].Contact.ID)
	require.NotZero(t, peers[0].LastSeen)

	// Evict a by inserting a same-distance contact into the size-1 bucket.
	b := contactAtDistance(t, n, 16, 2)
	n.Insert(b)
	peers = n.Peers()
	require.Len(t, peers, 1)
	require.Equal(t, b.ID, peers[0].Contact.ID)
	require.Len(t, n.lastSeen, 1)
}

func TestNodeConcurrentAccess(t *testing.T) {
	n := newTestNode(t, 20, 3)
	var batches [4][]ContactInfo
	for i := range batches {
		for d := 9; d < 100; d++ {
			batches[i] = append(batches[i], contactAtDistance(t, n, d, byte(i+1)))
		}
	}
	eg := errgroup.Group{}
	for i := range batches {
		batch := batches[i]
		eg.Go(func() error {
			for _, c := range batch {
				n.Insert(c)
				n.KClosest()
				n.KClosestTo(n.LocalID())
			}
			return nil
		})
	}
	eg.Go(func() error {
		for j := 0; j < 100; j++ {
			id := HashOf(n.Size(), []byte{byte(j)})
			n.Put(id, []byte("v"))
			n.Get(id)
			n.Peers()
		}
		return nil
	})
	require.NoError(t, eg.Wait())
	require.NotZero(t, n.PeerCount())
}

func peerIDs(n *Node) []Identifier {
	var ret []Identifier
	for _, c := range n.KClosest() {
		ret = append(ret, c.ID)
	}
	return ret
}
