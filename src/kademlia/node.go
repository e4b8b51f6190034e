// Package kademlia implements the routing core of a Kademlia-style DHT:
// fixed-width identifiers derived from public keys, a distance metric based
// on leading bit-prefix agreement, k-buckets with an LRU-like replacement
// policy, and the node state shared between the RPC server and the lookup
// client.
package kademlia

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"
	"go.brendoncarroll.net/tai64"
	"golang.org/x/exp/maps"
)

// DefaultK is the bucket capacity and result-set size used by the original
// Kademlia paper.
const DefaultK = 20

// DefaultAlpha bounds how many peers a lookup probes concurrently.
const DefaultAlpha = 3

// Node is the state shared between the serving and the querying half of a
// peer: its own identity and contact info, the routing table learned from
// the network, and the values stored locally.
//
// All methods are safe for concurrent use. Accessors copy data out under the
// lock; nothing network-bound ever runs with the lock held.
type Node struct {
	whoAmI ContactInfo
	size   IdentifierSize
	alpha  int

	mu       sync.RWMutex
	table    *Table[ContactInfo]
	data     map[Identifier][]byte
	lastSeen map[Identifier]tai64.TAI64N
}

// PeerStatus describes one routing table entry for diagnostics.
type PeerStatus struct {
	Contact  ContactInfo
	LastSeen tai64.TAI64N
}

// NewNode creates the state for a node reachable at addr. identity must
// include the private key. k bounds bucket capacity and result-set sizes;
// alpha bounds lookup concurrency.
func NewNode(identity NodeIdentity, size IdentifierSize, addr string, k, alpha int) (*Node, error) {
	if !identity.HasPrivate() {
		return nil, errors.New("kademlia: node identity is missing its private key")
	}
	if k < 1 {
		return nil, errors.Errorf("kademlia: k must be positive, have %d", k)
	}
	if alpha < 1 {
		return nil, errors.Errorf("kademlia: alpha must be positive, have %d", alpha)
	}
	selfID := identity.ID(size)
	return &Node{
		whoAmI: ContactInfo{
			Addr:     addr,
			ID:       selfID,
			Identity: identity,
		},
		size:     size,
		alpha:    alpha,
		table:    NewTable[ContactInfo](selfID, k),
		data:     make(map[Identifier][]byte),
		lastSeen: make(map[Identifier]tai64.TAI64N),
	}, nil
}

// LocalContact returns this node's contact info with the private key
// stripped, ready to be sent to peers.
func (n *Node) LocalContact() ContactInfo {
	c := n.whoAmI
	c.Identity = c.Identity.StripPrivate()
	return c
}

// LocalID returns this node's identifier.
func (n *Node) LocalID() Identifier {
	return n.whoAmI.ID
}

// Identity returns this node's identity, including the private key.
func (n *Node) Identity() NodeIdentity {
	return n.whoAmI.Identity
}

func (n *Node) Size() IdentifierSize {
	return n.size
}

func (n *Node) K() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.table.K()
}

func (n *Node) Alpha() int {
	return n.alpha
}

// KClosest returns up to k known contacts, closest to this node first.
func (n *Node) KClosest() []ContactInfo {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.table.KClosest()
}

// KClosestTo returns up to k known contacts near id.
func (n *Node) KClosestTo(id Identifier) []ContactInfo {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.table.KClosestTo(id)
}

// Insert adds c to the routing table, evicting the oldest entry of a full
// bucket. Contacts carrying this node's own identifier are ignored.
func (n *Node) Insert(c ContactInfo) {
	if c.ID.Equal(n.whoAmI.ID) {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.table.Insert(c)
	n.lastSeen[c.ID] = tai64.Now()
}

// Update records c as freshly seen. When c's bucket is full, ping decides
// whether the bucket's oldest entry keeps its place: see Bucket.Update. The
// ping runs without the node lock held, so ping may do network I/O.
func (n *Node) Update(c ContactInfo, ping func(ContactInfo) bool) {
	if c.ID.Equal(n.whoAmI.ID) {
		return
	}
	n.mu.Lock()
	n.lastSeen[c.ID] = tai64.Now()
	oldest, needPing := n.table.prepareUpdate(c)
	n.mu.Unlock()
	if !needPing {
		return
	}

	alive := ping(oldest)

	n.mu.Lock()
	defer n.mu.Unlock()
	n.table.commitUpdate(c, oldest, alive)
}

// Put stores data under id, replacing any previous value. The store is in
// memory only, with no expiry.
func (n *Node) Put(id Identifier, data []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.data[id] = bytes.Clone(data)
}

// Get returns the value stored under id, if any.
func (n *Node) Get(id Identifier) ([]byte, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	data, ok := n.data[id]
	return bytes.Clone(data), ok
}

// PeerCount returns the number of contacts in the routing table.
func (n *Node) PeerCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.table.Len()
}

// ValueCount returns the number of locally stored values.
func (n *Node) ValueCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.data)
}

// Peers reports every routing table entry in ascending distance order.
// Last-seen stamps for contacts no longer in the table are dropped here.
func (n *Node) Peers() []PeerStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	live := make(map[Identifier]struct{}, len(n.lastSeen))
	var ret []PeerStatus
	n.table.ForEach(func(c ContactInfo) bool {
		live[c.ID] = struct{}{}
		ret = append(ret, PeerStatus{
			Contact:  c,
			LastSeen: n.lastSeen[c.ID],
		})
		return true
	})
	maps.DeleteFunc(n.lastSeen, func(id Identifier, _ tai64.TAI64N) bool {
		_, ok := live[id]
		return !ok
	})
	return ret
}
