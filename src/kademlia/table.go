package kademlia

import "fmt"

// Identifiable is implemented by entries keyed by an Identifier.
type Identifiable[T any] interface {
	Eq[T]
	Identifier() Identifier
}

// Table holds the entries known to one node, bucketed by their distance from
// the node's own identifier. Because buckets are indexed by distance from
// self, walking them in ascending index order is ascending-closeness order.
//
// Table does no locking and no I/O; Node wraps it with both.
type Table[T Identifiable[T]] struct {
	selfID  Identifier
	k       int
	buckets []*Bucket[T] // indexed by distance; index 0 is never occupied
}

// NewTable creates an empty table owned by selfID, with buckets of
// capacity k.
func NewTable[T Identifiable[T]](selfID Identifier, k int) *Table[T] {
	return &Table[T]{
		selfID:  selfID,
		k:       k,
		buckets: make([]*Bucket[T], selfID.Size().Bits()+1),
	}
}

func (t *Table[T]) SelfID() Identifier {
	return t.selfID
}

func (t *Table[T]) K() int {
	return t.k
}

// Insert adds x to the bucket at x's distance from self, evicting the oldest
// entry if that bucket is full.
func (t *Table[T]) Insert(x T) {
	t.bucket(t.distanceTo(x)).Insert(x)
}

// Update adds x to the bucket at x's distance from self, consulting ping
// about the bucket's oldest entry when the bucket is full. See Bucket.Update.
func (t *Table[T]) Update(x T, ping func(T) bool) {
	t.bucket(t.distanceTo(x)).Update(x, ping)
}

// KClosest returns up to k entries, closest to self first.
func (t *Table[T]) KClosest() []T {
	return t.collect(1)
}

// KClosestTo returns up to k entries near id, found by scanning buckets from
// id's distance from self upward. This approximates closeness to an
// arbitrary target with buckets organized around self; it is not an exact
// global nearest-neighbor search.
func (t *Table[T]) KClosestTo(id Identifier) []T {
	return t.collect(t.selfID.Distance(id))
}

func (t *Table[T]) collect(start int) []T {
	out := make([]T, 0, t.k)
	for d := start; d < len(t.buckets) && len(out) < t.k; d++ {
		b := t.buckets[d]
		if b == nil {
			continue
		}
		b.ForEach(func(x T) bool {
			if len(out) == t.k {
				return false
			}
			out = append(out, x)
			return true
		})
	}
	return out
}

// ForEach visits every entry in ascending distance order, oldest to newest
// within a bucket, stopping early if fn returns false.
func (t *Table[T]) ForEach(fn func(T) bool) {
	for _, b := range t.buckets {
		if b == nil {
			continue
		}
		stop := false
		b.ForEach(func(x T) bool {
			stop = !fn(x)
			return !stop
		})
		if stop {
			return
		}
	}
}

func (t *Table[T]) Len() (total int) {
	for _, b := range t.buckets {
		if b != nil {
			total += b.Len()
		}
	}
	return total
}

func (t *Table[T]) distanceTo(x T) int {
	d := t.selfID.Distance(x.Identifier())
	if d == 0 {
		panic(fmt.Sprintf("kademlia: table owner %v inserted into its own table", t.selfID))
	}
	return d
}

func (t *Table[T]) bucket(d int) *Bucket[T] {
	if t.buckets[d] == nil {
		t.buckets[d] = NewBucket[T](t.k)
	}
	return t.buckets[d]
}

// prepareUpdate begins an update whose liveness ping must run without
// holding the caller's lock. It removes any entry equal to x, then appends x
// if there is room, returning needPing=false. If the bucket is full it is
// left unchanged and its oldest entry is returned with needPing=true.
func (t *Table[T]) prepareUpdate(x T) (oldest T, needPing bool) {
	b := t.bucket(t.distanceTo(x))
	b.remove(x)
	if len(b.entries) < b.k {
		b.entries = append(b.entries, x)
		return oldest, false
	}
	return b.entries[0], true
}

// commitUpdate finishes an update begun with prepareUpdate. If the incumbent
// answered the ping, x is discarded. Otherwise the incumbent is evicted and
// x appended, unless a concurrent mutation refilled the bucket in between.
func (t *Table[T]) commitUpdate(x T, oldest T, alive bool) {
	if alive {
		return
	}
	b := t.bucket(t.distanceTo(x))
	b.remove(oldest)
	b.remove(x)
	if len(b.entries) < b.k {
		b.entries = append(b.entries, x)
	}
}
