package kademlia

import "golang.org/x/exp/slices"

// Eq is implemented by types with a domain notion of equality.
type Eq[T any] interface {
	Equal(T) bool
}

// Bucket is a bounded list of entries ordered oldest to newest.
// An entry occurs at most once; re-adding one moves it to the newest slot.
type Bucket[T Eq[T]] struct {
	k       int
	entries []T
}

// NewBucket creates an empty bucket holding at most k entries.
func NewBucket[T Eq[T]](k int) *Bucket[T] {
	return &Bucket[T]{k: k}
}

// Insert makes x the newest entry. If the bucket is full the oldest entry is
// dropped to make room.
func (b *Bucket[T]) Insert(x T) {
	b.remove(x)
	if len(b.entries) == b.k {
		b.entries = slices.Delete(b.entries, 0, 1)
	}
	b.entries = append(b.entries, x)
}

// Update makes x the newest entry unless the bucket is full and its oldest
// entry is still reachable. ping decides: reporting true keeps the incumbent
// and discards x; reporting false evicts the incumbent and appends x.
// Any side effects of ping are the caller's concern.
func (b *Bucket[T]) Update(x T, ping func(T) bool) {
	b.remove(x)
	if len(b.entries) == b.k {
		if ping(b.entries[0]) {
			return
		}
		b.entries = slices.Delete(b.entries, 0, 1)
	}
	b.entries = append(b.entries, x)
}

func (b *Bucket[T]) remove(x T) {
	if i := slices.IndexFunc(b.entries, x.Equal); i >= 0 {
		b.entries = slices.Delete(b.entries, i, i+1)
	}
}

func (b *Bucket[T]) Len() int {
	return len(b.entries)
}

// Oldest returns the entry that has gone longest without being refreshed.
func (b *Bucket[T]) Oldest() (ret T, ok bool) {
	if len(b.entries) == 0 {
		return ret, false
	}
	return b.entries[0], true
}

// Entries returns the entries oldest to newest.
func (b *Bucket[T]) Entries() []T {
	return slices.Clone(b.entries)
}

// ForEach visits entries oldest to newest, stopping early if fn returns false.
func (b *Bucket[T]) ForEach(fn func(T) bool) {
	for _, x := range b.entries {
		if !fn(x) {
			return
		}
	}
}
