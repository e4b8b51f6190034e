package futures

import (
	"errors"
	"sync"
)

var errAbandoned = errors.New("pending call abandoned")

// Store tracks in-flight futures by key.
// Keys are registered before a request goes out, and looked up again
// when the matching response arrives.
type Store[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*Future[V]
}

func NewStore[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{
		m: make(map[K]*Future[V]),
	}
}

func (s *Store[K, V]) Get(k K) *Future[V] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[k]
}

// GetOrCreate returns the future for k, creating one if none exists.
// The second return value is true if the future was created by this call.
func (s *Store[K, V]) GetOrCreate(k K) (*Future[V], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fut, exists := s.m[k]
	if !exists {
		fut = New[V]()
		s.m[k] = fut
	}
	return fut, !exists
}

// Delete removes the future for k, failing it if it has not completed.
func (s *Store[K, V]) Delete(k K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fut, exists := s.m[k]; exists {
		fut.Fail(errAbandoned)
	}
	delete(s.m, k)
}

// FailAll fails every pending future with err and clears the store.
// It is called when the transport underneath the pending calls goes away.
func (s *Store[K, V]) FailAll(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, fut := range s.m {
		fut.Fail(err)
		delete(s.m, k)
	}
}

func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
