// Package cache provides a small concurrency-safe key-value store. It is
// the single in-process cache implementation in the server; the chat
// history cache and the SSE connection registry both compose it rather
// than rolling their own locking.
package cache

import "sync"

// Store maps keys to values with at most one entry per key. All methods
// are safe for concurrent use; callers never need external locking.
type Store[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// New returns an empty store.
func New[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{m: make(map[K]V)}
}

// Get returns the value for key, if present.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Put stores value under key, replacing any previous entry.
func (s *Store[K, V]) Put(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

// GetOrCreate returns the value for key, building and storing it with
// create() when absent. create runs under the write lock so exactly one
// value is ever created per key.
func (s *Store[K, V]) GetOrCreate(key K, create func() V) V {
	s.mu.RLock()
	if v, ok := s.m[key]; ok {
		s.mu.RUnlock()
		return v
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.m[key]; ok {
		return v
	}
	v := create()
	s.m[key] = v
	return v
}

// Delete removes the entry for key; deleting a missing key is a no-op.
func (s *Store[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// Range calls fn for each entry until fn returns false. The read lock is
// held for the duration, so fn must not call back into the store's write
// methods.
func (s *Store[K, V]) Range(fn func(key K, value V) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.m {
		if !fn(k, v) {
			return
		}
	}
}

// Len reports the number of entries.
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
