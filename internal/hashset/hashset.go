// Package hashset provides a default implementation of the "hashed
// keyed set" abstraction spec.md §6 describes as an external
// collaborator: iterate, search-by-key, insert, remove.
//
// Grounded on the teacher's hashing discipline in datalog/identity.go
// (Identity.Hash, used as a sync.Map key) and datalog/intern.go
// (KeywordIntern's load-or-store pattern), generalized to a sharded
// map keyed by an xxhash digest of the caller-supplied key so the
// maintenance cache's host-group nested-membership lookups (spec.md
// §4.8) can scale across many concurrent readers without one global
// lock.
package hashset

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 32

// Set is a keyed set of values, sharded by hash of the string key for
// concurrent access. The zero value is not usable; use New.
type Set[V any] struct {
	shards [shardCount]shard[V]
}

type shard[V any] struct {
	mu sync.RWMutex
	m  map[string]V
}

// New returns an empty, ready-to-use Set.
func New[V any]() *Set[V] {
	s := &Set[V]{}
	for i := range s.shards {
		s.shards[i].m = make(map[string]V)
	}
	return s
}

func (s *Set[V]) shardFor(key string) *shard[V] {
	h := xxhash.Sum64String(key)
	return &s.shards[h%shardCount]
}

// Insert adds or overwrites the value stored under key.
func (s *Set[V]) Insert(key string, v V) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.m[key] = v
}

// Search returns the value stored under key, if any.
func (s *Set[V]) Search(key string) (V, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	v, ok := sh.m[key]
	return v, ok
}

// Remove deletes key from the set.
func (s *Set[V]) Remove(key string) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.m, key)
}

// Len returns the total number of entries across all shards.
func (s *Set[V]) Len() int {
	n := 0
	for i := range s.shards {
		s.shards[i].mu.RLock()
		n += len(s.shards[i].m)
		s.shards[i].mu.RUnlock()
	}
	return n
}

// Iterate calls fn for every (key, value) pair. fn must not call back
// into the Set; iteration order is unspecified.
func (s *Set[V]) Iterate(fn func(key string, v V)) {
	for i := range s.shards {
		s.shards[i].mu.RLock()
		for k, v := range s.shards[i].m {
			fn(k, v)
		}
		s.shards[i].mu.RUnlock()
	}
}
