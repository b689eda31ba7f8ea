// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mtchm implements a concurrent hash index: a sharded, growable
// hash-trie where reads require no lock and writes take a per-shard lock.
//
// Sharding is the top-level hash-trie layer; each shard is small enough
// that a single native Go map serves as its "small open tree". Per-shard
// state is held behind an atomic.Pointer so that reads never block on a
// writer: a writer builds a new map (copy-on-write) under the shard's
// mutex and swaps the pointer in with a single atomic store. Readers that
// already loaded the old pointer keep observing a consistent snapshot for
// as long as they hold it — an epoch pin, except the epoch is Go's
// garbage collector rather than a hand-rolled deferred-free list: the old
// map becomes unreachable, and is reclaimed, the moment the last reader's
// local reference goes out of scope. Callers must not hold a loaded
// snapshot across a suspension point, exactly as with a real epoch guard.
package mtchm

import (
	"sync"
	"sync/atomic"
)

// Hasher computes a 64-bit hash for a key. Implementations should spread
// bits well across their full range; mtchm uses the low bits to route to
// a shard.
type Hasher[K comparable] func(K) uint64

type shard[K comparable, V any] struct {
	mu   sync.Mutex
	data atomic.Pointer[map[K]V]
}

func newShard[K comparable, V any]() *shard[K, V] {
	s := &shard[K, V]{}
	empty := make(map[K]V)
	s.data.Store(&empty)
	return s
}

// Index is a sharded concurrent hash map. The zero value is not usable;
// construct with New.
type Index[K comparable, V any] struct {
	shards []*shard[K, V]
	mask   uint64
	hash   Hasher[K]
	count  atomic.Int64
}

// New returns an Index with 2^shardBits shards, routing keys with hash.
// shardBits is clamped to at least 1.
func New[K comparable, V any](shardBits uint, hash Hasher[K]) *Index[K, V] {
	if shardBits == 0 {
		shardBits = 1
	}
	n := uint64(1) << shardBits
	idx := &Index[K, V]{
		shards: make([]*shard[K, V], n),
		mask:   n - 1,
		hash:   hash,
	}
	for i := range idx.shards {
		idx.shards[i] = newShard[K, V]()
	}
	return idx
}

func (idx *Index[K, V]) shardFor(k K) *shard[K, V] {
	return idx.shards[idx.hash(k)&idx.mask]
}

// Get returns the value stored for k, if any. It never blocks on a
// concurrent writer.
func (idx *Index[K, V]) Get(k K) (V, bool) {
	sh := idx.shardFor(k)
	snap := *sh.data.Load()
	v, ok := snap[k]
	return v, ok
}

// Insert stores v for k if k is not already present, returning true on
// success and false if k was already present (the existing value is left
// untouched).
func (idx *Index[K, V]) Insert(k K, v V) bool {
	sh := idx.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	old := *sh.data.Load()
	if _, exists := old[k]; exists {
		return false
	}
	next := cloneMap(old)
	next[k] = v
	sh.data.Store(&next)
	idx.count.Add(1)
	return true
}

// Update overwrites the value stored for k if k is already present,
// returning true on success and false if k was absent.
func (idx *Index[K, V]) Update(k K, v V) bool {
	sh := idx.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	old := *sh.data.Load()
	if _, exists := old[k]; !exists {
		return false
	}
	next := cloneMap(old)
	next[k] = v
	sh.data.Store(&next)
	return true
}

// Upsert stores v for k regardless of whether it was already present,
// returning true if k was newly inserted.
func (idx *Index[K, V]) Upsert(k K, v V) bool {
	sh := idx.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	old := *sh.data.Load()
	_, existed := old[k]
	next := cloneMap(old)
	next[k] = v
	sh.data.Store(&next)
	if !existed {
		idx.count.Add(1)
	}
	return !existed
}

// Delete removes k, returning true if it was present.
func (idx *Index[K, V]) Delete(k K) bool {
	sh := idx.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	old := *sh.data.Load()
	if _, exists := old[k]; !exists {
		return false
	}
	next := cloneMap(old)
	delete(next, k)
	sh.data.Store(&next)
	idx.count.Add(-1)
	return true
}

// Len returns the number of entries currently stored.
func (idx *Index[K, V]) Len() int {
	return int(idx.count.Load())
}

// Iter calls f for every (key, value) pair currently stored. It is
// snapshot-consistent per shard (each shard is iterated from a single
// atomically-loaded map) but not globally atomic: concurrent writes to a
// shard not yet visited will be observed, concurrent writes to an
// already-visited shard will not. Iteration stops early if f returns
// false.
func (idx *Index[K, V]) Iter(f func(K, V) bool) {
	for _, sh := range idx.shards {
		snap := *sh.data.Load()
		for k, v := range snap {
			if !f(k, v) {
				return
			}
		}
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	next := make(map[K]V, len(m)+1)
	for k, v := range m {
		next[k] = v
	}
	return next
}
