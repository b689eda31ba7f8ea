// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package mtchm

import (
	"strconv"
	"sync"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
)

func hashString(k string) uint64 {
	return xxhash.Sum64String(k)
}

func TestInsertGetDelete(t *testing.T) {
	idx := New[string, int](4, hashString)
	assert.True(t, idx.Insert("a", 1))
	assert.False(t, idx.Insert("a", 2), "duplicate insert must fail")

	v, ok := idx.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	assert.True(t, idx.Delete("a"))
	_, ok = idx.Get("a")
	assert.False(t, ok)
	assert.False(t, idx.Delete("a"))
}

func TestUpdateRequiresExisting(t *testing.T) {
	idx := New[string, int](2, hashString)
	assert.False(t, idx.Update("missing", 1))
	idx.Insert("k", 1)
	assert.True(t, idx.Update("k", 2))
	v, _ := idx.Get("k")
	assert.Equal(t, 2, v)
}

func TestLenTracksLiveEntries(t *testing.T) {
	idx := New[string, int](3, hashString)
	for i := 0; i < 10; i++ {
		idx.Insert(strconv.Itoa(i), i)
	}
	assert.Equal(t, 10, idx.Len())
	idx.Delete("0")
	assert.Equal(t, 9, idx.Len())
}

func TestIterVisitsEveryEntry(t *testing.T) {
	idx := New[string, int](3, hashString)
	want := map[string]int{}
	for i := 0; i < 50; i++ {
		k := strconv.Itoa(i)
		idx.Insert(k, i)
		want[k] = i
	}
	got := map[string]int{}
	idx.Iter(func(k string, v int) bool {
		got[k] = v
		return true
	})
	assert.Equal(t, want, got)
}

// TestConcurrentDisjointInserts verifies that N concurrent writers each
// inserting K disjoint keys yields a final count of N*K, and concurrent
// readers never observe a torn map.
func TestConcurrentDisjointInserts(t *testing.T) {
	const n, k = 8, 200
	idx := New[string, int](6, hashString)

	var wg sync.WaitGroup
	for w := 0; w < n; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < k; i++ {
				key := strconv.Itoa(w*k + i)
				idx.Insert(key, w)
			}
		}(w)
	}

	stop := make(chan struct{})
	var readerWg sync.WaitGroup
	readerWg.Add(1)
	go func() {
		defer readerWg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				idx.Iter(func(string, int) bool { return true })
			}
		}
	}()

	wg.Wait()
	close(stop)
	readerWg.Wait()

	assert.Equal(t, n*k, idx.Len())
}
