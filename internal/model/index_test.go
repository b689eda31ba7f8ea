// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrimaryIndexInsertSelectDelete(t *testing.T) {
	pi := NewPrimaryIndex()
	row := NewRow(NewString("k1"), 0)
	ok, err := pi.Insert(row)
	assert.NoError(t, err)
	assert.True(t, ok)

	got, found, err := pi.Select(NewString("k1"))
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, row, got)

	ok, err = pi.Insert(row)
	assert.NoError(t, err)
	assert.False(t, ok, "duplicate insert must fail")

	deleted, err := pi.Delete(NewString("k1"))
	assert.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 0, pi.Count())
}

func TestPrimaryIndexRejectsNonScalarKey(t *testing.T) {
	pi := NewPrimaryIndex()
	row := NewRow(NewList([]Value{NewU8(1)}), 0)
	_, err := pi.Insert(row)
	assert.Error(t, err)
}

func TestPrimaryIndexConcurrentDisjointInserts(t *testing.T) {
	const n, k = 8, 100
	pi := NewPrimaryIndex()
	var wg sync.WaitGroup
	for w := 0; w < n; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < k; i++ {
				row := NewRow(NewString(strconv.Itoa(w*k+i)), 0)
				_, _ = pi.Insert(row)
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, n*k, pi.Count())
}

func TestPrimaryIndexAcquireCD(t *testing.T) {
	pi := NewPrimaryIndex()
	for i := 0; i < 5; i++ {
		_, _ = pi.Insert(NewRow(NewU32(uint32(i)), 0))
	}
	snap := pi.AcquireCD()
	assert.Len(t, snap, 5)
}
