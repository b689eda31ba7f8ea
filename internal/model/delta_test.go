// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeltaStateAppendAssignsIncreasingDataVersions(t *testing.T) {
	ds := NewDeltaState()
	row := NewRow(NewString("k"), 0)
	d1 := ds.Append(DeltaInsert, row, 0)
	d2 := ds.Append(DeltaUpdate, row, 0)
	assert.Equal(t, uint64(1), d1.DataVersion)
	assert.Equal(t, uint64(2), d2.DataVersion)
	assert.Equal(t, 2, ds.Backlog())
}

func TestDeltaStateDrainUpToRespectsWatermark(t *testing.T) {
	ds := NewDeltaState()
	row := NewRow(NewString("k"), 0)
	for i := 0; i < 5; i++ {
		ds.Append(DeltaInsert, row, 0)
	}
	drained := ds.DrainUpTo(3)
	assert.Len(t, drained, 3)
	assert.Equal(t, 2, ds.Backlog())

	rest := ds.DrainAll()
	assert.Len(t, rest, 2)
	assert.Equal(t, 0, ds.Backlog())
}

func TestDeltaStateBumpSchemaVersion(t *testing.T) {
	ds := NewDeltaState()
	assert.Equal(t, uint64(0), ds.SchemaVersion())
	assert.Equal(t, uint64(1), ds.BumpSchemaVersion())
	assert.Equal(t, uint64(1), ds.SchemaVersion())
}
