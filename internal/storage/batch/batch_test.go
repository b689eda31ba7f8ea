// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package batch

import (
	"path/filepath"
	"testing"

	"github.com/skytable-core/skyd/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.NewModel("default", "events", "id", model.TagU64)
	require.NoError(t, err)
	require.NoError(t, m.AlterModelAdd("name", model.NewField(true, model.TagString)))
	return m
}

func TestFlushAndRestoreRebuildsIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.batch")
	m1 := newTestModel(t)

	row1 := model.NewRow(model.NewU64(1), 0)
	row1.Set("name", model.NewString("alice"))
	row2 := model.NewRow(model.NewU64(2), 0)
	row2.Set("name", model.NewString("bob"))

	l1, err := Create(path, m1)
	require.NoError(t, err)
	deltas := []model.DataDelta{
		{Kind: model.DeltaInsert, Row: row1, DataVersion: 1},
		{Kind: model.DeltaInsert, Row: row2, DataVersion: 2},
	}
	require.NoError(t, l1.Flush(0, deltas))
	require.NoError(t, l1.Close())

	m2 := newTestModel(t)
	l2, err := Open(path, m2)
	require.NoError(t, err)
	defer l2.Close()

	assert.Equal(t, 2, m2.Index.Count())
	got, ok, err := m2.Index.Select(model.NewU64(1))
	require.NoError(t, err)
	require.True(t, ok)
	name, _ := got.Get("name")
	assert.Equal(t, "alice", name.String_())
}

func TestFlushDeleteIsReplayed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.batch")
	m1 := newTestModel(t)
	row := model.NewRow(model.NewU64(1), 0)

	l1, err := Create(path, m1)
	require.NoError(t, err)
	require.NoError(t, l1.Flush(0, []model.DataDelta{{Kind: model.DeltaInsert, Row: row, DataVersion: 1}}))
	require.NoError(t, l1.Flush(0, []model.DataDelta{{Kind: model.DeltaDelete, Row: row, DataVersion: 2}}))
	require.NoError(t, l1.Close())

	m2 := newTestModel(t)
	l2, err := Open(path, m2)
	require.NoError(t, err)
	defer l2.Close()
	assert.Equal(t, 0, m2.Index.Count())
}

func TestOpenRecoversFromUncleanShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.batch")
	m1 := newTestModel(t)
	row := model.NewRow(model.NewU64(1), 0)

	l1, err := Create(path, m1)
	require.NoError(t, err)
	require.NoError(t, l1.Flush(0, []model.DataDelta{{Kind: model.DeltaInsert, Row: row, DataVersion: 1}}))
	require.NoError(t, l1.j.Abandon()) // crash: no BATCH_CLOSED marker

	m2 := newTestModel(t)
	l2, err := Open(path, m2)
	require.NoError(t, err)
	defer l2.Close()
	assert.Equal(t, 1, m2.Index.Count())
}

func TestOpenRefusesAfterRecoveryThresholdExceeded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.batch")
	m := newTestModel(t)
	l, err := Create(path, m)
	require.NoError(t, err)
	require.NoError(t, l.j.Abandon()) // crash: no BATCH_CLOSED marker

	for i := 0; i < RecoveryThreshold; i++ {
		l2, err := Open(path, m)
		require.NoError(t, err)
		require.NoError(t, l2.j.Abandon()) // keep crashing uncleanly each time
	}

	_, err = Open(path, m)
	assert.ErrorIs(t, err, ErrRepairRequired)
}
