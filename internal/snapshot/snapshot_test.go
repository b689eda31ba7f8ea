// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/skytable-core/skyd/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedGNS(t *testing.T) *model.GNS {
	t.Helper()
	g := model.NewGNS()
	_, err := g.CreateSpace("s1")
	require.NoError(t, err)
	_, err = g.CreateModel("s1", "m1", "id", model.TagU64)
	require.NoError(t, err)

	sp, ok := g.Space("s1")
	require.True(t, ok)
	m, ok := sp.Model("m1")
	require.True(t, ok)
	require.NoError(t, m.AlterModelAdd("name", model.Field{Layers: []model.Tag{model.TagString}, Nullable: true}))

	row := model.NewRow(model.NewU64(1), m.Delta.SchemaVersion())
	row.SetMany(map[string]model.Value{"name": model.NewString("alice")})
	_, err = m.Index.Insert(row)
	require.NoError(t, err)
	return g
}

func TestSnapshotWritesManifestAndBlob(t *testing.T) {
	g := seedGNS(t)
	dir := t.TempDir()

	mgr, err := New(g, dir, 0, false, nil)
	require.NoError(t, err)

	snapDir, err := mgr.Snapshot(context.Background())
	require.NoError(t, err)

	manifestRaw, err := os.ReadFile(filepath.Join(snapDir, "manifest.bin"))
	require.NoError(t, err)
	entries, err := decodeManifest(manifestRaw)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "s1", entries[0].SpaceName)
	assert.Equal(t, "m1", entries[0].ModelName)

	_, err = os.Stat(filepath.Join(snapDir, entries[0].BlobFile))
	assert.NoError(t, err)
}

func TestSnapshotRejectsConcurrentRun(t *testing.T) {
	g := seedGNS(t)
	dir := t.TempDir()
	mgr, err := New(g, dir, 0, false, nil)
	require.NoError(t, err)

	mgr.mu.Lock()
	mgr.busy = true
	mgr.mu.Unlock()

	_, err = mgr.Snapshot(context.Background())
	assert.Error(t, err)
}

func TestRetentionKeepsOnlyNewest(t *testing.T) {
	g := seedGNS(t)
	dir := t.TempDir()
	mgr, err := New(g, dir, 2, false, nil)
	require.NoError(t, err)

	var dirs []string
	for i := 0; i < 4; i++ {
		d, err := mgr.Snapshot(context.Background())
		require.NoError(t, err)
		dirs = append(dirs, d)
	}

	ents, err := os.ReadDir(filepath.Join(dir, "snapshots"))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(ents), 2)
}

func TestEncodeDecodeModelBlobRoundTrips(t *testing.T) {
	g := seedGNS(t)
	sp, _ := g.Space("s1")
	m, _ := sp.Model("m1")

	raw := encodeModelBlob(m, m.Index.AcquireCD())
	rows, err := decodeModelBlob(raw)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(1), rows[0].PK().Uint())

	v, ok := rows[0].Get("name")
	require.True(t, ok)
	assert.Equal(t, "alice", v.String_())
}
