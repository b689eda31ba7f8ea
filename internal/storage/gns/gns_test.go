// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package gns

import (
	"path/filepath"
	"testing"

	"github.com/skytable-core/skyd/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCommitAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gns.journal")

	g1 := model.NewGNS()
	log1, err := Create(path, g1)
	require.NoError(t, err)
	require.NoError(t, log1.CreateSpace("analytics"))
	require.NoError(t, log1.CreateModel("analytics", "events", "id", model.TagU64))
	require.NoError(t, log1.AlterModelAdd("analytics", "events", "name", model.NewField(true, model.TagString)))
	require.NoError(t, log1.Close())

	_, ok := g1.Space("analytics")
	assert.True(t, ok, "commits must apply to the live in-memory GNS immediately")

	g2 := model.NewGNS()
	log2, err := Open(path, g2)
	require.NoError(t, err)
	defer log2.Close()

	sp, ok := g2.Space("analytics")
	require.True(t, ok, "replay must recreate the space")
	m, ok := sp.Model("events")
	require.True(t, ok, "replay must recreate the model")
	f, ok := m.Field("name")
	require.True(t, ok, "replay must recreate the added field")
	assert.True(t, f.Nullable)
}

func TestReplayPreservesSpaceAndModelUUIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gns.journal")

	g1 := model.NewGNS()
	log1, err := Create(path, g1)
	require.NoError(t, err)
	require.NoError(t, log1.CreateSpace("analytics"))
	require.NoError(t, log1.CreateModel("analytics", "events", "id", model.TagU64))
	require.NoError(t, log1.Close())

	sp1, _ := g1.Space("analytics")
	m1, _ := sp1.Model("events")

	g2 := model.NewGNS()
	log2, err := Open(path, g2)
	require.NoError(t, err)
	defer log2.Close()

	sp2, ok := g2.Space("analytics")
	require.True(t, ok)
	m2, ok := sp2.Model("events")
	require.True(t, ok)

	assert.Equal(t, sp1.UUID, sp2.UUID, "replay must not mint a new space UUID")
	assert.Equal(t, m1.UUID, m2.UUID, "replay must not mint a new model UUID, or its batch file is orphaned")
}

func TestApplyRejectsUnknownOpcode(t *testing.T) {
	g := model.NewGNS()
	payload := []byte{0xFF, 0xFF}
	assert.Error(t, Apply(g, payload))
}

func TestApplyRejectsTrailingBytes(t *testing.T) {
	g := model.NewGNS()
	payload := encodeCreateSpace(model.NewUUID(), "s")
	payload = append(payload, 0x00)
	assert.Error(t, Apply(g, payload))
}

func TestApplyDropModelOnMissingModelIsHardError(t *testing.T) {
	g := model.NewGNS()
	payload := encodeDropModel("default", "does-not-exist")
	assert.Error(t, Apply(g, payload))
}
