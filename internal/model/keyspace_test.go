// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewGNSHasDefaultSpace(t *testing.T) {
	g := NewGNS()
	sp, ok := g.Space(DefaultSpaceName)
	assert.True(t, ok)
	assert.Equal(t, DefaultSpaceName, sp.Name)
}

func TestDefaultSpaceCannotBeDropped(t *testing.T) {
	g := NewGNS()
	_, err := g.DropSpace(DefaultSpaceName, false)
	assert.Error(t, err)
}

func TestCreateAndDropSpace(t *testing.T) {
	g := NewGNS()
	_, err := g.CreateSpace("analytics")
	assert.NoError(t, err)
	_, err = g.CreateSpace("analytics")
	assert.Error(t, err, "duplicate space")

	_, err = g.DropSpace("analytics", false)
	assert.NoError(t, err)
	_, ok := g.Space("analytics")
	assert.False(t, ok)
}

func TestCreateModelRegistersUnderSpaceAndUUIDIndex(t *testing.T) {
	g := NewGNS()
	m, err := g.CreateModel(DefaultSpaceName, "users", "id", TagU64)
	assert.NoError(t, err)

	sp, _ := g.Space(DefaultSpaceName)
	got, ok := sp.Model("users")
	assert.True(t, ok)
	assert.Equal(t, m, got)

	byUUID, ok := g.ModelByUUID(m.UUID)
	assert.True(t, ok)
	assert.Equal(t, m, byUUID)
}

func TestDropSpaceRequiresEmptiness(t *testing.T) {
	g := NewGNS()
	_, err := g.CreateSpace("s")
	assert.NoError(t, err)
	_, err = g.CreateModel("s", "m", "id", TagU64)
	assert.NoError(t, err)

	_, err = g.DropSpace("s", false)
	assert.ErrorIs(t, err, ErrNonEmptySpace)

	dropped, err := g.DropSpace("s", true)
	assert.NoError(t, err)
	assert.Len(t, dropped, 1)
	_, ok := g.Space("s")
	assert.False(t, ok)
}

func TestDropSpaceForceRemovesModels(t *testing.T) {
	g := NewGNS()
	_, err := g.CreateSpace("s")
	assert.NoError(t, err)
	m, err := g.CreateModel("s", "m", "id", TagU64)
	assert.NoError(t, err)

	dropped, err := g.DropSpace("s", true)
	assert.NoError(t, err)
	assert.Equal(t, []UUID{m.UUID}, dropped)
	_, ok := g.ModelByUUID(m.UUID)
	assert.False(t, ok)
}
