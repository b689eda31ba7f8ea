// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	m, err := NewModel("default", "users", "id", TagU64)
	assert.NoError(t, err)
	return m
}

func TestNewModelDeclaresPKField(t *testing.T) {
	m := newTestModel(t)
	f, ok := m.Field("id")
	assert.True(t, ok)
	assert.Equal(t, []Tag{TagU64}, f.Layers)
}

func TestNewModelRejectsBadNames(t *testing.T) {
	_, err := NewModel("default", "1bad", "id", TagU64)
	assert.Error(t, err)
	_, err = NewModel("default", "users", "id", TagList)
	assert.Error(t, err, "primary key type must be a hashable scalar")
}

func TestAlterModelAddRemove(t *testing.T) {
	m := newTestModel(t)
	assert.NoError(t, m.AlterModelAdd("name", NewField(false, TagString)))
	assert.Error(t, m.AlterModelAdd("name", NewField(false, TagString)), "duplicate add fails")
	assert.Error(t, m.AlterModelAdd("id", NewField(false, TagString)), "cannot shadow pk")

	assert.NoError(t, m.AlterModelRemove("name"))
	assert.Error(t, m.AlterModelRemove("name"), "already removed")
	assert.Error(t, m.AlterModelRemove("id"), "cannot remove pk")
}

func TestAlterModelUpdateRequiresEmptyModel(t *testing.T) {
	m := newTestModel(t)
	assert.NoError(t, m.AlterModelAdd("name", NewField(true, TagString)))

	row := NewRow(NewU64(1), m.Delta.SchemaVersion())
	_, err := m.Index.Insert(row)
	assert.NoError(t, err)

	err = m.AlterModelUpdate("name", NewField(false, TagString))
	assert.Error(t, err)

	_, err = m.Index.Delete(NewU64(1))
	assert.NoError(t, err)
	assert.NoError(t, m.AlterModelUpdate("name", NewField(false, TagString)))
}

func TestValidateRow(t *testing.T) {
	m := newTestModel(t)
	assert.NoError(t, m.AlterModelAdd("name", NewField(false, TagString)))

	assert.NoError(t, m.ValidateRow(map[string]Value{"name": NewString("a")}))
	assert.Error(t, m.ValidateRow(map[string]Value{"name": NewU8(1)}))
	assert.Error(t, m.ValidateRow(map[string]Value{"missing": NewString("a")}))
	assert.Error(t, m.ValidateRow(map[string]Value{"id": NewU64(1)}), "pk may not be set as data")
}
