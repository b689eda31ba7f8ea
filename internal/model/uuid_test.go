// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUUIDRoundTripsThroughBytes(t *testing.T) {
	u := NewUUID()
	assert.False(t, u.IsNil())
	got, ok := UUIDFromBytes(u.Bytes())
	assert.True(t, ok)
	assert.Equal(t, u, got)
}

func TestUUIDFromBytesRejectsWrongLength(t *testing.T) {
	_, ok := UUIDFromBytes([]byte{1, 2, 3})
	assert.False(t, ok)
}

func TestNilUUIDIsNil(t *testing.T) {
	assert.True(t, Nil.IsNil())
}
