// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldValidateScalar(t *testing.T) {
	f := NewField(false, TagString)
	assert.NoError(t, f.Validate(NewString("x")))
	assert.Error(t, f.Validate(NewU8(1)))
	assert.Error(t, f.Validate(NewNull()), "non-nullable field rejects null")
}

func TestFieldValidateNullable(t *testing.T) {
	f := NewField(true, TagString)
	assert.NoError(t, f.Validate(NewNull()))
}

func TestFieldValidateListOfString(t *testing.T) {
	f := NewField(false, TagList, TagString)
	assert.NoError(t, f.Validate(NewList([]Value{NewString("a"), NewString("b")})))
	assert.Error(t, f.Validate(NewList([]Value{NewU8(1)})))
	assert.Error(t, f.Validate(NewList([]Value{NewNull()})), "list elements may not be null")
}
