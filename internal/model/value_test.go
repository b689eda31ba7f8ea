// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import (
	"testing"

	"github.com/skytable-core/skyd/pkg/scanner"
	"github.com/stretchr/testify/assert"
)

func TestValueEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Value{
		NewNull(),
		NewBool(true),
		NewU8(200),
		NewI64(-12345),
		NewF64(3.25),
		NewString("hello"),
		NewBinary([]byte{0xDE, 0xAD, 0xBE, 0xEF}),
		NewList([]Value{NewU32(1), NewU32(2), NewU32(3)}),
	}
	for _, v := range cases {
		buf := Encode(nil, v)
		got, err := Decode(scanner.New(buf))
		assert.NoError(t, err)
		assert.True(t, v.Equal(got), "round trip mismatch for %s", v.Tag())
	}
}

func TestValueEqual(t *testing.T) {
	assert.True(t, NewString("a").Equal(NewString("a")))
	assert.False(t, NewString("a").Equal(NewString("b")))
	assert.False(t, NewU8(1).Equal(NewU16(1)), "different tags never equal")
}

func TestTagIsHashableScalar(t *testing.T) {
	assert.True(t, TagString.IsHashableScalar())
	assert.True(t, TagBinary.IsHashableScalar())
	assert.True(t, TagU64.IsHashableScalar())
	assert.False(t, TagList.IsHashableScalar())
	assert.False(t, TagBool.IsHashableScalar())
}
