// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package sdss

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := NewHeader(ClassBatch, SpecifierModelBatch, 3)
	buf := Encode(h)
	got, n, err := Decode(buf)
	assert.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, h, got)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	h := NewHeader(ClassJournal, SpecifierGNSLog, 1)
	buf := Encode(h)
	buf[0] ^= 0xFF
	_, _, err := Decode(buf)
	assert.Error(t, err)
}

func TestDecodeRejectsCorruptedChecksum(t *testing.T) {
	h := NewHeader(ClassFlat, SpecifierSysDB, 1)
	buf := Encode(h)
	buf[len(Magic)] ^= 0xFF // flip a body byte without updating the CRC
	_, _, err := Decode(buf)
	assert.Error(t, err)
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	h := NewHeader(ClassJournal, SpecifierGNSLog, 1)
	buf := Encode(h)
	_, _, err := Decode(buf[:len(buf)-1])
	assert.Error(t, err)
}

func TestDecodeRejectsFutureHeaderSpecVersion(t *testing.T) {
	h := NewHeader(ClassJournal, SpecifierGNSLog, 1)
	h.HeaderSpecVersion = HeaderSpecVersion + 1
	buf := Encode(h)
	_, _, err := Decode(buf)
	assert.Error(t, err)
}
