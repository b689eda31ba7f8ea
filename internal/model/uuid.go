// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import "github.com/google/uuid"

// UUID is the 128-bit opaque identity assigned to every keyspace, space
// and model on creation. It never changes across restarts.
type UUID [16]byte

// Nil is the zero UUID, used only as a sentinel for "not yet assigned".
var Nil UUID

// NewUUID generates a fresh random (v4) UUID.
func NewUUID() UUID {
	var u UUID
	copy(u[:], uuid.New()[:])
	return u
}

// UUIDFromBytes interprets exactly 16 raw bytes as a UUID, the
// representation used by every on-disk and wire encoding.
func UUIDFromBytes(b []byte) (UUID, bool) {
	var u UUID
	if len(b) != 16 {
		return u, false
	}
	copy(u[:], b)
	return u, true
}

// Bytes returns the 16 raw bytes of u.
func (u UUID) Bytes() []byte {
	return u[:]
}

// String renders the canonical 8-4-4-4-12 hex form.
func (u UUID) String() string {
	return uuid.UUID(u).String()
}

// IsNil reports whether u is the zero UUID.
func (u UUID) IsNil() bool {
	return u == Nil
}
