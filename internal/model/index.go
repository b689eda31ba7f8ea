// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/skytable-core/skyd/pkg/codec"
	"github.com/skytable-core/skyd/pkg/mtchm"
)

// PrimaryIndexKey is the canonical, hashable, comparable encoding of a
// primary key Value. Go's mtchm.Index requires a comparable key type, and
// a struct carrying a []byte payload is not comparable, so the tag byte
// and canonical bytes are packed into a string instead — a Go string is
// itself just an immutable byte sequence and hashes/compares the same way
// a byte slice would.
type PrimaryIndexKey string

// NewPrimaryIndexKey canonicalizes a hashable-scalar Value (string,
// binary, or any integer width) into a PrimaryIndexKey. It returns an
// error if v's tag is not a hashable scalar.
func NewPrimaryIndexKey(v Value) (PrimaryIndexKey, error) {
	if !v.Tag().IsHashableScalar() {
		return "", fmt.Errorf("model: %s is not a valid primary key type", v.Tag())
	}
	buf := make([]byte, 0, 17)
	buf = append(buf, byte(v.Tag()))
	switch {
	case v.Tag() == TagString:
		buf = append(buf, []byte(v.String_())...)
	case v.Tag() == TagBinary:
		buf = append(buf, v.Binary()...)
	default:
		buf = codec.AppendU64(buf, v.Uint())
	}
	return PrimaryIndexKey(buf), nil
}

func hashPrimaryIndexKey(k PrimaryIndexKey) uint64 {
	return xxhash.Sum64String(string(k))
}

// primaryIndexShardBits sizes the index's shard count; chosen generously
// since a model's row count is unbounded and shard contention under
// concurrent writers must stay low regardless of scale.
const primaryIndexShardBits = 6

// PrimaryIndex is the concurrent sharded hash index over a model's rows.
type PrimaryIndex struct {
	rows *mtchm.Index[PrimaryIndexKey, *Row]
}

// NewPrimaryIndex returns an empty index.
func NewPrimaryIndex() *PrimaryIndex {
	return &PrimaryIndex{rows: mtchm.New[PrimaryIndexKey, *Row](primaryIndexShardBits, hashPrimaryIndexKey)}
}

// Insert adds row under its own primary key, failing if one already
// exists with that key.
func (pi *PrimaryIndex) Insert(row *Row) (bool, error) {
	key, err := NewPrimaryIndexKey(row.PK())
	if err != nil {
		return false, err
	}
	return pi.rows.Insert(key, row), nil
}

// Select returns the row for the given primary key value, if present.
func (pi *PrimaryIndex) Select(pk Value) (*Row, bool, error) {
	key, err := NewPrimaryIndexKey(pk)
	if err != nil {
		return nil, false, err
	}
	row, ok := pi.rows.Get(key)
	return row, ok, nil
}

// Update replaces the row stored under its own primary key; fails if
// absent.
func (pi *PrimaryIndex) Update(row *Row) (bool, error) {
	key, err := NewPrimaryIndexKey(row.PK())
	if err != nil {
		return false, err
	}
	return pi.rows.Update(key, row), nil
}

// Delete removes the row with the given primary key.
func (pi *PrimaryIndex) Delete(pk Value) (bool, error) {
	key, err := NewPrimaryIndexKey(pk)
	if err != nil {
		return false, err
	}
	return pi.rows.Delete(key), nil
}

// Count returns the live row count.
func (pi *PrimaryIndex) Count() int { return pi.rows.Len() }

// AcquireCD takes a consistent, point-in-time snapshot of every row
// pointer currently in the index for the batch flusher and snapshot
// subsystem to flush from. Because shards are copy-on-write, the
// snapshot is internally consistent without blocking concurrent writers
// for its whole duration.
func (pi *PrimaryIndex) AcquireCD() []*Row {
	var out []*Row
	pi.rows.Iter(func(_ PrimaryIndexKey, row *Row) bool {
		out = append(out, row)
		return true
	})
	return out
}
