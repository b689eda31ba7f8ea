// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import (
	"sync"

	"github.com/skytable-core/skyd/pkg/stseq"
)

// Row is a single record stored under the primary index: a primary key
// plus an ordered map of non-pk field values, a schema version and a
// data version. The schema version records which
// generation of the model's field layout the row's data map last agreed
// with; the data version is bumped on every successful mutation and is
// what the delta log and batch journal key their replay on.
type Row struct {
	mu   sync.RWMutex
	pk   Value
	data *stseq.Map[string, Value]

	schemaVersion uint64
	dataVersion   uint64
}

// NewRow constructs a row for pk with an empty data map.
func NewRow(pk Value, schemaVersion uint64) *Row {
	return &Row{pk: pk, data: stseq.New[string, Value](), schemaVersion: schemaVersion}
}

// PK returns the row's primary key value. Immutable for the row's lifetime.
func (r *Row) PK() Value { return r.pk }

// Get returns the value of field name, if set.
func (r *Row) Get(name string) (Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.Get(name)
}

// Set assigns field name to v and bumps the data version.
func (r *Row) Set(name string, v Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.Insert(name, v)
	r.dataVersion++
}

// SetMany assigns several fields atomically with respect to readers and
// bumps the data version exactly once.
func (r *Row) SetMany(fields map[string]Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, v := range fields {
		r.data.Insert(name, v)
	}
	r.dataVersion++
}

// SchemaVersion returns the schema generation the row's data last agreed
// with.
func (r *Row) SchemaVersion() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schemaVersion
}

// DataVersion returns the row's current data version.
func (r *Row) DataVersion() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dataVersion
}

// Snapshot returns a point-in-time copy of the row's field data, in
// insertion order, for the flusher and snapshot subsystems to read
// without holding the row lock while they serialize.
func (r *Row) Snapshot() (fields []string, values []Value, schemaVersion, dataVersion uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.data.IterOrd(func(k string, v Value) bool {
		fields = append(fields, k)
		values = append(values, v)
		return true
	})
	return fields, values, r.schemaVersion, r.dataVersion
}

// Clone returns a new Row with an independent copy of the data map,
// sharing no mutable state with r.
func (r *Row) Clone() *Row {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &Row{pk: r.pk, data: r.data.Clone(), schemaVersion: r.schemaVersion, dataVersion: r.dataVersion}
	return out
}
