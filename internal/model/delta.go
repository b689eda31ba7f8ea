// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// DeltaKind classifies a pending DataDelta.
type DeltaKind byte

const (
	DeltaInsert DeltaKind = iota
	DeltaUpdate
	DeltaDelete
)

// DataDelta is one pending change against a model's primary index,
// queued by a write operation and drained by the fractal coordinator's
// batch flusher into the per-model batch journal.
type DataDelta struct {
	Kind          DeltaKind
	Row           *Row
	SchemaVersion uint64
	DataVersion   uint64
}

// deltaBacklogLimit bounds how many undrained deltas accumulate before
// Append starts blocking writers via the rate limiter, so a wedged
// flusher applies backpressure instead of growing the queue without
// bound.
const deltaBacklogLimit = 1 << 16

// DeltaState tracks a model's pending write backlog and version counters
// between batch-journal flushes. A model's schema
// version increments on every DDL change to its field layout; its data
// version increments on every row mutation, independent of schema
// version, and is what the batch journal replays up to on recovery.
type DeltaState struct {
	mu sync.Mutex

	pending []DataDelta

	schemaVersionCurrent uint64
	dataVersionNext      uint64

	// limiter throttles Append once the backlog passes deltaBacklogLimit,
	// giving the fractal coordinator's flusher time to catch up instead
	// of the backlog growing unboundedly under a wedged driver.
	limiter *rate.Limiter
}

// NewDeltaState returns a DeltaState starting at schema version 0.
func NewDeltaState() *DeltaState {
	return &DeltaState{limiter: rate.NewLimiter(rate.Inf, 1)}
}

// SchemaVersion returns the model's current schema generation.
func (d *DeltaState) SchemaVersion() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.schemaVersionCurrent
}

// BumpSchemaVersion increments and returns the new schema version,
// called on every DDL change to the model's field layout.
func (d *DeltaState) BumpSchemaVersion() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.schemaVersionCurrent++
	return d.schemaVersionCurrent
}

// Append queues a pending delta and returns its assigned data version.
// Once the backlog exceeds deltaBacklogLimit it throttles the limiter so
// future Append calls start costing wait time, applying backpressure to
// writers instead of growing memory without bound. Slowing writers was
// chosen over dropping deltas.
func (d *DeltaState) Append(kind DeltaKind, row *Row, schemaVersion uint64) DataDelta {
	d.mu.Lock()
	d.dataVersionNext++
	dd := DataDelta{Kind: kind, Row: row, SchemaVersion: schemaVersion, DataVersion: d.dataVersionNext}
	d.pending = append(d.pending, dd)
	overBacklog := len(d.pending) > deltaBacklogLimit
	d.mu.Unlock()

	if overBacklog {
		d.limiter.SetLimit(rate.Limit(1000))
	} else {
		d.limiter.SetLimit(rate.Inf)
	}
	return dd
}

// Throttle blocks the caller according to the backpressure limiter
// armed by Append once the backlog crosses deltaBacklogLimit. Write
// paths call this after Append so a wedged flusher slows writers down
// instead of letting the backlog grow without bound.
func (d *DeltaState) Throttle(ctx context.Context) error {
	return d.limiter.Wait(ctx)
}

// Backlog reports how many deltas are currently undrained.
func (d *DeltaState) Backlog() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// DrainUpTo removes and returns every pending delta with DataVersion <=
// highWatermark, in FIFO order, for the flusher to persist. Deltas past
// the watermark remain queued for the next flush cycle.
func (d *DeltaState) DrainUpTo(highWatermark uint64) []DataDelta {
	d.mu.Lock()
	defer d.mu.Unlock()
	cut := 0
	for cut < len(d.pending) && d.pending[cut].DataVersion <= highWatermark {
		cut++
	}
	drained := append([]DataDelta(nil), d.pending[:cut]...)
	d.pending = d.pending[cut:]
	return drained
}

// DrainAll removes and returns every pending delta, used when closing a
// model's driver on shutdown.
func (d *DeltaState) DrainAll() []DataDelta {
	d.mu.Lock()
	defer d.mu.Unlock()
	drained := d.pending
	d.pending = nil
	return drained
}
