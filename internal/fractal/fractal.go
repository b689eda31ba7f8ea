// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fractal implements the fractal coordinator: it owns the GNS
// driver and one batch driver per model, routes every driver call
// through a failure-isolating wrapper that marks a misbehaving driver
// "iffy", and runs the background flush scheduler that drains each
// model's delta backlog into its batch journal.
package fractal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/skytable-core/skyd/internal/model"
	"github.com/skytable-core/skyd/internal/storage/batch"
	"github.com/skytable-core/skyd/internal/storage/gns"
)

// DriverError is a server-fatal, driver-poisoning error: the owning
// driver is marked iffy and every further operation through it fails
// until the operator restarts or repairs it.
type DriverError struct {
	Driver string
	Cause  error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("fractal: driver %q is iffy: %v", e.Driver, e.Cause)
}
func (e *DriverError) Unwrap() error { return e.Cause }

// driverState tracks whether a single driver (the GNS log, or one
// model's batch log) has been poisoned by a prior failure.
type driverState struct {
	mu   sync.Mutex
	iffy bool
}

func (d *driverState) run(name string, onFailure func(), f func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.iffy {
		return &DriverError{Driver: name, Cause: fmt.Errorf("driver already iffy")}
	}
	if err := f(); err != nil {
		d.iffy = true
		if onFailure != nil {
			onFailure()
		}
		return &DriverError{Driver: name, Cause: err}
	}
	return nil
}

// watermark is the delta-backlog size at which the flush scheduler
// persists a model's pending deltas early instead of waiting for the
// next scheduled tick.
const watermark = 256

// Coordinator owns every on-disk driver for one running server instance.
type Coordinator struct {
	gns      *gns.Log
	gnsState driverState

	mu       sync.Mutex
	batches  map[model.UUID]*batch.Log
	states   map[model.UUID]*driverState
	gnsIndex *model.GNS

	scheduler gocron.Scheduler
	onFailure func(driver string, cause error)
}

// New constructs a coordinator over an already-open GNS log and
// in-memory namespace. Call RegisterModel for every model's batch driver
// as it is opened, then Start to begin the background flush scheduler.
func New(gnsLog *gns.Log, gnsIndex *model.GNS, onFailure func(driver string, cause error)) (*Coordinator, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("fractal: new scheduler: %w", err)
	}
	return &Coordinator{
		gns:       gnsLog,
		gnsIndex:  gnsIndex,
		batches:   make(map[model.UUID]*batch.Log),
		states:    make(map[model.UUID]*driverState),
		scheduler: sched,
		onFailure: onFailure,
	}, nil
}

// RegisterModel associates m's open batch driver with the coordinator so
// the flush scheduler and driver_context wrapper can reach it.
func (c *Coordinator) RegisterModel(m *model.Model, driver *batch.Log) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches[m.UUID] = driver
	c.states[m.UUID] = &driverState{}
}

// UnregisterModel drops a model's batch driver, used after DropModel.
func (c *Coordinator) UnregisterModel(id model.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.batches, id)
	delete(c.states, id)
}

// TakeBatch removes and returns the batch driver registered for id, for a
// caller that is about to close it and delete its file as part of
// DropModel or a force DropSpace, where all contained models and their
// batch files are removed.
func (c *Coordinator) TakeBatch(id model.UUID) (*batch.Log, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	driver, ok := c.batches[id]
	delete(c.batches, id)
	delete(c.states, id)
	return driver, ok
}

func (c *Coordinator) notify(name string, err error) func() {
	return func() {
		if c.onFailure != nil {
			c.onFailure(name, err)
		}
	}
}

// WithGNS runs f against the GNS log through the iffy-state wrapper.
func (c *Coordinator) WithGNS(f func(*gns.Log) error) error {
	return c.gnsState.run("gns", nil, func() error { return f(c.gns) })
}

// WithBatch runs f against the named model's batch driver through the
// iffy-state wrapper.
func (c *Coordinator) WithBatch(id model.UUID, f func(*batch.Log) error) error {
	c.mu.Lock()
	driver, ok := c.batches[id]
	state := c.states[id]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("fractal: no batch driver registered for model %s", id)
	}
	return state.run(id.String(), nil, func() error { return f(driver) })
}

// Start begins the background flush scheduler: every tick it drains any
// model whose delta backlog exceeds watermark into its batch driver.
func (c *Coordinator) Start(interval time.Duration) error {
	_, err := c.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(c.flushTick),
	)
	if err != nil {
		return fmt.Errorf("fractal: schedule flush job: %w", err)
	}
	c.scheduler.Start()
	return nil
}

func (c *Coordinator) flushTick() {
	c.mu.Lock()
	targets := make(map[model.UUID]*batch.Log, len(c.batches))
	for id, d := range c.batches {
		targets[id] = d
	}
	c.mu.Unlock()

	for id, driver := range targets {
		m, ok := c.gnsIndex.ModelByUUID(id)
		if !ok {
			continue
		}
		if m.Delta.Backlog() < watermark {
			continue
		}
		_ = c.WithBatch(id, func(b *batch.Log) error {
			return flushModel(m, b)
		})
	}
}

// FlushNow forces an immediate flush of m's pending deltas, bypassing
// the watermark check; used by the query engine's early-flush path when
// a model's delta backlog grows too large.
func (c *Coordinator) FlushNow(m *model.Model) error {
	return c.WithBatch(m.UUID, func(b *batch.Log) error {
		return flushModel(m, b)
	})
}

// Health reports whether the GNS driver and every registered batch
// driver is currently healthy (not iffy), keyed by driver name, for
// internal/metrics to poll into a gauge.
func (c *Coordinator) Health() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]bool, len(c.states)+1)
	c.gnsState.mu.Lock()
	out["gns"] = !c.gnsState.iffy
	c.gnsState.mu.Unlock()
	for id, st := range c.states {
		st.mu.Lock()
		out[id.String()] = !st.iffy
		st.mu.Unlock()
	}
	return out
}

// TotalBacklog sums the pending delta backlog across every model
// currently registered with the coordinator, for a delta-queue-depth
// gauge.
func (c *Coordinator) TotalBacklog() int {
	c.mu.Lock()
	ids := make([]model.UUID, 0, len(c.batches))
	for id := range c.batches {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	total := 0
	for _, id := range ids {
		if m, ok := c.gnsIndex.ModelByUUID(id); ok {
			total += m.Delta.Backlog()
		}
	}
	return total
}

func flushModel(m *model.Model, b *batch.Log) error {
	deltas := m.Delta.DrainAll()
	if len(deltas) == 0 {
		return nil
	}
	return b.Flush(m.Delta.SchemaVersion(), deltas)
}

// Stop shuts the scheduler down, flushes every model one last time, and
// closes every driver with its CLOSED marker.
func (c *Coordinator) Stop(ctx context.Context) error {
	_ = c.scheduler.Shutdown()

	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for id, driver := range c.batches {
		if m, ok := c.gnsIndex.ModelByUUID(id); ok {
			_ = flushModel(m, driver)
		}
		if err := driver.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.gns.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
