// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package snapshot implements skyd's full-store snapshot subsystem
// (BGSAVE-style): a periodic, best-effort dump of every model's live
// rows, with retention and an optional "poison the server on snapshot
// failure" mode that trips on every failed run. Snapshots are written atomically (full write to a temp
// path, then rename into place) on the same gocron-driven periodic
// scheduler internal/fractal uses for batch flushing.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/klauspost/compress/zstd"
	skylog "github.com/skytable-core/skyd/internal/log"
	"github.com/skytable-core/skyd/internal/model"
)

// Uploader mirrors a completed local snapshot directory somewhere else
// (an S3 bucket, in internal/snapshot/s3.go). Kept as an interface here
// so this package's tests never need network access or AWS credentials.
type Uploader interface {
	Upload(ctx context.Context, localDir, remoteName string) error
}

// Manager owns the periodic snapshot scheduler and its on-disk state.
// Grounded on internal/fractal.Coordinator's gocron.Scheduler field.
type Manager struct {
	gns      *model.GNS
	dataDir  string
	keep     int
	failsafe bool
	uploader Uploader

	mu   sync.Mutex
	busy bool

	scheduler      gocron.Scheduler
	onFailsafeTrip func(error)
}

// New constructs a Manager over gns, writing snapshots under
// <dataDir>/snapshots/. keep bounds how many local snapshot directories
// are retained (oldest deleted first); 0 means unbounded. uploader may
// be nil, meaning no remote mirror is configured.
func New(gns *model.GNS, dataDir string, keep int, failsafe bool, uploader Uploader) (*Manager, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("snapshot: new scheduler: %w", err)
	}
	return &Manager{
		gns:       gns,
		dataDir:   dataDir,
		keep:      keep,
		failsafe:  failsafe,
		uploader:  uploader,
		scheduler: sched,
	}, nil
}

// OnFailsafeTrip registers a callback invoked when failsafe mode is on
// and a snapshot attempt fails — the caller (cmd/skyd) decides what
// "poison the server" means operationally (e.g. refusing further
// writes), matching the original's registry::poison() without this
// package reaching into server-wide state itself.
func (m *Manager) OnFailsafeTrip(f func(error)) { m.onFailsafeTrip = f }

// Start begins the periodic snapshot scheduler at the given interval.
func (m *Manager) Start(interval time.Duration) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(m.tick),
	)
	if err != nil {
		return fmt.Errorf("snapshot: schedule job: %w", err)
	}
	m.scheduler.Start()
	return nil
}

// Stop halts the scheduler. It does not wait for an in-flight snapshot.
func (m *Manager) Stop() error {
	return m.scheduler.Shutdown()
}

func (m *Manager) tick() {
	_, err := m.Snapshot(context.Background())
	if err == nil {
		return
	}
	skylog.Errorf("snapshot: periodic snapshot failed: %v", err)
	if m.failsafe && m.onFailsafeTrip != nil {
		m.onFailsafeTrip(err)
	}
}

// Snapshot creates one full-store snapshot directory under
// <dataDir>/snapshots/<timestamp>/, containing manifest.bin plus one
// zstd-compressed blob per model, via each model's AcquireCD
// point-in-time snapshot. Never runs more than one snapshot operation
// at a time, returning an error rather than queuing a second snapshot
// concurrently.
func (m *Manager) Snapshot(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return "", fmt.Errorf("snapshot: a snapshot is already in progress")
	}
	m.busy = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.busy = false
		m.mu.Unlock()
	}()

	stamp := time.Now().UTC().Format("20060102T150405.000000000Z")
	dir := filepath.Join(m.dataDir, "snapshots", stamp)
	tmp := dir + ".tmp"
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return "", fmt.Errorf("snapshot: mkdir %s: %w", tmp, err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return "", fmt.Errorf("snapshot: new zstd writer: %w", err)
	}
	defer enc.Close()

	var entries []manifestEntry
	for _, spaceName := range m.gns.SpaceNames() {
		sp, ok := m.gns.Space(spaceName)
		if !ok {
			continue
		}
		for _, modelName := range sp.ModelNames() {
			mdl, ok := sp.Model(modelName)
			if !ok {
				continue
			}
			blobName := mdl.UUID.String() + ".zst"
			raw := encodeModelBlob(mdl, mdl.Index.AcquireCD())
			compressed := enc.EncodeAll(raw, nil)
			if err := os.WriteFile(filepath.Join(tmp, blobName), compressed, 0o644); err != nil {
				return "", fmt.Errorf("snapshot: write blob %s: %w", blobName, err)
			}
			entries = append(entries, manifestEntry{
				SpaceUUID: sp.UUID,
				ModelUUID: mdl.UUID,
				SpaceName: spaceName,
				ModelName: modelName,
				BlobFile:  blobName,
			})
		}
	}

	manifest := encodeManifest(entries)
	if err := os.WriteFile(filepath.Join(tmp, "manifest.bin"), manifest, 0o644); err != nil {
		return "", fmt.Errorf("snapshot: write manifest: %w", err)
	}

	if err := os.Rename(tmp, dir); err != nil {
		return "", fmt.Errorf("snapshot: rename into place: %w", err)
	}

	if err := m.enforceRetention(); err != nil {
		skylog.Warnf("snapshot: retention cleanup failed: %v", err)
	}

	if m.uploader != nil {
		if err := m.uploader.Upload(ctx, dir, stamp); err != nil {
			return dir, fmt.Errorf("snapshot: remote mirror failed: %w", err)
		}
	}

	return dir, nil
}

// enforceRetention deletes the oldest local snapshot directories beyond
// m.keep, oldest-first.
func (m *Manager) enforceRetention() error {
	if m.keep <= 0 {
		return nil
	}
	root := filepath.Join(m.dataDir, "snapshots")
	ents, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var names []string
	for _, e := range ents {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) <= m.keep {
		return nil
	}
	for _, stale := range names[:len(names)-m.keep] {
		if err := os.RemoveAll(filepath.Join(root, stale)); err != nil {
			return err
		}
	}
	return nil
}
