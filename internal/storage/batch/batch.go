// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package batch implements the per-model row-level write-ahead log:
// groups of deltas are flushed together as a single batch record,
// replayed on restore to rebuild a model's primary index, and guarded
// by a recovery-event threshold that refuses to open a file that has
// crashed too many times without a clean close.
package batch

import (
	"fmt"

	"github.com/skytable-core/skyd/internal/model"
	"github.com/skytable-core/skyd/internal/storage/journal"
	"github.com/skytable-core/skyd/internal/storage/sdss"
	"github.com/skytable-core/skyd/pkg/codec"
	"github.com/skytable-core/skyd/pkg/scanner"
)

// Marker bytes, exhaustive.
const (
	markerBatchStart    byte = 0xFE
	markerEndOfBatch    byte = 0xFD
	markerBatchReopen   byte = 0xFB
	markerBatchClosed   byte = 0xFC
	markerRecoveryEvent byte = 0xFF
)

// RowKind classifies one row-event inside a batch body.
type RowKind byte

const (
	RowInsert RowKind = 1
	RowUpdate RowKind = 2
	RowDelete RowKind = 3
)

// RecoveryThreshold is the number of consecutive recovery events (opens
// that found the file not cleanly closed) a driver tolerates before it
// refuses to open and surfaces a repair request.
const RecoveryThreshold = 10

// ErrRepairRequired is returned by Open once RecoveryThreshold has been
// exceeded.
var ErrRepairRequired = fmt.Errorf("batch: recovery threshold exceeded, file requires manual repair")

// Log is one model's batch journal.
type Log struct {
	j *journal.Journal
	m *model.Model
}

// Create initializes a fresh batch journal for m at path.
func Create(path string, m *model.Model) (*Log, error) {
	j, err := journal.Create(path, sdss.SpecifierModelBatch, 1)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	l := &Log{j: j, m: m}
	if err := l.appendMarker(markerBatchReopen); err != nil {
		return nil, err
	}
	return l, nil
}

// Open opens an existing batch journal, replays every batch into m's
// primary index, and enforces the recovery threshold. The resulting
// index state matches what a cleanly shut down instance would have
// held.
func Open(path string, m *model.Model) (*Log, error) {
	recoveryCount := 0

	apply := func(payload []byte) error {
		if len(payload) == 0 {
			return fmt.Errorf("batch: empty event payload")
		}
		switch payload[0] {
		case markerBatchStart:
			return applyBatchBody(m, payload[1:])
		case markerBatchReopen:
			return nil
		case markerBatchClosed:
			recoveryCount = 0
			return nil
		case markerRecoveryEvent:
			recoveryCount++
			return nil
		default:
			return fmt.Errorf("batch: unknown marker byte 0x%02X", payload[0])
		}
	}

	j, wasClean, err := journal.Open(path, sdss.SpecifierModelBatch, 1, apply)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}

	if !wasClean {
		recoveryCount++
		if recoveryCount > RecoveryThreshold {
			j.Close()
			return nil, ErrRepairRequired
		}
	}

	l := &Log{j: j, m: m}
	if err := l.appendMarker(markerBatchReopen); err != nil {
		return nil, err
	}
	if !wasClean {
		if err := l.appendMarker(markerRecoveryEvent); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Close writes the clean-shutdown marker and closes the underlying file.
func (l *Log) Close() error {
	if err := l.appendMarker(markerBatchClosed); err != nil {
		return err
	}
	return l.j.Close()
}

func (l *Log) appendMarker(b byte) error {
	return l.j.Append([]byte{b})
}

// Flush persists deltas as a single batch record. Callers (the fractal
// coordinator's flusher) are expected to have already taken a consistent
// snapshot of the delta queue head before calling this.
func (l *Log) Flush(schemaVersion uint64, deltas []model.DataDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	body := encodeBatchBody(schemaVersion, deltas)
	payload := append([]byte{markerBatchStart}, body...)
	return l.j.Append(payload)
}

// ---- batch body encode/decode ----

func encodeBatchBody(schemaVersion uint64, deltas []model.DataDelta) []byte {
	inner := codec.AppendU64(nil, schemaVersion)
	inner = codec.AppendU64(inner, uint64(len(deltas)))
	for _, d := range deltas {
		inner = encodeRowEvent(inner, d)
	}
	inner = append(inner, markerEndOfBatch)
	crc := codec.Checksum(inner)
	return codec.AppendU64(inner, crc)
}

func encodeRowEvent(b []byte, d model.DataDelta) []byte {
	var kind RowKind
	switch d.Kind {
	case model.DeltaInsert:
		kind = RowInsert
	case model.DeltaUpdate:
		kind = RowUpdate
	case model.DeltaDelete:
		kind = RowDelete
	}
	b = append(b, byte(kind))
	b = model.Encode(b, d.Row.PK())

	if kind == RowDelete {
		return b
	}
	fields, values, _, _ := d.Row.Snapshot()
	b = codec.AppendU64(b, uint64(len(fields)))
	for i, name := range fields {
		b = codec.AppendString(b, name)
		b = model.Encode(b, values[i])
	}
	return b
}

func applyBatchBody(m *model.Model, body []byte) error {
	if len(body) < 8 {
		return fmt.Errorf("batch: truncated batch body")
	}
	crcWant := codec.U64(body[len(body)-8:])
	inner := body[:len(body)-8]
	if codec.Checksum(inner) != crcWant {
		return fmt.Errorf("batch: batch body checksum mismatch")
	}
	if len(inner) == 0 || inner[len(inner)-1] != markerEndOfBatch {
		return fmt.Errorf("batch: missing end-of-batch marker")
	}
	inner = inner[:len(inner)-1]

	s := scanner.New(inner)
	schemaVersion, err := s.NextU64LE()
	if err != nil {
		return err
	}
	count, err := s.NextU64LE()
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		if err := applyRowEvent(m, s, schemaVersion); err != nil {
			return err
		}
	}
	if !s.EOF() {
		return fmt.Errorf("batch: trailing bytes after batch rows")
	}
	return nil
}

func applyRowEvent(m *model.Model, s *scanner.Scanner, schemaVersion uint64) error {
	kindByte, err := s.NextByte()
	if err != nil {
		return err
	}
	pk, err := model.Decode(s)
	if err != nil {
		return err
	}

	switch RowKind(kindByte) {
	case RowDelete:
		_, err := m.Index.Delete(pk)
		return err

	case RowInsert, RowUpdate:
		n, err := s.NextU64LE()
		if err != nil {
			return err
		}
		fields := make(map[string]model.Value, n)
		for i := uint64(0); i < n; i++ {
			name, err := readFieldName(s)
			if err != nil {
				return err
			}
			v, err := model.Decode(s)
			if err != nil {
				return err
			}
			fields[name] = v
		}
		if RowKind(kindByte) == RowInsert {
			row := model.NewRow(pk, schemaVersion)
			row.SetMany(fields)
			_, err := m.Index.Insert(row)
			return err
		}
		row, ok, err := m.Index.Select(pk)
		if err != nil {
			return err
		}
		if !ok {
			row = model.NewRow(pk, schemaVersion)
			row.SetMany(fields)
			_, err := m.Index.Insert(row)
			return err
		}
		row.SetMany(fields)
		return nil

	default:
		return fmt.Errorf("batch: unknown row kind %d", kindByte)
	}
}

func readFieldName(s *scanner.Scanner) (string, error) {
	n, err := s.NextU64LE()
	if err != nil {
		return "", err
	}
	b, err := s.NextChunk(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
