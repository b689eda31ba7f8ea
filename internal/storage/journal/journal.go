// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package journal implements the raw append-only, CRC-sealed event log
// that both the GNS event log and the batch model journal are built on,
// with truncation-tolerant replay on open.
package journal

import (
	"fmt"
	"io"
	"os"

	"github.com/skytable-core/skyd/internal/storage/sdss"
	"github.com/skytable-core/skyd/pkg/codec"
)

type recordKind uint8

const (
	kindEvent  recordKind = 0
	kindReopen recordKind = 1
	kindClosed recordKind = 2
)

// Apply is called once per recovered or newly-appended event payload, in
// order, by the owning adapter (the GNS log or a model's batch journal).
type Apply func(payload []byte) error

// Journal is an append-only, CRC-sealed event log sitting on top of an
// SDSS-headed file.
type Journal struct {
	f      *os.File
	header sdss.Header
}

// Create initializes a fresh journal file at path with an SDSS header for
// the given specifier, and writes the initial reopen marker.
func Create(path string, specifier sdss.FileSpecifier, specifierVersion uint16) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: create %s: %w", path, err)
	}
	h := sdss.NewHeader(sdss.ClassJournal, specifier, specifierVersion)
	if _, err := f.Write(sdss.Encode(h)); err != nil {
		f.Close()
		return nil, fmt.Errorf("journal: write header: %w", err)
	}
	j := &Journal{f: f, header: h}
	if err := j.writeMarker(kindReopen); err != nil {
		f.Close()
		return nil, err
	}
	return j, nil
}

// Open opens an existing journal file, runs crash recovery (truncating
// any partial trailing record) and calls apply for every recovered event
// payload in order, then writes a fresh reopen marker. wasClean reports
// whether the file's last marker before this open was a clean "closed"
// marker.
func Open(path string, specifier sdss.FileSpecifier, specifierVersion uint16, apply Apply) (j *Journal, wasClean bool, err error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("journal: open %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			f.Close()
		}
	}()

	raw, readErr := io.ReadAll(f)
	if readErr != nil {
		return nil, false, fmt.Errorf("journal: read %s: %w", path, readErr)
	}
	header, hn, herr := sdss.Decode(raw)
	if herr != nil {
		return nil, false, fmt.Errorf("journal: %w", herr)
	}
	if header.Specifier != specifier {
		return nil, false, fmt.Errorf("journal: %s is not a %v file", path, specifier)
	}

	validEnd := hn
	cursor := hn
	for cursor < len(raw) {
		kind, payload, n, ok := decodeRecord(raw[cursor:])
		if !ok {
			break // truncate at this boundary
		}
		switch kind {
		case kindEvent:
			if applyErr := apply(payload); applyErr != nil {
				return nil, false, fmt.Errorf("journal: replay: %w", applyErr)
			}
			wasClean = false
		case kindReopen:
			wasClean = false
		case kindClosed:
			wasClean = true
		}
		cursor += n
		validEnd = cursor
	}

	if validEnd != len(raw) {
		if err := f.Truncate(int64(validEnd)); err != nil {
			return nil, false, fmt.Errorf("journal: truncate partial tail: %w", err)
		}
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return nil, false, fmt.Errorf("journal: seek to end: %w", err)
	}

	j = &Journal{f: f, header: header}
	if err := j.writeMarker(kindReopen); err != nil {
		return nil, false, err
	}
	return j, wasClean, nil
}

// Append writes one event record and fsyncs before returning.
func (j *Journal) Append(payload []byte) error {
	return j.writeRecord(kindEvent, payload)
}

// Close writes the clean-shutdown marker, fsyncs, and closes the
// underlying file.
func (j *Journal) Close() error {
	if err := j.writeMarker(kindClosed); err != nil {
		return err
	}
	return j.f.Close()
}

// Abandon closes the underlying file without writing the clean-shutdown
// marker, so the next Open observes it as an unclean prior session. It
// exists for crash-recovery tests in adapter packages that cannot reach
// the unexported file handle directly; production code should always use
// Close.
func (j *Journal) Abandon() error {
	return j.f.Close()
}

func (j *Journal) writeMarker(kind recordKind) error {
	return j.writeRecord(kind, nil)
}

func (j *Journal) writeRecord(kind recordKind, payload []byte) error {
	rec := encodeRecord(kind, payload)
	if _, err := j.f.Write(rec); err != nil {
		return fmt.Errorf("journal: write record: %w", err)
	}
	return j.f.Sync()
}

// encodeRecord builds [CRC64: 8B][payload_len: 8B LE][payload], where the
// payload is the kind discriminant byte followed by the caller's bytes,
// and the CRC covers payload_len||payload.
func encodeRecord(kind recordKind, payload []byte) []byte {
	full := make([]byte, 0, len(payload)+1)
	full = append(full, byte(kind))
	full = append(full, payload...)

	body := codec.AppendU64(nil, uint64(len(full)))
	body = append(body, full...)

	out := codec.AppendU64(nil, codec.Checksum(body))
	out = append(out, body...)
	return out
}

// decodeRecord parses one record from the start of buf. ok is false if
// buf does not hold a complete, checksum-valid record, signaling the
// recovery loop to stop and truncate here.
func decodeRecord(buf []byte) (kind recordKind, payload []byte, n int, ok bool) {
	if len(buf) < 16 {
		return 0, nil, 0, false
	}
	crcWant := codec.U64(buf[0:8])
	payloadLen := codec.U64(buf[8:16])
	total := 16 + int(payloadLen)
	if payloadLen == 0 || total < 0 || total > len(buf) {
		return 0, nil, 0, false
	}
	body := buf[8:total]
	if codec.Checksum(body) != crcWant {
		return 0, nil, 0, false
	}
	full := buf[16:total]
	return recordKind(full[0]), full[1:], total, true
}
