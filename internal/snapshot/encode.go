// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package snapshot

import (
	"fmt"

	"github.com/skytable-core/skyd/internal/model"
	"github.com/skytable-core/skyd/pkg/codec"
	"github.com/skytable-core/skyd/pkg/scanner"
)

// encodeModelBlob serializes every row AcquireCD returns for m into the
// same length-prefixed, CRC-sealed shape internal/storage/batch uses for
// one row event, minus the delta-kind byte a full snapshot has no use
// for (every row here is a present, live row).
func encodeModelBlob(m *model.Model, rows []*model.Row) []byte {
	b := codec.AppendU64(nil, uint64(len(rows)))
	for _, row := range rows {
		b = model.Encode(b, row.PK())
		fields, values, schemaVersion, _ := row.Snapshot()
		b = codec.AppendU64(b, schemaVersion)
		b = codec.AppendU64(b, uint64(len(fields)))
		for i, name := range fields {
			b = codec.AppendString(b, name)
			b = model.Encode(b, values[i])
		}
	}
	crc := codec.Checksum(b)
	return codec.AppendU64(b, crc)
}

// decodeModelBlob reverses encodeModelBlob, rebuilding a fresh
// *model.PrimaryIndex's rows. Used by restore (not yet wired into
// cmd/skyd, which currently only ever replays through the GNS/batch
// journals on startup; a --restore-snapshot flag is future work).
func decodeModelBlob(raw []byte) ([]*model.Row, error) {
	if len(raw) < 8 {
		return nil, fmt.Errorf("snapshot: truncated model blob")
	}
	crcWant := codec.U64(raw[len(raw)-8:])
	body := raw[:len(raw)-8]
	if codec.Checksum(body) != crcWant {
		return nil, fmt.Errorf("snapshot: model blob checksum mismatch")
	}

	s := scanner.New(body)
	count, err := s.NextU64LE()
	if err != nil {
		return nil, err
	}
	rows := make([]*model.Row, 0, count)
	for i := uint64(0); i < count; i++ {
		pk, err := model.Decode(s)
		if err != nil {
			return nil, err
		}
		schemaVersion, err := s.NextU64LE()
		if err != nil {
			return nil, err
		}
		n, err := s.NextU64LE()
		if err != nil {
			return nil, err
		}
		fields := make(map[string]model.Value, n)
		for j := uint64(0); j < n; j++ {
			name, err := readFieldName(s)
			if err != nil {
				return nil, err
			}
			v, err := model.Decode(s)
			if err != nil {
				return nil, err
			}
			fields[name] = v
		}
		row := model.NewRow(pk, schemaVersion)
		row.SetMany(fields)
		rows = append(rows, row)
	}
	if !s.EOF() {
		return nil, fmt.Errorf("snapshot: trailing bytes after model blob rows")
	}
	return rows, nil
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
