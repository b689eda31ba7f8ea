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

// manifestMagic tags a manifest.bin file the way internal/storage/sdss
// tags its own headers, so a stray file dropped into a snapshot
// directory is never mistaken for one.
const manifestMagic = "SKYSNAP1"

// manifestEntry names one model's compressed blob file within a
// snapshot directory.
type manifestEntry struct {
	SpaceUUID model.UUID
	ModelUUID model.UUID
	SpaceName string
	ModelName string
	BlobFile  string
}

func encodeManifest(entries []manifestEntry) []byte {
	b := append([]byte(nil), manifestMagic...)
	b = codec.AppendU64(b, uint64(len(entries)))
	for _, e := range entries {
		b = append(b, e.SpaceUUID.Bytes()...)
		b = append(b, e.ModelUUID.Bytes()...)
		b = codec.AppendString(b, e.SpaceName)
		b = codec.AppendString(b, e.ModelName)
		b = codec.AppendString(b, e.BlobFile)
	}
	crc := codec.Checksum(b)
	return codec.AppendU64(b, crc)
}

func decodeManifest(raw []byte) ([]manifestEntry, error) {
	if len(raw) < len(manifestMagic)+8 {
		return nil, fmt.Errorf("snapshot: truncated manifest")
	}
	crcWant := codec.U64(raw[len(raw)-8:])
	body := raw[:len(raw)-8]
	if codec.Checksum(body) != crcWant {
		return nil, fmt.Errorf("snapshot: manifest checksum mismatch")
	}
	if string(body[:len(manifestMagic)]) != manifestMagic {
		return nil, fmt.Errorf("snapshot: bad manifest magic")
	}
	s := scanner.New(body[len(manifestMagic):])
	count, err := s.NextU64LE()
	if err != nil {
		return nil, err
	}
	entries := make([]manifestEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		spaceBytes, err := s.NextSlice(16)
		if err != nil {
			return nil, err
		}
		modelBytes, err := s.NextSlice(16)
		if err != nil {
			return nil, err
		}
		spaceUUID, ok := model.UUIDFromBytes(spaceBytes)
		if !ok {
			return nil, fmt.Errorf("snapshot: malformed space uuid in manifest")
		}
		modelUUID, ok := model.UUIDFromBytes(modelBytes)
		if !ok {
			return nil, fmt.Errorf("snapshot: malformed model uuid in manifest")
		}
		spaceName, err := readFieldName(s)
		if err != nil {
			return nil, err
		}
		modelName, err := readFieldName(s)
		if err != nil {
			return nil, err
		}
		blobFile, err := readFieldName(s)
		if err != nil {
			return nil, err
		}
		entries = append(entries, manifestEntry{
			SpaceUUID: spaceUUID,
			ModelUUID: modelUUID,
			SpaceName: spaceName,
			ModelName: modelName,
			BlobFile:  blobFile,
		})
	}
	if !s.EOF() {
		return nil, fmt.Errorf("snapshot: trailing bytes after manifest entries")
	}
	return entries, nil
}
