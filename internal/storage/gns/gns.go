// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package gns is the GNS event log adapter: it encodes every DDL
// mutation as an opcode-tagged event, replays those events against an
// in-memory internal/model.GNS on startup, and dispatches fresh commits
// through the raw journal.
package gns

import (
	"fmt"

	"github.com/skytable-core/skyd/internal/model"
	"github.com/skytable-core/skyd/internal/storage/journal"
	"github.com/skytable-core/skyd/internal/storage/sdss"
	"github.com/skytable-core/skyd/pkg/codec"
	"github.com/skytable-core/skyd/pkg/scanner"
)

// Opcode identifies the DDL event kind, exhaustive.
type Opcode uint16

const (
	OpCreateSpace Opcode = iota
	OpAlterSpace
	OpDropSpace
	OpCreateModel
	OpAlterModelAdd
	OpAlterModelRemove
	OpAlterModelUpdate
	OpDropModel
)

// Log owns the raw journal backing the GNS and replays/commits events
// against the in-memory model.GNS it was constructed with.
type Log struct {
	j   *journal.Journal
	gns *model.GNS
}

// Open opens (or recovery-replays) the GNS log at path, applying every
// recovered event to gns before returning. If apply fails for any event,
// the entire open aborts: the database will not start against a GNS log
// it cannot fully replay.
func Open(path string, gns *model.GNS) (*Log, error) {
	l := &Log{gns: gns}
	j, _, err := journal.Open(path, sdss.SpecifierGNSLog, 1, l.applyPayload)
	if err != nil {
		return nil, fmt.Errorf("gns: %w", err)
	}
	l.j = j
	return l, nil
}

// Create initializes a fresh GNS log at path, backing the given (empty)
// GNS.
func Create(path string, gns *model.GNS) (*Log, error) {
	j, err := journal.Create(path, sdss.SpecifierGNSLog, 1)
	if err != nil {
		return nil, fmt.Errorf("gns: %w", err)
	}
	return &Log{j: j, gns: gns}, nil
}

// Close writes the clean-shutdown marker and closes the log file.
func (l *Log) Close() error { return l.j.Close() }

// commit applies payload to the in-memory GNS first and only appends it
// to the durable journal once that succeeds. A business-logic rejection
// (a duplicate name, a non-empty space without force, ...) must never
// reach the journal: replay is deterministic, so a rejected event
// written to disk would fail identically on every future restart and
// the server would never start again. A journal append failure after a
// successful apply is left uncorrected — local disk write failures on a
// WAL are already a server-fatal condition elsewhere in this codebase
// (the fractal coordinator's DriverError tier), not a case this adapter
// tries to roll back.
func (l *Log) commit(payload []byte) error {
	if err := l.applyPayload(payload); err != nil {
		return err
	}
	if err := l.j.Append(payload); err != nil {
		return fmt.Errorf("gns: append: %w", err)
	}
	return nil
}

func (l *Log) applyPayload(payload []byte) error {
	return Apply(l.gns, payload)
}

// CreateSpace commits and applies a CreateSpace event, minting a fresh
// UUID for the space and encoding it into the event body so replay
// reconstructs the same identity rather than minting a new one.
func (l *Log) CreateSpace(name string) error {
	return l.commit(encodeCreateSpace(model.NewUUID(), name))
}

// AlterSpace commits and applies an AlterSpace event.
func (l *Log) AlterSpace(name string, props map[string]model.Value) error {
	return l.commit(encodeAlterSpace(name, props))
}

// DropSpace commits and applies a DropSpace event, returning the UUIDs of
// any models force-dropped along with the space so the caller can remove
// their batch files.
func (l *Log) DropSpace(name string, force bool) ([]model.UUID, error) {
	var dropped []model.UUID
	if sp, ok := l.gns.Space(name); ok {
		for _, mn := range sp.ModelNames() {
			if m, ok := sp.Model(mn); ok {
				dropped = append(dropped, m.UUID)
			}
		}
	}
	if err := l.commit(encodeDropSpace(name, force)); err != nil {
		return nil, err
	}
	return dropped, nil
}

// CreateModel commits and applies a CreateModel event, minting a fresh
// UUID for the model and encoding it into the event body so replay
// reconstructs the same identity the batch journal's on-disk path is
// keyed by.
func (l *Log) CreateModel(space, modelName, pkName string, pkTag model.Tag) error {
	return l.commit(encodeCreateModel(model.NewUUID(), space, modelName, pkName, pkTag))
}

// AlterModelAdd commits and applies an AlterModelAdd event.
func (l *Log) AlterModelAdd(space, modelName, field string, f model.Field) error {
	return l.commit(encodeAlterModelAddOrUpdate(OpAlterModelAdd, space, modelName, field, f))
}

// AlterModelRemove commits and applies an AlterModelRemove event.
func (l *Log) AlterModelRemove(space, modelName, field string) error {
	return l.commit(encodeAlterModelRemove(space, modelName, field))
}

// AlterModelUpdate commits and applies an AlterModelUpdate event.
func (l *Log) AlterModelUpdate(space, modelName, field string, f model.Field) error {
	return l.commit(encodeAlterModelAddOrUpdate(OpAlterModelUpdate, space, modelName, field, f))
}

// DropModel commits and applies a DropModel event.
func (l *Log) DropModel(space, modelName string) error {
	return l.commit(encodeDropModel(space, modelName))
}

// ---- encode ----

func encodeOpcode(op Opcode) []byte { return codec.AppendU16(nil, uint16(op)) }

func encodeCreateSpace(id model.UUID, name string) []byte {
	b := encodeOpcode(OpCreateSpace)
	b = append(b, id.Bytes()...)
	return codec.AppendString(b, name)
}

func encodeAlterSpace(name string, props map[string]model.Value) []byte {
	b := encodeOpcode(OpAlterSpace)
	b = codec.AppendString(b, name)
	b = encodeDict(b, props)
	return b
}

func encodeDropSpace(name string, force bool) []byte {
	b := encodeOpcode(OpDropSpace)
	b = codec.AppendString(b, name)
	if force {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	return b
}

func encodeCreateModel(id model.UUID, space, modelName, pkName string, pkTag model.Tag) []byte {
	b := encodeOpcode(OpCreateModel)
	b = append(b, id.Bytes()...)
	b = codec.AppendString(b, space)
	b = codec.AppendString(b, modelName)
	b = codec.AppendString(b, pkName)
	b = append(b, byte(pkTag))
	return b
}

func encodeAlterModelAddOrUpdate(op Opcode, space, modelName, field string, f model.Field) []byte {
	b := encodeOpcode(op)
	b = codec.AppendString(b, space)
	b = codec.AppendString(b, modelName)
	b = codec.AppendString(b, field)
	b = encodeField(b, f)
	return b
}

func encodeAlterModelRemove(space, modelName, field string) []byte {
	b := encodeOpcode(OpAlterModelRemove)
	b = codec.AppendString(b, space)
	b = codec.AppendString(b, modelName)
	b = codec.AppendString(b, field)
	return b
}

func encodeDropModel(space, modelName string) []byte {
	b := encodeOpcode(OpDropModel)
	b = codec.AppendString(b, space)
	b = codec.AppendString(b, modelName)
	return b
}

func encodeField(b []byte, f model.Field) []byte {
	b = codec.AppendU64(b, uint64(len(f.Layers)))
	for _, t := range f.Layers {
		b = append(b, byte(t))
	}
	if f.Nullable {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	return b
}

// encodeDict lays out a property dictionary as
// [count][(key_len, key_bytes, value)]*, with values tagged by their
// type byte.
func encodeDict(b []byte, dict map[string]model.Value) []byte {
	b = codec.AppendU64(b, uint64(len(dict)))
	for k, v := range dict {
		b = codec.AppendString(b, k)
		b = model.Encode(b, v)
	}
	return b
}

// ---- decode / apply ----

// Apply decodes payload, dispatches by opcode, and mutates gns. Unknown
// opcodes and trailing bytes are hard errors, as is any failure the
// specific mutation reports — the caller is expected to abort recovery
// entirely on a non-nil error.
func Apply(gns *model.GNS, payload []byte) error {
	s := scanner.New(payload)
	opRaw, err := s.NextSlice(2)
	if err != nil {
		return fmt.Errorf("gns: truncated opcode: %w", err)
	}
	op := Opcode(codec.U16(opRaw))

	switch op {
	case OpCreateSpace:
		id, err := readUUID(s)
		if err != nil {
			return err
		}
		name, err := readString(s)
		if err != nil {
			return err
		}
		if err := requireEOF(s); err != nil {
			return err
		}
		_, err = gns.CreateSpaceWithUUID(id, name)
		return err

	case OpAlterSpace:
		name, err := readString(s)
		if err != nil {
			return err
		}
		props, err := readDict(s)
		if err != nil {
			return err
		}
		if err := requireEOF(s); err != nil {
			return err
		}
		return gns.AlterSpace(name, props)

	case OpDropSpace:
		name, err := readString(s)
		if err != nil {
			return err
		}
		forceByte, err := s.NextByte()
		if err != nil {
			return err
		}
		if err := requireEOF(s); err != nil {
			return err
		}
		_, err = gns.DropSpace(name, forceByte != 0)
		return err

	case OpCreateModel:
		id, err := readUUID(s)
		if err != nil {
			return err
		}
		space, err := readString(s)
		if err != nil {
			return err
		}
		modelName, err := readString(s)
		if err != nil {
			return err
		}
		pkName, err := readString(s)
		if err != nil {
			return err
		}
		pkTagByte, err := s.NextByte()
		if err != nil {
			return err
		}
		if err := requireEOF(s); err != nil {
			return err
		}
		_, err = gns.CreateModelWithUUID(id, space, modelName, pkName, model.Tag(pkTagByte))
		return err

	case OpAlterModelAdd, OpAlterModelUpdate:
		space, err := readString(s)
		if err != nil {
			return err
		}
		modelName, err := readString(s)
		if err != nil {
			return err
		}
		field, err := readString(s)
		if err != nil {
			return err
		}
		f, err := readField(s)
		if err != nil {
			return err
		}
		if err := requireEOF(s); err != nil {
			return err
		}
		m, ok := lookupModel(gns, space, modelName)
		if !ok {
			return fmt.Errorf("gns: model %s.%s does not exist", space, modelName)
		}
		if op == OpAlterModelAdd {
			return m.AlterModelAdd(field, f)
		}
		return m.AlterModelUpdate(field, f)

	case OpAlterModelRemove:
		space, err := readString(s)
		if err != nil {
			return err
		}
		modelName, err := readString(s)
		if err != nil {
			return err
		}
		field, err := readString(s)
		if err != nil {
			return err
		}
		if err := requireEOF(s); err != nil {
			return err
		}
		m, ok := lookupModel(gns, space, modelName)
		if !ok {
			return fmt.Errorf("gns: model %s.%s does not exist", space, modelName)
		}
		return m.AlterModelRemove(field)

	case OpDropModel:
		space, err := readString(s)
		if err != nil {
			return err
		}
		modelName, err := readString(s)
		if err != nil {
			return err
		}
		if err := requireEOF(s); err != nil {
			return err
		}
		return gns.DropModel(space, modelName)

	default:
		return fmt.Errorf("gns: unknown opcode %d", op)
	}
}

func lookupModel(gns *model.GNS, space, modelName string) (*model.Model, bool) {
	sp, ok := gns.Space(space)
	if !ok {
		return nil, false
	}
	return sp.Model(modelName)
}

func requireEOF(s *scanner.Scanner) error {
	if !s.EOF() {
		return fmt.Errorf("gns: trailing bytes after event body")
	}
	return nil
}

func readUUID(s *scanner.Scanner) (model.UUID, error) {
	b, err := s.NextSlice(16)
	if err != nil {
		return model.UUID{}, fmt.Errorf("gns: truncated uuid: %w", err)
	}
	id, ok := model.UUIDFromBytes(b)
	if !ok {
		return model.UUID{}, fmt.Errorf("gns: malformed uuid")
	}
	return id, nil
}

func readString(s *scanner.Scanner) (string, error) {
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

func readField(s *scanner.Scanner) (model.Field, error) {
	n, err := s.NextU64LE()
	if err != nil {
		return model.Field{}, err
	}
	layers := make([]model.Tag, n)
	for i := range layers {
		b, err := s.NextByte()
		if err != nil {
			return model.Field{}, err
		}
		layers[i] = model.Tag(b)
	}
	nb, err := s.NextByte()
	if err != nil {
		return model.Field{}, err
	}
	return model.Field{Layers: layers, Nullable: nb != 0}, nil
}

func readDict(s *scanner.Scanner) (map[string]model.Value, error) {
	n, err := s.NextU64LE()
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Value, n)
	for i := uint64(0); i < n; i++ {
		k, err := readString(s)
		if err != nil {
			return nil, err
		}
		v, err := model.Decode(s)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
