// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/skytable-core/skyd/pkg/mtchm"
	"github.com/skytable-core/skyd/pkg/stseq"
)

const (
	// DefaultSpaceName is the space that always exists and cannot be
	// dropped — a fresh keyspace always has one.
	DefaultSpaceName = "default"

	gnsShardBits = 4
)

func hashString(s string) uint64 { return xxhash.Sum64String(s) }

func hashUUID(u UUID) uint64 { return xxhash.Sum64(u.Bytes()) }

// GNS is the global namespace: the concurrent registry of every space
// and model known to the server. Spaces are indexed by name (names are
// unique and are what DDL statements address); models are additionally
// indexed by UUID so the GNS event log and batch journal can key their
// on-disk records off an identity that survives a rename without
// creating a naming cycle between a model's record and its owning
// space's record.
type GNS struct {
	spaces *mtchm.Index[string, *Space]
	models *mtchm.Index[UUID, *Model]
}

// NewGNS returns a fresh global namespace containing only the default
// space.
func NewGNS() *GNS {
	g := &GNS{
		spaces: mtchm.New[string, *Space](gnsShardBits, hashString),
		models: mtchm.New[UUID, *Model](gnsShardBits, hashUUID),
	}
	// Built directly: NewSpace rejects "default" as a reserved word.
	def := &Space{
		UUID:   NewUUID(),
		Name:   DefaultSpaceName,
		models: stseq.New[string, *Model](),
		Props:  make(map[string]Value),
	}
	g.spaces.Insert(DefaultSpaceName, def)
	return g
}

// Space returns the named space, if it exists.
func (g *GNS) Space(name string) (*Space, bool) { return g.spaces.Get(name) }

// SpaceNames returns every currently-registered space name, in no
// particular order, for INSPECT SPACES.
func (g *GNS) SpaceNames() []string {
	var names []string
	g.spaces.Iter(func(name string, _ *Space) bool {
		names = append(names, name)
		return true
	})
	return names
}

// ModelByUUID returns the model with the given identity, if it exists.
func (g *GNS) ModelByUUID(id UUID) (*Model, bool) { return g.models.Get(id) }

// CreateSpace registers a new, empty space under a freshly minted UUID.
func (g *GNS) CreateSpace(name string) (*Space, error) {
	return g.CreateSpaceWithUUID(NewUUID(), name)
}

// CreateSpaceWithUUID registers a new, empty space under a caller-chosen
// UUID. Used by GNS log replay to reconstruct a space under the same
// identity it was originally created with, rather than minting a new
// one — a replayed event must never change a space's identity.
func (g *GNS) CreateSpaceWithUUID(id UUID, name string) (*Space, error) {
	sp, err := NewSpace(name)
	if err != nil {
		return nil, err
	}
	sp.UUID = id
	if !g.spaces.Insert(name, sp) {
		return nil, fmt.Errorf("model: space %q already exists", name)
	}
	return sp, nil
}

// AlterSpace applies property changes to an existing space.
func (g *GNS) AlterSpace(name string, props map[string]Value) error {
	sp, ok := g.spaces.Get(name)
	if !ok {
		return fmt.Errorf("model: space %q does not exist", name)
	}
	for k, v := range props {
		sp.SetProp(k, v)
	}
	return nil
}

// ErrNonEmptySpace is returned by DropSpace when the space still holds
// models and force was not set: dropping a space requires either an
// empty model set or the force flag.
var ErrNonEmptySpace = fmt.Errorf("model: non-empty-space")

// DropSpace removes a non-default space. If the space still holds models
// and force is false, it fails with ErrNonEmptySpace; with force it drops
// every contained model first and returns their UUIDs so the caller can
// remove their batch files.
func (g *GNS) DropSpace(name string, force bool) ([]UUID, error) {
	if name == DefaultSpaceName {
		return nil, fmt.Errorf("model: the default space cannot be dropped")
	}
	sp, ok := g.spaces.Get(name)
	if !ok {
		return nil, fmt.Errorf("model: space %q does not exist", name)
	}
	names := sp.ModelNames()
	if len(names) != 0 && !force {
		return nil, ErrNonEmptySpace
	}

	var dropped []UUID
	for _, mn := range names {
		m, ok := sp.Model(mn)
		if !ok {
			continue
		}
		if err := sp.dropModel(mn); err != nil {
			return dropped, err
		}
		g.models.Delete(m.UUID)
		dropped = append(dropped, m.UUID)
	}
	if !g.spaces.Delete(name) {
		return dropped, fmt.Errorf("model: space %q does not exist", name)
	}
	return dropped, nil
}

// CreateModel creates a model inside an existing space under a freshly
// minted UUID and registers it in the UUID index.
func (g *GNS) CreateModel(spaceName, modelName, pkName string, pkTag Tag) (*Model, error) {
	return g.CreateModelWithUUID(NewUUID(), spaceName, modelName, pkName, pkTag)
}

// CreateModelWithUUID creates a model inside an existing space under a
// caller-chosen UUID. Used by GNS log replay to reconstruct a model
// under the same identity it was originally created with: that identity
// is what the per-model batch journal's on-disk path is keyed by, so
// minting a new one on replay would orphan the journal already on disk.
func (g *GNS) CreateModelWithUUID(id UUID, spaceName, modelName, pkName string, pkTag Tag) (*Model, error) {
	sp, ok := g.spaces.Get(spaceName)
	if !ok {
		return nil, fmt.Errorf("model: space %q does not exist", spaceName)
	}
	m, err := NewModel(spaceName, modelName, pkName, pkTag)
	if err != nil {
		return nil, err
	}
	m.UUID = id
	if err := sp.addModel(m); err != nil {
		return nil, err
	}
	g.models.Insert(m.UUID, m)
	return m, nil
}

// DropModel removes an existing model from its space and the UUID index.
func (g *GNS) DropModel(spaceName, modelName string) error {
	sp, ok := g.spaces.Get(spaceName)
	if !ok {
		return fmt.Errorf("model: space %q does not exist", spaceName)
	}
	m, ok := sp.Model(modelName)
	if !ok {
		return fmt.Errorf("model: model %q does not exist in space %q", modelName, spaceName)
	}
	if err := sp.dropModel(modelName); err != nil {
		return err
	}
	g.models.Delete(m.UUID)
	return nil
}
