// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import (
	"fmt"

	"github.com/skytable-core/skyd/pkg/stseq"
)

// Space is a named container of models, with free-form properties such
// as an env tag or a retention hint. Like Model, its identity is its
// UUID, not its name.
type Space struct {
	UUID   UUID
	Name   string
	models *stseq.Map[string, *Model]
	Props  map[string]Value
}

// NewSpace constructs an empty space.
func NewSpace(name string) (*Space, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return &Space{
		UUID:   NewUUID(),
		Name:   name,
		models: stseq.New[string, *Model](),
		Props:  make(map[string]Value),
	}, nil
}

// Model returns the model named name, if present in this space.
func (s *Space) Model(name string) (*Model, bool) { return s.models.Get(name) }

// ModelNames returns the space's model names in creation order.
func (s *Space) ModelNames() []string { return s.models.Keys() }

// addModel registers m under its own name, failing if a model with that
// name already exists in the space.
func (s *Space) addModel(m *Model) error {
	if s.models.Contains(m.Name) {
		return fmt.Errorf("model: %q already exists in space %q", m.Name, s.Name)
	}
	s.models.Insert(m.Name, m)
	return nil
}

// dropModel removes the named model from the space.
func (s *Space) dropModel(name string) error {
	if !s.models.Remove(name) {
		return fmt.Errorf("model: %q does not exist in space %q", name, s.Name)
	}
	return nil
}

// SetProp sets a free-form property on the space.
func (s *Space) SetProp(key string, v Value) { s.Props[key] = v }
