// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import "fmt"

// Field describes one named column of a Model: an ordered list of type
// layers (e.g. list<string> is [list, string]) plus a nullability flag
// applying to the outermost layer.
type Field struct {
	Layers   []Tag
	Nullable bool
}

// NewField builds a scalar field with the given layer and nullability.
func NewField(nullable bool, layers ...Tag) Field {
	return Field{Layers: append([]Tag(nil), layers...), Nullable: nullable}
}

// outer returns the field's outermost type layer, or TagNull if the field
// declares no layers (never valid, but handled defensively by Validate).
func (f Field) outer() Tag {
	if len(f.Layers) == 0 {
		return TagNull
	}
	return f.Layers[0]
}

// Validate reports whether v conforms to f's declared layer stack.
func (f Field) Validate(v Value) error {
	if v.IsNull() {
		if f.Nullable {
			return nil
		}
		return fmt.Errorf("model: field is not nullable")
	}
	return f.validateLayer(0, v)
}

func (f Field) validateLayer(depth int, v Value) error {
	if depth >= len(f.Layers) {
		return fmt.Errorf("model: value nests deeper than the declared field type")
	}
	want := f.Layers[depth]
	if want == TagList {
		if v.Tag() != TagList {
			return fmt.Errorf("model: expected list, found %s", v.Tag())
		}
		for _, item := range v.List() {
			if item.IsNull() {
				return fmt.Errorf("model: list elements may not be null")
			}
			if err := f.validateLayer(depth+1, item); err != nil {
				return err
			}
		}
		return nil
	}
	if v.Tag() != want {
		return fmt.Errorf("model: expected %s, found %s", want, v.Tag())
	}
	return nil
}

// Clone returns an independent copy of f.
func (f Field) Clone() Field {
	return Field{Layers: append([]Tag(nil), f.Layers...), Nullable: f.Nullable}
}
