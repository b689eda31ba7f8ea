// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/skytable-core/skyd/internal/model"
)

var scalarTags = map[string]model.Tag{
	"bool":   model.TagBool,
	"u8":     model.TagU8,
	"u16":    model.TagU16,
	"u32":    model.TagU32,
	"u64":    model.TagU64,
	"i8":     model.TagI8,
	"i16":    model.TagI16,
	"i32":    model.TagI32,
	"i64":    model.TagI64,
	"f32":    model.TagF32,
	"f64":    model.TagF64,
	"string": model.TagString,
	"binary": model.TagBinary,
}

// parseTypeSpec parses a DDL type token such as "string", "binary", or a
// nested "list<string>" into the model package's ordered layer stack: an
// ordered list describing a possibly-nested type.
func parseTypeSpec(s string) ([]model.Tag, error) {
	if strings.HasPrefix(s, "list<") && strings.HasSuffix(s, ">") {
		inner, err := parseTypeSpec(s[len("list<") : len(s)-1])
		if err != nil {
			return nil, err
		}
		return append([]model.Tag{model.TagList}, inner...), nil
	}
	tag, ok := scalarTags[s]
	if !ok {
		return nil, fmt.Errorf("engine: unknown type %q", s)
	}
	return []model.Tag{tag}, nil
}

// parseField parses a type token into a Field, honoring a leading '?'
// as a nullability marker (e.g. "?string").
func parseField(s string) (model.Field, error) {
	nullable := false
	if strings.HasPrefix(s, "?") {
		nullable = true
		s = s[1:]
	}
	layers, err := parseTypeSpec(s)
	if err != nil {
		return model.Field{}, err
	}
	return model.Field{Layers: layers, Nullable: nullable}, nil
}

// parsePKTag parses a primary key's declared type token; only hashable
// scalars are legal.
func parsePKTag(s string) (model.Tag, error) {
	tag, ok := scalarTags[s]
	if !ok {
		return 0, fmt.Errorf("engine: unknown primary key type %q", s)
	}
	return tag, nil
}

// coerceValue interprets a raw wire token as a Value of f's leaf scalar
// type. List-typed fields cannot be set from a single positional wire
// token and are rejected — the wire-level insert/update grammar this
// engine accepts only carries scalar literals per field.
func coerceValue(raw string, f model.Field) (model.Value, error) {
	if raw == "null" {
		if !f.Nullable {
			return model.Value{}, fmt.Errorf("model: field is not nullable")
		}
		return model.NewNull(), nil
	}
	if len(f.Layers) == 0 {
		return model.Value{}, fmt.Errorf("engine: field has no declared type")
	}
	return coerceScalar(raw, f.Layers[0])
}

func coerceScalar(raw string, tag model.Tag) (model.Value, error) {
	switch tag {
	case model.TagString:
		return model.NewString(raw), nil
	case model.TagBinary:
		return model.NewBinary([]byte(raw)), nil
	case model.TagBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return model.Value{}, fmt.Errorf("engine: %q is not a valid bool", raw)
		}
		return model.NewBool(b), nil
	case model.TagU8, model.TagU16, model.TagU32, model.TagU64:
		u, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return model.Value{}, fmt.Errorf("engine: %q is not a valid unsigned integer", raw)
		}
		switch tag {
		case model.TagU8:
			return model.NewU8(uint8(u)), nil
		case model.TagU16:
			return model.NewU16(uint16(u)), nil
		case model.TagU32:
			return model.NewU32(uint32(u)), nil
		default:
			return model.NewU64(u), nil
		}
	case model.TagI8, model.TagI16, model.TagI32, model.TagI64:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return model.Value{}, fmt.Errorf("engine: %q is not a valid integer", raw)
		}
		switch tag {
		case model.TagI8:
			return model.NewI8(int8(i)), nil
		case model.TagI16:
			return model.NewI16(int16(i)), nil
		case model.TagI32:
			return model.NewI32(int32(i)), nil
		default:
			return model.NewI64(i), nil
		}
	case model.TagF32:
		f, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return model.Value{}, fmt.Errorf("engine: %q is not a valid float", raw)
		}
		return model.NewF32(float32(f)), nil
	case model.TagF64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.Value{}, fmt.Errorf("engine: %q is not a valid float", raw)
		}
		return model.NewF64(f), nil
	default:
		return model.Value{}, fmt.Errorf("engine: cannot coerce a wire literal into tag %s", tag)
	}
}
