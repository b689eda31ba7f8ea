// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import (
	"fmt"
	"math"

	"github.com/skytable-core/skyd/pkg/codec"
	"github.com/skytable-core/skyd/pkg/scanner"
)

// Tag is the byte discriminant of a Value's type, used both in memory and
// in every on-disk/on-wire encoding.
type Tag byte

const (
	TagNull Tag = iota
	TagBool
	TagU8
	TagU16
	TagU32
	TagU64
	TagI8
	TagI16
	TagI32
	TagI64
	TagF32
	TagF64
	TagString
	TagBinary
	TagList
)

// IsInteger reports whether t is one of the unsigned or signed integer tags.
func (t Tag) IsInteger() bool {
	return (t >= TagU8 && t <= TagU64) || (t >= TagI8 && t <= TagI64)
}

// IsHashableScalar reports whether t may be used as a primary key tag:
// one of the hashable scalars (string, binary, or integer family).
func (t Tag) IsHashableScalar() bool {
	return t == TagString || t == TagBinary || t.IsInteger()
}

func (t Tag) String() string {
	switch t {
	case TagNull:
		return "null"
	case TagBool:
		return "bool"
	case TagU8:
		return "u8"
	case TagU16:
		return "u16"
	case TagU32:
		return "u32"
	case TagU64:
		return "u64"
	case TagI8:
		return "i8"
	case TagI16:
		return "i16"
	case TagI32:
		return "i32"
	case TagI64:
		return "i64"
	case TagF32:
		return "f32"
	case TagF64:
		return "f64"
	case TagString:
		return "string"
	case TagBinary:
		return "binary"
	case TagList:
		return "list"
	default:
		return fmt.Sprintf("tag(%d)", byte(t))
	}
}

// Value is the tagged sum type over every representable datum in skyd.
// The zero Value is a typed null.
type Value struct {
	tag    Tag
	u      uint64 // bool/uint/int (bit pattern)/f32-as-bits/f64-as-bits
	str    string // string payload
	bin    []byte // binary payload
	list   []Value
}

func NewNull() Value              { return Value{tag: TagNull} }
func NewBool(b bool) Value         { v := Value{tag: TagBool}; if b { v.u = 1 }; return v }
func NewU8(v uint8) Value          { return Value{tag: TagU8, u: uint64(v)} }
func NewU16(v uint16) Value        { return Value{tag: TagU16, u: uint64(v)} }
func NewU32(v uint32) Value        { return Value{tag: TagU32, u: uint64(v)} }
func NewU64(v uint64) Value        { return Value{tag: TagU64, u: v} }
func NewI8(v int8) Value           { return Value{tag: TagI8, u: uint64(uint8(v))} }
func NewI16(v int16) Value         { return Value{tag: TagI16, u: uint64(uint16(v))} }
func NewI32(v int32) Value         { return Value{tag: TagI32, u: uint64(uint32(v))} }
func NewI64(v int64) Value         { return Value{tag: TagI64, u: uint64(v)} }
func NewF32(v float32) Value       { return Value{tag: TagF32, u: uint64(math.Float32bits(v))} }
func NewF64(v float64) Value       { return Value{tag: TagF64, u: math.Float64bits(v)} }
func NewString(s string) Value     { return Value{tag: TagString, str: s} }
func NewBinary(b []byte) Value     { return Value{tag: TagBinary, bin: b} }
func NewList(vs []Value) Value     { return Value{tag: TagList, list: vs} }

// Tag returns the value's type discriminant.
func (v Value) Tag() Tag { return v.tag }

func (v Value) IsNull() bool { return v.tag == TagNull }

func (v Value) Bool() bool { return v.u != 0 }

// Uint returns the raw unsigned bit pattern for any integer tag.
func (v Value) Uint() uint64 { return v.u }

// Int returns v reinterpreted as a signed integer of its declared width.
func (v Value) Int() int64 {
	switch v.tag {
	case TagI8:
		return int64(int8(v.u))
	case TagI16:
		return int64(int16(v.u))
	case TagI32:
		return int64(int32(v.u))
	default:
		return int64(v.u)
	}
}

func (v Value) F32() float32 { return math.Float32frombits(uint32(v.u)) }
func (v Value) F64() float64 { return math.Float64frombits(v.u) }
func (v Value) String_() string { return v.str }
func (v Value) Binary() []byte  { return v.bin }
func (v Value) List() []Value   { return v.list }

// Equal reports structural equality, recursing into lists.
func (v Value) Equal(o Value) bool {
	if v.tag != o.tag {
		return false
	}
	switch v.tag {
	case TagNull:
		return true
	case TagString:
		return v.str == o.str
	case TagBinary:
		if len(v.bin) != len(o.bin) {
			return false
		}
		for i := range v.bin {
			if v.bin[i] != o.bin[i] {
				return false
			}
		}
		return true
	case TagList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	default:
		return v.u == o.u
	}
}

func (v Value) String() string {
	switch v.tag {
	case TagNull:
		return "null"
	case TagBool:
		return fmt.Sprintf("%v", v.Bool())
	case TagString:
		return v.str
	case TagBinary:
		return fmt.Sprintf("<%d bytes>", len(v.bin))
	case TagList:
		return fmt.Sprintf("<list of %d>", len(v.list))
	default:
		if v.tag.IsInteger() {
			if v.tag == TagU8 || v.tag == TagU16 || v.tag == TagU32 || v.tag == TagU64 {
				return fmt.Sprintf("%d", v.u)
			}
			return fmt.Sprintf("%d", v.Int())
		}
		if v.tag == TagF32 {
			return fmt.Sprintf("%v", v.F32())
		}
		if v.tag == TagF64 {
			return fmt.Sprintf("%v", v.F64())
		}
		return "?"
	}
}

// Encode appends the self-describing encoding of v to b: one tag byte
// followed by a tag-specific payload. Used by every on-disk encoder (GNS
// events, batch row field-maps, the system database dictionary).
func Encode(b []byte, v Value) []byte {
	b = append(b, byte(v.tag))
	switch v.tag {
	case TagNull:
		// no payload
	case TagBool:
		b = append(b, byte(v.u))
	case TagU8, TagI8:
		b = append(b, byte(v.u))
	case TagU16, TagI16:
		b = codec.AppendU16(b, uint16(v.u))
	case TagU32, TagI32, TagF32:
		b = codec.AppendU32(b, uint32(v.u))
	case TagU64, TagI64, TagF64:
		b = codec.AppendU64(b, v.u)
	case TagString:
		b = codec.AppendString(b, v.str)
	case TagBinary:
		b = codec.AppendBytes(b, v.bin)
	case TagList:
		b = codec.AppendU64(b, uint64(len(v.list)))
		for _, item := range v.list {
			b = Encode(b, item)
		}
	}
	return b
}

// Decode reads one tagged value from s, per the Encode layout.
func Decode(s *scanner.Scanner) (Value, error) {
	tb, err := s.NextByte()
	if err != nil {
		return Value{}, err
	}
	tag := Tag(tb)
	switch tag {
	case TagNull:
		return NewNull(), nil
	case TagBool:
		b, err := s.NextByte()
		if err != nil {
			return Value{}, err
		}
		return NewBool(b != 0), nil
	case TagU8:
		b, err := s.NextByte()
		if err != nil {
			return Value{}, err
		}
		return NewU8(b), nil
	case TagI8:
		b, err := s.NextByte()
		if err != nil {
			return Value{}, err
		}
		return NewI8(int8(b)), nil
	case TagU16, TagI16:
		b, err := s.NextSlice(2)
		if err != nil {
			return Value{}, err
		}
		u := uint64(codec.U16(b))
		return Value{tag: tag, u: u}, nil
	case TagU32, TagI32, TagF32:
		b, err := s.NextSlice(4)
		if err != nil {
			return Value{}, err
		}
		return Value{tag: tag, u: uint64(codec.U32(b))}, nil
	case TagU64, TagI64, TagF64:
		u, err := s.NextU64LE()
		if err != nil {
			return Value{}, err
		}
		return Value{tag: tag, u: u}, nil
	case TagString:
		n, err := s.NextU64LE()
		if err != nil {
			return Value{}, err
		}
		raw, err := s.NextChunk(int(n))
		if err != nil {
			return Value{}, err
		}
		return NewString(string(raw)), nil
	case TagBinary:
		n, err := s.NextU64LE()
		if err != nil {
			return Value{}, err
		}
		raw, err := s.NextChunk(int(n))
		if err != nil {
			return Value{}, err
		}
		return NewBinary(raw), nil
	case TagList:
		n, err := s.NextU64LE()
		if err != nil {
			return Value{}, err
		}
		items := make([]Value, 0, n)
		for i := uint64(0); i < n; i++ {
			item, err := Decode(s)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return NewList(items), nil
	default:
		return Value{}, fmt.Errorf("model: unknown value tag %d", tb)
	}
}
