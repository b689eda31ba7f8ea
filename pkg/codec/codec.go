// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package codec provides the low-level primitives shared by every on-disk
// and on-wire format in skyd: a CRC64 (ISO polynomial) checksum and
// little-endian fixed-width integer encode/decode helpers. Nothing above
// this package should reach for encoding/binary directly.
package codec

import "hash/crc64"

// ISOTable is the CRC64 table used for every checksum in skyd: the SDSS
// file header, the raw journal's per-event seal, and the batch journal's
// per-batch seal all use this table so that a single checksum routine
// covers the whole on-disk estate.
var ISOTable = crc64.MakeTable(crc64.ISO)

// Checksum returns the CRC64 (ISO) of b.
func Checksum(b []byte) uint64 {
	return crc64.Checksum(b, ISOTable)
}

// PutU16 writes v as 2 little-endian bytes into b (which must have len(b) >= 2).
func PutU16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

// PutU32 writes v as 4 little-endian bytes into b.
func PutU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// PutU64 writes v as 8 little-endian bytes into b.
func PutU64(b []byte, v uint64) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
	b[6] = byte(v >> 48)
	b[7] = byte(v >> 56)
}

// U16 reads a little-endian uint16 from the first 2 bytes of b.
func U16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

// U32 reads a little-endian uint32 from the first 4 bytes of b.
func U32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// U64 reads a little-endian uint64 from the first 8 bytes of b.
func U64(b []byte) uint64 {
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}

// AppendU16 appends v to b as 2 little-endian bytes.
func AppendU16(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}

// AppendU32 appends v to b as 4 little-endian bytes.
func AppendU32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// AppendU64 appends v to b as 8 little-endian bytes.
func AppendU64(b []byte, v uint64) []byte {
	return append(b,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

// AppendString appends a 8-byte length prefix followed by s's bytes. Every
// self-describing encoder in skyd (GNS events, batch row field-maps, the
// system database dictionary) uses this "length precedes the name" shape.
func AppendString(b []byte, s string) []byte {
	b = AppendU64(b, uint64(len(s)))
	return append(b, s...)
}

// AppendBytes appends a 8-byte length prefix followed by v.
func AppendBytes(b []byte, v []byte) []byte {
	b = AppendU64(b, uint64(len(v)))
	return append(b, v...)
}
