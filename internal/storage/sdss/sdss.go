// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sdss implements the Skytable Disk Storage Subsystem file
// header: the fixed-width, CRC64-sealed preamble that every persistent
// file on disk begins with, validated on open.
package sdss

import (
	"fmt"
	"runtime"

	"github.com/skytable-core/skyd/pkg/codec"
)

// Magic is the fixed byte sequence every SDSS file begins with.
var Magic = []byte("SDSSMAGIC")

// FileClass enumerates the top-level structure of a file's payload.
type FileClass uint8

const (
	ClassJournal FileClass = iota
	ClassBatch
	ClassFlat
)

// FileSpecifier enumerates what a file's payload actually contains,
// orthogonal to its FileClass.
type FileSpecifier uint8

const (
	SpecifierGNSLog FileSpecifier = iota
	SpecifierModelBatch
	SpecifierSysDB
)

// HeaderSpecVersion is the version of this header layout itself.
const HeaderSpecVersion = 1

// ServerVersion and DriverVersion tag every file with the producing
// server/driver build, so a future incompatible release can refuse (or
// migrate) files written by an older one.
const (
	ServerVersion = 1
	DriverVersion = 1
)

const headerBodyLen = 8 + 8 + 8 + 1 + 1 + 2 + 1 + 1 + 1 + 1 // everything but magic and trailing CRC

// Header is the fixed-width preamble of every SDSS file.
type Header struct {
	HeaderSpecVersion uint64
	ServerVersion     uint64
	DriverVersion     uint64
	Class             FileClass
	Specifier         FileSpecifier
	SpecifierVersion  uint16

	HostOS       uint8
	HostArch     uint8
	HostEndian   uint8
	HostPtrWidth uint8
}

// host tag encodings. These only need to be internally consistent;
// nothing outside this package interprets their numeric values.
const (
	endianLittle uint8 = 0
	endianBig    uint8 = 1
)

func hostEndianTag() uint8 {
	var x uint16 = 1
	b := []byte{0, 0}
	codec.PutU16(b, x)
	if b[0] == 1 {
		return endianLittle
	}
	return endianBig
}

var osTags = map[string]uint8{"linux": 0, "darwin": 1, "windows": 2, "freebsd": 3}
var archTags = map[string]uint8{"amd64": 0, "arm64": 1, "386": 2, "arm": 3}

// NewHeader builds a header describing the current host for the given
// class/specifier.
func NewHeader(class FileClass, specifier FileSpecifier, specifierVersion uint16) Header {
	return Header{
		HeaderSpecVersion: HeaderSpecVersion,
		ServerVersion:     ServerVersion,
		DriverVersion:     DriverVersion,
		Class:             class,
		Specifier:         specifier,
		SpecifierVersion:  specifierVersion,
		HostOS:            osTags[runtime.GOOS],
		HostArch:          archTags[runtime.GOARCH],
		HostEndian:        hostEndianTag(),
		HostPtrWidth:      uint8(32 << (^uint(0) >> 63)),
	}
}

// Encode serializes h to its on-disk form: magic, body, CRC64 of the body.
func Encode(h Header) []byte {
	buf := make([]byte, 0, len(Magic)+headerBodyLen+8)
	buf = append(buf, Magic...)
	body := encodeBody(h)
	buf = append(buf, body...)
	buf = codec.AppendU64(buf, codec.Checksum(body))
	return buf
}

func encodeBody(h Header) []byte {
	b := make([]byte, 0, headerBodyLen)
	b = codec.AppendU64(b, h.HeaderSpecVersion)
	b = codec.AppendU64(b, h.ServerVersion)
	b = codec.AppendU64(b, h.DriverVersion)
	b = append(b, byte(h.Class), byte(h.Specifier))
	b = codec.AppendU16(b, h.SpecifierVersion)
	b = append(b, h.HostOS, h.HostArch, h.HostEndian, h.HostPtrWidth)
	return b
}

// Decode parses and validates an SDSS header from the start of buf,
// returning the header and the number of bytes it consumed.
func Decode(buf []byte) (Header, int, error) {
	total := len(Magic) + headerBodyLen + 8
	if len(buf) < total {
		return Header{}, 0, fmt.Errorf("sdss: short header, have %d want %d", len(buf), total)
	}
	for i := range Magic {
		if buf[i] != Magic[i] {
			return Header{}, 0, fmt.Errorf("sdss: bad magic")
		}
	}
	body := buf[len(Magic) : len(Magic)+headerBodyLen]
	crcWant := codec.U64(buf[len(Magic)+headerBodyLen : total])
	if got := codec.Checksum(body); got != crcWant {
		return Header{}, 0, fmt.Errorf("sdss: header checksum mismatch")
	}

	h := Header{
		HeaderSpecVersion: codec.U64(body[0:8]),
		ServerVersion:     codec.U64(body[8:16]),
		DriverVersion:     codec.U64(body[16:24]),
		Class:             FileClass(body[24]),
		Specifier:         FileSpecifier(body[25]),
		SpecifierVersion:  codec.U16(body[26:28]),
		HostOS:            body[28],
		HostArch:          body[29],
		HostEndian:        body[30],
		HostPtrWidth:      body[31],
	}
	if h.HeaderSpecVersion > HeaderSpecVersion {
		return Header{}, 0, fmt.Errorf("sdss: file written by a newer, incompatible header spec (%d > %d)", h.HeaderSpecVersion, HeaderSpecVersion)
	}
	return h, total, nil
}
