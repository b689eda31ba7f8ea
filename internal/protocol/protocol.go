// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package protocol implements the Skyhash v2 wire format: an
// ASCII-prefixed, newline-terminated, zero-copy framing for simple and
// pipelined queries.
package protocol

import (
	"errors"

	"github.com/skytable-core/skyd/pkg/scanner"
)

// Parse failure modes, exhaustive.
var (
	// ErrNotEnough means the buffer doesn't yet hold a complete query;
	// the caller must refill and retry the parse from the start without
	// losing any other decoded state.
	ErrNotEnough = scanner.ErrNotEnough
	// ErrBadPacket means the metaframe declares zero subqueries.
	ErrBadPacket = errors.New("protocol: bad packet")
	// ErrUnexpectedByte means a required prefix byte ('*' or '~') was
	// something else.
	ErrUnexpectedByte = errors.New("protocol: unexpected byte")
	// ErrDatatypeParseFailure means a decimal length field was not a
	// valid base-10 unsigned integer.
	ErrDatatypeParseFailure = errors.New("protocol: datatype parse failure")
)

// Element is one zero-copy element of a subquery: a borrowed slice into
// the caller's buffer. Valid only until the buffer is reused.
type Element []byte

// Subquery is an "any-array" of elements: "~<k>\n" followed by k
// elements.
type Subquery []Element

// Query is the result of a successful parse: one subquery for a simple
// query, or two-or-more for a pipelined query.
type Query struct {
	Subqueries []Subquery
}

// Simple reports whether q has exactly one subquery.
func (q *Query) Simple() bool { return len(q.Subqueries) == 1 }

// Parse consumes a Skyhash v2 query from buf and returns it together with
// the number of bytes consumed. On any failure it returns a zero byte
// count and one of ErrNotEnough, ErrBadPacket, ErrUnexpectedByte or
// ErrDatatypeParseFailure; the caller must not advance its buffer in that
// case except to refill and retry on ErrNotEnough.
func Parse(buf []byte) (*Query, int, error) {
	s := scanner.New(buf)

	n, err := readMetaframe(s)
	if err != nil {
		return nil, 0, err
	}
	if n == 0 {
		return nil, 0, ErrBadPacket
	}

	q := &Query{Subqueries: make([]Subquery, 0, n)}
	for i := uint64(0); i < n; i++ {
		sub, err := readSubquery(s)
		if err != nil {
			return nil, 0, err
		}
		q.Subqueries = append(q.Subqueries, sub)
	}
	return q, s.Cursor(), nil
}

// readMetaframe reads "*<n>\n" and returns n.
func readMetaframe(s *scanner.Scanner) (uint64, error) {
	b, err := s.NextByte()
	if err != nil {
		return 0, err
	}
	if b != '*' {
		return 0, ErrUnexpectedByte
	}
	line, err := s.NextLine()
	if err != nil {
		return 0, err
	}
	n, ok := scanner.ParseUintASCII(line)
	if !ok {
		return 0, ErrDatatypeParseFailure
	}
	return n, nil
}

// readSubquery reads "~<k>\n" followed by k elements.
func readSubquery(s *scanner.Scanner) (Subquery, error) {
	b, err := s.NextByte()
	if err != nil {
		return nil, err
	}
	if b != '~' {
		return nil, ErrUnexpectedByte
	}
	line, err := s.NextLine()
	if err != nil {
		return nil, err
	}
	k, ok := scanner.ParseUintASCII(line)
	if !ok {
		return nil, ErrDatatypeParseFailure
	}

	sub := make(Subquery, 0, k)
	for i := uint64(0); i < k; i++ {
		el, err := readElement(s)
		if err != nil {
			return nil, err
		}
		sub = append(sub, el)
	}
	return sub, nil
}

// readElement reads "<len>\n<len bytes>\n".
func readElement(s *scanner.Scanner) (Element, error) {
	line, err := s.NextLine()
	if err != nil {
		return nil, err
	}
	n, ok := scanner.ParseUintASCII(line)
	if !ok {
		return nil, ErrDatatypeParseFailure
	}
	payload, err := s.NextSlice(int(n))
	if err != nil {
		return nil, err
	}
	term, err := s.NextByte()
	if err != nil {
		return nil, err
	}
	if term != '\n' {
		return nil, ErrUnexpectedByte
	}
	return Element(payload), nil
}
