// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package engine

import "github.com/skytable-core/skyd/internal/model"

// ResponseKind tags the shape of a Response.
type ResponseKind int

const (
	KindEmpty ResponseKind = iota
	KindError
	KindValue
	KindRow
	KindArray
)

// Response is the tagged result of executing one statement.
type Response struct {
	Kind ResponseKind

	Code ErrorCode
	Msg  string

	Value model.Value

	Fields []string
	Values []model.Value

	Array []model.Value
}

func RespEmpty() Response { return Response{Kind: KindEmpty} }

// RespOkay is the success response for a DDL/DML statement with no value
// to return. Success itself is framed on the wire as `!0\n` (error code
// Okay) rather than a distinct empty-success prefix, so KindEmpty and
// "error code Okay" are the same wire shape.
func RespOkay() Response { return Response{Kind: KindEmpty} }

func RespError(err *QueryError) Response {
	return Response{Kind: KindError, Code: err.Code, Msg: err.Msg}
}

func RespValue(v model.Value) Response { return Response{Kind: KindValue, Value: v} }

func RespRow(fields []string, values []model.Value) Response {
	return Response{Kind: KindRow, Fields: fields, Values: values}
}

func RespArray(vs []model.Value) Response { return Response{Kind: KindArray, Array: vs} }
