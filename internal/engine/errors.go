// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/skytable-core/skyd/internal/model"
)

// ErrorCode is the exhaustive, numeric client-visible error enumeration.
type ErrorCode int

const (
	Okay ErrorCode = iota
	NotFound
	AlreadyExists
	SyntaxErr
	UnknownAction
	ServerErr
	OtherError
	WrongType
	AuthBadCredentials
	AuthPermDenied
	AuthNotReady
	EncodingError
	DefaultUnset
	WrongModel
)

// QueryError is a client-visible query error: the connection stays open
// and the error is surfaced as a response.
type QueryError struct {
	Code ErrorCode
	Msg  string
}

func (e *QueryError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("engine: error code %d", e.Code)
	}
	return fmt.Sprintf("engine: %s", e.Msg)
}

func qerr(code ErrorCode, msg string) *QueryError { return &QueryError{Code: code, Msg: msg} }

// classify maps a plain error returned by the model or storage layers to
// one of the numeric wire codes. The model package raises plain
// fmt.Errorf errors rather than its own sentinel set — DDL validation
// and row validation share one error path in memory — so the engine is
// the first layer that needs to reduce that prose down to a
// client-visible code, which it does here by message shape rather than
// threading a parallel sentinel-error hierarchy through every model
// method for a distinction only the wire protocol cares about.
func classify(err error) *QueryError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case errors.Is(err, model.ErrNonEmptySpace):
		return qerr(OtherError, "non-empty-space")
	case strings.Contains(msg, "already exists"):
		return qerr(AlreadyExists, msg)
	case strings.Contains(msg, "does not exist"):
		return qerr(NotFound, msg)
	case strings.Contains(msg, "model-not-empty"):
		return qerr(OtherError, "model-not-empty")
	case strings.Contains(msg, "expected") && strings.Contains(msg, "found"):
		return qerr(WrongType, msg)
	case strings.Contains(msg, "not a hashable scalar"), strings.Contains(msg, "not a valid primary key type"):
		return qerr(WrongType, msg)
	case strings.Contains(msg, "not nullable"), strings.Contains(msg, "nests deeper"):
		return qerr(WrongType, msg)
	default:
		return qerr(OtherError, msg)
	}
}
