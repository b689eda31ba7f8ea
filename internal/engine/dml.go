// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package engine

import (
	"context"
	"fmt"

	"github.com/skytable-core/skyd/internal/model"
)

// dispatchInsert handles:
//
//	insert <space.model> <pk> [<value2> <value3> ...]
//
// Values after the primary key are mapped positionally onto the model's
// non-primary-key fields in declaration order.
func (e *Engine) dispatchInsert(cc *ConnContext, args []string) Response {
	if len(args) < 2 {
		return RespError(qerr(SyntaxErr, "insert requires a model name and a primary key"))
	}
	_, m, lerr := e.lookupModel(cc, args[0])
	if lerr != nil {
		return RespError(lerr)
	}

	pk, perr := coerceScalar(args[1], m.PKTag())
	if perr != nil {
		return RespError(qerr(WrongType, perr.Error()))
	}

	fieldNames := m.FieldNames()
	nonPK := make([]string, 0, len(fieldNames))
	for _, name := range fieldNames {
		if name != m.PKName() {
			nonPK = append(nonPK, name)
		}
	}

	values := args[2:]
	if len(values) > len(nonPK) {
		return RespError(qerr(SyntaxErr, "too many values for the declared field set"))
	}

	data := make(map[string]model.Value, len(nonPK))
	for i, raw := range values {
		f, _ := m.Field(nonPK[i])
		v, verr := coerceValue(raw, f)
		if verr != nil {
			return RespError(qerr(WrongType, verr.Error()))
		}
		data[nonPK[i]] = v
	}
	// insert is full-row: every non-pk field not given a value explicitly
	// defaults to null, which ValidateRow then rejects if the field isn't
	// declared nullable.
	for _, name := range nonPK[len(values):] {
		data[name] = model.NewNull()
	}
	if err := m.ValidateRow(data); err != nil {
		return RespError(classify(err))
	}

	row := model.NewRow(pk, m.Delta.SchemaVersion())
	row.SetMany(data)
	inserted, ierr := m.Index.Insert(row)
	if ierr != nil {
		return RespError(qerr(WrongType, ierr.Error()))
	}
	if !inserted {
		return RespError(qerr(AlreadyExists, fmt.Sprintf("a row with primary key %s already exists", args[1])))
	}

	dd := m.Delta.Append(model.DeltaInsert, row, m.Delta.SchemaVersion())
	_ = m.Delta.Throttle(context.Background())
	e.maybeEarlyFlush(m, dd)
	return RespOkay()
}

// maybeEarlyFlush lets a heavily-loaded model's backlog flush ahead of
// the scheduled tick instead of only growing until the next interval.
func (e *Engine) maybeEarlyFlush(m *model.Model, _ model.DataDelta) {
	if m.Delta.Backlog() < earlyFlushWatermark {
		return
	}
	_ = e.Coord.FlushNow(m)
}

const earlyFlushWatermark = 256

// dispatchSelect handles "select <space.model> <pk>".
func (e *Engine) dispatchSelect(cc *ConnContext, args []string) Response {
	if len(args) != 2 {
		return RespError(qerr(SyntaxErr, "select requires a model name and a primary key"))
	}
	_, m, lerr := e.lookupModel(cc, args[0])
	if lerr != nil {
		return RespError(lerr)
	}
	pk, perr := coerceScalar(args[1], m.PKTag())
	if perr != nil {
		return RespError(qerr(WrongType, perr.Error()))
	}
	row, ok, serr := m.Index.Select(pk)
	if serr != nil {
		return RespError(qerr(WrongType, serr.Error()))
	}
	if !ok {
		return RespError(qerr(NotFound, fmt.Sprintf("no row with primary key %s", args[1])))
	}

	fields, values, _, _ := row.Snapshot()
	fields = append([]string{m.PKName()}, fields...)
	values = append([]model.Value{row.PK()}, values...)
	return RespRow(fields, values)
}

// dispatchUpdate handles "update <space.model> <pk> <field> <value> ...".
func (e *Engine) dispatchUpdate(cc *ConnContext, args []string) Response {
	if len(args) < 2 {
		return RespError(qerr(SyntaxErr, "update requires a model name and a primary key"))
	}
	_, m, lerr := e.lookupModel(cc, args[0])
	if lerr != nil {
		return RespError(lerr)
	}
	pk, perr := coerceScalar(args[1], m.PKTag())
	if perr != nil {
		return RespError(qerr(WrongType, perr.Error()))
	}

	setToks := args[2:]
	if len(setToks)%2 != 0 {
		return RespError(qerr(SyntaxErr, "update field list must alternate name and value"))
	}

	row, ok, serr := m.Index.Select(pk)
	if serr != nil {
		return RespError(qerr(WrongType, serr.Error()))
	}
	if !ok {
		return RespError(qerr(NotFound, fmt.Sprintf("no row with primary key %s", args[1])))
	}

	data := make(map[string]model.Value, len(setToks)/2)
	for i := 0; i < len(setToks); i += 2 {
		name := setToks[i]
		f, known := m.Field(name)
		if !known || name == m.PKName() {
			return RespError(qerr(NotFound, fmt.Sprintf("field %q does not exist", name)))
		}
		v, verr := coerceValue(setToks[i+1], f)
		if verr != nil {
			return RespError(qerr(WrongType, verr.Error()))
		}
		data[name] = v
	}
	if err := m.ValidateRow(data); err != nil {
		return RespError(classify(err))
	}

	row.SetMany(data)
	if _, err := m.Index.Update(row); err != nil {
		return RespError(qerr(WrongType, err.Error()))
	}

	dd := m.Delta.Append(model.DeltaUpdate, row, m.Delta.SchemaVersion())
	_ = m.Delta.Throttle(context.Background())
	e.maybeEarlyFlush(m, dd)
	return RespOkay()
}

// dispatchDelete handles "delete <space.model> <pk>".
func (e *Engine) dispatchDelete(cc *ConnContext, args []string) Response {
	if len(args) != 2 {
		return RespError(qerr(SyntaxErr, "delete requires a model name and a primary key"))
	}
	_, m, lerr := e.lookupModel(cc, args[0])
	if lerr != nil {
		return RespError(lerr)
	}
	pk, perr := coerceScalar(args[1], m.PKTag())
	if perr != nil {
		return RespError(qerr(WrongType, perr.Error()))
	}

	deleted, derr := m.Index.Delete(pk)
	if derr != nil {
		return RespError(qerr(WrongType, derr.Error()))
	}
	if !deleted {
		return RespError(qerr(NotFound, fmt.Sprintf("no row with primary key %s", args[1])))
	}

	tombstone := model.NewRow(pk, m.Delta.SchemaVersion())
	dd := m.Delta.Append(model.DeltaDelete, tombstone, m.Delta.SchemaVersion())
	_ = m.Delta.Throttle(context.Background())
	e.maybeEarlyFlush(m, dd)
	return RespOkay()
}
