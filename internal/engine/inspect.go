// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package engine

import (
	"fmt"
	"strings"

	"github.com/skytable-core/skyd/internal/model"
)

// dispatchInspect handles:
//
//	inspect spaces
//	inspect space <name>
//	inspect model <space.model>
//	inspect users
func (e *Engine) dispatchInspect(cc *ConnContext, args []string) Response {
	if len(args) == 0 {
		return RespError(qerr(SyntaxErr, "inspect requires a target"))
	}
	switch strings.ToLower(args[0]) {
	case "spaces":
		return e.inspectSpaces()
	case "space":
		if len(args) != 2 {
			return RespError(qerr(SyntaxErr, "inspect space requires a name"))
		}
		return e.inspectSpace(args[1])
	case "model":
		if len(args) != 2 {
			return RespError(qerr(SyntaxErr, "inspect model requires a name"))
		}
		return e.inspectModel(cc, args[1])
	case "users":
		if !cc.IsRoot {
			return RespError(qerr(AuthPermDenied, "inspect users requires root"))
		}
		return e.inspectUsers()
	default:
		return RespError(qerr(SyntaxErr, fmt.Sprintf("cannot inspect %q", args[0])))
	}
}

func (e *Engine) inspectSpaces() Response {
	names := e.GNS.SpaceNames()
	vs := make([]model.Value, 0, len(names))
	for _, n := range names {
		vs = append(vs, model.NewString(n))
	}
	return RespArray(vs)
}

func (e *Engine) inspectSpace(name string) Response {
	sp, ok := e.GNS.Space(name)
	if !ok {
		return RespError(qerr(NotFound, fmt.Sprintf("space %q does not exist", name)))
	}
	names := sp.ModelNames()
	vs := make([]model.Value, 0, len(names))
	for _, n := range names {
		vs = append(vs, model.NewString(n))
	}
	return RespArray(vs)
}

func (e *Engine) inspectModel(cc *ConnContext, qualifiedName string) Response {
	_, m, lerr := e.lookupModel(cc, qualifiedName)
	if lerr != nil {
		return RespError(lerr)
	}
	names := m.FieldNames()
	fields := make([]string, 0, len(names))
	values := make([]model.Value, 0, len(names))
	for _, n := range names {
		f, _ := m.Field(n)
		fields = append(fields, n)
		values = append(values, model.NewString(fieldTypeString(f)))
	}
	return RespRow(fields, values)
}

func fieldTypeString(f model.Field) string {
	var b strings.Builder
	for i, t := range f.Layers {
		if i > 0 {
			b.WriteByte('<')
		}
		b.WriteString(t.String())
	}
	for i := 1; i < len(f.Layers); i++ {
		b.WriteByte('>')
	}
	if f.Nullable {
		return "?" + b.String()
	}
	return b.String()
}

func (e *Engine) inspectUsers() Response {
	names := e.SysDB.Users()
	vs := make([]model.Value, 0, len(names))
	for _, n := range names {
		vs = append(vs, model.NewString(n))
	}
	return RespArray(vs)
}
