// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/skytable-core/skyd/internal/model"
	"github.com/skytable-core/skyd/internal/storage/batch"
)

// dispatchCreate handles "create space ..." and "create model ...".
func (e *Engine) dispatchCreate(cc *ConnContext, args []string) Response {
	if len(args) == 0 {
		return RespError(qerr(SyntaxErr, "create requires a target"))
	}
	switch strings.ToLower(args[0]) {
	case "space":
		return e.createSpace(args[1:])
	case "model":
		return e.createModel(cc, args[1:])
	default:
		return RespError(qerr(SyntaxErr, fmt.Sprintf("cannot create %q", args[0])))
	}
}

// createSpace handles CREATE SPACE <name> [<key> <value> ...].
func (e *Engine) createSpace(args []string) Response {
	if len(args) == 0 {
		return RespError(qerr(SyntaxErr, "create space requires a name"))
	}
	name := args[0]
	props, perr := parseProps(args[1:])
	if perr != nil {
		return RespError(perr)
	}
	if err := e.GNSLog.CreateSpace(name); err != nil {
		return RespError(classify(err))
	}
	if len(props) > 0 {
		if err := e.GNSLog.AlterSpace(name, props); err != nil {
			return RespError(classify(err))
		}
	}
	return RespOkay()
}

// parseProps reads a flat list of key/value tokens into a property
// dictionary, every value taken as a string.
func parseProps(args []string) (map[string]model.Value, *QueryError) {
	if len(args)%2 != 0 {
		return nil, qerr(SyntaxErr, "property list must have an even number of tokens")
	}
	props := make(map[string]model.Value, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		props[args[i]] = model.NewString(args[i+1])
	}
	return props, nil
}

// createModel handles:
//
//	create model <space.model> <pk_name> <pk_type> ( <field> <type> ... )
func (e *Engine) createModel(cc *ConnContext, args []string) Response {
	if len(args) < 3 {
		return RespError(qerr(SyntaxErr, "create model requires a name, primary key name and type"))
	}
	spaceName, modelName := cc.qualify(args[0])
	pkName := args[1]
	pkTag, err := parsePKTag(args[2])
	if err != nil {
		return RespError(qerr(WrongType, err.Error()))
	}

	fieldToks := args[3:]
	if len(fieldToks) > 0 {
		if fieldToks[0] != "(" || fieldToks[len(fieldToks)-1] != ")" {
			return RespError(qerr(SyntaxErr, "field list must be wrapped in ( ... )"))
		}
		fieldToks = fieldToks[1 : len(fieldToks)-1]
	}
	if len(fieldToks)%2 != 0 {
		return RespError(qerr(SyntaxErr, "field list must alternate name and type"))
	}

	if gerr := e.GNSLog.CreateModel(spaceName, modelName, pkName, pkTag); gerr != nil {
		return RespError(classify(gerr))
	}

	sp, ok := e.GNS.Space(spaceName)
	if !ok {
		return RespError(qerr(ServerErr, "space vanished immediately after creation"))
	}
	m, ok := sp.Model(modelName)
	if !ok {
		return RespError(qerr(ServerErr, "model vanished immediately after creation"))
	}

	for i := 0; i < len(fieldToks); i += 2 {
		f, ferr := parseField(fieldToks[i+1])
		if ferr != nil {
			return RespError(qerr(WrongType, ferr.Error()))
		}
		if aerr := e.GNSLog.AlterModelAdd(spaceName, modelName, fieldToks[i], f); aerr != nil {
			return RespError(classify(aerr))
		}
	}

	if err := e.openBatchDriver(sp.UUID, m); err != nil {
		return RespError(qerr(ServerErr, err.Error()))
	}
	return RespOkay()
}

// openBatchDriver creates the on-disk batch journal for a freshly created
// model and registers it with the fractal coordinator. Every model gets
// its own batch.db under data/<space_uuid>/<model_uuid>/.
func (e *Engine) openBatchDriver(spaceUUID model.UUID, m *model.Model) error {
	path := e.batchPath(spaceUUID, m.UUID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("engine: create model directory: %w", err)
	}
	driver, err := batch.Create(path, m)
	if err != nil {
		return fmt.Errorf("engine: open batch driver: %w", err)
	}
	e.Coord.RegisterModel(m, driver)
	return nil
}

// dispatchAlter handles "alter space ..." and "alter model ...".
func (e *Engine) dispatchAlter(cc *ConnContext, args []string) Response {
	if len(args) == 0 {
		return RespError(qerr(SyntaxErr, "alter requires a target"))
	}
	switch strings.ToLower(args[0]) {
	case "space":
		return e.alterSpace(args[1:])
	case "model":
		return e.alterModel(cc, args[1:])
	default:
		return RespError(qerr(SyntaxErr, fmt.Sprintf("cannot alter %q", args[0])))
	}
}

func (e *Engine) alterSpace(args []string) Response {
	if len(args) < 1 {
		return RespError(qerr(SyntaxErr, "alter space requires a name"))
	}
	props, perr := parseProps(args[1:])
	if perr != nil {
		return RespError(perr)
	}
	if err := e.GNSLog.AlterSpace(args[0], props); err != nil {
		return RespError(classify(err))
	}
	return RespOkay()
}

// alterModel handles:
//
//	alter model <space.model> add <field> <type>
//	alter model <space.model> remove <field>
//	alter model <space.model> update <field> <type>
func (e *Engine) alterModel(cc *ConnContext, args []string) Response {
	if len(args) < 2 {
		return RespError(qerr(SyntaxErr, "alter model requires a name and an action"))
	}
	spaceName, modelName := cc.qualify(args[0])
	action := strings.ToLower(args[1])
	rest := args[2:]

	switch action {
	case "add":
		if len(rest) != 2 {
			return RespError(qerr(SyntaxErr, "alter model add requires a field name and type"))
		}
		f, ferr := parseField(rest[1])
		if ferr != nil {
			return RespError(qerr(WrongType, ferr.Error()))
		}
		if err := e.GNSLog.AlterModelAdd(spaceName, modelName, rest[0], f); err != nil {
			return RespError(classify(err))
		}
	case "remove":
		if len(rest) != 1 {
			return RespError(qerr(SyntaxErr, "alter model remove requires a field name"))
		}
		if err := e.GNSLog.AlterModelRemove(spaceName, modelName, rest[0]); err != nil {
			return RespError(classify(err))
		}
	case "update":
		if len(rest) != 2 {
			return RespError(qerr(SyntaxErr, "alter model update requires a field name and type"))
		}
		f, ferr := parseField(rest[1])
		if ferr != nil {
			return RespError(qerr(WrongType, ferr.Error()))
		}
		if err := e.GNSLog.AlterModelUpdate(spaceName, modelName, rest[0], f); err != nil {
			return RespError(classify(err))
		}
	default:
		return RespError(qerr(SyntaxErr, fmt.Sprintf("unknown alter model action %q", action)))
	}
	return RespOkay()
}

// dispatchDrop handles "drop space ..." and "drop model ...".
func (e *Engine) dispatchDrop(cc *ConnContext, args []string) Response {
	if len(args) == 0 {
		return RespError(qerr(SyntaxErr, "drop requires a target"))
	}
	switch strings.ToLower(args[0]) {
	case "space":
		return e.dropSpace(args[1:])
	case "model":
		return e.dropModel(cc, args[1:])
	default:
		return RespError(qerr(SyntaxErr, fmt.Sprintf("cannot drop %q", args[0])))
	}
}

// dropSpace handles DROP SPACE <name> [force]. force cascades the drop
// over every contained model and removes their batch files.
func (e *Engine) dropSpace(args []string) Response {
	if len(args) == 0 {
		return RespError(qerr(SyntaxErr, "drop space requires a name"))
	}
	name := args[0]
	force := len(args) > 1 && strings.ToLower(args[1]) == "force"

	sp, ok := e.GNS.Space(name)
	if !ok {
		return RespError(qerr(NotFound, fmt.Sprintf("space %q does not exist", name)))
	}
	spaceUUID := sp.UUID

	dropped, err := e.GNSLog.DropSpace(name, force)
	if err != nil {
		return RespError(classify(err))
	}
	for _, id := range dropped {
		e.removeModelFiles(spaceUUID, id)
	}
	return RespOkay()
}

func (e *Engine) dropModel(cc *ConnContext, args []string) Response {
	if len(args) == 0 {
		return RespError(qerr(SyntaxErr, "drop model requires a name"))
	}
	spaceName, m, lerr := e.lookupModel(cc, args[0])
	if lerr != nil {
		return RespError(lerr)
	}
	sp, ok := e.GNS.Space(spaceName)
	if !ok {
		return RespError(qerr(NotFound, fmt.Sprintf("space %q does not exist", spaceName)))
	}
	if err := e.GNSLog.DropModel(spaceName, m.Name); err != nil {
		return RespError(classify(err))
	}
	e.removeModelFiles(sp.UUID, m.UUID)
	return RespOkay()
}

// dispatchUse implements "use <space>|null".
func (e *Engine) dispatchUse(cc *ConnContext, args []string) Response {
	if len(args) != 1 {
		return RespError(qerr(SyntaxErr, "use requires exactly one argument"))
	}
	target := args[0]
	if target == "null" {
		cc.CurrentSpace = ""
		return RespOkay()
	}
	if _, ok := e.GNS.Space(target); !ok {
		return RespError(qerr(NotFound, fmt.Sprintf("space %q does not exist", target)))
	}
	cc.CurrentSpace = target
	return RespOkay()
}
