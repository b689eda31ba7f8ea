// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package engine implements the query engine: it dispatches a parsed
// Skyhash subquery to the data-model/storage operations that implement
// it and shapes the tagged Response the connection handler writes back
// to the wire. Query-language tokenizing is out of scope here; the
// engine instead interprets the already-tokenized element array the
// protocol parser hands it, dispatching by request shape rather than
// re-parsing text.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/skytable-core/skyd/internal/fractal"
	"github.com/skytable-core/skyd/internal/model"
	"github.com/skytable-core/skyd/internal/protocol"
	gnslog "github.com/skytable-core/skyd/internal/storage/gns"
	"github.com/skytable-core/skyd/internal/storage/sysdb"
)

// Engine ties the in-memory namespace, the GNS journal, the system
// database and the fractal coordinator together behind one dispatch
// surface.
type Engine struct {
	GNS    *model.GNS
	GNSLog *gnslog.Log
	SysDB  *sysdb.SysDB
	Coord  *fractal.Coordinator

	// DataDir is the root directory under which per-model batch files
	// live, at data/<space_uuid>/<model_uuid>/batch.db.
	DataDir string
}

// New constructs an Engine over already-opened subsystems.
func New(gns *model.GNS, gnsLog *gnslog.Log, sdb *sysdb.SysDB, coord *fractal.Coordinator, dataDir string) *Engine {
	return &Engine{GNS: gns, GNSLog: gnsLog, SysDB: sdb, Coord: coord, DataDir: dataDir}
}

// ConnContext carries the per-connection state the engine needs to
// interpret unqualified names and enforce root-only statements: which
// space "use" last selected, and who is connected.
type ConnContext struct {
	CurrentSpace string
	Username     string
	IsRoot       bool
}

// Execute dispatches one subquery and returns its Response. It never
// panics on malformed client input; every failure mode becomes a typed
// QueryError surfaced through RespError.
func (e *Engine) Execute(cc *ConnContext, sub protocol.Subquery) Response {
	toks := toStrings(sub)
	if len(toks) == 0 {
		return RespError(qerr(SyntaxErr, "empty query"))
	}
	action := strings.ToLower(toks[0])
	args := toks[1:]

	switch action {
	case "heya":
		return RespValue(model.NewString("HEY!"))
	case "create":
		return e.dispatchCreate(cc, args)
	case "alter":
		return e.dispatchAlter(cc, args)
	case "drop":
		return e.dispatchDrop(cc, args)
	case "inspect":
		return e.dispatchInspect(cc, args)
	case "use":
		return e.dispatchUse(cc, args)
	case "insert":
		return e.dispatchInsert(cc, args)
	case "select":
		return e.dispatchSelect(cc, args)
	case "update":
		return e.dispatchUpdate(cc, args)
	case "delete":
		return e.dispatchDelete(cc, args)
	case "user":
		return e.dispatchUser(cc, args)
	default:
		return RespError(qerr(UnknownAction, action))
	}
}

func toStrings(sub protocol.Subquery) []string {
	out := make([]string, len(sub))
	for i, el := range sub {
		out[i] = string(el)
	}
	return out
}

// qualify splits "space.model" into its two parts, or pairs name with
// cc.CurrentSpace if it carries no dot. "use" sets the space every
// subsequent unqualified statement resolves against.
func (cc *ConnContext) qualify(name string) (space, model string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return cc.CurrentSpace, name
}

func (e *Engine) lookupModel(cc *ConnContext, qualifiedName string) (space string, m *model.Model, err *QueryError) {
	spaceName, modelName := cc.qualify(qualifiedName)
	sp, ok := e.GNS.Space(spaceName)
	if !ok {
		return spaceName, nil, qerr(NotFound, fmt.Sprintf("space %q does not exist", spaceName))
	}
	mm, ok := sp.Model(modelName)
	if !ok {
		return spaceName, nil, qerr(NotFound, fmt.Sprintf("model %q does not exist", qualifiedName))
	}
	return spaceName, mm, nil
}

// batchPath returns the on-disk path of a model's batch journal:
// data/<space_uuid>/<model_uuid>/batch.db.
func (e *Engine) batchPath(spaceUUID, modelUUID model.UUID) string {
	return filepath.Join(e.DataDir, "data", spaceUUID.String(), modelUUID.String(), "batch.db")
}

func (e *Engine) removeModelFiles(spaceUUID, modelUUID model.UUID) {
	if driver, ok := e.Coord.TakeBatch(modelUUID); ok {
		_ = driver.Close()
	}
	_ = os.RemoveAll(filepath.Join(e.DataDir, "data", spaceUUID.String(), modelUUID.String()))
}
