// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package engine

import (
	"path/filepath"
	"testing"

	"github.com/skytable-core/skyd/internal/fractal"
	"github.com/skytable-core/skyd/internal/model"
	"github.com/skytable-core/skyd/internal/protocol"
	"github.com/skytable-core/skyd/internal/storage/gns"
	"github.com/skytable-core/skyd/internal/storage/sysdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *ConnContext) {
	t.Helper()
	dir := t.TempDir()

	g := model.NewGNS()
	gnsLog, err := gns.Create(filepath.Join(dir, "gns.db"), g)
	require.NoError(t, err)

	sdb, err := sysdb.Open(filepath.Join(dir, "sys.db"), "origin-secret")
	require.NoError(t, err)

	coord, err := fractal.New(gnsLog, g, nil)
	require.NoError(t, err)

	e := New(g, gnsLog, sdb, coord, dir)
	cc := &ConnContext{CurrentSpace: model.DefaultSpaceName, Username: sysdb.RootUsername, IsRoot: true}
	return e, cc
}

func sub(toks ...string) protocol.Subquery {
	s := make(protocol.Subquery, len(toks))
	for i, t := range toks {
		s[i] = protocol.Element(t)
	}
	return s
}

func TestHeya(t *testing.T) {
	e, cc := newTestEngine(t)
	resp := e.Execute(cc, sub("heya"))
	require.Equal(t, KindValue, resp.Kind)
	assert.Equal(t, "HEY!", resp.Value.String_())
}

func TestCreateSpaceAndModelLifecycle(t *testing.T) {
	e, cc := newTestEngine(t)

	resp := e.Execute(cc, sub("create", "space", "myspace"))
	require.Equal(t, KindEmpty, resp.Kind)

	resp = e.Execute(cc, sub("use", "myspace"))
	require.Equal(t, KindEmpty, resp.Kind)
	assert.Equal(t, "myspace", cc.CurrentSpace)

	resp = e.Execute(cc, sub("create", "model", "users", "id", "u64", "(", "name", "string", "email", "?string", ")"))
	require.Equal(t, KindEmpty, resp.Kind, resp.Msg)

	resp = e.Execute(cc, sub("inspect", "model", "users"))
	require.Equal(t, KindRow, resp.Kind)
	assert.Equal(t, []string{"id", "name", "email"}, resp.Fields)
}

func TestInsertSelectUpdateDelete(t *testing.T) {
	e, cc := newTestEngine(t)
	require.Equal(t, KindEmpty, e.Execute(cc, sub("create", "space", "s")).Kind)
	cc.CurrentSpace = "s"
	createResp := e.Execute(cc, sub("create", "model", "users", "id", "u64", "(", "name", "string", ")"))
	require.Equal(t, KindEmpty, createResp.Kind, createResp.Msg)

	insResp := e.Execute(cc, sub("insert", "users", "1", "alice"))
	require.Equal(t, KindEmpty, insResp.Kind, insResp.Msg)

	selResp := e.Execute(cc, sub("select", "users", "1"))
	require.Equal(t, KindRow, selResp.Kind, selResp.Msg)
	assert.Equal(t, "id", selResp.Fields[0])
	assert.Equal(t, uint64(1), selResp.Values[0].Uint())
	assert.Equal(t, "alice", selResp.Values[1].String_())

	dupResp := e.Execute(cc, sub("insert", "users", "1", "bob"))
	require.Equal(t, KindError, dupResp.Kind)
	assert.Equal(t, AlreadyExists, dupResp.Code)

	updResp := e.Execute(cc, sub("update", "users", "1", "name", "alicia"))
	require.Equal(t, KindEmpty, updResp.Kind, updResp.Msg)

	selResp = e.Execute(cc, sub("select", "users", "1"))
	require.Equal(t, KindRow, selResp.Kind)
	assert.Equal(t, "alicia", selResp.Values[1].String_())

	delResp := e.Execute(cc, sub("delete", "users", "1"))
	require.Equal(t, KindEmpty, delResp.Kind, delResp.Msg)

	selResp = e.Execute(cc, sub("select", "users", "1"))
	require.Equal(t, KindError, selResp.Kind)
	assert.Equal(t, NotFound, selResp.Code)
}

func TestDropSpaceRequiresForceWhenNonEmpty(t *testing.T) {
	e, cc := newTestEngine(t)
	require.Equal(t, KindEmpty, e.Execute(cc, sub("create", "space", "s")).Kind)
	cc.CurrentSpace = "s"
	require.Equal(t, KindEmpty, e.Execute(cc, sub("create", "model", "users", "id", "u64")).Kind)

	resp := e.Execute(cc, sub("drop", "space", "s"))
	require.Equal(t, KindError, resp.Kind)
	assert.Equal(t, OtherError, resp.Code)

	resp = e.Execute(cc, sub("drop", "space", "s", "force"))
	require.Equal(t, KindEmpty, resp.Kind, resp.Msg)

	_, ok := e.GNS.Space("s")
	assert.False(t, ok)
}

func TestUserAdministrationRequiresRoot(t *testing.T) {
	e, cc := newTestEngine(t)
	cc.IsRoot = false

	resp := e.Execute(cc, sub("user", "add", "alice", "hunter2"))
	require.Equal(t, KindError, resp.Kind)
	assert.Equal(t, AuthPermDenied, resp.Code)

	cc.IsRoot = true
	resp = e.Execute(cc, sub("user", "add", "alice", "hunter2"))
	require.Equal(t, KindEmpty, resp.Kind, resp.Msg)

	resp = e.Execute(cc, sub("user", "list"))
	require.Equal(t, KindArray, resp.Kind)
	var names []string
	for _, v := range resp.Array {
		names = append(names, v.String_())
	}
	assert.Contains(t, names, "alice")
	assert.Contains(t, names, sysdb.RootUsername)
}

func TestUnknownAction(t *testing.T) {
	e, cc := newTestEngine(t)
	resp := e.Execute(cc, sub("frobnicate"))
	require.Equal(t, KindError, resp.Kind)
	assert.Equal(t, UnknownAction, resp.Code)
}
