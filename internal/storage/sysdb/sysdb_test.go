// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package sysdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesRootUser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sys.db")
	db, err := Open(path, "origin-secret")
	require.NoError(t, err)
	assert.True(t, db.Verify(RootUsername, "origin-secret"))
	assert.False(t, db.Verify(RootUsername, "wrong-password"))
	assert.Equal(t, uint64(1), db.StartupCounter())
}

func TestReopenBumpsStartupCounterAndPersistsUsers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sys.db")
	db1, err := Open(path, "origin-secret")
	require.NoError(t, err)
	require.NoError(t, db1.AddUser("alice", "hunter2"))

	db2, err := Open(path, "origin-secret")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), db2.StartupCounter())
	assert.True(t, db2.Verify("alice", "hunter2"))
}

func TestAddUserRejectsDuplicate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sys.db")
	db, err := Open(path, "origin-secret")
	require.NoError(t, err)
	require.NoError(t, db.AddUser("alice", "pw"))
	assert.Error(t, db.AddUser("alice", "pw2"))
}

func TestDelUserCannotRemoveRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sys.db")
	db, err := Open(path, "origin-secret")
	require.NoError(t, err)
	assert.Error(t, db.DelUser(RootUsername))
}

func TestDelUserRemovesNonRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sys.db")
	db, err := Open(path, "origin-secret")
	require.NoError(t, err)
	require.NoError(t, db.AddUser("alice", "pw"))
	require.NoError(t, db.DelUser("alice"))
	assert.False(t, db.Verify("alice", "pw"))
}
