// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package netsvc

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/skytable-core/skyd/internal/engine"
	"github.com/skytable-core/skyd/internal/fractal"
	"github.com/skytable-core/skyd/internal/model"
	"github.com/skytable-core/skyd/internal/storage/gns"
	"github.com/skytable-core/skyd/internal/storage/sysdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	dir := t.TempDir()

	g := model.NewGNS()
	gnsLog, err := gns.Create(filepath.Join(dir, "gns.db"), g)
	require.NoError(t, err)

	sdb, err := sysdb.Open(filepath.Join(dir, "sys.db"), "origin-secret")
	require.NoError(t, err)

	coord, err := fractal.New(gnsLog, g, nil)
	require.NoError(t, err)

	return engine.New(g, gnsLog, sdb, coord, dir)
}

func TestWriteResponseShapes(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	require.NoError(t, writeResponse(w, engine.RespOkay()))
	require.NoError(t, w.Flush())
	assert.Equal(t, "!0\n", buf.String())

	buf.Reset()
	require.NoError(t, writeResponse(w, engine.RespValue(model.NewString("HEY!"))))
	require.NoError(t, w.Flush())
	assert.Equal(t, "+4\nHEY!\n", buf.String())

	buf.Reset()
	require.NoError(t, writeResponse(w, engine.RespError(&engine.QueryError{Code: engine.NotFound})))
	require.NoError(t, w.Flush())
	assert.Equal(t, "!1\n", buf.String())
}

// writeQuery encodes a Skyhash simple query with one subquery holding
// toks as its elements, matching internal/protocol's framing exactly.
func writeQuery(t *testing.T, w *bufio.Writer, toks ...string) {
	t.Helper()
	_, err := w.WriteString("*1\n")
	require.NoError(t, err)
	_, err = w.WriteString("~" + strconv.Itoa(len(toks)) + "\n")
	require.NoError(t, err)
	for _, tok := range toks {
		_, err := w.WriteString(strconv.Itoa(len(tok)) + "\n" + tok + "\n")
		require.NoError(t, err)
	}
	require.NoError(t, w.Flush())
}

func TestConnHandshakeAndHeya(t *testing.T) {
	eng := newTestEngine(t)
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()

	done := make(chan error, 1)
	go func() {
		c := NewConn(serverSide, eng)
		done <- c.Serve(context.Background())
	}()

	cw := bufio.NewWriter(clientSide)
	cr := bufio.NewReader(clientSide)

	writeQuery(t, cw, "root", "origin-secret")
	line, err := cr.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "!0\n", line)

	writeQuery(t, cw, "heya")
	line, err = cr.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "+4\n", line)
	body, err := cr.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "HEY!\n", body)

	clientSide.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not shut down after client close")
	}
}

func TestConnRejectsBadCredentials(t *testing.T) {
	eng := newTestEngine(t)
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()

	done := make(chan error, 1)
	go func() {
		c := NewConn(serverSide, eng)
		done <- c.Serve(context.Background())
	}()

	cw := bufio.NewWriter(clientSide)
	cr := bufio.NewReader(clientSide)

	// Every bad attempt is reported; the connection closes after the last.
	for i := 0; i < maxAuthAttempts; i++ {
		writeQuery(t, cw, "root", "wrong-password")
		line, err := cr.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "!8\n", line) // AuthBadCredentials
	}

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not close after failed auth")
	}
}
