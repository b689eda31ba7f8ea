// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package netsvc implements the TCP connection handler and listener: a
// per-connection Handshake -> Auth -> Ready -> Close state machine
// sitting on top of internal/protocol's framing and internal/engine's
// dispatch, plus a bounded-concurrency accept loop, one goroutine per
// raw TCP connection.
package netsvc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/skytable-core/skyd/internal/engine"
	skylog "github.com/skytable-core/skyd/internal/log"
	"github.com/skytable-core/skyd/internal/protocol"
	"golang.org/x/time/rate"
)

// ConnError is a fatal-to-connection error: the connection is closed
// but the rest of the server keeps running.
type ConnError struct {
	Cause error
}

func (e *ConnError) Error() string { return fmt.Sprintf("netsvc: connection error: %v", e.Cause) }
func (e *ConnError) Unwrap() error { return e.Cause }

// maxQueryBytes bounds how large a single buffered query may grow before
// the connection is dropped, so a client can't force unbounded memory
// growth by never sending a terminating byte.
const maxQueryBytes = 16 << 20

// requestRateLimit caps how many subqueries a single connection may
// submit per second, the per-connection backpressure point enforced
// with golang.org/x/time/rate.
const requestRateLimit = 2000

// maxAuthAttempts bounds how many bad-credential attempts a connection
// gets during the handshake before it is fail-closed.
const maxAuthAttempts = 3

// Conn owns one client's raw connection and its Skyhash state machine.
type Conn struct {
	nc      net.Conn
	eng     *engine.Engine
	limiter *rate.Limiter
	cc      *engine.ConnContext

	buf []byte
}

// NewConn wraps an accepted connection for Serve.
func NewConn(nc net.Conn, eng *engine.Engine) *Conn {
	return &Conn{
		nc:      nc,
		eng:     eng,
		limiter: rate.NewLimiter(rate.Limit(requestRateLimit), requestRateLimit),
		cc:      &engine.ConnContext{CurrentSpace: "default"},
	}
}

// Serve drives the connection's full lifecycle: Handshake, Auth, then the
// Ready loop dispatching every subquery to the engine, until the client
// disconnects or a ConnError forces the connection closed. It always
// closes the underlying connection before returning.
func (c *Conn) Serve(ctx context.Context) error {
	defer c.nc.Close()

	w := bufio.NewWriter(c.nc)

	if err := c.handshakeAndAuth(w); err != nil {
		skylog.Warn("connection auth failed: " + skylog.Kv("remote", c.nc.RemoteAddr().String(), "err", err.Error()))
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		q, err := c.readQuery()
		if err != nil {
			if err == errConnClosed {
				return nil
			}
			return &ConnError{Cause: err}
		}

		for _, sub := range q.Subqueries {
			if err := c.limiter.Wait(ctx); err != nil {
				return &ConnError{Cause: err}
			}
			resp := c.eng.Execute(c.cc, sub)
			if err := writeResponse(w, resp); err != nil {
				return &ConnError{Cause: err}
			}
		}
		if err := w.Flush(); err != nil {
			return &ConnError{Cause: err}
		}
	}
}

// handshakeAndAuth reads a subquery shaped [username, password] and
// authenticates it against the system database before the connection is
// allowed into the Ready state. A malformed handshake fails the
// connection immediately; bad credentials get up to maxAuthAttempts
// tries before the connection is fail-closed, each failure reported to
// the client so it can resend.
func (c *Conn) handshakeAndAuth(w *bufio.Writer) error {
	var lastUsername string
	for attempt := 1; attempt <= maxAuthAttempts; attempt++ {
		q, err := c.readQuery()
		if err != nil {
			return err
		}
		if len(q.Subqueries) != 1 || len(q.Subqueries[0]) != 2 {
			_ = writeResponse(w, engine.RespError(&engine.QueryError{Code: engine.SyntaxErr, Msg: "handshake requires a username and password"}))
			_ = w.Flush()
			return fmt.Errorf("netsvc: malformed handshake")
		}
		username := string(q.Subqueries[0][0])
		password := string(q.Subqueries[0][1])
		lastUsername = username

		if c.eng.SysDB.Verify(username, password) {
			c.cc.Username = username
			c.cc.IsRoot = username == "root"
			return writeOkayAndFlush(w)
		}

		_ = writeResponse(w, engine.RespError(&engine.QueryError{Code: engine.AuthBadCredentials, Msg: "bad credentials"}))
		_ = w.Flush()
	}
	return fmt.Errorf("netsvc: bad credentials for %q after %d attempts", lastUsername, maxAuthAttempts)
}

func writeOkayAndFlush(w *bufio.Writer) error {
	if err := writeResponse(w, engine.RespOkay()); err != nil {
		return err
	}
	return w.Flush()
}

var errConnClosed = fmt.Errorf("netsvc: connection closed")

// readQuery blocks until a complete Skyhash query is available, growing
// c.buf as more bytes arrive and retrying protocol.Parse, the way the
// wire format's ErrNotEnough contract expects.
func (c *Conn) readQuery() (*protocol.Query, error) {
	readBuf := make([]byte, 4096)
	for {
		q, n, err := protocol.Parse(c.buf)
		if err == nil {
			c.buf = c.buf[n:]
			return q, nil
		}
		if err != protocol.ErrNotEnough {
			return nil, err
		}
		if len(c.buf) > maxQueryBytes {
			return nil, fmt.Errorf("netsvc: query exceeds %d bytes", maxQueryBytes)
		}

		_ = c.nc.SetReadDeadline(time.Now().Add(5 * time.Minute))
		n2, rerr := c.nc.Read(readBuf)
		if n2 > 0 {
			c.buf = append(c.buf, readBuf[:n2]...)
		}
		if rerr != nil {
			if n2 > 0 {
				continue
			}
			return nil, errConnClosed
		}
	}
}
