// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package netsvc

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/skytable-core/skyd/internal/engine"
	skylog "github.com/skytable-core/skyd/internal/log"
	"golang.org/x/sync/semaphore"
)

// acceptBackoffMax bounds the exponential backoff the accept loop applies
// after a transient Accept error, tolerating a momentarily exhausted
// file-descriptor table without busy-looping.
const acceptBackoffMax = time.Second

// Listener drives one bounded-concurrency accept loop over an
// already-configured net.Listener. TLS termination, if any, has already
// been applied by the caller — loading certificates is an external
// collaborator's job, not this package's.
type Listener struct {
	ln  net.Listener
	eng *engine.Engine
	sem *semaphore.Weighted

	wg sync.WaitGroup
}

// NewListener wraps ln, bounding concurrent connections to maxConn via
// golang.org/x/sync/semaphore.
func NewListener(ln net.Listener, eng *engine.Engine, maxConn int64) *Listener {
	return &Listener{ln: ln, eng: eng, sem: semaphore.NewWeighted(maxConn)}
}

// Serve runs the accept loop until ctx is canceled or the listener is
// closed. It blocks until every in-flight connection's Serve call has
// returned.
func (l *Listener) Serve(ctx context.Context) error {
	defer l.wg.Wait()

	var backoff time.Duration
	for {
		nc, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				backoff = nextBackoff(backoff)
				skylog.Warnf("netsvc: accept timeout, retrying in %s", backoff)
				time.Sleep(backoff)
				continue
			}
			return err
		}
		backoff = 0

		if err := l.sem.Acquire(ctx, 1); err != nil {
			nc.Close()
			continue
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			defer l.sem.Release(1)
			conn := NewConn(nc, l.eng)
			if err := conn.Serve(ctx); err != nil {
				skylog.Warn("connection closed: " + skylog.Kv("remote", nc.RemoteAddr().String(), "err", err.Error()))
			}
		}()
	}
}

func nextBackoff(cur time.Duration) time.Duration {
	if cur == 0 {
		return 5 * time.Millisecond
	}
	next := cur * 2
	if next > acceptBackoffMax {
		return acceptBackoffMax
	}
	return next
}

// Close closes the underlying listener, unblocking Serve's Accept call.
func (l *Listener) Close() error { return l.ln.Close() }
