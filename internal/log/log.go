// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package log provides skyd's process-wide leveled logger: systemd-style
// "<N>" priority prefixes, swappable per-level io.Writers, and
// SetLogLevel cascading lower levels to io.Discard rather than a
// structured-logging library. skyd has no HTTP request surface to log;
// Kv fills the equivalent role for attaching a connection or model
// identifier to a line.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

var logDateTime bool

var (
	DebugWriter io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
	CritWriter  io.Writer = os.Stderr
)

var (
	DebugPrefix string = "<7>[DEBUG]    "
	InfoPrefix  string = "<6>[INFO]     "
	WarnPrefix  string = "<4>[WARNING]  "
	ErrPrefix   string = "<3>[ERROR]    "
	CritPrefix  string = "<2>[CRITICAL] "
)

var (
	DebugLog = log.New(DebugWriter, DebugPrefix, 0)
	InfoLog  = log.New(InfoWriter, InfoPrefix, 0)
	WarnLog  = log.New(WarnWriter, WarnPrefix, log.Lshortfile)
	ErrLog   = log.New(ErrWriter, ErrPrefix, log.Llongfile)
	CritLog  = log.New(CritWriter, CritPrefix, log.Llongfile)

	DebugTimeLog = log.New(DebugWriter, DebugPrefix, log.LstdFlags)
	InfoTimeLog  = log.New(InfoWriter, InfoPrefix, log.LstdFlags)
	WarnTimeLog  = log.New(WarnWriter, WarnPrefix, log.LstdFlags|log.Lshortfile)
	ErrTimeLog   = log.New(ErrWriter, ErrPrefix, log.LstdFlags|log.Llongfile)
	CritTimeLog  = log.New(CritWriter, CritPrefix, log.LstdFlags|log.Llongfile)
)

// SetLogLevel cascades everything below lvl to io.Discard.
func SetLogLevel(lvl string) {
	switch lvl {
	case "crit":
		ErrWriter = io.Discard
		fallthrough
	case "err", "fatal":
		WarnWriter = io.Discard
		fallthrough
	case "warn":
		InfoWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug":
	default:
		fmt.Fprintf(os.Stderr, "log: invalid loglevel %q, using debug\n", lvl)
		SetLogLevel("debug")
	}
}

// SetLogDateTime toggles date/time prefixing (off by default, under the
// assumption that systemd adds timestamps).
func SetLogDateTime(v bool) { logDateTime = v }

func out(w io.Writer, plain, timed *log.Logger, s string) {
	if w == io.Discard {
		return
	}
	if logDateTime {
		timed.Output(2, s)
		return
	}
	plain.Output(2, s)
}

func Debug(v ...interface{}) { out(DebugWriter, DebugLog, DebugTimeLog, fmt.Sprint(v...)) }
func Info(v ...interface{})  { out(InfoWriter, InfoLog, InfoTimeLog, fmt.Sprint(v...)) }
func Warn(v ...interface{})  { out(WarnWriter, WarnLog, WarnTimeLog, fmt.Sprint(v...)) }
func Error(v ...interface{}) { out(ErrWriter, ErrLog, ErrTimeLog, fmt.Sprint(v...)) }
func Crit(v ...interface{})  { out(CritWriter, CritLog, CritTimeLog, fmt.Sprint(v...)) }

func Debugf(format string, v ...interface{}) { out(DebugWriter, DebugLog, DebugTimeLog, fmt.Sprintf(format, v...)) }
func Infof(format string, v ...interface{})  { out(InfoWriter, InfoLog, InfoTimeLog, fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...interface{})  { out(WarnWriter, WarnLog, WarnTimeLog, fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...interface{}) { out(ErrWriter, ErrLog, ErrTimeLog, fmt.Sprintf(format, v...)) }
func Critf(format string, v ...interface{})  { out(CritWriter, CritLog, CritTimeLog, fmt.Sprintf(format, v...)) }

// Fatal logs at error level and exits the process with status 1, for a
// configuration or startup error.
func Fatal(v ...interface{}) {
	Error(v...)
	os.Exit(1)
}

// Fatalf is the formatted form of Fatal.
func Fatalf(format string, v ...interface{}) {
	Errorf(format, v...)
	os.Exit(1)
}

// Panic logs at error level then panics, for truly unreachable internal
// states — an unknown opcode reaching dispatch is a hard error, never
// silently ignored.
func Panic(v ...interface{}) {
	Error(v...)
	panic(fmt.Sprint(v...))
}

// Kv renders a structured key-value tail appended to a log line, used to
// attach a connection or model identifier to each line.
func Kv(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%s", pairs[i], pairs[i+1])
	}
	return b.String()
}
