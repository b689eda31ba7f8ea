// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package journal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/skytable-core/skyd/internal/storage/sdss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempJournalPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.journal")
}

func TestCreateAppendReopenReplaysEvents(t *testing.T) {
	path := tempJournalPath(t)
	j, err := Create(path, sdss.SpecifierGNSLog, 1)
	require.NoError(t, err)
	require.NoError(t, j.Append([]byte("event-1")))
	require.NoError(t, j.Append([]byte("event-2")))
	require.NoError(t, j.Close())

	var replayed [][]byte
	j2, wasClean, err := Open(path, sdss.SpecifierGNSLog, 1, func(payload []byte) error {
		replayed = append(replayed, append([]byte(nil), payload...))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, wasClean)
	require.NoError(t, j2.Close())

	require.Len(t, replayed, 2)
	assert.Equal(t, "event-1", string(replayed[0]))
	assert.Equal(t, "event-2", string(replayed[1]))
}

func TestOpenDetectsUncleanShutdown(t *testing.T) {
	path := tempJournalPath(t)
	j, err := Create(path, sdss.SpecifierGNSLog, 1)
	require.NoError(t, err)
	require.NoError(t, j.Append([]byte("event-1")))
	require.NoError(t, j.f.Close()) // simulate a crash: no Closed marker written

	_, wasClean, err := Open(path, sdss.SpecifierGNSLog, 1, func([]byte) error { return nil })
	require.NoError(t, err)
	assert.False(t, wasClean)
}

func TestOpenTruncatesPartialTrailingRecord(t *testing.T) {
	path := tempJournalPath(t)
	j, err := Create(path, sdss.SpecifierGNSLog, 1)
	require.NoError(t, err)
	require.NoError(t, j.Append([]byte("event-1")))

	fi, err := j.f.Stat()
	require.NoError(t, err)
	goodSize := fi.Size()
	require.NoError(t, j.Append([]byte("event-2")))
	// Corrupt the tail to simulate a torn write mid-record.
	require.NoError(t, j.f.Truncate(goodSize+5))
	require.NoError(t, j.f.Close())

	var replayed [][]byte
	j2, wasClean, err := Open(path, sdss.SpecifierGNSLog, 1, func(payload []byte) error {
		replayed = append(replayed, append([]byte(nil), payload...))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, wasClean)
	require.Len(t, replayed, 1)
	assert.Equal(t, "event-1", string(replayed[0]))
	require.NoError(t, j2.Close())
}

func TestOpenRejectsWrongSpecifier(t *testing.T) {
	path := tempJournalPath(t)
	j, err := Create(path, sdss.SpecifierGNSLog, 1)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	_, _, err = Open(path, sdss.SpecifierModelBatch, 1, func([]byte) error { return nil })
	assert.Error(t, err)
}

func TestOpenPropagatesApplyError(t *testing.T) {
	path := tempJournalPath(t)
	j, err := Create(path, sdss.SpecifierGNSLog, 1)
	require.NoError(t, err)
	require.NoError(t, j.Append([]byte("bad-event")))
	require.NoError(t, j.Close())

	_, _, err = Open(path, sdss.SpecifierGNSLog, 1, func([]byte) error {
		return os.ErrInvalid
	})
	assert.Error(t, err)
}
