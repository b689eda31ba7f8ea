// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"), "")
	require.NoError(t, err)
	assert.Equal(t, Defaults, cfg)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("SKY_HOST", "0.0.0.0")
	t.Setenv("SKY_PORT", "7878")
	t.Setenv("SKY_MAX_CONN", "128")
	t.Setenv("SKY_SNAP_FAILSAFE", "false")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"), "")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.BindHost)
	assert.Equal(t, 7878, cfg.BindPort)
	assert.Equal(t, int64(128), cfg.MaxConn)
	assert.False(t, cfg.SnapFailsafe)
}

func TestLoadJSONFileOverridesEnv(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(fp, []byte(`{"bind-port": 9999, "snap-keep": 10}`), 0o644))

	cfg, err := Load(filepath.Join(dir, "missing.env"), fp)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.BindPort)
	assert.Equal(t, 10, cfg.SnapKeep)
	assert.Equal(t, Defaults.DataDir, cfg.DataDir)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(fp, []byte(`{"not-a-real-field": 1}`), 0o644))

	_, err := Load(filepath.Join(dir, "missing.env"), fp)
	assert.Error(t, err)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "missing.env"), filepath.Join(dir, "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, Defaults, cfg)
}
