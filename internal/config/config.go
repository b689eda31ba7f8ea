// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config assembles a Config by layering: compiled defaults,
// then a .env file, then the process environment, then an optional
// JSON file validated against a schema before being decoded. This
// package does no argv parsing — cmd/skyd owns flag.Parse and hands
// this package only the .env and config file paths to Load.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config bundles every knob controllable as an environment variable,
// plus a compiled-in set of defaults.
type Config struct {
	BindHost string `json:"bind-host"`
	BindPort int    `json:"bind-port"`

	TLSPort int    `json:"tls-port"`
	TLSKey  string `json:"tls-key"`
	TLSCert string `json:"tls-cert"`

	DataDir     string `json:"data-dir"`
	MaxConn     int64  `json:"max-conn"`
	AuthRootKey string `json:"auth-root-key"`

	BGSaveEvery time.Duration `json:"bgsave-every"`

	SnapEvery    time.Duration `json:"snap-every"`
	SnapKeep     int           `json:"snap-keep"`
	SnapFailsafe bool          `json:"snap-failsafe"`

	// MetricsAddr is a loopback-only listen address for the Prometheus
	// endpoint (internal/metrics). Empty disables it.
	MetricsAddr string `json:"metrics-addr"`

	// S3 mirror settings for internal/snapshot's optional remote upload.
	// SnapS3Bucket empty means no remote mirror is configured.
	SnapS3Endpoint     string `json:"snap-s3-endpoint"`
	SnapS3Bucket       string `json:"snap-s3-bucket"`
	SnapS3AccessKey    string `json:"snap-s3-access-key"`
	SnapS3SecretKey    string `json:"snap-s3-secret-key"`
	SnapS3Region       string `json:"snap-s3-region"`
	SnapS3UsePathStyle bool   `json:"snap-s3-use-path-style"`
}

// Defaults is the compiled baseline every later layer overrides
// piecewise.
var Defaults = Config{
	BindHost:    "127.0.0.1",
	BindPort:    2003,
	DataDir:     "./data",
	MaxConn:     4096,
	AuthRootKey: "skytable",
	BGSaveEvery: 2 * time.Minute,

	SnapEvery:    time.Hour,
	SnapKeep:     4,
	SnapFailsafe: true,

	MetricsAddr: "127.0.0.1:9930",
}

// Load builds a Config by layering, in order: Defaults, a ".env" file at
// envPath (if present, via godotenv, with os.Setenv-before-anything-else
// precedence), the process environment (the SKY_* variables), and
// finally an optional JSON file at configPath. configPath may be empty,
// meaning "no file layer" rather than an error.
func Load(envPath, configPath string) (Config, error) {
	cfg := Defaults

	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config: load %s: %w", envPath, err)
	}

	applyEnv(&cfg)

	if configPath == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
	}
	if err := validateAndDecode(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", configPath, err)
	}
	return cfg, nil
}

// validateAndDecode runs a validate-then-decode two-step: a JSON Schema
// catches shape errors with a useful message before json.Decoder's
// DisallowUnknownFields catches typos a schema alone wouldn't (an extra
// unexpected key).
func validateAndDecode(raw []byte, cfg *Config) error {
	if err := validateAgainstSchema(raw); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("SKY_DATA_DIR"); ok {
		cfg.DataDir = v
	}
	if v, ok := os.LookupEnv("SKY_HOST"); ok {
		cfg.BindHost = v
	}
	if v, ok := lookupInt("SKY_PORT"); ok {
		cfg.BindPort = v
	}
	if v, ok := lookupInt("SKY_TLS_PORT"); ok {
		cfg.TLSPort = v
	}
	if v, ok := os.LookupEnv("SKY_TLS_KEY"); ok {
		cfg.TLSKey = v
	}
	if v, ok := os.LookupEnv("SKY_TLS_CERT"); ok {
		cfg.TLSCert = v
	}
	if v, ok := lookupInt64("SKY_MAX_CONN"); ok {
		cfg.MaxConn = v
	}
	if v, ok := os.LookupEnv("SKY_AUTH_ROOT_KEY"); ok {
		cfg.AuthRootKey = v
	}
	if v, ok := lookupDuration("SKY_BGSAVE_EVERY"); ok {
		cfg.BGSaveEvery = v
	}
	if v, ok := lookupDuration("SKY_SNAP_EVERY"); ok {
		cfg.SnapEvery = v
	}
	if v, ok := lookupInt("SKY_SNAP_KEEP"); ok {
		cfg.SnapKeep = v
	}
	if v, ok := lookupBool("SKY_SNAP_FAILSAFE"); ok {
		cfg.SnapFailsafe = v
	}
	if v, ok := os.LookupEnv("SKY_METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}
	if v, ok := os.LookupEnv("SKY_SNAP_S3_ENDPOINT"); ok {
		cfg.SnapS3Endpoint = v
	}
	if v, ok := os.LookupEnv("SKY_SNAP_S3_BUCKET"); ok {
		cfg.SnapS3Bucket = v
	}
	if v, ok := os.LookupEnv("SKY_SNAP_S3_ACCESS_KEY"); ok {
		cfg.SnapS3AccessKey = v
	}
	if v, ok := os.LookupEnv("SKY_SNAP_S3_SECRET_KEY"); ok {
		cfg.SnapS3SecretKey = v
	}
	if v, ok := os.LookupEnv("SKY_SNAP_S3_REGION"); ok {
		cfg.SnapS3Region = v
	}
	if v, ok := lookupBool("SKY_SNAP_S3_USE_PATH_STYLE"); ok {
		cfg.SnapS3UsePathStyle = v
	}
}

func lookupInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupInt64(key string) (int64, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func lookupDuration(key string) (time.Duration, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
