// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sysdb implements the system database: a single flat file
// holding the user table (bcrypt-hashed passwords) and a couple of
// server-wide counters, rewritten in full on every mutation.
package sysdb

import (
	"fmt"
	"os"

	"github.com/skytable-core/skyd/internal/model"
	"github.com/skytable-core/skyd/internal/storage/sdss"
	"github.com/skytable-core/skyd/pkg/codec"
	"github.com/skytable-core/skyd/pkg/scanner"
	"golang.org/x/crypto/bcrypt"
)

const (
	keyUsers           = "auth.users"
	keyStartupCounter  = "sys.startup_counter"
	keySettingsVersion = "sys.settings_version"

	// RootUsername is the name of the always-present superuser account.
	RootUsername = "root"

	// SettingsVersion is the current generation of the server-wide
	// settings encoding; bumped whenever this package's dictionary shape
	// changes in a way old files can't be read as-is.
	SettingsVersion = 1
)

// SysDB holds the in-memory view of the system database dictionary: the
// user table (username -> bcrypt password hash) and the two counters.
type SysDB struct {
	path string

	users           map[string][]byte
	startupCounter  uint64
	settingsVersion uint64
}

// Open loads path, creating it with a fresh root user (password derived
// from originKey) if it doesn't exist yet. If it does exist, it verifies
// the root user is present and bumps the startup counter.
func Open(path string, originKey string) (*SysDB, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return create(path, originKey)
	}
	if err != nil {
		return nil, fmt.Errorf("sysdb: read %s: %w", path, err)
	}

	db, err := decodeFile(raw)
	if err != nil {
		return nil, fmt.Errorf("sysdb: %w", err)
	}
	db.path = path
	if _, ok := db.users[RootUsername]; !ok {
		return nil, fmt.Errorf("sysdb: %s is missing the root user", path)
	}
	db.startupCounter++
	if err := db.save(); err != nil {
		return nil, err
	}
	return db, nil
}

func create(path, originKey string) (*SysDB, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(originKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("sysdb: hash origin key: %w", err)
	}
	db := &SysDB{
		path:            path,
		users:           map[string][]byte{RootUsername: hash},
		startupCounter:  1,
		settingsVersion: SettingsVersion,
	}
	if err := db.save(); err != nil {
		return nil, err
	}
	return db, nil
}

// StartupCounter returns the number of times this file has been opened.
func (db *SysDB) StartupCounter() uint64 { return db.startupCounter }

// AddUser creates a new user with the given password, bcrypt-hashed.
func (db *SysDB) AddUser(username, password string) error {
	if _, exists := db.users[username]; exists {
		return fmt.Errorf("sysdb: user %q already exists", username)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("sysdb: hash password: %w", err)
	}
	db.users[username] = hash
	return db.save()
}

// DelUser removes a user. The root user may not be removed.
func (db *SysDB) DelUser(username string) error {
	if username == RootUsername {
		return fmt.Errorf("sysdb: the root user cannot be removed")
	}
	if _, ok := db.users[username]; !ok {
		return fmt.Errorf("sysdb: user %q does not exist", username)
	}
	delete(db.users, username)
	return db.save()
}

// Users returns every known username, including root.
func (db *SysDB) Users() []string {
	out := make([]string, 0, len(db.users))
	for name := range db.users {
		out = append(out, name)
	}
	return out
}

// Verify reports whether password matches the stored hash for username,
// using bcrypt's constant-time comparator.
func (db *SysDB) Verify(username, password string) bool {
	hash, ok := db.users[username]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// ---- on-disk encoding ----

func (db *SysDB) save() error {
	dict := map[string]model.Value{
		keyStartupCounter:  model.NewU64(db.startupCounter),
		keySettingsVersion: model.NewU64(db.settingsVersion),
	}
	users := make([]model.Value, 0, len(db.users))
	for name, hash := range db.users {
		pair := model.NewList([]model.Value{model.NewString(name), model.NewBinary(hash)})
		users = append(users, pair)
	}
	dict[keyUsers] = model.NewList(users)

	header := sdss.NewHeader(sdss.ClassFlat, sdss.SpecifierSysDB, SettingsVersion)
	buf := sdss.Encode(header)

	body := codec.AppendU64(nil, uint64(len(dict)))
	for k, v := range dict {
		body = codec.AppendString(body, k)
		body = model.Encode(body, v)
	}
	buf = append(buf, body...)
	buf = codec.AppendU64(buf, codec.Checksum(body))

	tmp := db.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o600); err != nil {
		return fmt.Errorf("sysdb: write %s: %w", tmp, err)
	}
	return os.Rename(tmp, db.path)
}

func decodeFile(raw []byte) (*SysDB, error) {
	header, hn, err := sdss.Decode(raw)
	if err != nil {
		return nil, err
	}
	if header.Specifier != sdss.SpecifierSysDB {
		return nil, fmt.Errorf("not a system database file")
	}
	if len(raw) < hn+8 {
		return nil, fmt.Errorf("truncated file")
	}
	body := raw[hn : len(raw)-8]
	crcWant := codec.U64(raw[len(raw)-8:])
	if codec.Checksum(body) != crcWant {
		return nil, fmt.Errorf("checksum mismatch")
	}

	s := scanner.New(body)
	n, err := s.NextU64LE()
	if err != nil {
		return nil, err
	}
	db := &SysDB{users: make(map[string][]byte)}
	for i := uint64(0); i < n; i++ {
		key, err := readString(s)
		if err != nil {
			return nil, err
		}
		v, err := model.Decode(s)
		if err != nil {
			return nil, err
		}
		switch key {
		case keyStartupCounter:
			db.startupCounter = v.Uint()
		case keySettingsVersion:
			db.settingsVersion = v.Uint()
		case keyUsers:
			for _, pair := range v.List() {
				fields := pair.List()
				if len(fields) != 2 {
					return nil, fmt.Errorf("malformed user entry")
				}
				db.users[fields[0].String_()] = fields[1].Binary()
			}
		}
	}
	return db, nil
}

func readString(s *scanner.Scanner) (string, error) {
	n, err := s.NextU64LE()
	if err != nil {
		return "", err
	}
	b, err := s.NextChunk(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
