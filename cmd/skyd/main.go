// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// skyd is the server binary: it loads configuration, opens or creates
// every on-disk subsystem under its data directory, starts the fractal
// coordinator's flush scheduler, the periodic snapshotter, the metrics
// endpoint and the client listener, then waits for a termination
// signal. Flag parsing covers a handful of one-shot admin operations; a
// JSON config file layers over environment defaults; a WaitGroup pairs
// the accept loop against a signal-handling goroutine.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/skytable-core/skyd/internal/config"
	"github.com/skytable-core/skyd/internal/engine"
	"github.com/skytable-core/skyd/internal/fractal"
	skylog "github.com/skytable-core/skyd/internal/log"
	"github.com/skytable-core/skyd/internal/metrics"
	"github.com/skytable-core/skyd/internal/model"
	"github.com/skytable-core/skyd/internal/netsvc"
	"github.com/skytable-core/skyd/internal/snapshot"
	"github.com/skytable-core/skyd/internal/storage/batch"
	"github.com/skytable-core/skyd/internal/storage/gns"
	"github.com/skytable-core/skyd/internal/storage/sysdb"
)

func main() {
	var (
		envPath    = flag.String("env", "./.env", "path to a .env file (optional)")
		configPath = flag.String("config", "", "path to a JSON config file (optional)")
		addUser    = flag.String("add-user", "", "username:password to add to sysdb, then exit")
		delUser    = flag.String("del-user", "", "username to remove from sysdb, then exit")
		noServer   = flag.Bool("no-server", false, "load every subsystem and exit without serving")
	)
	flag.Parse()

	cfg, err := config.Load(*envPath, *configPath)
	if err != nil {
		skylog.Errorf("config: %v", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		skylog.Errorf("mkdir data dir %s: %v", cfg.DataDir, err)
		os.Exit(1)
	}

	sdb, err := sysdb.Open(filepath.Join(cfg.DataDir, "sys.db"), cfg.AuthRootKey)
	if err != nil {
		skylog.Errorf("sysdb: %v", err)
		os.Exit(1)
	}

	if *addUser != "" {
		username, password, ok := splitUserSpec(*addUser)
		if !ok {
			skylog.Errorf("-add-user expects username:password")
			os.Exit(1)
		}
		if err := sdb.AddUser(username, password); err != nil {
			skylog.Errorf("add-user: %v", err)
			os.Exit(1)
		}
		fmt.Printf("user %q added\n", username)
		return
	}
	if *delUser != "" {
		if err := sdb.DelUser(*delUser); err != nil {
			skylog.Errorf("del-user: %v", err)
			os.Exit(1)
		}
		fmt.Printf("user %q removed\n", *delUser)
		return
	}

	g := model.NewGNS()
	gnsPath := filepath.Join(cfg.DataDir, "gns.db")
	gnsLog, err := openOrCreateGNS(gnsPath, g)
	if err != nil {
		skylog.Errorf("gns: %v", err)
		os.Exit(1)
	}

	coord, err := fractal.New(gnsLog, g, func(driver string, cause error) {
		skylog.Errorf("fractal: driver %q poisoned: %v", driver, cause)
	})
	if err != nil {
		skylog.Errorf("fractal: %v", err)
		os.Exit(1)
	}

	if err := openEveryBatchDriver(cfg.DataDir, g, coord); err != nil {
		skylog.Errorf("batch: %v", err)
		os.Exit(1)
	}

	if err := coord.Start(cfg.BGSaveEvery); err != nil {
		skylog.Errorf("fractal: start flush scheduler: %v", err)
		os.Exit(1)
	}

	eng := engine.New(g, gnsLog, sdb, coord, cfg.DataDir)

	if *noServer {
		skylog.Info("every subsystem loaded, exiting (-no-server)")
		_ = coord.Stop(context.Background())
		return
	}

	ln, err := buildListener(cfg)
	if err != nil {
		skylog.Errorf("listen: %v", err)
		os.Exit(1)
	}
	listener := netsvc.NewListener(ln, eng, cfg.MaxConn)

	snapMgr, err := buildSnapshotManager(cfg, g)
	if err != nil {
		skylog.Errorf("snapshot: %v", err)
		os.Exit(1)
	}

	var metricsReg *metrics.Registry
	if cfg.MetricsAddr != "" {
		metricsReg = metrics.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := listener.Serve(ctx); err != nil {
			skylog.Errorf("netsvc: accept loop exited: %v", err)
		}
	}()

	if cfg.SnapEvery > 0 {
		snapMgr.OnFailsafeTrip(func(err error) {
			skylog.Crit("snapshot failsafe tripped: " + skylog.Kv("err", err.Error()))
		})
		if err := snapMgr.Start(cfg.SnapEvery); err != nil {
			skylog.Errorf("snapshot: start scheduler: %v", err)
		}
	}

	if metricsReg != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metricsReg.PollFractal(ctx, coord, cfg.BGSaveEvery)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsReg.Serve(ctx, cfg.MetricsAddr); err != nil {
				skylog.Errorf("metrics: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	skylog.Info("shutting down")

	cancel()
	_ = listener.Close()
	if cfg.SnapEvery > 0 {
		_ = snapMgr.Stop()
	}
	wg.Wait()

	if err := coord.Stop(context.Background()); err != nil {
		skylog.Errorf("fractal: shutdown: %v", err)
	}
}

// splitUserSpec parses "username:password" for -add-user.
func splitUserSpec(spec string) (username, password string, ok bool) {
	for i := 0; i < len(spec); i++ {
		if spec[i] == ':' {
			return spec[:i], spec[i+1:], true
		}
	}
	return "", "", false
}

// openOrCreateGNS opens the GNS log at path, replaying it into g, or
// creates a fresh one if the file does not exist yet. Unlike sysdb.Open,
// the gns package exposes Create (O_EXCL, fails if the file exists) and
// Open (fails if it doesn't) as two separate entry points rather than
// one auto-detecting constructor, so the caller has to branch itself.
func openOrCreateGNS(path string, g *model.GNS) (*gns.Log, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return gns.Create(path, g)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return gns.Open(path, g)
}

// openEveryBatchDriver opens (or creates) the per-model batch journal
// for every model already present in g after GNS replay, registering
// each with coord so the flush scheduler and query engine can reach it.
// Mirrors internal/engine's data/<space_uuid>/<model_uuid>/batch.db
// layout.
func openEveryBatchDriver(dataDir string, g *model.GNS, coord *fractal.Coordinator) error {
	for _, spaceName := range g.SpaceNames() {
		sp, ok := g.Space(spaceName)
		if !ok {
			continue
		}
		for _, modelName := range sp.ModelNames() {
			m, ok := sp.Model(modelName)
			if !ok {
				continue
			}
			dir := filepath.Join(dataDir, "data", sp.UUID.String(), m.UUID.String())
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", dir, err)
			}
			path := filepath.Join(dir, "batch.db")

			var driver *batch.Log
			var err error
			if _, statErr := os.Stat(path); statErr != nil {
				if !os.IsNotExist(statErr) {
					return fmt.Errorf("stat %s: %w", path, statErr)
				}
				driver, err = batch.Create(path, m)
			} else {
				driver, err = batch.Open(path, m)
			}
			if err != nil {
				return fmt.Errorf("model %s.%s: %w", spaceName, modelName, err)
			}
			coord.RegisterModel(m, driver)
		}
	}
	return nil
}

// buildListener opens the client-facing net.Listener, wrapping it in TLS
// via tls.LoadX509KeyPair + tls.NewListener when both a certificate and
// key are configured (SKY_TLS_PORT/SKY_TLS_KEY/SKY_TLS_CERT).
func buildListener(cfg config.Config) (net.Listener, error) {
	if cfg.TLSCert == "" || cfg.TLSKey == "" {
		addr := fmt.Sprintf("%s:%d", cfg.BindHost, cfg.BindPort)
		return net.Listen("tcp", addr)
	}

	cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
	if err != nil {
		return nil, fmt.Errorf("load TLS keypair: %w", err)
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	port := cfg.TLSPort
	if port == 0 {
		port = cfg.BindPort
	}
	addr := fmt.Sprintf("%s:%d", cfg.BindHost, port)
	inner, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return tls.NewListener(inner, tlsCfg), nil
}

// buildSnapshotManager constructs a snapshot.Manager, wiring an S3Mirror
// only when a bucket is configured (the SKY_SNAP_S3_* variables).
func buildSnapshotManager(cfg config.Config, g *model.GNS) (*snapshot.Manager, error) {
	var uploader snapshot.Uploader
	if cfg.SnapS3Bucket != "" {
		mirror, err := snapshot.NewS3Mirror(snapshot.S3MirrorConfig{
			Endpoint:     cfg.SnapS3Endpoint,
			Bucket:       cfg.SnapS3Bucket,
			AccessKey:    cfg.SnapS3AccessKey,
			SecretKey:    cfg.SnapS3SecretKey,
			Region:       cfg.SnapS3Region,
			UsePathStyle: cfg.SnapS3UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		uploader = mirror
	}
	return snapshot.New(g, cfg.DataDir, cfg.SnapKeep, cfg.SnapFailsafe, uploader)
}
