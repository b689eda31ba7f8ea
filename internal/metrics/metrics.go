// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics wires the process's internal prometheus
// instrumentation. The teacher carries `github.com/prometheus/client_golang`
// as a direct dependency (`internal/metricdata/prometheus.go`), but only
// ever as a consumer querying an external Prometheus server; it never
// exposes its own /metrics endpoint. This package promotes the same
// dependency to the other side of that relationship — a private
// registry plus a tiny loopback-only HTTP endpoint — the idiomatic
// client_golang shape (promauto constructors, promhttp.Handler) rather
// than one mirrored off a specific teacher file, since none in the
// retrieval pack self-instruments.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/skytable-core/skyd/internal/fractal"
)

// Registry holds every metric skyd reports plus a poller goroutine
// that keeps the gauges in sync with the fractal coordinator.
type Registry struct {
	reg *prometheus.Registry

	QueriesTotal  *prometheus.CounterVec
	Connections   prometheus.Gauge
	DeltaBacklog  prometheus.Gauge
	DriverHealthy *prometheus.GaugeVec

	srv *http.Server
}

// New registers every metric on a fresh private registry (never the
// global default registry, so nothing outside this package can
// accidentally share or clobber it).
func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		QueriesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "skyd",
			Name:      "queries_total",
			Help:      "Total number of queries executed, by wire error code.",
		}, []string{"code"}),
		Connections: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "skyd",
			Name:      "connections",
			Help:      "Number of currently open client connections.",
		}),
		DeltaBacklog: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "skyd",
			Name:      "delta_backlog",
			Help:      "Total pending delta backlog across all registered models.",
		}),
		DriverHealthy: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "skyd",
			Name:      "driver_healthy",
			Help:      "1 if a storage driver (gns or a model's batch log) is healthy, 0 if iffy.",
		}, []string{"driver"}),
	}
	return m
}

// ObserveQuery increments the query counter for the given wire error
// code. code is passed as a string (rather than engine.ErrorCode) to
// keep this package free of an import cycle back into internal/engine.
func (m *Registry) ObserveQuery(code string) {
	m.QueriesTotal.WithLabelValues(code).Inc()
}

// PollFractal runs until ctx is canceled, periodically copying the
// coordinator's health map and backlog total into the gauges.
func (m *Registry) PollFractal(ctx context.Context, coord *fractal.Coordinator, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.DeltaBacklog.Set(float64(coord.TotalBacklog()))
			for driver, healthy := range coord.Health() {
				v := 0.0
				if healthy {
					v = 1.0
				}
				m.DriverHealthy.WithLabelValues(driver).Set(v)
			}
		}
	}
}

// Serve opens a loopback-only HTTP endpoint exposing the registry at
// /metrics, blocking until ctx is canceled. The metrics surface is
// internal, never part of the wire protocol, so binding to loopback
// only keeps this off the public network a skyd instance otherwise
// only exposes through internal/netsvc.
func (m *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	m.srv = &http.Server{Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- m.srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return m.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
