// Copyright (c) 2024 The Skyd Authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveQueryIncrementsCounter(t *testing.T) {
	m := New()
	m.ObserveQuery("0")
	m.ObserveQuery("0")
	m.ObserveQuery("1")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.QueriesTotal.WithLabelValues("0")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueriesTotal.WithLabelValues("1")))
}

func TestConnectionsGauge(t *testing.T) {
	m := New()
	m.Connections.Set(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.Connections))
}

func TestDriverHealthyGauge(t *testing.T) {
	m := New()
	m.DriverHealthy.WithLabelValues("gns").Set(1)
	m.DriverHealthy.WithLabelValues("model-a").Set(0)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.DriverHealthy.WithLabelValues("gns")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.DriverHealthy.WithLabelValues("model-a")))
}
