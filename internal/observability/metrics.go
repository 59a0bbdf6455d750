// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch outcomes reported by ObserveDispatch.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics contains custom Prometheus metrics for the runtime.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	DispatchTotal     *prometheus.CounterVec
	DispatchDuration  *prometheus.HistogramVec
	PluginTransitions *prometheus.CounterVec
}

// NewMetrics creates and registers the runtime metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plank_dispatch_total",
				Help: "Total number of action dispatches by protocol and status",
			},
			[]string{"protocol", "status"},
		),
		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plank_dispatch_duration_seconds",
				Help:    "Action dispatch latency by protocol",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"protocol"},
		),
		PluginTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plank_plugin_transitions_total",
				Help: "Total number of plugin state transitions by target state",
			},
			[]string{"state"},
		),
	}

	reg.MustRegister(m.DispatchTotal)
	reg.MustRegister(m.DispatchDuration)
	reg.MustRegister(m.PluginTransitions)

	return m
}

// ObserveDispatch records one dispatch over protocol that started at start.
func (m *Metrics) ObserveDispatch(protocol string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.DispatchTotal.WithLabelValues(protocol, status).Inc()
	m.DispatchDuration.WithLabelValues(protocol).Observe(time.Since(start).Seconds())
}

// RecordTransition counts a plugin entering state.
func (m *Metrics) RecordTransition(state string) {
	if m == nil {
		return
	}
	m.PluginTransitions.WithLabelValues(state).Inc()
}
