// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the ops
// service.
//
// Metrics cover the HTTP surface, state mutations (including version
// conflicts and idempotent replays), review decisions, billing leakage
// dollars, export outcomes, and autonomy cycles. They are exposed on
// /metrics for Prometheus + Grafana.
//
// All operations are thread-safe via Prometheus's internal locking.
// Every recording method is nil-safe so wiring metrics stays optional
// in tests.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "freightctl"
	opsSubsystem     = "ops"
)

// Metrics holds all Prometheus collectors for the ops service.
// Initialize once at startup via Init, or with NewMetrics and a private
// registry in tests.
type Metrics struct {
	// HTTPRequestsTotal counts HTTP requests.
	// Labels: method, path, status
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration measures HTTP request latency in seconds.
	// Labels: method, path
	HTTPRequestDuration *prometheus.HistogramVec

	// MutationsTotal counts state mutations by operation and outcome.
	// Labels: operation, status (ok, error)
	MutationsTotal *prometheus.CounterVec

	// VersionConflictsTotal counts mutations refused on a stale
	// expected_version.
	VersionConflictsTotal prometheus.Counter

	// IdempotentReplaysTotal counts mutations answered from the
	// idempotency cache.
	IdempotentReplaysTotal prometheus.Counter

	// IdempotencyConflictsTotal counts reused keys with a different
	// request body.
	IdempotencyConflictsTotal prometheus.Counter

	// ReviewsTotal counts ticket reviews by decision.
	// Labels: decision (auto_approved, flagged, resolved)
	ReviewsTotal *prometheus.CounterVec

	// LeakageUSD accumulates billing leakage dollars.
	// Labels: direction (detected, recovered)
	LeakageUSD *prometheus.CounterVec

	// ExportsTotal counts export attempts by final status.
	// Labels: status (acknowledged, failed)
	ExportsTotal *prometheus.CounterVec

	// CycleDurationSeconds measures autonomy cycle duration.
	CycleDurationSeconds prometheus.Histogram

	// CycleLoadsTotal counts per-load cycle outcomes.
	// Labels: action (assigned, reviewed, flagged, blocked, exported,
	// skipped, error)
	CycleLoadsTotal *prometheus.CounterVec
}

// Default is the process-wide metrics instance, set by Init.
var Default *Metrics

// Init registers all collectors with the default Prometheus registry
// and installs the result as Default. Call once at startup; a second
// call panics on duplicate registration.
func Init() *Metrics {
	Default = NewMetrics(prometheus.DefaultRegisterer)
	return Default
}

// NewMetrics registers all collectors with reg. Tests pass a fresh
// prometheus.NewRegistry to stay isolated from the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: opsSubsystem,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests by method, path, and status",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: opsSubsystem,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "path"},
		),

		MutationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: opsSubsystem,
				Name:      "mutations_total",
				Help:      "Total state mutations by operation and outcome",
			},
			[]string{"operation", "status"},
		),

		VersionConflictsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: opsSubsystem,
				Name:      "version_conflicts_total",
				Help:      "Mutations refused on a stale expected_version",
			},
		),

		IdempotentReplaysTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: opsSubsystem,
				Name:      "idempotent_replays_total",
				Help:      "Mutations answered from the idempotency cache",
			},
		),

		IdempotencyConflictsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: opsSubsystem,
				Name:      "idempotency_conflicts_total",
				Help:      "Idempotency keys reused with a different request",
			},
		),

		ReviewsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: opsSubsystem,
				Name:      "reviews_total",
				Help:      "Ticket reviews by decision",
			},
			[]string{"decision"},
		),

		LeakageUSD: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: opsSubsystem,
				Name:      "leakage_usd_total",
				Help:      "Billing leakage dollars by direction",
			},
			[]string{"direction"},
		),

		ExportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: opsSubsystem,
				Name:      "exports_total",
				Help:      "Export attempts by final status",
			},
			[]string{"status"},
		),

		CycleDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: opsSubsystem,
				Name:      "cycle_duration_seconds",
				Help:      "Autonomy cycle duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
		),

		CycleLoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: opsSubsystem,
				Name:      "cycle_loads_total",
				Help:      "Per-load autonomy cycle outcomes",
			},
			[]string{"action"},
		),
	}
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

// RecordMutation records a mutation outcome.
func (m *Metrics) RecordMutation(operation string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.MutationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordVersionConflict records a stale-writer rejection.
func (m *Metrics) RecordVersionConflict() {
	if m == nil {
		return
	}
	m.VersionConflictsTotal.Inc()
}

// RecordIdempotentReplay records a cache-served repeat.
func (m *Metrics) RecordIdempotentReplay() {
	if m == nil {
		return
	}
	m.IdempotentReplaysTotal.Inc()
}

// RecordIdempotencyConflict records a reused key with a different body.
func (m *Metrics) RecordIdempotencyConflict() {
	if m == nil {
		return
	}
	m.IdempotencyConflictsTotal.Inc()
}

// RecordReview records a ticket review decision.
func (m *Metrics) RecordReview(decision string) {
	if m == nil {
		return
	}
	m.ReviewsTotal.WithLabelValues(decision).Inc()
}

// RecordLeakage records billing leakage movement in dollars.
func (m *Metrics) RecordLeakage(detectedUSD, recoveredUSD float64) {
	if m == nil {
		return
	}
	if detectedUSD > 0 {
		m.LeakageUSD.WithLabelValues("detected").Add(detectedUSD)
	}
	if recoveredUSD > 0 {
		m.LeakageUSD.WithLabelValues("recovered").Add(recoveredUSD)
	}
}

// RecordExport records an export attempt's final status.
func (m *Metrics) RecordExport(status string) {
	if m == nil {
		return
	}
	m.ExportsTotal.WithLabelValues(status).Inc()
}

// RecordCycle records a finished autonomy cycle.
func (m *Metrics) RecordCycle(seconds float64, actions map[string]int) {
	if m == nil {
		return
	}
	m.CycleDurationSeconds.Observe(seconds)
	for action, count := range actions {
		if count > 0 {
			m.CycleLoadsTotal.WithLabelValues(action).Add(float64(count))
		}
	}
}
