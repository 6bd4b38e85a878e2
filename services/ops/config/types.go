// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config defines the opsd configuration file format and loader.
package config

import "time"

// Config is the full opsd configuration, loaded from YAML.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Review    ReviewConfig    `yaml:"review"`
	Billing   BillingConfig   `yaml:"billing"`
	Export    ExportConfig    `yaml:"export"`
	Autonomy  AutonomyConfig  `yaml:"autonomy"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig controls the embedded state store.
type StoreConfig struct {
	// Dir is the Badger data directory. Empty means in-memory.
	Dir string `yaml:"dir"`

	// IdempotencyRetention bounds how long idempotency records are
	// kept. Replays after this window are treated as new requests.
	IdempotencyRetention time.Duration `yaml:"idempotency_retention"`

	// GCInterval is how often value-log garbage collection runs.
	GCInterval time.Duration `yaml:"gc_interval"`
}

// ReviewConfig tunes the ticket review engine.
type ReviewConfig struct {
	// AutoApproveThreshold is the minimum confidence for an automatic
	// approval. At or above approves; below flags.
	AutoApproveThreshold float64 `yaml:"auto_approve_threshold"`

	// MilesVarianceTolerance is the allowed relative difference between
	// planned and GPS miles before the variance rule fails.
	MilesVarianceTolerance float64 `yaml:"miles_variance_tolerance"`

	// RateTolerance is the allowed relative difference between the load
	// rate and the rate on the ticket.
	RateTolerance float64 `yaml:"rate_tolerance"`

	// RequiredDocuments must all be present on a submission.
	RequiredDocuments []string `yaml:"required_documents"`
}

// BillingConfig tunes leakage estimation.
type BillingConfig struct {
	// MissingDocumentUSD is the flat estimate per missing document.
	MissingDocumentUSD float64 `yaml:"missing_document_usd"`

	// ZoneMismatchUSD is the flat estimate for a zone mismatch.
	ZoneMismatchUSD float64 `yaml:"zone_mismatch_usd"`

	// RateTolerance below which a rate difference is not a finding.
	RateTolerance float64 `yaml:"rate_tolerance"`

	// MilesTolerance below which a mileage difference is not a finding.
	MilesTolerance float64 `yaml:"miles_tolerance"`
}

// ExportConfig controls the legacy billing bridge.
type ExportConfig struct {
	// Dir is where the file bridge drops artifact payloads.
	Dir string `yaml:"dir"`

	// SubmitTimeout bounds one bridge submission.
	SubmitTimeout time.Duration `yaml:"submit_timeout"`
}

// AutonomyConfig controls the cycle coordinator.
type AutonomyConfig struct {
	// LeaseTTL bounds how long a cycle may hold a per-load lease.
	LeaseTTL time.Duration `yaml:"lease_ttl"`

	// ExportEnabled lets cycles submit billing_ready loads.
	ExportEnabled bool `yaml:"export_enabled"`

	// MaxLoadsPerCycle caps work per cycle. Zero means unlimited.
	MaxLoadsPerCycle int `yaml:"max_loads_per_cycle"`
}

// TelemetryConfig controls vehicle-event handling.
type TelemetryConfig struct {
	// Lookback is how far back the review engine searches for the
	// freshest miles reading.
	Lookback time.Duration `yaml:"lookback"`

	// Retention bounds how long events are kept.
	Retention time.Duration `yaml:"retention"`
}

// LoggingConfig mirrors pkg/logging.Config in YAML form.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// TracingConfig controls OpenTelemetry export. Tracing is off unless
// Endpoint is set.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}
