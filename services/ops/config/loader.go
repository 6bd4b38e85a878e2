// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the config file path when set.
const EnvConfigPath = "FREIGHTCTL_CONFIG"

// Default returns the built-in configuration. Every tunable has a
// working default so opsd runs with no config file at all.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8084",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Dir:                  "",
			IdempotencyRetention: 24 * time.Hour,
			GCInterval:           5 * time.Minute,
		},
		Review: ReviewConfig{
			AutoApproveThreshold:   0.85,
			MilesVarianceTolerance: 0.10,
			RateTolerance:          0.02,
			RequiredDocuments: []string{
				"rate_confirmation",
				"bill_of_lading",
				"proof_of_delivery",
			},
		},
		Billing: BillingConfig{
			MissingDocumentUSD: 150,
			ZoneMismatchUSD:    75,
			RateTolerance:      0.02,
			MilesTolerance:     0.10,
		},
		Export: ExportConfig{
			Dir:           "exports",
			SubmitTimeout: 10 * time.Second,
		},
		Autonomy: AutonomyConfig{
			LeaseTTL:         30 * time.Second,
			ExportEnabled:    false,
			MaxLoadsPerCycle: 0,
		},
		Telemetry: TelemetryConfig{
			Lookback:  72 * time.Hour,
			Retention: 30 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Tracing: TracingConfig{
			ServiceName: "opsd",
			SampleRatio: 1.0,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// falls back to $FREIGHTCTL_CONFIG; if neither is set, defaults are
// returned as-is. A missing file at an explicit path is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations that would misbehave silently.
func (c *Config) Validate() error {
	if c.Review.AutoApproveThreshold < 0 || c.Review.AutoApproveThreshold > 1 {
		return fmt.Errorf("review.auto_approve_threshold must be in [0,1], got %v",
			c.Review.AutoApproveThreshold)
	}
	if c.Review.MilesVarianceTolerance < 0 {
		return fmt.Errorf("review.miles_variance_tolerance must be >= 0")
	}
	if c.Review.RateTolerance < 0 {
		return fmt.Errorf("review.rate_tolerance must be >= 0")
	}
	if c.Autonomy.LeaseTTL <= 0 {
		return fmt.Errorf("autonomy.lease_ttl must be positive")
	}
	if c.Store.IdempotencyRetention <= 0 {
		return fmt.Errorf("store.idempotency_retention must be positive")
	}
	if c.Export.SubmitTimeout <= 0 {
		return fmt.Errorf("export.submit_timeout must be positive")
	}
	return nil
}
