// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaults verifies the built-in configuration is usable as-is.
func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8084", cfg.Server.Addr)
	assert.Equal(t, 0.85, cfg.Review.AutoApproveThreshold)
	assert.Equal(t, 0.10, cfg.Review.MilesVarianceTolerance)
	assert.Equal(t, 24*time.Hour, cfg.Store.IdempotencyRetention)
	assert.Equal(t, 30*time.Second, cfg.Autonomy.LeaseTTL)
	assert.Len(t, cfg.Review.RequiredDocuments, 3)
	assert.False(t, cfg.Autonomy.ExportEnabled)
}

// TestLoadOverrides verifies a YAML file overrides defaults while
// leaving unspecified fields intact.
func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opsd.yaml")
	content := `
server:
  addr: ":9090"
review:
  auto_approve_threshold: 0.9
autonomy:
  lease_ttl: 45s
  export_enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 0.9, cfg.Review.AutoApproveThreshold)
	assert.Equal(t, 45*time.Second, cfg.Autonomy.LeaseTTL)
	assert.True(t, cfg.Autonomy.ExportEnabled)
	// Untouched defaults survive.
	assert.Equal(t, 0.02, cfg.Review.RateTolerance)
	assert.Equal(t, 10*time.Second, cfg.Export.SubmitTimeout)
}

// TestLoadMissingFile verifies an explicit path must exist.
func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

// TestLoadEmptyPathUsesDefaults verifies no path means pure defaults.
func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

// TestValidateRejectsBadThreshold verifies threshold bounds.
func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg := Default()
	cfg.Review.AutoApproveThreshold = 1.5
	require.Error(t, cfg.Validate())
}
