// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightctl/freightctl/services/ops/assign"
	"github.com/freightctl/freightctl/services/ops/billing"
	"github.com/freightctl/freightctl/services/ops/config"
	"github.com/freightctl/freightctl/services/ops/registry"
	"github.com/freightctl/freightctl/services/ops/review"
	"github.com/freightctl/freightctl/services/ops/store"
)

func runScenario(t *testing.T, opts Options) (*Result, *store.Store) {
	t.Helper()
	s, err := store.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := config.Default()
	biller := billing.NewEngine(cfg.Billing, cfg.Review.RequiredDocuments, nil, nil)
	reg := registry.New(s, biller, nil)
	assigner := assign.NewEngine(s, nil)
	reviewer := review.NewEngine(s, biller, cfg.Review, cfg.Telemetry.Lookback, nil)

	result, err := Run(context.Background(), reg, assigner, reviewer, opts, nil)
	require.NoError(t, err)
	return result, s
}

// TestSeedIsDeterministic verifies equal seeds produce equal
// scenarios.
func TestSeedIsDeterministic(t *testing.T) {
	opts := Options{Seed: 42, Loads: 12, ExceptionRatio: 0.25}

	first, firstStore := runScenario(t, opts)
	second, secondStore := runScenario(t, opts)

	assert.Equal(t, first, second)

	firstLoads, err := firstStore.ListLoads("")
	require.NoError(t, err)
	secondLoads, err := secondStore.ListLoads("")
	require.NoError(t, err)
	require.Len(t, secondLoads, len(firstLoads))
	for i := range firstLoads {
		assert.Equal(t, firstLoads[i].Customer, secondLoads[i].Customer)
		assert.Equal(t, firstLoads[i].PlannedMiles, secondLoads[i].PlannedMiles)
		assert.Equal(t, firstLoads[i].RateTotal, secondLoads[i].RateTotal)
		assert.Equal(t, firstLoads[i].Status, secondLoads[i].Status)
	}
}

// TestSeedCleanScenarioApprovesEverything verifies a zero exception
// ratio leaves no flagged reviews.
func TestSeedCleanScenarioApprovesEverything(t *testing.T) {
	result, s := runScenario(t, Options{Seed: 7, Loads: 8, ExceptionRatio: 0})

	assert.Equal(t, 8, result.Loads)
	assert.Equal(t, 8, result.Assigned)
	assert.Equal(t, 8, result.Approved)
	assert.Zero(t, result.Flagged)

	// Approvals release drivers, so the pool never exhausts.
	drivers, err := s.ListDrivers()
	require.NoError(t, err)
	for _, driver := range drivers {
		assert.Empty(t, driver.CurrentLoadID)
	}
}

// TestSeedExceptionsFlagTickets verifies a full exception ratio flags
// every submitted ticket.
func TestSeedExceptionsFlagTickets(t *testing.T) {
	result, _ := runScenario(t, Options{Seed: 7, Loads: 4, ExceptionRatio: 1})

	// Four drivers, every ticket flagged, so every driver stays tied
	// to its load.
	assert.Equal(t, 4, result.Assigned)
	assert.Equal(t, 4, result.Flagged)
	assert.Zero(t, result.Approved)
}

// TestSeedRejectsNonPositiveLoads verifies input validation.
func TestSeedRejectsNonPositiveLoads(t *testing.T) {
	s, err := store.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := config.Default()
	biller := billing.NewEngine(cfg.Billing, cfg.Review.RequiredDocuments, nil, nil)
	reg := registry.New(s, biller, nil)

	_, err = Run(context.Background(), reg, assign.NewEngine(s, nil),
		review.NewEngine(s, biller, cfg.Review, cfg.Telemetry.Lookback, nil),
		Options{Seed: 1, Loads: 0}, nil)
	assert.Error(t, err)
}
