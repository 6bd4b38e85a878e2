// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package billing

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightctl/freightctl/services/ops/config"
	"github.com/freightctl/freightctl/services/ops/datatypes"
	"github.com/freightctl/freightctl/services/ops/observability"
	"github.com/freightctl/freightctl/services/ops/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := config.Default()
	engine := NewEngine(cfg.Billing, cfg.Review.RequiredDocuments, nil, nil)
	return engine, s
}

func seedDeliveredLoad(t *testing.T, s *store.Store, approved *datatypes.TicketSubmission) *datatypes.Load {
	t.Helper()
	var load datatypes.Load
	out, err := s.Mutate(context.Background(), store.Mutation{
		Operation: "seed",
		Actor:     "test",
		Apply: func(tx *store.Tx) (any, error) {
			l := &datatypes.Load{
				LoadID:       "LOAD00001",
				Customer:     "Acme Produce",
				PlannedMiles: 300,
				RateTotal:    1500,
				Zone:         "FL-South",
				Status:       datatypes.StatusDelivered,
				CreatedAt:    tx.Now(),
				UpdatedAt:    tx.Now(),
			}
			if err := tx.InsertLoad(l); err != nil {
				return nil, err
			}
			if approved != nil {
				review := &datatypes.TicketReview{
					ReviewID:   "REV-000001",
					LoadID:     l.LoadID,
					Submission: *approved,
					Decision:   datatypes.DecisionAutoApproved,
					Confidence: 0.95,
					CreatedAt:  tx.Now(),
				}
				if err := tx.PutReview(review); err != nil {
					return nil, err
				}
			}
			return l, nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, out.Decode(&load))
	return &load
}

func recompute(t *testing.T, engine *Engine, s *store.Store, loadID string) (*datatypes.BillingRecord, *datatypes.Load) {
	t.Helper()
	var record *datatypes.BillingRecord
	var load *datatypes.Load
	_, err := s.Mutate(context.Background(), store.Mutation{
		Operation: "billing_recompute",
		Actor:     "system",
		Apply: func(tx *store.Tx) (any, error) {
			l, err := tx.GetLoad(loadID)
			if err != nil {
				return nil, err
			}
			rec, err := engine.Recompute(tx, l)
			if err != nil {
				return nil, err
			}
			record, load = rec, l
			return rec, nil
		},
	})
	require.NoError(t, err)
	return record, load
}

func cleanSubmission() *datatypes.TicketSubmission {
	return &datatypes.TicketSubmission{
		LoadID:       "LOAD00001",
		Documents:    []string{"rate_confirmation", "bill_of_lading", "proof_of_delivery"},
		GPSMiles:     305,
		DeliveryZone: "FL-South",
		PODSigned:    true,
		RateOnTicket: 1500,
	}
}

// TestReadyWithCleanSubmission verifies zero findings plus an approved
// review yields billing_ready.
func TestReadyWithCleanSubmission(t *testing.T) {
	engine, s := newTestEngine(t)
	seedDeliveredLoad(t, s, cleanSubmission())

	record, load := recompute(t, engine, s, "LOAD00001")

	assert.True(t, record.Ready)
	assert.Empty(t, record.Findings)
	assert.Equal(t, 0.0, record.TotalUSD)
	assert.Equal(t, datatypes.StatusBillingReady, load.Status)
}

// TestBlockedWithoutApprovedReview verifies a delivered load with no
// approval is blocked with a named reason.
func TestBlockedWithoutApprovedReview(t *testing.T) {
	engine, s := newTestEngine(t)
	seedDeliveredLoad(t, s, nil)

	record, load := recompute(t, engine, s, "LOAD00001")

	assert.False(t, record.Ready)
	assert.Contains(t, record.Reasons, "no approved ticket review")
	assert.Equal(t, datatypes.StatusBillingBlocked, load.Status)
}

// TestMissingDocumentFinding verifies the flat estimate per missing
// document.
func TestMissingDocumentFinding(t *testing.T) {
	engine, s := newTestEngine(t)
	submission := cleanSubmission()
	submission.Documents = []string{"rate_confirmation"}
	seedDeliveredLoad(t, s, submission)

	record, _ := recompute(t, engine, s, "LOAD00001")

	require.Len(t, record.Findings, 2)
	for _, finding := range record.Findings {
		assert.Equal(t, datatypes.LeakageMissingDocument, finding.Kind)
		assert.Equal(t, 150.0, finding.EstimatedUSD)
	}
	assert.Equal(t, 300.0, record.TotalUSD)
	assert.False(t, record.Ready)
}

// TestRateAndZoneFindings verifies mismatch findings carry the
// estimated dollar impact.
func TestRateAndZoneFindings(t *testing.T) {
	engine, s := newTestEngine(t)
	submission := cleanSubmission()
	submission.RateOnTicket = 1400 // ~6.7% off, above the 2% tolerance
	submission.DeliveryZone = "GA-Coastal"
	seedDeliveredLoad(t, s, submission)

	record, _ := recompute(t, engine, s, "LOAD00001")

	require.Len(t, record.Findings, 2)
	kinds := map[datatypes.LeakageKind]float64{}
	for _, finding := range record.Findings {
		kinds[finding.Kind] = finding.EstimatedUSD
	}
	assert.Equal(t, 100.0, kinds[datatypes.LeakageRateMismatch])
	assert.Equal(t, 75.0, kinds[datatypes.LeakageZoneMismatch])
}

// TestMileageFindingUsesRatePerMile verifies the mileage estimate is
// the mile difference priced at the load's rate per mile.
func TestMileageFindingUsesRatePerMile(t *testing.T) {
	engine, s := newTestEngine(t)
	submission := cleanSubmission()
	submission.GPSMiles = 360 // 20% over planned 300
	seedDeliveredLoad(t, s, submission)

	record, _ := recompute(t, engine, s, "LOAD00001")

	require.Len(t, record.Findings, 1)
	finding := record.Findings[0]
	assert.Equal(t, datatypes.LeakageMileageMismatch, finding.Kind)
	// 60 miles at $5/mile.
	assert.Equal(t, 300.0, finding.EstimatedUSD)
}

// TestRecomputeSupersedes verifies a fix flips the load to ready, the
// computation number advances, and cleared leakage counts as recovered.
func TestRecomputeSupersedes(t *testing.T) {
	engine, s := newTestEngine(t)
	submission := cleanSubmission()
	submission.DeliveryZone = "GA-Coastal"
	load := seedDeliveredLoad(t, s, submission)

	first, _ := recompute(t, engine, s, load.LoadID)
	assert.False(t, first.Ready)
	assert.Equal(t, 1, first.Computed)

	// Ops corrects the load zone to match the ticket.
	_, err := s.Mutate(context.Background(), store.Mutation{
		Operation: "update_load",
		Actor:     "ui",
		Apply: func(tx *store.Tx) (any, error) {
			l, err := tx.GetLoad(load.LoadID)
			if err != nil {
				return nil, err
			}
			l.Zone = "GA-Coastal"
			return l, tx.PutLoad(l)
		},
	})
	require.NoError(t, err)

	second, updated := recompute(t, engine, s, load.LoadID)
	assert.True(t, second.Ready)
	assert.Equal(t, 2, second.Computed)
	assert.Equal(t, datatypes.StatusBillingReady, updated.Status)

	totals, err := s.LeakageTotals()
	require.NoError(t, err)
	assert.Equal(t, 75.0, totals.DetectedUSD)
	assert.Equal(t, 75.0, totals.RecoveredUSD)
}

// TestLeakageDollarsReachCounters verifies leakage movement shows up on
// the dollar counters in both directions.
func TestLeakageDollarsReachCounters(t *testing.T) {
	s, err := store.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	cfg := config.Default()
	engine := NewEngine(cfg.Billing, cfg.Review.RequiredDocuments, metrics, nil)

	submission := cleanSubmission()
	submission.DeliveryZone = "GA-Coastal"
	load := seedDeliveredLoad(t, s, submission)

	recompute(t, engine, s, load.LoadID)
	assert.Equal(t, 75.0,
		testutil.ToFloat64(metrics.LeakageUSD.WithLabelValues("detected")))
	assert.Zero(t,
		testutil.ToFloat64(metrics.LeakageUSD.WithLabelValues("recovered")))

	// Ops corrects the load zone; the cleared finding counts as
	// recovered.
	_, err = s.Mutate(context.Background(), store.Mutation{
		Operation: "update_load",
		Actor:     "ui",
		Apply: func(tx *store.Tx) (any, error) {
			l, err := tx.GetLoad(load.LoadID)
			if err != nil {
				return nil, err
			}
			l.Zone = "GA-Coastal"
			return l, tx.PutLoad(l)
		},
	})
	require.NoError(t, err)

	recompute(t, engine, s, load.LoadID)
	assert.Equal(t, 75.0,
		testutil.ToFloat64(metrics.LeakageUSD.WithLabelValues("recovered")))
}

// TestPreDeliveryLoadKeepsStatus verifies recompute never moves a load
// that has not reached the billing phase.
func TestPreDeliveryLoadKeepsStatus(t *testing.T) {
	engine, s := newTestEngine(t)

	_, err := s.Mutate(context.Background(), store.Mutation{
		Operation: "seed",
		Actor:     "test",
		Apply: func(tx *store.Tx) (any, error) {
			l := &datatypes.Load{
				LoadID:       "LOAD00002",
				PlannedMiles: 100,
				RateTotal:    500,
				Status:       datatypes.StatusInTransit,
				CreatedAt:    tx.Now(),
				UpdatedAt:    tx.Now(),
			}
			return l, tx.InsertLoad(l)
		},
	})
	require.NoError(t, err)

	record, load := recompute(t, engine, s, "LOAD00002")
	assert.False(t, record.Ready)
	assert.Equal(t, datatypes.StatusInTransit, load.Status)
}
