// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightctl/freightctl/services/ops/datatypes"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createLoad(t *testing.T, s *Store, idemKey string) *datatypes.Load {
	t.Helper()
	var created datatypes.Load
	out, err := s.Mutate(context.Background(), Mutation{
		Operation:      "create_load",
		Actor:          "ui",
		IdempotencyKey: idemKey,
		Request:        map[string]string{"customer": "Acme Produce"},
		Apply: func(tx *Tx) (any, error) {
			id, err := tx.NextLoadID()
			if err != nil {
				return nil, err
			}
			load := &datatypes.Load{
				LoadID:           id,
				Customer:         "Acme Produce",
				PickupLocation:   "Tampa, FL",
				DeliveryLocation: "Miami, FL",
				EquipmentType:    "reefer",
				PlannedMiles:     280,
				RateTotal:        1200,
				Priority:         "normal",
				Source:           "manual",
				Status:           datatypes.StatusPlanned,
				Version:          0,
				CreatedAt:        tx.Now(),
				UpdatedAt:        tx.Now(),
			}
			if err := tx.InsertLoad(load); err != nil {
				return nil, err
			}
			if _, err := tx.AppendEvent(id, datatypes.EventLoadCreated, nil); err != nil {
				return nil, err
			}
			return load, nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, out.Decode(&created))
	return &created
}

// TestCreateLoadStartsAtVersionZero verifies a fresh load carries
// version 0 and a first timeline event.
func TestCreateLoadStartsAtVersionZero(t *testing.T) {
	s := newTestStore(t)
	load := createLoad(t, s, "")

	assert.Equal(t, "LOAD00001", load.LoadID)
	assert.Equal(t, int64(0), load.Version)

	events, err := s.Timeline(load.LoadID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, datatypes.EventLoadCreated, events[0].Kind)
	assert.Equal(t, uint64(1), events[0].Seq)
	assert.NotEmpty(t, events[0].EventID)
	assert.Equal(t, "ui", events[0].Actor)
}

// TestTimelineSeqIsPerEntity verifies each entity's timeline numbers
// from 1 independently and event ids never collide.
func TestTimelineSeqIsPerEntity(t *testing.T) {
	s := newTestStore(t)
	first := createLoad(t, s, "")
	second := createLoad(t, s, "")

	firstEvents, err := s.Timeline(first.LoadID)
	require.NoError(t, err)
	secondEvents, err := s.Timeline(second.LoadID)
	require.NoError(t, err)

	require.Len(t, firstEvents, 1)
	require.Len(t, secondEvents, 1)
	assert.Equal(t, uint64(1), firstEvents[0].Seq)
	assert.Equal(t, uint64(1), secondEvents[0].Seq)
	assert.NotEqual(t, firstEvents[0].EventID, secondEvents[0].EventID)
}

type countingReplayObserver struct {
	replays int
}

func (o *countingReplayObserver) RecordIdempotentReplay() { o.replays++ }

// TestReplayObserverCountsCacheHits verifies a cache-served repeat is
// reported to the configured observer and a fresh mutation is not.
func TestReplayObserverCountsCacheHits(t *testing.T) {
	observer := &countingReplayObserver{}
	s, err := New(Config{DB: InMemoryDBConfig(), Replays: observer})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	createLoad(t, s, "create-1")
	assert.Zero(t, observer.replays)

	createLoad(t, s, "create-1")
	assert.Equal(t, 1, observer.replays)
}

// TestVersionCheckRejectsStaleWriter verifies GetLoadForUpdate enforces
// the expected version.
func TestVersionCheckRejectsStaleWriter(t *testing.T) {
	s := newTestStore(t)
	load := createLoad(t, s, "")

	// First writer succeeds with the current version.
	_, err := s.Mutate(context.Background(), Mutation{
		Operation: "update_load",
		Actor:     "ui",
		Apply: func(tx *Tx) (any, error) {
			l, err := tx.GetLoadForUpdate(load.LoadID, 0)
			if err != nil {
				return nil, err
			}
			l.Notes = "first writer"
			return l, tx.PutLoad(l)
		},
	})
	require.NoError(t, err)

	// Second writer still expects version 0.
	_, err = s.Mutate(context.Background(), Mutation{
		Operation: "update_load",
		Actor:     "ui",
		Apply: func(tx *Tx) (any, error) {
			l, err := tx.GetLoadForUpdate(load.LoadID, 0)
			if err != nil {
				return nil, err
			}
			return l, tx.PutLoad(l)
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVersionConflict)

	var conflict *VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(0), conflict.Expected)
	assert.Equal(t, int64(1), conflict.Actual)

	stored, err := s.GetLoad(load.LoadID)
	require.NoError(t, err)
	assert.Equal(t, "first writer", stored.Notes)
	assert.Equal(t, int64(1), stored.Version)
}

// TestIdempotentReplayReturnsCachedResponse verifies a repeated key
// with an identical request does not re-execute the mutation.
func TestIdempotentReplayReturnsCachedResponse(t *testing.T) {
	s := newTestStore(t)

	first := createLoad(t, s, "create-1")
	second := createLoad(t, s, "create-1")

	assert.Equal(t, first.LoadID, second.LoadID)

	loads, err := s.ListLoads("")
	require.NoError(t, err)
	assert.Len(t, loads, 1, "replay must not create a second load")
}

// TestIdempotencyKeyConflict verifies a reused key with a different
// request body is rejected.
func TestIdempotencyKeyConflict(t *testing.T) {
	s := newTestStore(t)
	createLoad(t, s, "shared-key")

	_, err := s.Mutate(context.Background(), Mutation{
		Operation:      "create_load",
		Actor:          "ui",
		IdempotencyKey: "shared-key",
		Request:        map[string]string{"customer": "Different Shipper"},
		Apply: func(tx *Tx) (any, error) {
			return nil, nil
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIdempotencyKeyConflict)
}

// TestConcurrentWritersExactlyOneWinsPerRound verifies racing mutations
// never both apply against the same version: with retry-on-conflict,
// every accepted write bumps the version exactly once.
func TestConcurrentWritersExactlyOneWinsPerRound(t *testing.T) {
	s := newTestStore(t)
	load := createLoad(t, s, "")

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, err := s.Mutate(context.Background(), Mutation{
					Operation: "touch_load",
					Actor:     "ui",
					Apply: func(tx *Tx) (any, error) {
						l, err := tx.GetLoad(load.LoadID)
						if err != nil {
							return nil, err
						}
						return l, tx.PutLoad(l)
					},
				})
				if err == nil {
					return
				}
				if !errors.Is(err, ErrVersionConflict) {
					t.Errorf("unexpected error: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	stored, err := s.GetLoad(load.LoadID)
	require.NoError(t, err)
	assert.Equal(t, int64(writers), stored.Version)
}

// TestTimelineOrdering verifies per-entity sequence numbers follow
// mutation acceptance order.
func TestTimelineOrdering(t *testing.T) {
	s := newTestStore(t)
	load := createLoad(t, s, "")

	kinds := []string{
		datatypes.EventLoadAssigned,
		datatypes.EventLoadStatus,
		datatypes.EventTicketReviewed,
	}
	for _, kind := range kinds {
		_, err := s.Mutate(context.Background(), Mutation{
			Operation: "append",
			Actor:     "autonomy",
			Apply: func(tx *Tx) (any, error) {
				return tx.AppendEvent(load.LoadID, kind, map[string]any{"k": kind})
			},
		})
		require.NoError(t, err)
	}

	events, err := s.Timeline(load.LoadID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	for i, event := range events {
		assert.Equal(t, uint64(i+1), event.Seq)
	}
	assert.Equal(t, datatypes.EventLoadCreated, events[0].Kind)
	assert.Equal(t, datatypes.EventTicketReviewed, events[3].Kind)
}

// TestSequenceFormats verifies issued ids follow the house formats.
func TestSequenceFormats(t *testing.T) {
	s := newTestStore(t)

	var ids struct {
		Review string `json:"review"`
		Export string `json:"export"`
		Cycle  string `json:"cycle"`
	}
	out, err := s.Mutate(context.Background(), Mutation{
		Operation: "issue_ids",
		Actor:     "test",
		Apply: func(tx *Tx) (any, error) {
			review, err := tx.NextReviewID()
			if err != nil {
				return nil, err
			}
			export, err := tx.NextExportID()
			if err != nil {
				return nil, err
			}
			cycle, err := tx.NextCycleID()
			if err != nil {
				return nil, err
			}
			return map[string]string{
				"review": review, "export": export, "cycle": cycle,
			}, nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, out.Decode(&ids))

	assert.Equal(t, "REV-000001", ids.Review)
	assert.Equal(t, "EXP-000001", ids.Export)
	assert.Equal(t, "CYC-000001", ids.Cycle)
}

// TestLeaseLifecycle verifies acquisition, contention, expiry
// reclamation, and release.
func TestLeaseLifecycle(t *testing.T) {
	s := newTestStore(t)

	base := time.Now()
	s.SetClock(func() time.Time { return base })

	_, err := s.AcquireLease("LOAD00001", "cycle-a", 30*time.Second)
	require.NoError(t, err)

	// Another owner is refused while the lease is live.
	_, err = s.AcquireLease("LOAD00001", "cycle-b", 30*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLeaseHeld)

	// The holder can extend.
	_, err = s.AcquireLease("LOAD00001", "cycle-a", 30*time.Second)
	require.NoError(t, err)

	// After expiry anyone can reclaim.
	s.SetClock(func() time.Time { return base.Add(31 * time.Second) })
	lease, err := s.AcquireLease("LOAD00001", "cycle-b", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "cycle-b", lease.Owner)

	// Release by a non-holder is a no-op.
	require.NoError(t, s.ReleaseLease("LOAD00001", "cycle-a"))
	current, err := s.GetLease("LOAD00001")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "cycle-b", current.Owner)

	require.NoError(t, s.ReleaseLease("LOAD00001", "cycle-b"))
	current, err = s.GetLease("LOAD00001")
	require.NoError(t, err)
	assert.Nil(t, current)
}

// TestTelemetryDedupe verifies events with a repeated event key are
// stored once.
func TestTelemetryDedupe(t *testing.T) {
	s := newTestStore(t)

	events := []datatypes.TelemetryEvent{
		{EventKey: "evt-1", LoadID: "LOAD00001", MilesDriven: 120, RecordedAt: time.Now()},
		{EventKey: "evt-1", LoadID: "LOAD00001", MilesDriven: 999, RecordedAt: time.Now()},
		{EventKey: "evt-2", LoadID: "LOAD00001", MilesDriven: 250, RecordedAt: time.Now()},
	}

	var stored int
	_, err := s.Mutate(context.Background(), Mutation{
		Operation: "ingest_telemetry",
		Actor:     "samsara",
		Apply: func(tx *Tx) (any, error) {
			n, err := tx.PutTelemetry(events, time.Hour)
			stored = n
			return n, err
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stored)

	listed, err := s.ListTelemetry("LOAD00001")
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

// TestLatestMilesHonorsLookback verifies stale readings are ignored.
func TestLatestMilesHonorsLookback(t *testing.T) {
	s := newTestStore(t)

	now := time.Now()
	events := []datatypes.TelemetryEvent{
		{EventKey: "old", LoadID: "LOAD00001", MilesDriven: 100, RecordedAt: now.Add(-100 * time.Hour)},
		{EventKey: "fresh", LoadID: "LOAD00001", MilesDriven: 287, RecordedAt: now.Add(-time.Hour)},
	}
	_, err := s.Mutate(context.Background(), Mutation{
		Operation: "ingest_telemetry",
		Actor:     "samsara",
		Apply: func(tx *Tx) (any, error) {
			return tx.PutTelemetry(events, 200*time.Hour)
		},
	})
	require.NoError(t, err)

	miles, ok, err := s.LatestMiles("LOAD00001", 72*time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 287.0, miles)

	// A window that excludes everything finds nothing.
	_, ok, err = s.LatestMiles("LOAD00001", 30*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestLeakageTotalsAccumulate verifies the aggregate counters.
func TestLeakageTotalsAccumulate(t *testing.T) {
	s := newTestStore(t)

	for _, amounts := range [][2]float64{{150, 0}, {75, 0}, {0, 225}} {
		_, err := s.Mutate(context.Background(), Mutation{
			Operation: "billing_recompute",
			Actor:     "system",
			Apply: func(tx *Tx) (any, error) {
				return nil, tx.AddLeakage(amounts[0], amounts[1])
			},
		})
		require.NoError(t, err)
	}

	totals, err := s.LeakageTotals()
	require.NoError(t, err)
	assert.Equal(t, 225.0, totals.DetectedUSD)
	assert.Equal(t, 225.0, totals.RecoveredUSD)
}

// TestNotFound verifies the typed not-found errors.
func TestNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetLoad("LOAD99999")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetDriver("DRV-999")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetExport("EXP-999999")
	assert.ErrorIs(t, err, ErrNotFound)
}
