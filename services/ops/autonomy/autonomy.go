// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package autonomy runs the back-office cycle: it scans loads and takes
// the next safe step for each one — assignment for planned loads,
// re-evaluation of stale flagged tickets, billing recomputation, and
// (when enabled) export of billing_ready loads.
//
// Each load is processed under a time-bounded lease so overlapping
// cycles do not duplicate work; correctness still rests on the store's
// version checks, never on the lease. A failure on one load is recorded
// and the cycle moves on. Cycles are re-entrant: a step already done is
// skipped on the next pass.
package autonomy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/freightctl/freightctl/pkg/logging"
	"github.com/freightctl/freightctl/services/ops/assign"
	"github.com/freightctl/freightctl/services/ops/billing"
	"github.com/freightctl/freightctl/services/ops/config"
	"github.com/freightctl/freightctl/services/ops/datatypes"
	"github.com/freightctl/freightctl/services/ops/export"
	"github.com/freightctl/freightctl/services/ops/review"
	"github.com/freightctl/freightctl/services/ops/store"
)

// Actor is the timeline actor for all autonomous mutations.
const Actor = "autonomy"

// Coordinator drives autonomy cycles.
type Coordinator struct {
	store    *store.Store
	assigner *assign.Engine
	reviewer *review.Engine
	biller   *billing.Engine
	exporter *export.Engine
	cfg      config.AutonomyConfig
	logger   *logging.Logger
}

// New creates a Coordinator.
func New(s *store.Store, assigner *assign.Engine, reviewer *review.Engine, biller *billing.Engine, exporter *export.Engine, cfg config.AutonomyConfig, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Coordinator{
		store:    s,
		assigner: assigner,
		reviewer: reviewer,
		biller:   biller,
		exporter: exporter,
		cfg:      cfg,
		logger:   logger,
	}
}

// ExportByDefault reports whether cycles submit billing_ready loads
// when the caller does not say either way.
func (c *Coordinator) ExportByDefault() bool {
	return c.cfg.ExportEnabled
}

// RunCycle executes one cycle and persists its summary. exportEnabled
// lets this cycle submit billing_ready loads; maxLoads caps the scan
// (zero falls back to the configured cap, which may be unlimited).
func (c *Coordinator) RunCycle(ctx context.Context, exportEnabled bool, maxLoads int) (*datatypes.CycleSummary, error) {
	started := time.Now()

	loads, err := c.store.ListLoads("")
	if err != nil {
		return nil, err
	}
	if maxLoads <= 0 {
		maxLoads = c.cfg.MaxLoadsPerCycle
	}
	if maxLoads > 0 && len(loads) > maxLoads {
		loads = loads[:maxLoads]
	}

	owner := "cycle-" + uuid.NewString()
	summary := &datatypes.CycleSummary{StartedAt: started}

	for i := range loads {
		load := &loads[i]
		summary.Scanned++

		if _, err := c.store.AcquireLease(load.LoadID, owner, c.cfg.LeaseTTL); err != nil {
			// Another cycle is working this load.
			summary.Skipped++
			continue
		}
		c.step(ctx, load, exportEnabled, summary)
		if err := c.store.ReleaseLease(load.LoadID, owner); err != nil {
			c.logger.Warn("lease release failed", "load_id", load.LoadID, "error", err)
		}
	}

	summary.FinishedAt = time.Now()
	if err := c.persistSummary(ctx, summary); err != nil {
		return nil, err
	}

	c.logger.Info("autonomy cycle complete",
		"cycle_id", summary.CycleID,
		"scanned", summary.Scanned,
		"assigned", summary.Assigned,
		"reviewed", summary.Reviewed,
		"exported", summary.Exported,
		"flagged", summary.Flagged,
		"blocked", summary.Blocked,
		"errors", len(summary.Errors))
	return summary, nil
}

// step advances one leased load by one stage.
func (c *Coordinator) step(ctx context.Context, load *datatypes.Load, exportEnabled bool, summary *datatypes.CycleSummary) {
	switch load.Status {
	case datatypes.StatusPlanned:
		if _, err := c.assigner.Assign(ctx, Actor, "", load.LoadID, load.Version, "", "autonomous"); err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("%s: assignment failed: %v", load.LoadID, err))
			return
		}
		summary.Assigned++

	case datatypes.StatusAssigned, datatypes.StatusInTransit:
		c.stepReview(ctx, load, summary)

	case datatypes.StatusDelivered, datatypes.StatusBillingBlocked:
		record, err := c.recompute(ctx, load.LoadID)
		if err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("%s: billing recompute failed: %v", load.LoadID, err))
			return
		}
		if !record.Ready {
			summary.Blocked++
		}

	case datatypes.StatusBillingReady:
		if !exportEnabled {
			summary.Skipped++
			return
		}
		current, err := c.store.GetLoad(load.LoadID)
		if err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("%s: %v", load.LoadID, err))
			return
		}
		if _, err := c.exporter.Export(ctx, Actor, "", current.LoadID, current.Version); err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("%s: export failed: %v", load.LoadID, err))
			return
		}
		summary.Exported++

	case datatypes.StatusExported:
		// Terminal; nothing to do.
	}
}

// stepReview re-evaluates a stale flagged ticket. A ticket is stale
// when the load changed after the review was written — corrected rate,
// new zone, fresh telemetry may now clear it. Without a driver
// submission there is nothing to review; the engine never invents one.
func (c *Coordinator) stepReview(ctx context.Context, load *datatypes.Load, summary *datatypes.CycleSummary) {
	reviews, err := c.store.ListReviewsForLoad(load.LoadID)
	if err != nil {
		summary.Errors = append(summary.Errors,
			fmt.Sprintf("%s: %v", load.LoadID, err))
		return
	}
	if len(reviews) == 0 {
		summary.Skipped++
		return
	}

	latest := reviews[len(reviews)-1]
	if latest.Terminal() {
		summary.Skipped++
		return
	}
	if !load.UpdatedAt.After(latest.CreatedAt) {
		summary.Flagged++
		return
	}

	submission := latest.Submission
	result, err := c.reviewer.Submit(ctx, Actor, "", &datatypes.SubmitTicketRequest{
		LoadID:       submission.LoadID,
		DriverID:     submission.DriverID,
		Documents:    submission.Documents,
		GPSMiles:     submission.GPSMiles,
		DeliveryZone: submission.DeliveryZone,
		PODSigned:    submission.PODSigned,
		RateOnTicket: submission.RateOnTicket,
		SplitTicket:  submission.SplitTicket,
	})
	if err != nil {
		summary.Errors = append(summary.Errors,
			fmt.Sprintf("%s: re-review failed: %v", load.LoadID, err))
		return
	}
	summary.Reviewed++
	if result.Decision == datatypes.DecisionFlagged {
		summary.Flagged++
	}
}

func (c *Coordinator) recompute(ctx context.Context, loadID string) (*datatypes.BillingRecord, error) {
	var record datatypes.BillingRecord
	out, err := c.store.Mutate(ctx, store.Mutation{
		Operation: "autonomy_billing:" + loadID,
		Actor:     Actor,
		Request:   loadID,
		Apply: func(tx *store.Tx) (any, error) {
			load, err := tx.GetLoad(loadID)
			if err != nil {
				return nil, err
			}
			return c.biller.Recompute(tx, load)
		},
	})
	if err != nil {
		return nil, err
	}
	if err := out.Decode(&record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Coordinator) persistSummary(ctx context.Context, summary *datatypes.CycleSummary) error {
	_, err := c.store.Mutate(ctx, store.Mutation{
		Operation: "finish_cycle",
		Actor:     Actor,
		Request:   summary.StartedAt,
		Apply: func(tx *store.Tx) (any, error) {
			id, err := tx.NextCycleID()
			if err != nil {
				return nil, err
			}
			summary.CycleID = id
			if err := tx.PutCycleSummary(summary); err != nil {
				return nil, err
			}
			if _, err := tx.AppendEvent(datatypes.SystemEntityID,
				datatypes.EventAutonomyCycle, map[string]any{
					"cycle_id": id,
					"scanned":  summary.Scanned,
					"assigned": summary.Assigned,
					"reviewed": summary.Reviewed,
					"exported": summary.Exported,
					"errors":   len(summary.Errors),
				}); err != nil {
				return nil, err
			}
			return summary, nil
		},
	})
	return err
}

// LastSummary returns the most recent persisted cycle summary.
func (c *Coordinator) LastSummary() (*datatypes.CycleSummary, error) {
	return c.store.LastCycle()
}
