// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package registry owns the load and driver records: creation, field
// updates, the status machine, the driver pool, and the dispatch board.
// Every mutation goes through the store's single write path, so version
// checks, idempotency, and timeline appends come for free.
package registry

import (
	"context"

	"github.com/freightctl/freightctl/pkg/logging"
	"github.com/freightctl/freightctl/services/ops/billing"
	"github.com/freightctl/freightctl/services/ops/datatypes"
	"github.com/freightctl/freightctl/services/ops/store"
)

// Registry is the load/driver engine.
type Registry struct {
	store   *store.Store
	billing *billing.Engine
	logger  *logging.Logger
}

// New creates a Registry. The billing engine is invoked whenever a
// change can affect billing readiness (billable field updates, arrival
// at delivered).
func New(s *store.Store, billingEngine *billing.Engine, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Default()
	}
	return &Registry{store: s, billing: billingEngine, logger: logger}
}

// Store exposes the underlying store for read-side queries.
func (r *Registry) Store() *store.Store { return r.store }

// CreateLoad registers a new load in status planned, version 0.
func (r *Registry) CreateLoad(ctx context.Context, actor, idemKey string, req *datatypes.CreateLoadRequest) (*datatypes.Load, error) {
	priority := req.Priority
	if priority == "" {
		priority = "normal"
	}
	source := req.Source
	if source == "" {
		source = "manual"
	}

	out, err := r.store.Mutate(ctx, store.Mutation{
		Operation:      "create_load",
		Actor:          actor,
		IdempotencyKey: idemKey,
		Request:        req,
		Apply: func(tx *store.Tx) (any, error) {
			id, err := tx.NextLoadID()
			if err != nil {
				return nil, err
			}
			load := &datatypes.Load{
				LoadID:           id,
				Customer:         req.Customer,
				Broker:           req.Broker,
				PickupLocation:   req.PickupLocation,
				DeliveryLocation: req.DeliveryLocation,
				PickupTime:       req.PickupTime,
				DeliveryTime:     req.DeliveryTime,
				EquipmentType:    req.EquipmentType,
				PlannedMiles:     req.PlannedMiles,
				RateTotal:        req.RateTotal,
				Zone:             req.Zone,
				Priority:         priority,
				Notes:            req.Notes,
				Source:           source,
				Status:           datatypes.StatusPlanned,
				Version:          0,
				CreatedAt:        tx.Now(),
				UpdatedAt:        tx.Now(),
			}
			if err := tx.InsertLoad(load); err != nil {
				return nil, err
			}
			if _, err := tx.AppendEvent(id, datatypes.EventLoadCreated, map[string]any{
				"customer": load.Customer,
				"source":   load.Source,
			}); err != nil {
				return nil, err
			}
			return load, nil
		},
	})
	if err != nil {
		return nil, err
	}
	var load datatypes.Load
	if err := out.Decode(&load); err != nil {
		return nil, err
	}
	r.logger.Info("load created", "load_id", load.LoadID, "actor", actor,
		"replayed", out.Replayed)
	return &load, nil
}

// UpdateLoad patches mutable fields under the optimistic version check.
// Changes to billable fields (miles, rate, zone) trigger a billing
// recompute when the load already has billing state.
func (r *Registry) UpdateLoad(ctx context.Context, actor, idemKey, loadID string, req *datatypes.UpdateLoadRequest) (*datatypes.Load, error) {
	out, err := r.store.Mutate(ctx, store.Mutation{
		Operation:      "update_load:" + loadID,
		Actor:          actor,
		IdempotencyKey: idemKey,
		Request:        req,
		Apply: func(tx *store.Tx) (any, error) {
			load, err := tx.GetLoadForUpdate(loadID, *req.ExpectedVersion)
			if err != nil {
				return nil, err
			}
			if load.Status == datatypes.StatusExported {
				return nil, &store.ValidationError{Field: "status",
					Detail: "exported loads are immutable; use reopen"}
			}

			billable := applyPatch(load, req)
			if err := tx.PutLoad(load); err != nil {
				return nil, err
			}
			if _, err := tx.AppendEvent(loadID, datatypes.EventLoadUpdated, map[string]any{
				"billable_change": billable,
			}); err != nil {
				return nil, err
			}

			if billable && inBillingPhase(load.Status) {
				if _, err := r.billing.Recompute(tx, load); err != nil {
					return nil, err
				}
			}
			return load, nil
		},
	})
	if err != nil {
		return nil, err
	}
	var load datatypes.Load
	if err := out.Decode(&load); err != nil {
		return nil, err
	}
	return &load, nil
}

// Transition moves a load along a manually-allowed edge. Arrival at
// delivered triggers the first billing computation.
func (r *Registry) Transition(ctx context.Context, actor, idemKey, loadID string, req *datatypes.TransitionRequest) (*datatypes.Load, error) {
	if !req.Target.Valid() {
		return nil, &store.ValidationError{Field: "target",
			Detail: "unknown status " + string(req.Target)}
	}

	out, err := r.store.Mutate(ctx, store.Mutation{
		Operation:      "transition_load:" + loadID,
		Actor:          actor,
		IdempotencyKey: idemKey,
		Request:        req,
		Apply: func(tx *store.Tx) (any, error) {
			load, err := tx.GetLoadForUpdate(loadID, *req.ExpectedVersion)
			if err != nil {
				return nil, err
			}
			if !ManualTransitionAllowed(load.Status, req.Target) {
				return nil, &store.TransitionError{
					LoadID: loadID,
					From:   string(load.Status),
					To:     string(req.Target),
				}
			}

			from := load.Status
			load.Status = req.Target
			if err := tx.PutLoad(load); err != nil {
				return nil, err
			}
			if _, err := tx.AppendEvent(loadID, datatypes.EventLoadStatus, map[string]any{
				"from":   string(from),
				"to":     string(req.Target),
				"reason": req.Reason,
			}); err != nil {
				return nil, err
			}

			if req.Target == datatypes.StatusDelivered {
				if err := ReleaseDriver(tx, load); err != nil {
					return nil, err
				}
				if _, err := r.billing.Recompute(tx, load); err != nil {
					return nil, err
				}
			}
			return load, nil
		},
	})
	if err != nil {
		return nil, err
	}
	var load datatypes.Load
	if err := out.Decode(&load); err != nil {
		return nil, err
	}
	return &load, nil
}

// Reopen reverts an exported load to billing_ready for administrative
// correction. The export ledger is untouched.
func (r *Registry) Reopen(ctx context.Context, actor, idemKey, loadID string, req *datatypes.ReopenRequest) (*datatypes.Load, error) {
	out, err := r.store.Mutate(ctx, store.Mutation{
		Operation:      "reopen_load:" + loadID,
		Actor:          actor,
		IdempotencyKey: idemKey,
		Request:        req,
		Apply: func(tx *store.Tx) (any, error) {
			load, err := tx.GetLoadForUpdate(loadID, *req.ExpectedVersion)
			if err != nil {
				return nil, err
			}
			if load.Status != datatypes.StatusExported {
				return nil, &store.ValidationError{Field: "status",
					Detail: "only exported loads can be reopened"}
			}
			load.Status = datatypes.StatusBillingReady
			if err := tx.PutLoad(load); err != nil {
				return nil, err
			}
			if _, err := tx.AppendEvent(loadID, datatypes.EventLoadReopened, map[string]any{
				"reason": req.Reason,
			}); err != nil {
				return nil, err
			}
			return load, nil
		},
	})
	if err != nil {
		return nil, err
	}
	var load datatypes.Load
	if err := out.Decode(&load); err != nil {
		return nil, err
	}
	r.logger.Warn("load reopened", "load_id", loadID, "actor", actor,
		"reason", req.Reason)
	return &load, nil
}

// ReleaseDriver returns the load's driver to the pool on delivery. It
// is shared with the review engine, which delivers loads on approval.
func ReleaseDriver(tx *store.Tx, load *datatypes.Load) error {
	if load.Assignment == nil {
		return nil
	}
	driver, err := tx.GetDriver(load.Assignment.DriverID)
	if err != nil {
		// The driver may have been removed mid-flight; delivery
		// still completes.
		return nil
	}
	if driver.CurrentLoadID != load.LoadID {
		return nil
	}
	driver.Status = datatypes.DriverAvailable
	driver.CurrentLoadID = ""
	if err := tx.PutDriver(driver); err != nil {
		return err
	}
	_, err = tx.AppendEvent(load.LoadID, datatypes.EventDriverReleased, map[string]any{
		"driver_id": driver.DriverID,
	})
	return err
}

// Board assembles the dispatch board: loads grouped by status plus the
// driver pool.
func (r *Registry) Board() (*datatypes.DispatchBoard, error) {
	loads, err := r.store.ListLoads("")
	if err != nil {
		return nil, err
	}
	drivers, err := r.store.ListDrivers()
	if err != nil {
		return nil, err
	}
	counts := make(map[datatypes.LoadStatus]int)
	for _, load := range loads {
		counts[load.Status]++
	}
	return &datatypes.DispatchBoard{
		Counts:  counts,
		Loads:   loads,
		Drivers: drivers,
	}, nil
}

func applyPatch(load *datatypes.Load, req *datatypes.UpdateLoadRequest) (billable bool) {
	if req.Customer != nil {
		load.Customer = *req.Customer
	}
	if req.Broker != nil {
		load.Broker = *req.Broker
	}
	if req.PickupTime != nil {
		load.PickupTime = *req.PickupTime
	}
	if req.DeliveryTime != nil {
		load.DeliveryTime = *req.DeliveryTime
	}
	if req.Notes != nil {
		load.Notes = *req.Notes
	}
	if req.Priority != nil {
		load.Priority = *req.Priority
	}
	if req.PlannedMiles != nil && *req.PlannedMiles != load.PlannedMiles {
		load.PlannedMiles = *req.PlannedMiles
		billable = true
	}
	if req.RateTotal != nil && *req.RateTotal != load.RateTotal {
		load.RateTotal = *req.RateTotal
		billable = true
	}
	if req.Zone != nil && *req.Zone != load.Zone {
		load.Zone = *req.Zone
		billable = true
	}
	return billable
}

func inBillingPhase(status datatypes.LoadStatus) bool {
	switch status {
	case datatypes.StatusDelivered, datatypes.StatusBillingBlocked, datatypes.StatusBillingReady:
		return true
	}
	return false
}
