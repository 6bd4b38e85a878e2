// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package assign picks drivers for planned loads.
//
// Selection is fully deterministic: candidates are ranked by pickup-
// region match, then lifetime assignment count, then lowest driver id.
// The same store state always produces the same choice, so an autonomy
// cycle and a dispatcher clicking "auto assign" agree.
package assign

import (
	"context"
	"sort"
	"strings"

	"github.com/freightctl/freightctl/pkg/logging"
	"github.com/freightctl/freightctl/services/ops/datatypes"
	"github.com/freightctl/freightctl/services/ops/store"
)

// Engine assigns drivers to loads.
type Engine struct {
	store  *store.Store
	logger *logging.Logger
}

// NewEngine creates an assignment engine.
func NewEngine(s *store.Store, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{store: s, logger: logger}
}

// regionHints maps pickup-location tokens to driver home regions.
var regionHints = []struct {
	tokens []string
	region string
}{
	{[]string{"tampa", "plant", "polk"}, "FL-Central"},
	{[]string{"naples", "ft myers", "fort myers", "cape"}, "FL-West"},
	{[]string{"miami", "broward", "palm"}, "FL-South"},
	{[]string{"savannah", "rincon", "ga"}, "GA-Coastal"},
}

// RegionHint derives the preferred driver home region from a pickup
// location. Empty when nothing matches.
func RegionHint(pickupLocation string) string {
	text := strings.ToLower(pickupLocation)
	for _, hint := range regionHints {
		for _, token := range hint.tokens {
			if strings.Contains(text, token) {
				return hint.region
			}
		}
	}
	return ""
}

// pick chooses the best available driver for the load. Returns nil when
// nobody is available.
func pick(drivers []datatypes.Driver, preferredRegion string) *datatypes.Driver {
	var candidates []datatypes.Driver
	for _, driver := range drivers {
		if driver.Status == datatypes.DriverAvailable {
			candidates = append(candidates, driver)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		aMatch := preferredRegion != "" && a.HomeRegion == preferredRegion
		bMatch := preferredRegion != "" && b.HomeRegion == preferredRegion
		if aMatch != bMatch {
			return aMatch
		}
		if a.AssignmentCount != b.AssignmentCount {
			return a.AssignmentCount < b.AssignmentCount
		}
		return a.DriverID < b.DriverID
	})
	return &candidates[0]
}

// Assign dispatches one planned load. With an empty driverID the engine
// picks deterministically; with an explicit driverID that driver must
// be available. Mode is stamped on the assignment ("manual" or
// "autonomous").
func (e *Engine) Assign(ctx context.Context, actor, idemKey, loadID string, expectedVersion int64, driverID, mode string) (*datatypes.Load, error) {
	if mode == "" {
		mode = "manual"
	}
	req := map[string]any{
		"load_id": loadID, "expected_version": expectedVersion,
		"driver_id": driverID, "mode": mode,
	}

	out, err := e.store.Mutate(ctx, store.Mutation{
		Operation:      "assign_load:" + loadID,
		Actor:          actor,
		IdempotencyKey: idemKey,
		Request:        req,
		Apply: func(tx *store.Tx) (any, error) {
			load, err := tx.GetLoadForUpdate(loadID, expectedVersion)
			if err != nil {
				return nil, err
			}
			if load.Status != datatypes.StatusPlanned {
				return nil, &store.TransitionError{
					LoadID: loadID,
					From:   string(load.Status),
					To:     string(datatypes.StatusAssigned),
				}
			}

			var driver *datatypes.Driver
			if driverID != "" {
				driver, err = tx.GetDriver(driverID)
				if err != nil {
					return nil, err
				}
				if driver.Status != datatypes.DriverAvailable {
					return nil, &store.ValidationError{Field: "driver_id",
						Detail: "driver " + driverID + " is not available"}
				}
			} else {
				drivers, err := tx.ListDrivers()
				if err != nil {
					return nil, err
				}
				driver = pick(drivers, RegionHint(load.PickupLocation))
				if driver == nil {
					return nil, &store.ValidationError{Field: "driver_id",
						Detail: "no available drivers"}
				}
			}

			driver.Status = datatypes.DriverAssigned
			driver.CurrentLoadID = load.LoadID
			driver.AssignmentCount++
			if err := tx.PutDriver(driver); err != nil {
				return nil, err
			}

			load.Assignment = &datatypes.Assignment{
				DriverID:   driver.DriverID,
				DriverName: driver.Name,
				TruckID:    driver.TruckID,
				TrailerID:  driver.TrailerID,
				AssignedAt: tx.Now(),
				Mode:       mode,
			}
			load.Status = datatypes.StatusAssigned
			if err := tx.PutLoad(load); err != nil {
				return nil, err
			}
			if _, err := tx.AppendEvent(load.LoadID, datatypes.EventLoadAssigned, map[string]any{
				"driver_id": driver.DriverID,
				"mode":      mode,
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
	e.logger.Info("load assigned", "load_id", loadID,
		"driver_id", load.Assignment.DriverID, "mode", mode, "actor", actor)
	return &load, nil
}

// AssignBatch dispatches many loads. Failures are isolated per load;
// the batch never aborts early.
func (e *Engine) AssignBatch(ctx context.Context, actor string, loadIDs []string) []datatypes.BatchAssignResult {
	results := make([]datatypes.BatchAssignResult, 0, len(loadIDs))
	for _, loadID := range loadIDs {
		result := datatypes.BatchAssignResult{LoadID: loadID}

		load, err := e.store.GetLoad(loadID)
		if err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}

		assigned, err := e.Assign(ctx, actor, "", loadID, load.Version, "", "manual")
		if err != nil {
			result.Error = err.Error()
		} else {
			result.DriverID = assigned.Assignment.DriverID
		}
		results = append(results, result)
	}
	return results
}
