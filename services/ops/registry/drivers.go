// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registry

import (
	"context"

	"github.com/freightctl/freightctl/services/ops/datatypes"
	"github.com/freightctl/freightctl/services/ops/store"
)

// defaultDrivers is the bootstrap pool for a fresh database.
var defaultDrivers = []datatypes.Driver{
	{DriverID: "DRV-101", Name: "Marcus Webb", TruckID: "TRK-12", TrailerID: "TRL-31", HomeRegion: "FL-West"},
	{DriverID: "DRV-102", Name: "Elena Vasquez", TruckID: "TRK-14", TrailerID: "TRL-33", HomeRegion: "FL-Central"},
	{DriverID: "DRV-103", Name: "Troy Simmons", TruckID: "TRK-17", TrailerID: "TRL-36", HomeRegion: "FL-South"},
	{DriverID: "DRV-104", Name: "Dana Holt", TruckID: "TRK-21", TrailerID: "TRL-40", HomeRegion: "GA-Coastal"},
}

// BootstrapDrivers seeds the default pool. Existing drivers are left
// untouched; returns how many were created.
func (r *Registry) BootstrapDrivers(ctx context.Context) (int, error) {
	created := 0
	_, err := r.store.Mutate(ctx, store.Mutation{
		Operation: "bootstrap_drivers",
		Actor:     "system",
		Apply: func(tx *store.Tx) (any, error) {
			for i := range defaultDrivers {
				driver := defaultDrivers[i]
				if _, err := tx.GetDriver(driver.DriverID); err == nil {
					continue
				}
				driver.Status = datatypes.DriverAvailable
				if err := tx.PutDriver(&driver); err != nil {
					return nil, err
				}
				created++
			}
			return created, nil
		},
	})
	return created, err
}

// CreateDriver adds a driver to the pool.
func (r *Registry) CreateDriver(ctx context.Context, actor, idemKey string, req *datatypes.CreateDriverRequest) (*datatypes.Driver, error) {
	out, err := r.store.Mutate(ctx, store.Mutation{
		Operation:      "create_driver",
		Actor:          actor,
		IdempotencyKey: idemKey,
		Request:        req,
		Apply: func(tx *store.Tx) (any, error) {
			if _, err := tx.GetDriver(req.DriverID); err == nil {
				return nil, &store.ValidationError{Field: "driver_id",
					Detail: "driver " + req.DriverID + " already exists"}
			}
			driver := &datatypes.Driver{
				DriverID:   req.DriverID,
				Name:       req.Name,
				TruckID:    req.TruckID,
				TrailerID:  req.TrailerID,
				HomeRegion: req.HomeRegion,
				Status:     datatypes.DriverAvailable,
			}
			if err := tx.PutDriver(driver); err != nil {
				return nil, err
			}
			if _, err := tx.AppendEvent(datatypes.SystemEntityID,
				datatypes.EventDriverCreated, map[string]any{
					"driver_id": driver.DriverID,
				}); err != nil {
				return nil, err
			}
			return driver, nil
		},
	})
	if err != nil {
		return nil, err
	}
	var driver datatypes.Driver
	if err := out.Decode(&driver); err != nil {
		return nil, err
	}
	return &driver, nil
}

// RemoveDriver deletes a driver. Refused while the driver holds an
// active load.
func (r *Registry) RemoveDriver(ctx context.Context, actor, idemKey, driverID string) error {
	_, err := r.store.Mutate(ctx, store.Mutation{
		Operation:      "remove_driver:" + driverID,
		Actor:          actor,
		IdempotencyKey: idemKey,
		Request:        driverID,
		Apply: func(tx *store.Tx) (any, error) {
			driver, err := tx.GetDriver(driverID)
			if err != nil {
				return nil, err
			}
			if driver.CurrentLoadID != "" {
				return nil, &store.ValidationError{Field: "driver_id",
					Detail: "driver " + driverID + " holds load " + driver.CurrentLoadID}
			}
			if err := tx.DeleteDriver(driverID); err != nil {
				return nil, err
			}
			if _, err := tx.AppendEvent(datatypes.SystemEntityID,
				datatypes.EventDriverRemoved, map[string]any{
					"driver_id": driverID,
				}); err != nil {
				return nil, err
			}
			return driverID, nil
		},
	})
	return err
}
