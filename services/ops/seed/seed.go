// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package seed generates a deterministic synthetic back-office
// scenario for demos and smoke tests.
//
// The generator drives the real engines — loads are created through
// the registry, drivers assigned through the assignment engine, and
// tickets submitted through the review engine — so the seeded store is
// indistinguishable from one produced by live traffic. The same seed
// always produces the same scenario.
package seed

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/freightctl/freightctl/pkg/logging"
	"github.com/freightctl/freightctl/services/ops/assign"
	"github.com/freightctl/freightctl/services/ops/datatypes"
	"github.com/freightctl/freightctl/services/ops/registry"
	"github.com/freightctl/freightctl/services/ops/review"
)

// Actor stamps seeded mutations on the timeline.
const Actor = "seed"

var (
	customers = []string{
		"LATCRETE INTERNATIONAL INC",
		"LEHIGH CEMENT COMPANY",
		"A-1 BLOCK CORPORATION",
		"ASHGROVE CEMENT",
		"VERANZA GROUP FT MYERS",
	}
	brokers     = []string{"Coyote", "TQL", "Landstar", "JB Hunt", "Convoy"}
	pickupSites = []string{"Tampa Plant", "Cape Coral Site", "Fort Myers Yard", "Naples Transfer"}
	dropSites   = []string{"Jobsite North", "Jobsite South", "Warehouse A", "Warehouse B"}
)

// Options tunes the generated scenario.
type Options struct {
	// Seed fixes the random source; equal seeds yield equal scenarios.
	Seed int64

	// Loads is how many loads to create.
	Loads int

	// ExceptionRatio is the fraction of tickets submitted with missing
	// paperwork, which the review engine flags.
	ExceptionRatio float64
}

// Result summarizes what the generator produced.
type Result struct {
	Drivers  int `json:"drivers"`
	Loads    int `json:"loads"`
	Assigned int `json:"assigned"`
	Approved int `json:"approved"`
	Flagged  int `json:"flagged"`
}

// Run seeds the scenario. Loads that cannot get a driver (pool
// exhausted by flagged tickets holding assignments) stay planned.
func Run(ctx context.Context, reg *registry.Registry, assigner *assign.Engine, reviewer *review.Engine, opts Options, logger *logging.Logger) (*Result, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if opts.Loads <= 0 {
		return nil, fmt.Errorf("seed: loads must be positive, got %d", opts.Loads)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	result := &Result{}

	drivers, err := reg.BootstrapDrivers(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed: bootstrap drivers: %w", err)
	}
	result.Drivers = drivers

	for i := 0; i < opts.Loads; i++ {
		plannedMiles := round1(18 + rng.Float64()*(240-18))
		rate := round2(plannedMiles * (2.6 + rng.Float64()*(4.3-2.6)))
		req := &datatypes.CreateLoadRequest{
			Customer:         customers[rng.Intn(len(customers))],
			Broker:           brokers[rng.Intn(len(brokers))],
			PickupLocation:   pickupSites[rng.Intn(len(pickupSites))],
			DeliveryLocation: dropSites[rng.Intn(len(dropSites))],
			PickupTime:       fmt.Sprintf("2026-02-%02dT%02d:00:00Z", 10+rng.Intn(19), 5+rng.Intn(7)),
			DeliveryTime:     fmt.Sprintf("2026-02-%02dT%02d:00:00Z", 10+rng.Intn(19), 12+rng.Intn(11)),
			EquipmentType:    "bulk",
			PlannedMiles:     plannedMiles,
			RateTotal:        rate,
			Zone:             fmt.Sprintf("FL-Z%d", 1+rng.Intn(9)),
			Priority:         pick(rng, "normal", "high"),
			Notes:            "synthetic_seed",
			Source:           "synthetic",
		}
		exception := rng.Float64() < opts.ExceptionRatio

		load, err := reg.CreateLoad(ctx, Actor, "", req)
		if err != nil {
			return nil, fmt.Errorf("seed: create load %d: %w", i, err)
		}
		result.Loads++

		assigned, err := assigner.Assign(ctx, Actor, "", load.LoadID, load.Version, "", "manual")
		if err != nil {
			// Pool exhausted; the load stays planned.
			continue
		}
		result.Assigned++

		ticket := &datatypes.SubmitTicketRequest{
			LoadID:       load.LoadID,
			DriverID:     assigned.Assignment.DriverID,
			Documents:    []string{"rate_confirmation", "bill_of_lading", "proof_of_delivery"},
			GPSMiles:     round1(plannedMiles * (0.97 + rng.Float64()*0.06)),
			DeliveryZone: load.Zone,
			PODSigned:    true,
			RateOnTicket: rate,
		}
		if exception {
			// Missing proof of delivery: a hard rule the engine flags.
			ticket.Documents = []string{"rate_confirmation", "bill_of_lading"}
		}

		reviewResult, err := reviewer.Submit(ctx, Actor, "", ticket)
		if err != nil {
			return nil, fmt.Errorf("seed: submit ticket for %s: %w", load.LoadID, err)
		}
		if reviewResult.Decision == datatypes.DecisionFlagged {
			result.Flagged++
		} else {
			result.Approved++
		}
	}

	logger.Info("seed scenario complete",
		"loads", result.Loads,
		"assigned", result.Assigned,
		"approved", result.Approved,
		"flagged", result.Flagged)
	return result, nil
}

func pick(rng *rand.Rand, options ...string) string {
	return options[rng.Intn(len(options))]
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
