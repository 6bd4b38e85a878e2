// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes holds the domain model for the FreightCtl ops engine:
// loads, drivers, ticket reviews, billing records, export artifacts, and
// the timeline event envelope, plus the API request/response types.
//
// These types are persisted as JSON in the state store and returned
// verbatim over the API, so field tags are part of the wire contract.
package datatypes

import "time"

// LoadStatus is the operational lifecycle state of a load.
//
// Legal transitions:
//
//	planned → assigned → in_transit → delivered → {billing_blocked ↔ billing_ready} → exported
//
// billing_blocked and billing_ready are set by the billing ledger only;
// exported is terminal (Reopen is an explicit administrative action).
type LoadStatus string

const (
	StatusPlanned        LoadStatus = "planned"
	StatusAssigned       LoadStatus = "assigned"
	StatusInTransit      LoadStatus = "in_transit"
	StatusDelivered      LoadStatus = "delivered"
	StatusBillingBlocked LoadStatus = "billing_blocked"
	StatusBillingReady   LoadStatus = "billing_ready"
	StatusExported       LoadStatus = "exported"
)

// Valid reports whether s is a known load status.
func (s LoadStatus) Valid() bool {
	switch s {
	case StatusPlanned, StatusAssigned, StatusInTransit, StatusDelivered,
		StatusBillingBlocked, StatusBillingReady, StatusExported:
		return true
	}
	return false
}

// Load is the canonical load record. Owned by the load registry and
// mutated only through version-checked writes; Version strictly
// increases with every accepted write.
type Load struct {
	LoadID           string      `json:"load_id"`
	Customer         string      `json:"customer"`
	Broker           string      `json:"broker,omitempty"`
	PickupLocation   string      `json:"pickup_location"`
	DeliveryLocation string      `json:"delivery_location"`
	PickupTime       string      `json:"pickup_time,omitempty"`
	DeliveryTime     string      `json:"delivery_time,omitempty"`
	EquipmentType    string      `json:"equipment_type"`
	PlannedMiles     float64     `json:"planned_miles"`
	RateTotal        float64     `json:"rate_total"`
	Zone             string      `json:"zone,omitempty"`
	Priority         string      `json:"priority"`
	Notes            string      `json:"notes,omitempty"`
	Source           string      `json:"source"`
	Status           LoadStatus  `json:"status"`
	Assignment       *Assignment `json:"assignment,omitempty"`
	Version          int64       `json:"version"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Assignment records which driver/equipment a load is dispatched on.
type Assignment struct {
	DriverID   string    `json:"driver_id"`
	DriverName string    `json:"driver_name,omitempty"`
	TruckID    string    `json:"truck_id,omitempty"`
	TrailerID  string    `json:"trailer_id,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
	Mode       string    `json:"mode"` // "manual" or "autonomous"
}

// DriverStatus is the availability state of a driver.
type DriverStatus string

const (
	DriverAvailable DriverStatus = "available"
	DriverAssigned  DriverStatus = "assigned"
)

// Driver is a dispatchable driver. A driver carries at most one active
// load; AssignmentCount feeds the deterministic assignment scorer.
type Driver struct {
	DriverID        string       `json:"driver_id"`
	Name            string       `json:"name"`
	TruckID         string       `json:"truck_id,omitempty"`
	TrailerID       string       `json:"trailer_id,omitempty"`
	Status          DriverStatus `json:"status"`
	HomeRegion      string       `json:"home_region,omitempty"`
	CurrentLoadID   string       `json:"current_load_id,omitempty"`
	AssignmentCount int          `json:"assignment_count"`
}

// TimelineEvent is one append-only audit record. Events are never
// mutated or deleted; Seq orders events per entity in the order their
// mutations were accepted.
type TimelineEvent struct {
	EventID   string         `json:"event_id"`
	EntityID  string         `json:"entity_id"`
	Seq       uint64         `json:"seq"`
	Kind      string         `json:"kind"`
	Actor     string         `json:"actor"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// Timeline event kinds. Every accepted state transition on a load,
// review, billing record, or export produces exactly one event.
const (
	EventLoadCreated     = "load_created"
	EventLoadUpdated     = "load_updated"
	EventLoadStatus      = "load_status_transition"
	EventLoadAssigned    = "load_assigned"
	EventLoadReopened    = "load_reopened"
	EventDriverReleased  = "driver_released"
	EventTicketReviewed  = "ticket_reviewed"
	EventTicketResolved  = "ticket_resolved"
	EventBillingComputed = "billing_computed"
	EventExportSubmitted = "export_submitted"
	EventExportAcked     = "export_acknowledged"
	EventExportFailed    = "export_failed"
	EventExportReplayed  = "export_replayed"
	EventTelemetryIngest = "telemetry_ingested"
	EventAutonomyCycle   = "autonomy_cycle"
	EventDriverCreated   = "driver_created"
	EventDriverRemoved   = "driver_removed"
)

// SystemEntityID is the timeline entity used for events that are not
// tied to a single load, such as autonomy cycle summaries.
const SystemEntityID = "SYSTEM"
