// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// Request bodies for the /v1 ops API. Validation runs through gin's
// binding tags; anything the tags cannot express is checked in the
// owning engine and surfaced as a validation error.

// CreateLoadRequest creates a new load in status planned.
type CreateLoadRequest struct {
	Customer         string  `json:"customer" binding:"required"`
	Broker           string  `json:"broker"`
	PickupLocation   string  `json:"pickup_location" binding:"required"`
	DeliveryLocation string  `json:"delivery_location" binding:"required"`
	PickupTime       string  `json:"pickup_time"`
	DeliveryTime     string  `json:"delivery_time"`
	EquipmentType    string  `json:"equipment_type" binding:"required"`
	PlannedMiles     float64 `json:"planned_miles" binding:"required,gt=0"`
	RateTotal        float64 `json:"rate_total" binding:"required,gt=0"`
	Zone             string  `json:"zone"`
	Priority         string  `json:"priority" binding:"omitempty,oneof=low normal high"`
	Notes            string  `json:"notes"`
	Source           string  `json:"source"`
}

// UpdateLoadRequest patches mutable load fields. Nil pointers leave the
// field untouched. ExpectedVersion must match the stored version.
type UpdateLoadRequest struct {
	ExpectedVersion *int64   `json:"expected_version" binding:"required"`
	Customer        *string  `json:"customer"`
	Broker          *string  `json:"broker"`
	PickupTime      *string  `json:"pickup_time"`
	DeliveryTime    *string  `json:"delivery_time"`
	PlannedMiles    *float64 `json:"planned_miles" binding:"omitempty,gt=0"`
	RateTotal       *float64 `json:"rate_total" binding:"omitempty,gt=0"`
	Zone            *string  `json:"zone"`
	Priority        *string  `json:"priority" binding:"omitempty,oneof=low normal high"`
	Notes           *string  `json:"notes"`
}

// TransitionRequest moves a load to a new status along a legal edge.
type TransitionRequest struct {
	ExpectedVersion *int64     `json:"expected_version" binding:"required"`
	Target          LoadStatus `json:"target" binding:"required,load_status"`
	Reason          string     `json:"reason"`
}

// AssignRequest assigns one load. An empty DriverID asks the engine to
// pick deterministically.
type AssignRequest struct {
	ExpectedVersion *int64 `json:"expected_version" binding:"required"`
	DriverID        string `json:"driver_id"`
}

// BatchAssignRequest assigns many planned loads in one call. Failures
// are isolated per load.
type BatchAssignRequest struct {
	LoadIDs []string `json:"load_ids" binding:"required,min=1"`
}

// BatchAssignResult is the per-load outcome of a batch assignment.
type BatchAssignResult struct {
	LoadID   string `json:"load_id"`
	DriverID string `json:"driver_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SubmitTicketRequest submits driver paperwork for review.
type SubmitTicketRequest struct {
	LoadID       string   `json:"load_id" binding:"required"`
	DriverID     string   `json:"driver_id"`
	Documents    []string `json:"documents"`
	GPSMiles     float64  `json:"gps_miles" binding:"omitempty,gte=0"`
	DeliveryZone string   `json:"delivery_zone"`
	PODSigned    bool     `json:"pod_signed"`
	RateOnTicket float64  `json:"rate_on_ticket" binding:"omitempty,gte=0"`
	SplitTicket  bool     `json:"split_ticket"`
}

// ResolveReviewRequest closes out a flagged review.
type ResolveReviewRequest struct {
	Outcome string `json:"outcome" binding:"required,oneof=approve reject"`
	Reason  string `json:"reason" binding:"required"`
}

// ExportRequest submits a billing_ready load to the legacy system.
type ExportRequest struct {
	ExpectedVersion *int64 `json:"expected_version" binding:"required"`
}

// ReplayExportRequest re-submits an existing artifact's snapshot.
type ReplayExportRequest struct {
	ExportID string `json:"export_id" binding:"required"`
}

// IngestTelemetryRequest records vehicle-tracking events. Events whose
// EventKey was already seen are ignored.
type IngestTelemetryRequest struct {
	Events []TelemetryEventInput `json:"events" binding:"required,min=1,dive"`
}

// TelemetryEventInput is one event in an ingest batch.
type TelemetryEventInput struct {
	EventKey    string  `json:"event_key" binding:"required"`
	LoadID      string  `json:"load_id" binding:"required"`
	VehicleID   string  `json:"vehicle_id"`
	DriverID    string  `json:"driver_id"`
	MilesDriven float64 `json:"miles_driven" binding:"gte=0"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	RecordedAt  string  `json:"recorded_at" binding:"required"`
}

// CreateDriverRequest adds a driver to the pool.
type CreateDriverRequest struct {
	DriverID   string `json:"driver_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
	TruckID    string `json:"truck_id"`
	TrailerID  string `json:"trailer_id"`
	HomeRegion string `json:"home_region"`
}

// ReopenRequest reverts an exported load for administrative correction.
type ReopenRequest struct {
	ExpectedVersion *int64 `json:"expected_version" binding:"required"`
	Reason          string `json:"reason" binding:"required"`
}

// RunCycleRequest triggers one autonomy cycle. A nil ExportEnabled
// falls back to the configured autonomy default.
type RunCycleRequest struct {
	ExportEnabled *bool `json:"export_enabled"`
	MaxLoads      int   `json:"max_loads" binding:"omitempty,gt=0"`
}
