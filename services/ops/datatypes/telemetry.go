// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// TelemetryEvent is one vehicle-tracking reading pushed by an upstream
// integration. Events are deduplicated by EventKey; the review engine
// uses the freshest MilesDriven for a load when the ticket omits GPS
// miles.
type TelemetryEvent struct {
	EventKey    string    `json:"event_key"`
	LoadID      string    `json:"load_id"`
	VehicleID   string    `json:"vehicle_id,omitempty"`
	DriverID    string    `json:"driver_id,omitempty"`
	MilesDriven float64   `json:"miles_driven"`
	Latitude    float64   `json:"latitude,omitempty"`
	Longitude   float64   `json:"longitude,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// CycleSummary is the aggregate outcome of one autonomy cycle.
type CycleSummary struct {
	CycleID    string    `json:"cycle_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Scanned    int       `json:"scanned"`
	Assigned   int       `json:"assigned"`
	Reviewed   int       `json:"reviewed"`
	Flagged    int       `json:"flagged"`
	Blocked    int       `json:"blocked"`
	Exported   int       `json:"exported"`
	Skipped    int       `json:"skipped"`
	Errors     []string  `json:"errors,omitempty"`
}

// Lease is a time-bounded per-load claim taken by the autonomy
// coordinator before acting on a load. Expired leases are reclaimable.
// A lease never substitutes for the version check on writes.
type Lease struct {
	LoadID     string    `json:"load_id"`
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the lease has lapsed at time now.
func (l *Lease) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// DispatchBoard is the operational overview returned to the UI: loads
// grouped by status plus the driver pool.
type DispatchBoard struct {
	Counts  map[LoadStatus]int `json:"counts"`
	Loads   []Load             `json:"loads"`
	Drivers []Driver           `json:"drivers"`
}

// KPISnapshot is the back-office metrics rollup.
type KPISnapshot struct {
	TotalLoads          int     `json:"total_loads"`
	ActiveLoads         int     `json:"active_loads"`
	DeliveredLoads      int     `json:"delivered_loads"`
	ExportedLoads       int     `json:"exported_loads"`
	OpenReviews         int     `json:"open_reviews"`
	AutoApprovalRate    float64 `json:"auto_approval_rate"`
	LeakageDetectedUSD  float64 `json:"leakage_detected_usd"`
	LeakageRecoveredUSD float64 `json:"leakage_recovered_usd"`
	AvailableDrivers    int     `json:"available_drivers"`
	LastCycleID         string  `json:"last_cycle_id,omitempty"`
}
