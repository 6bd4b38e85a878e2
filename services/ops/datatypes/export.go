// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// ExportStatus is the lifecycle state of an export artifact.
type ExportStatus string

const (
	ExportSubmitted    ExportStatus = "submitted"
	ExportAcknowledged ExportStatus = "acknowledged"
	ExportFailed       ExportStatus = "failed"
)

// ExportArtifact is one submission of a load to the legacy billing
// system. The payload snapshot is frozen at creation; replays produce a
// NEW artifact carrying ReplayOf and a byte-identical Payload, leaving
// the original untouched.
type ExportArtifact struct {
	ExportID    string       `json:"export_id"`
	LoadID      string       `json:"load_id"`
	Status      ExportStatus `json:"status"`
	Payload     []byte       `json:"payload"`
	PayloadHash string       `json:"payload_hash"`
	ReplayOf    string       `json:"replay_of,omitempty"`
	Error       string       `json:"error,omitempty"`
	SubmittedBy string       `json:"submitted_by"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// ExportPayload is the JSON structure marshaled into an artifact's
// payload snapshot. It is canonical: field order is fixed by this
// struct so the same load state always produces the same bytes.
type ExportPayload struct {
	SnapshotID       string  `json:"snapshot_id"`
	LoadID           string  `json:"load_id"`
	Customer         string  `json:"customer"`
	Broker           string  `json:"broker,omitempty"`
	PickupLocation   string  `json:"pickup_location"`
	DeliveryLocation string  `json:"delivery_location"`
	EquipmentType    string  `json:"equipment_type"`
	PlannedMiles     float64 `json:"planned_miles"`
	RateTotal        float64 `json:"rate_total"`
	Zone             string  `json:"zone,omitempty"`
	DriverID         string  `json:"driver_id,omitempty"`
	DriverName       string  `json:"driver_name,omitempty"`
	LoadVersion      int64   `json:"load_version"`
	ExportedAt       string  `json:"exported_at"`
}
