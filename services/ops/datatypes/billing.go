// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// LeakageKind classifies a billing leakage finding.
type LeakageKind string

const (
	LeakageMissingDocument LeakageKind = "missing_document"
	LeakageRateMismatch    LeakageKind = "rate_mismatch"
	LeakageZoneMismatch    LeakageKind = "zone_mismatch"
	LeakageMileageMismatch LeakageKind = "mileage_mismatch"
)

// LeakageFinding is one detected revenue-leakage risk on a load.
type LeakageFinding struct {
	Kind         LeakageKind `json:"kind"`
	Evidence     string      `json:"evidence"`
	EstimatedUSD float64     `json:"estimated_usd"`
}

// BillingRecord is one billing-readiness computation for a load. Each
// recompute writes a fresh record superseding the previous one; records
// are never edited in place.
type BillingRecord struct {
	LoadID     string           `json:"load_id"`
	Computed   int              `json:"computed"` // 1-based computation number
	Ready      bool             `json:"ready"`
	Reasons    []string         `json:"reasons,omitempty"`
	Findings   []LeakageFinding `json:"findings,omitempty"`
	TotalUSD   float64          `json:"total_usd"`
	ComputedAt time.Time        `json:"computed_at"`
}

// LeakageTotals is the service-wide leakage aggregate. DetectedUSD sums
// every finding ever raised; RecoveredUSD sums findings that were open
// on a load which later reached billing_ready.
type LeakageTotals struct {
	DetectedUSD  float64 `json:"detected_usd"`
	RecoveredUSD float64 `json:"recovered_usd"`
}
