// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// ReviewDecision is the outcome of a driver ticket evaluation.
type ReviewDecision string

const (
	DecisionAutoApproved ReviewDecision = "auto_approved"
	DecisionFlagged      ReviewDecision = "flagged"
	DecisionResolved     ReviewDecision = "resolved"
)

// RuleSeverity distinguishes hard rules (any failure forces a flag with
// confidence zero) from soft signals (they only move the confidence).
type RuleSeverity string

const (
	SeverityHard RuleSeverity = "hard"
	SeveritySoft RuleSeverity = "soft"
)

// RuleResult is the recorded outcome of one rule or signal evaluation.
// Results are stored in evaluation order so a reviewer can replay the
// decision from the record alone.
type RuleResult struct {
	Rule     string       `json:"rule"`
	Severity RuleSeverity `json:"severity"`
	Passed   bool         `json:"passed"`
	Detail   string       `json:"detail,omitempty"`
	// Weight is the signal's contribution to the confidence score.
	// Zero for hard rules.
	Weight float64 `json:"weight,omitempty"`
}

// TicketSubmission is the driver-submitted paperwork for a load. It is
// the input to a review, kept verbatim on the review record.
type TicketSubmission struct {
	LoadID        string            `json:"load_id"`
	DriverID      string            `json:"driver_id,omitempty"`
	Documents     []string          `json:"documents"`
	GPSMiles      float64           `json:"gps_miles,omitempty"`
	DeliveryZone  string            `json:"delivery_zone,omitempty"`
	PODSigned     bool              `json:"pod_signed"`
	RateOnTicket  float64           `json:"rate_on_ticket,omitempty"`
	SplitTicket   bool              `json:"split_ticket,omitempty"`
	SubmittedMeta map[string]string `json:"submitted_meta,omitempty"`
}

// Resolution records a human closing out a flagged review.
type Resolution struct {
	Actor      string    `json:"actor"`
	Outcome    string    `json:"outcome"` // "approve" or "reject"
	Reason     string    `json:"reason"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// TicketReview is one evaluation of a ticket submission. Reviews are
// immutable once written except for attaching a Resolution; a resolved
// review is terminal.
type TicketReview struct {
	ReviewID    string           `json:"review_id"`
	LoadID      string           `json:"load_id"`
	Submission  TicketSubmission `json:"submission"`
	Decision    ReviewDecision   `json:"decision"`
	Confidence  float64          `json:"confidence"`
	FlagReasons []string         `json:"flag_reasons,omitempty"`
	Rules       []RuleResult     `json:"rules"`
	Resolution  *Resolution      `json:"resolution,omitempty"`
	ReviewedBy  string           `json:"reviewed_by"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Approved reports whether the review ended in an approval, either
// automatically or through a human resolve.
func (r *TicketReview) Approved() bool {
	if r.Decision == DecisionAutoApproved {
		return true
	}
	return r.Decision == DecisionResolved && r.Resolution != nil && r.Resolution.Outcome == "approve"
}

// Terminal reports whether the review can still change. Auto-approved
// and resolved reviews are final; flagged reviews await resolution.
func (r *TicketReview) Terminal() bool {
	return r.Decision != DecisionFlagged
}
