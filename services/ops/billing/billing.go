// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package billing computes billing readiness and revenue-leakage
// findings for delivered loads.
//
// Each recompute writes a fresh BillingRecord superseding the previous
// one; records are never edited in place. A load is billing_ready if
// and only if it has an approving ticket review and the computation
// produced zero findings. Between delivered and exported, the ledger is
// the only component that moves a load between billing_blocked and
// billing_ready.
package billing

import (
	"fmt"
	"math"
	"strings"

	"github.com/freightctl/freightctl/pkg/logging"
	"github.com/freightctl/freightctl/services/ops/config"
	"github.com/freightctl/freightctl/services/ops/datatypes"
	"github.com/freightctl/freightctl/services/ops/observability"
	"github.com/freightctl/freightctl/services/ops/store"
)

// Engine evaluates billing readiness. Stateless besides configuration;
// safe for concurrent use.
type Engine struct {
	cfg          config.BillingConfig
	requiredDocs []string
	metrics      *observability.Metrics
	logger       *logging.Logger
}

// NewEngine creates a billing engine. metrics may be nil.
func NewEngine(cfg config.BillingConfig, requiredDocs []string, metrics *observability.Metrics, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{cfg: cfg, requiredDocs: requiredDocs, metrics: metrics, logger: logger}
}

// Recompute runs one billing computation for the load inside the
// caller's mutation transaction. It writes the new record, adjusts the
// service-wide leakage totals, and — when the load sits in the billing
// phase — moves it between billing_blocked and billing_ready.
//
// The caller is responsible for persisting any other load changes it
// made before calling Recompute; the load pointer is updated in place
// when the status flips.
func (e *Engine) Recompute(tx *store.Tx, load *datatypes.Load) (*datatypes.BillingRecord, error) {
	reviews, err := tx.ListReviewsForLoad(load.LoadID)
	if err != nil {
		return nil, err
	}

	approved := latestApproved(reviews)
	findings := e.evaluate(load, approved)

	var reasons []string
	if approved == nil {
		reasons = append(reasons, "no approved ticket review")
	}
	for _, finding := range findings {
		reasons = append(reasons, string(finding.Kind)+": "+finding.Evidence)
	}

	prev, err := tx.GetBilling(load.LoadID)
	if err != nil {
		return nil, err
	}

	record := &datatypes.BillingRecord{
		LoadID:     load.LoadID,
		Computed:   1,
		Ready:      approved != nil && len(findings) == 0,
		Reasons:    reasons,
		Findings:   findings,
		TotalUSD:   totalUSD(findings),
		ComputedAt: tx.Now(),
	}
	if prev != nil {
		record.Computed = prev.Computed + 1
	}
	if err := tx.PutBilling(record); err != nil {
		return nil, err
	}

	if err := e.settleLeakage(tx, prev, record); err != nil {
		return nil, err
	}

	if _, err := tx.AppendEvent(load.LoadID, datatypes.EventBillingComputed, map[string]any{
		"computation": record.Computed,
		"ready":       record.Ready,
		"findings":    len(record.Findings),
		"total_usd":   record.TotalUSD,
	}); err != nil {
		return nil, err
	}

	return record, e.applyStatus(tx, load, record)
}

// applyStatus moves the load between billing_blocked and billing_ready
// when it is in the billing phase. Loads before delivered or already
// exported are left alone.
func (e *Engine) applyStatus(tx *store.Tx, load *datatypes.Load, record *datatypes.BillingRecord) error {
	switch load.Status {
	case datatypes.StatusDelivered, datatypes.StatusBillingBlocked, datatypes.StatusBillingReady:
	default:
		return nil
	}

	target := datatypes.StatusBillingBlocked
	if record.Ready {
		target = datatypes.StatusBillingReady
	}
	if load.Status == target {
		return nil
	}

	from := load.Status
	load.Status = target
	if err := tx.PutLoad(load); err != nil {
		return err
	}
	_, err := tx.AppendEvent(load.LoadID, datatypes.EventLoadStatus, map[string]any{
		"from":   string(from),
		"to":     string(target),
		"reason": "billing recompute",
	})
	return err
}

// settleLeakage maintains the service-wide totals: newly raised leakage
// counts as detected; leakage cleared by a computation counts as
// recovered.
func (e *Engine) settleLeakage(tx *store.Tx, prev, current *datatypes.BillingRecord) error {
	var prevTotal float64
	if prev != nil {
		prevTotal = prev.TotalUSD
	}
	detected := current.TotalUSD - prevTotal
	if detected < 0 {
		detected = 0
	}
	recovered := prevTotal - current.TotalUSD
	if recovered < 0 {
		recovered = 0
	}
	if detected == 0 && recovered == 0 {
		return nil
	}
	e.metrics.RecordLeakage(detected, recovered)
	return tx.AddLeakage(detected, recovered)
}

// evaluate produces the leakage findings for a load given its latest
// approved submission (nil when none exists yet — document and ticket
// checks then report against an empty submission).
func (e *Engine) evaluate(load *datatypes.Load, approved *datatypes.TicketReview) []datatypes.LeakageFinding {
	var findings []datatypes.LeakageFinding

	var submission *datatypes.TicketSubmission
	if approved != nil {
		submission = &approved.Submission
	}

	for _, doc := range e.requiredDocs {
		if submission == nil || !containsDoc(submission.Documents, doc) {
			findings = append(findings, datatypes.LeakageFinding{
				Kind:         datatypes.LeakageMissingDocument,
				Evidence:     fmt.Sprintf("document %s not on file", doc),
				EstimatedUSD: e.cfg.MissingDocumentUSD,
			})
		}
	}

	if submission != nil {
		if submission.RateOnTicket > 0 && load.RateTotal > 0 {
			diff := math.Abs(submission.RateOnTicket - load.RateTotal)
			if diff/load.RateTotal > e.cfg.RateTolerance {
				findings = append(findings, datatypes.LeakageFinding{
					Kind: datatypes.LeakageRateMismatch,
					Evidence: fmt.Sprintf("ticket rate $%.2f vs load rate $%.2f",
						submission.RateOnTicket, load.RateTotal),
					EstimatedUSD: diff,
				})
			}
		}

		if submission.DeliveryZone != "" && load.Zone != "" &&
			!strings.EqualFold(submission.DeliveryZone, load.Zone) {
			findings = append(findings, datatypes.LeakageFinding{
				Kind: datatypes.LeakageZoneMismatch,
				Evidence: fmt.Sprintf("ticket zone %q vs load zone %q",
					submission.DeliveryZone, load.Zone),
				EstimatedUSD: e.cfg.ZoneMismatchUSD,
			})
		}

		if submission.GPSMiles > 0 && load.PlannedMiles > 0 {
			diff := math.Abs(submission.GPSMiles - load.PlannedMiles)
			if diff/load.PlannedMiles > e.cfg.MilesTolerance {
				ratePerMile := load.RateTotal / load.PlannedMiles
				findings = append(findings, datatypes.LeakageFinding{
					Kind: datatypes.LeakageMileageMismatch,
					Evidence: fmt.Sprintf("gps %.1f mi vs planned %.1f mi",
						submission.GPSMiles, load.PlannedMiles),
					EstimatedUSD: round2(diff * ratePerMile),
				})
			}
		}
	}

	return findings
}

func latestApproved(reviews []datatypes.TicketReview) *datatypes.TicketReview {
	for i := len(reviews) - 1; i >= 0; i-- {
		if reviews[i].Approved() {
			return &reviews[i]
		}
	}
	return nil
}

func containsDoc(docs []string, want string) bool {
	for _, doc := range docs {
		if strings.EqualFold(strings.TrimSpace(doc), want) {
			return true
		}
	}
	return false
}

func totalUSD(findings []datatypes.LeakageFinding) float64 {
	var total float64
	for _, finding := range findings {
		total += finding.EstimatedUSD
	}
	return round2(total)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
