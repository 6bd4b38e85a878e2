// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package review

import (
	"fmt"
	"math"
	"strings"

	"github.com/freightctl/freightctl/services/ops/config"
	"github.com/freightctl/freightctl/services/ops/datatypes"
)

// Rule ids. Hard rules run first, in this order; any failure forces a
// flag with confidence zero. Soft signals only move the confidence.
const (
	RuleDocsRequired   = "docs.required"
	RuleFieldsRequired = "fields.required"
	RuleMilesVariance  = "miles.variance"
	RuleZoneMatch      = "zone.match"

	SignalPODSignature = "pod.signature"
	SignalRateMatch    = "rate.match"
	SignalSplitTicket  = "split_ticket.check"
	SignalMilesSource  = "miles.evidence"
)

// Soft-signal weights. Confidence starts at 1.0 and loses the weight of
// each failed signal. Weights sum to 1, so confidence stays in [0,1].
var signalWeights = map[string]float64{
	SignalPODSignature: 0.25,
	SignalRateMatch:    0.25,
	SignalSplitTicket:  0.20,
	SignalMilesSource:  0.30,
}

// evalContext is everything a rule may look at. effectiveMiles is the
// submission's GPS miles, falling back to the freshest telemetry
// reading; hasMiles is false when neither exists.
type evalContext struct {
	cfg        config.ReviewConfig
	load       *datatypes.Load
	submission *datatypes.TicketSubmission

	effectiveMiles float64
	hasMiles       bool
	milesSource    string // "ticket" or "telemetry"
}

// ruleFunc evaluates one rule or signal. Pure: same context, same
// result.
type ruleFunc func(ec *evalContext) datatypes.RuleResult

// hardRules in evaluation order.
var hardRules = []ruleFunc{
	evalDocsRequired,
	evalFieldsRequired,
	evalMilesVariance,
	evalZoneMatch,
}

// softSignals in evaluation order.
var softSignals = []ruleFunc{
	evalPODSignature,
	evalRateMatch,
	evalSplitTicket,
	evalMilesSource,
}

func evalDocsRequired(ec *evalContext) datatypes.RuleResult {
	var missing []string
	for _, doc := range ec.cfg.RequiredDocuments {
		if !hasDoc(ec.submission.Documents, doc) {
			missing = append(missing, doc)
		}
	}
	result := datatypes.RuleResult{
		Rule:     RuleDocsRequired,
		Severity: datatypes.SeverityHard,
		Passed:   len(missing) == 0,
	}
	if len(missing) > 0 {
		result.Detail = "missing documents: " + strings.Join(missing, ", ")
	}
	return result
}

func evalFieldsRequired(ec *evalContext) datatypes.RuleResult {
	var missing []string
	if ec.submission.RateOnTicket <= 0 {
		missing = append(missing, "rate_on_ticket")
	}
	if len(ec.submission.Documents) == 0 {
		missing = append(missing, "documents")
	}
	result := datatypes.RuleResult{
		Rule:     RuleFieldsRequired,
		Severity: datatypes.SeverityHard,
		Passed:   len(missing) == 0,
	}
	if len(missing) > 0 {
		result.Detail = "missing fields: " + strings.Join(missing, ", ")
	}
	return result
}

// evalMilesVariance fails hard only when mile evidence exists and
// disagrees with the plan. Absent evidence is the miles.evidence soft
// signal's problem, not a hard block.
func evalMilesVariance(ec *evalContext) datatypes.RuleResult {
	result := datatypes.RuleResult{
		Rule:     RuleMilesVariance,
		Severity: datatypes.SeverityHard,
		Passed:   true,
	}
	if !ec.hasMiles || ec.load.PlannedMiles <= 0 {
		result.Detail = "no mile evidence to compare"
		return result
	}
	variance := math.Abs(ec.effectiveMiles-ec.load.PlannedMiles) / ec.load.PlannedMiles
	if variance > ec.cfg.MilesVarianceTolerance {
		result.Passed = false
		result.Detail = fmt.Sprintf("%s miles %.1f vs planned %.1f (%.1f%% off, tolerance %.1f%%)",
			ec.milesSource, ec.effectiveMiles, ec.load.PlannedMiles,
			variance*100, ec.cfg.MilesVarianceTolerance*100)
	}
	return result
}

func evalZoneMatch(ec *evalContext) datatypes.RuleResult {
	result := datatypes.RuleResult{
		Rule:     RuleZoneMatch,
		Severity: datatypes.SeverityHard,
		Passed:   true,
	}
	if ec.load.Zone == "" || ec.submission.DeliveryZone == "" {
		result.Detail = "zone not asserted on both sides"
		return result
	}
	if !strings.EqualFold(strings.TrimSpace(ec.load.Zone), strings.TrimSpace(ec.submission.DeliveryZone)) {
		result.Passed = false
		result.Detail = fmt.Sprintf("ticket zone %q vs load zone %q",
			ec.submission.DeliveryZone, ec.load.Zone)
	}
	return result
}

func evalPODSignature(ec *evalContext) datatypes.RuleResult {
	result := datatypes.RuleResult{
		Rule:     SignalPODSignature,
		Severity: datatypes.SeveritySoft,
		Passed:   ec.submission.PODSigned,
		Weight:   signalWeights[SignalPODSignature],
	}
	if !result.Passed {
		result.Detail = "proof of delivery is unsigned"
	}
	return result
}

func evalRateMatch(ec *evalContext) datatypes.RuleResult {
	result := datatypes.RuleResult{
		Rule:     SignalRateMatch,
		Severity: datatypes.SeveritySoft,
		Passed:   true,
		Weight:   signalWeights[SignalRateMatch],
	}
	if ec.submission.RateOnTicket <= 0 || ec.load.RateTotal <= 0 {
		return result
	}
	diff := math.Abs(ec.submission.RateOnTicket - ec.load.RateTotal)
	if diff/ec.load.RateTotal > ec.cfg.RateTolerance {
		result.Passed = false
		result.Detail = fmt.Sprintf("ticket rate $%.2f vs load rate $%.2f",
			ec.submission.RateOnTicket, ec.load.RateTotal)
	}
	return result
}

func evalSplitTicket(ec *evalContext) datatypes.RuleResult {
	result := datatypes.RuleResult{
		Rule:     SignalSplitTicket,
		Severity: datatypes.SeveritySoft,
		Passed:   !ec.submission.SplitTicket,
		Weight:   signalWeights[SignalSplitTicket],
	}
	if !result.Passed {
		result.Detail = "split-ticket pattern needs reconciliation"
	}
	return result
}

func evalMilesSource(ec *evalContext) datatypes.RuleResult {
	result := datatypes.RuleResult{
		Rule:     SignalMilesSource,
		Severity: datatypes.SeveritySoft,
		Passed:   ec.hasMiles,
		Weight:   signalWeights[SignalMilesSource],
	}
	if ec.hasMiles {
		result.Detail = "miles from " + ec.milesSource
	} else {
		result.Detail = "no GPS miles on ticket and no recent telemetry"
	}
	return result
}

// evaluate runs the full rule table and derives decision inputs.
func evaluate(ec *evalContext) (results []datatypes.RuleResult, confidence float64, hardFailed bool) {
	for _, rule := range hardRules {
		result := rule(ec)
		results = append(results, result)
		if !result.Passed {
			hardFailed = true
		}
	}
	confidence = 1.0
	for _, signal := range softSignals {
		result := signal(ec)
		results = append(results, result)
		if !result.Passed {
			confidence -= result.Weight
		}
	}
	if hardFailed {
		confidence = 0
	}
	if confidence < 0 {
		confidence = 0
	}
	confidence = math.Round(confidence*10000) / 10000
	return results, confidence, hardFailed
}

func flagReasons(results []datatypes.RuleResult) []string {
	var reasons []string
	for _, result := range results {
		if result.Passed {
			continue
		}
		reason := result.Rule
		if result.Detail != "" {
			reason += ": " + result.Detail
		}
		reasons = append(reasons, reason)
	}
	return reasons
}

func hasDoc(docs []string, want string) bool {
	for _, doc := range docs {
		if strings.EqualFold(strings.TrimSpace(doc), want) {
			return true
		}
	}
	return false
}
