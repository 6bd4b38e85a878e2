// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package review evaluates driver ticket submissions.
//
// The engine runs a fixed, ordered rule table (see rules.go): hard
// rules gate the ticket outright, soft signals shape a deterministic
// confidence score in [0,1]. At or above the configured threshold the
// ticket auto-approves; otherwise it is flagged for a human, who closes
// it with Resolve. An approval — automatic or human — delivers the load
// and hands it to the billing ledger.
package review

import (
	"context"
	"time"

	"github.com/freightctl/freightctl/pkg/logging"
	"github.com/freightctl/freightctl/services/ops/billing"
	"github.com/freightctl/freightctl/services/ops/config"
	"github.com/freightctl/freightctl/services/ops/datatypes"
	"github.com/freightctl/freightctl/services/ops/registry"
	"github.com/freightctl/freightctl/services/ops/store"
)

// Engine is the ticket review engine.
type Engine struct {
	store    *store.Store
	billing  *billing.Engine
	cfg      config.ReviewConfig
	lookback time.Duration
	logger   *logging.Logger
}

// NewEngine creates a review engine. lookback bounds how old a
// telemetry reading may be when the ticket omits GPS miles.
func NewEngine(s *store.Store, billingEngine *billing.Engine, cfg config.ReviewConfig, lookback time.Duration, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		store:    s,
		billing:  billingEngine,
		cfg:      cfg,
		lookback: lookback,
		logger:   logger,
	}
}

// Submit evaluates a ticket submission and records the review. The
// decision is deterministic for a given store state.
func (e *Engine) Submit(ctx context.Context, actor, idemKey string, req *datatypes.SubmitTicketRequest) (*datatypes.TicketReview, error) {
	out, err := e.store.Mutate(ctx, store.Mutation{
		Operation:      "submit_ticket:" + req.LoadID,
		Actor:          actor,
		IdempotencyKey: idemKey,
		Request:        req,
		Apply: func(tx *store.Tx) (any, error) {
			load, err := tx.GetLoad(req.LoadID)
			if err != nil {
				return nil, err
			}
			switch load.Status {
			case datatypes.StatusPlanned:
				return nil, &store.ValidationError{Field: "load_id",
					Detail: "load " + req.LoadID + " has no assignment to review"}
			case datatypes.StatusExported:
				return nil, &store.ValidationError{Field: "load_id",
					Detail: "load " + req.LoadID + " is already exported"}
			}

			submission := datatypes.TicketSubmission{
				LoadID:       req.LoadID,
				DriverID:     req.DriverID,
				Documents:    req.Documents,
				GPSMiles:     req.GPSMiles,
				DeliveryZone: req.DeliveryZone,
				PODSigned:    req.PODSigned,
				RateOnTicket: req.RateOnTicket,
				SplitTicket:  req.SplitTicket,
			}

			ec := &evalContext{
				cfg:        e.cfg,
				load:       load,
				submission: &submission,
			}
			if submission.GPSMiles > 0 {
				ec.effectiveMiles = submission.GPSMiles
				ec.hasMiles = true
				ec.milesSource = "ticket"
			} else if miles, ok, err := tx.LatestMiles(req.LoadID, e.lookback); err != nil {
				return nil, err
			} else if ok {
				ec.effectiveMiles = miles
				ec.hasMiles = true
				ec.milesSource = "telemetry"
				submission.GPSMiles = miles
			}

			results, confidence, hardFailed := evaluate(ec)

			decision := datatypes.DecisionFlagged
			if !hardFailed && confidence >= e.cfg.AutoApproveThreshold {
				decision = datatypes.DecisionAutoApproved
			}

			reviewID, err := tx.NextReviewID()
			if err != nil {
				return nil, err
			}
			reviewRecord := &datatypes.TicketReview{
				ReviewID:   reviewID,
				LoadID:     req.LoadID,
				Submission: submission,
				Decision:   decision,
				Confidence: confidence,
				Rules:      results,
				ReviewedBy: actor,
				CreatedAt:  tx.Now(),
			}
			if decision == datatypes.DecisionFlagged {
				reviewRecord.FlagReasons = flagReasons(results)
			}
			if err := tx.PutReview(reviewRecord); err != nil {
				return nil, err
			}
			if _, err := tx.AppendEvent(req.LoadID, datatypes.EventTicketReviewed, map[string]any{
				"review_id":  reviewID,
				"decision":   string(decision),
				"confidence": confidence,
			}); err != nil {
				return nil, err
			}

			if decision == datatypes.DecisionAutoApproved {
				if err := e.deliverAndBill(tx, load); err != nil {
					return nil, err
				}
			}
			return reviewRecord, nil
		},
	})
	if err != nil {
		return nil, err
	}
	var reviewRecord datatypes.TicketReview
	if err := out.Decode(&reviewRecord); err != nil {
		return nil, err
	}
	e.logger.Info("ticket reviewed",
		"load_id", req.LoadID,
		"review_id", reviewRecord.ReviewID,
		"decision", reviewRecord.Decision,
		"confidence", reviewRecord.Confidence)
	return &reviewRecord, nil
}

// Resolve closes a flagged review with an approve or reject outcome.
// The original confidence is untouched; a resolved review is terminal.
// An approval delivers the load and recomputes billing.
func (e *Engine) Resolve(ctx context.Context, actor, idemKey, reviewID string, req *datatypes.ResolveReviewRequest) (*datatypes.TicketReview, error) {
	out, err := e.store.Mutate(ctx, store.Mutation{
		Operation:      "resolve_review:" + reviewID,
		Actor:          actor,
		IdempotencyKey: idemKey,
		Request:        req,
		Apply: func(tx *store.Tx) (any, error) {
			reviewRecord, err := tx.GetReview(reviewID)
			if err != nil {
				return nil, err
			}
			if reviewRecord.Terminal() {
				return nil, &store.ValidationError{Field: "review_id",
					Detail: "review " + reviewID + " is already " + string(reviewRecord.Decision)}
			}

			reviewRecord.Decision = datatypes.DecisionResolved
			reviewRecord.Resolution = &datatypes.Resolution{
				Actor:      actor,
				Outcome:    req.Outcome,
				Reason:     req.Reason,
				ResolvedAt: tx.Now(),
			}
			if err := tx.PutReview(reviewRecord); err != nil {
				return nil, err
			}
			if _, err := tx.AppendEvent(reviewRecord.LoadID, datatypes.EventTicketResolved, map[string]any{
				"review_id": reviewID,
				"outcome":   req.Outcome,
				"reason":    req.Reason,
			}); err != nil {
				return nil, err
			}

			if req.Outcome == "approve" {
				load, err := tx.GetLoad(reviewRecord.LoadID)
				if err != nil {
					return nil, err
				}
				if err := e.deliverAndBill(tx, load); err != nil {
					return nil, err
				}
			}
			return reviewRecord, nil
		},
	})
	if err != nil {
		return nil, err
	}
	var reviewRecord datatypes.TicketReview
	if err := out.Decode(&reviewRecord); err != nil {
		return nil, err
	}
	e.logger.Info("review resolved",
		"review_id", reviewID, "outcome", req.Outcome, "actor", actor)
	return &reviewRecord, nil
}

// Queue returns flagged reviews awaiting a human.
func (e *Engine) Queue() ([]datatypes.TicketReview, error) {
	return e.store.ListReviews(datatypes.DecisionFlagged)
}

// deliverAndBill walks an approved load to delivered (if it is not
// there yet) and runs the billing ledger.
func (e *Engine) deliverAndBill(tx *store.Tx, load *datatypes.Load) error {
	switch load.Status {
	case datatypes.StatusAssigned, datatypes.StatusInTransit:
		from := load.Status
		load.Status = datatypes.StatusDelivered
		if err := tx.PutLoad(load); err != nil {
			return err
		}
		if _, err := tx.AppendEvent(load.LoadID, datatypes.EventLoadStatus, map[string]any{
			"from":   string(from),
			"to":     string(datatypes.StatusDelivered),
			"reason": "ticket approved",
		}); err != nil {
			return err
		}
		if err := registry.ReleaseDriver(tx, load); err != nil {
			return err
		}
	}
	_, err := e.billing.Recompute(tx, load)
	return err
}
