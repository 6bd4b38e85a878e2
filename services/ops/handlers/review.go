// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/freightctl/freightctl/services/ops/datatypes"
	"github.com/freightctl/freightctl/services/ops/middleware"
)

// SubmitTicket handles POST /v1/tickets: driver paperwork goes through
// the review engine and comes back auto_approved or flagged.
func SubmitTicket(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.SubmitTicketRequest
		if !bindJSON(c, &req) {
			return
		}
		result, err := d.Reviewer.Submit(c.Request.Context(),
			middleware.GetActor(c), middleware.GetIdempotencyKey(c), &req)
		d.Metrics.RecordMutation("submit_ticket", err)
		if err != nil {
			writeError(c, d, err)
			return
		}
		d.Metrics.RecordReview(string(result.Decision))
		c.JSON(http.StatusCreated, result)
	}
}

// GetReview handles GET /v1/reviews/:reviewId.
func GetReview(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		review, err := d.Store.GetReview(c.Param("reviewId"))
		if err != nil {
			writeError(c, d, err)
			return
		}
		c.JSON(http.StatusOK, review)
	}
}

// ListReviews handles GET /v1/reviews. An optional decision query
// filters; ?decision=flagged is the human review queue.
func ListReviews(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := datatypes.ReviewDecision(c.Query("decision"))
		reviews, err := d.Store.ListReviews(decision)
		if err != nil {
			writeError(c, d, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reviews": reviews, "count": len(reviews)})
	}
}

// ResolveReview handles POST /v1/reviews/:reviewId/resolve, the human
// decision on a flagged ticket.
func ResolveReview(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ResolveReviewRequest
		if !bindJSON(c, &req) {
			return
		}
		result, err := d.Reviewer.Resolve(c.Request.Context(),
			middleware.GetActor(c), middleware.GetIdempotencyKey(c),
			c.Param("reviewId"), &req)
		d.Metrics.RecordMutation("resolve_review", err)
		if err != nil {
			writeError(c, d, err)
			return
		}
		d.Metrics.RecordReview(string(result.Decision))
		c.JSON(http.StatusOK, result)
	}
}
