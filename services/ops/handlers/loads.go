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
	"github.com/freightctl/freightctl/services/ops/store"
)

// CreateLoad handles POST /v1/loads.
func CreateLoad(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateLoadRequest
		if !bindJSON(c, &req) {
			return
		}
		load, err := d.Registry.CreateLoad(c.Request.Context(),
			middleware.GetActor(c), middleware.GetIdempotencyKey(c), &req)
		d.Metrics.RecordMutation("create_load", err)
		if err != nil {
			writeError(c, d, err)
			return
		}
		c.JSON(http.StatusCreated, load)
	}
}

// ListLoads handles GET /v1/loads. An optional status query filters.
func ListLoads(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := datatypes.LoadStatus(c.Query("status"))
		if status != "" && !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + string(status)})
			return
		}
		loads, err := d.Store.ListLoads(status)
		if err != nil {
			writeError(c, d, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"loads": loads, "count": len(loads)})
	}
}

// GetLoad handles GET /v1/loads/:loadId.
func GetLoad(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		load, err := d.Store.GetLoad(c.Param("loadId"))
		if err != nil {
			writeError(c, d, err)
			return
		}
		c.JSON(http.StatusOK, load)
	}
}

// UpdateLoad handles PATCH /v1/loads/:loadId.
func UpdateLoad(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.UpdateLoadRequest
		if !bindJSON(c, &req) {
			return
		}
		load, err := d.Registry.UpdateLoad(c.Request.Context(),
			middleware.GetActor(c), middleware.GetIdempotencyKey(c),
			c.Param("loadId"), &req)
		d.Metrics.RecordMutation("update_load", err)
		if err != nil {
			writeError(c, d, err)
			return
		}
		c.JSON(http.StatusOK, load)
	}
}

// TransitionLoad handles POST /v1/loads/:loadId/transition.
func TransitionLoad(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.TransitionRequest
		if !bindJSON(c, &req) {
			return
		}
		load, err := d.Registry.Transition(c.Request.Context(),
			middleware.GetActor(c), middleware.GetIdempotencyKey(c),
			c.Param("loadId"), &req)
		d.Metrics.RecordMutation("transition_load", err)
		if err != nil {
			writeError(c, d, err)
			return
		}
		c.JSON(http.StatusOK, load)
	}
}

// ReopenLoad handles POST /v1/loads/:loadId/reopen, the administrative
// exported -> billing_ready correction.
func ReopenLoad(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ReopenRequest
		if !bindJSON(c, &req) {
			return
		}
		load, err := d.Registry.Reopen(c.Request.Context(),
			middleware.GetActor(c), middleware.GetIdempotencyKey(c),
			c.Param("loadId"), &req)
		d.Metrics.RecordMutation("reopen_load", err)
		if err != nil {
			writeError(c, d, err)
			return
		}
		c.JSON(http.StatusOK, load)
	}
}

// Timeline handles GET /v1/loads/:loadId/timeline. The load must exist
// unless the SYSTEM pseudo-entity is queried.
func Timeline(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		loadID := c.Param("loadId")
		if loadID != datatypes.SystemEntityID {
			if _, err := d.Store.GetLoad(loadID); err != nil {
				writeError(c, d, err)
				return
			}
		}
		events, err := d.Store.Timeline(loadID)
		if err != nil {
			writeError(c, d, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entity_id": loadID, "events": events})
	}
}

// Board handles GET /v1/board, the dispatch overview.
func Board(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		board, err := d.Registry.Board()
		if err != nil {
			writeError(c, d, err)
			return
		}
		c.JSON(http.StatusOK, board)
	}
}

// KPI handles GET /v1/kpi, the back-office rollup.
func KPI(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot, err := buildKPI(d.Store)
		if err != nil {
			writeError(c, d, err)
			return
		}
		c.JSON(http.StatusOK, snapshot)
	}
}

func buildKPI(s *store.Store) (*datatypes.KPISnapshot, error) {
	loads, err := s.ListLoads("")
	if err != nil {
		return nil, err
	}
	reviews, err := s.ListReviews("")
	if err != nil {
		return nil, err
	}
	drivers, err := s.ListDrivers()
	if err != nil {
		return nil, err
	}
	leakage, err := s.LeakageTotals()
	if err != nil {
		return nil, err
	}

	snapshot := &datatypes.KPISnapshot{
		TotalLoads:          len(loads),
		LeakageDetectedUSD:  leakage.DetectedUSD,
		LeakageRecoveredUSD: leakage.RecoveredUSD,
	}
	for _, load := range loads {
		switch load.Status {
		case datatypes.StatusDelivered:
			snapshot.DeliveredLoads++
		case datatypes.StatusExported:
			snapshot.ExportedLoads++
		default:
			snapshot.ActiveLoads++
		}
	}

	autoApproved := 0
	for _, review := range reviews {
		switch review.Decision {
		case datatypes.DecisionAutoApproved:
			autoApproved++
		case datatypes.DecisionFlagged:
			snapshot.OpenReviews++
		}
	}
	if len(reviews) > 0 {
		snapshot.AutoApprovalRate = float64(autoApproved) / float64(len(reviews))
	}

	for _, driver := range drivers {
		if driver.Status == datatypes.DriverAvailable {
			snapshot.AvailableDrivers++
		}
	}

	if last, err := s.LastCycle(); err == nil && last != nil {
		snapshot.LastCycleID = last.CycleID
	}
	return snapshot, nil
}
