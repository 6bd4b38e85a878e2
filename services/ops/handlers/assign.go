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

// AssignLoad handles POST /v1/loads/:loadId/assign. An empty driver_id
// lets the engine pick deterministically.
func AssignLoad(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.AssignRequest
		if !bindJSON(c, &req) {
			return
		}
		load, err := d.Assigner.Assign(c.Request.Context(),
			middleware.GetActor(c), middleware.GetIdempotencyKey(c),
			c.Param("loadId"), *req.ExpectedVersion, req.DriverID, "manual")
		d.Metrics.RecordMutation("assign_load", err)
		if err != nil {
			writeError(c, d, err)
			return
		}
		c.JSON(http.StatusOK, load)
	}
}

// BatchAssign handles POST /v1/assignments/batch. Per-load failures
// land in the result rows; the response is always 200.
func BatchAssign(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.BatchAssignRequest
		if !bindJSON(c, &req) {
			return
		}
		results := d.Assigner.AssignBatch(c.Request.Context(),
			middleware.GetActor(c), req.LoadIDs)
		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}
