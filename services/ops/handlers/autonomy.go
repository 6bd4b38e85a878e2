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
)

// RunCycle handles POST /v1/autonomy/cycles: one synchronous autonomy
// cycle. An empty body runs with the configured defaults.
func RunCycle(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.RunCycleRequest
		if c.Request.ContentLength > 0 {
			if !bindJSON(c, &req) {
				return
			}
		}
		exportEnabled := d.Coordinator.ExportByDefault()
		if req.ExportEnabled != nil {
			exportEnabled = *req.ExportEnabled
		}
		summary, err := d.Coordinator.RunCycle(c.Request.Context(),
			exportEnabled, req.MaxLoads)
		d.Metrics.RecordMutation("run_cycle", err)
		if err != nil {
			writeError(c, d, err)
			return
		}
		d.Metrics.RecordCycle(summary.FinishedAt.Sub(summary.StartedAt).Seconds(),
			map[string]int{
				"assigned": summary.Assigned,
				"reviewed": summary.Reviewed,
				"flagged":  summary.Flagged,
				"blocked":  summary.Blocked,
				"exported": summary.Exported,
				"skipped":  summary.Skipped,
				"error":    len(summary.Errors),
			})
		c.JSON(http.StatusOK, summary)
	}
}

// LastCycle handles GET /v1/autonomy/cycles/last.
func LastCycle(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := d.Coordinator.LastSummary()
		if err != nil {
			writeError(c, d, err)
			return
		}
		if summary == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no cycle has run"})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}
