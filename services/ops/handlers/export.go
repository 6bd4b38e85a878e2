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

// ExportLoad handles POST /v1/loads/:loadId/export. A failed bridge
// call answers 502 with the failed artifact attached so the caller can
// retry or replay later.
func ExportLoad(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ExportRequest
		if !bindJSON(c, &req) {
			return
		}
		artifact, err := d.Exporter.Export(c.Request.Context(),
			middleware.GetActor(c), middleware.GetIdempotencyKey(c),
			c.Param("loadId"), *req.ExpectedVersion)
		d.Metrics.RecordMutation("export_load", err)
		if err != nil {
			if artifact != nil {
				d.Metrics.RecordExport(string(artifact.Status))
				c.JSON(http.StatusBadGateway, gin.H{
					"error":    err.Error(),
					"artifact": artifact,
				})
				return
			}
			writeError(c, d, err)
			return
		}
		d.Metrics.RecordExport(string(artifact.Status))
		c.JSON(http.StatusCreated, artifact)
	}
}

// ReplayExport handles POST /v1/exports/:exportId/replay.
func ReplayExport(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		artifact, err := d.Exporter.Replay(c.Request.Context(),
			middleware.GetActor(c), middleware.GetIdempotencyKey(c),
			c.Param("exportId"))
		d.Metrics.RecordMutation("replay_export", err)
		if err != nil {
			if artifact != nil {
				d.Metrics.RecordExport(string(artifact.Status))
				c.JSON(http.StatusBadGateway, gin.H{
					"error":    err.Error(),
					"artifact": artifact,
				})
				return
			}
			writeError(c, d, err)
			return
		}
		d.Metrics.RecordExport(string(artifact.Status))
		c.JSON(http.StatusCreated, artifact)
	}
}

// GetExport handles GET /v1/exports/:exportId.
func GetExport(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		artifact, err := d.Store.GetExport(c.Param("exportId"))
		if err != nil {
			writeError(c, d, err)
			return
		}
		c.JSON(http.StatusOK, artifact)
	}
}

// ListExports handles GET /v1/exports, the full artifact ledger. An
// optional load_id query narrows to one load.
func ListExports(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var artifacts []datatypes.ExportArtifact
		var err error
		if loadID := c.Query("load_id"); loadID != "" {
			artifacts, err = d.Store.ListExportsForLoad(loadID)
		} else {
			artifacts, err = d.Store.ListExports()
		}
		if err != nil {
			writeError(c, d, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"exports": artifacts, "count": len(artifacts)})
	}
}
