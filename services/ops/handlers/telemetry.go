// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/freightctl/freightctl/services/ops/datatypes"
	"github.com/freightctl/freightctl/services/ops/middleware"
	"github.com/freightctl/freightctl/services/ops/store"
)

// IngestTelemetry handles POST /v1/telemetry. Events already seen (by
// event_key) are counted as duplicates and dropped.
func IngestTelemetry(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.IngestTelemetryRequest
		if !bindJSON(c, &req) {
			return
		}

		events := make([]datatypes.TelemetryEvent, 0, len(req.Events))
		for _, in := range req.Events {
			recordedAt, err := time.Parse(time.RFC3339, in.RecordedAt)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "event " + in.EventKey + ": recorded_at must be RFC3339",
				})
				return
			}
			events = append(events, datatypes.TelemetryEvent{
				EventKey:    in.EventKey,
				LoadID:      in.LoadID,
				VehicleID:   in.VehicleID,
				DriverID:    in.DriverID,
				MilesDriven: in.MilesDriven,
				Latitude:    in.Latitude,
				Longitude:   in.Longitude,
				RecordedAt:  recordedAt,
			})
		}

		retention := d.Telemetry.Retention
		out, err := d.Store.Mutate(c.Request.Context(), store.Mutation{
			Operation:      "ingest_telemetry",
			Actor:          middleware.GetActor(c),
			IdempotencyKey: middleware.GetIdempotencyKey(c),
			Request:        req,
			Apply: func(tx *store.Tx) (any, error) {
				return tx.PutTelemetry(events, retention)
			},
		})
		d.Metrics.RecordMutation("ingest_telemetry", err)
		if err != nil {
			writeError(c, d, err)
			return
		}
		var stored int
		if err := out.Decode(&stored); err != nil {
			writeError(c, d, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"received":   len(events),
			"stored":     stored,
			"duplicates": len(events) - stored,
		})
	}
}

// ListTelemetry handles GET /v1/loads/:loadId/telemetry, newest first.
func ListTelemetry(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		loadID := c.Param("loadId")
		events, err := d.Store.ListTelemetry(loadID)
		if err != nil {
			writeError(c, d, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"load_id": loadID, "events": events, "count": len(events)})
	}
}
