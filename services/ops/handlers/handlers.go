// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the /v1 ops API.
//
// Handlers are thin: they bind the request body, pull the actor and
// idempotency key from headers, call the owning engine, and map the
// error taxonomy to HTTP status codes in one place (writeError). All
// business rules live in the engines.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/freightctl/freightctl/pkg/logging"
	"github.com/freightctl/freightctl/services/ops/assign"
	"github.com/freightctl/freightctl/services/ops/autonomy"
	"github.com/freightctl/freightctl/services/ops/config"
	"github.com/freightctl/freightctl/services/ops/export"
	"github.com/freightctl/freightctl/services/ops/observability"
	"github.com/freightctl/freightctl/services/ops/registry"
	"github.com/freightctl/freightctl/services/ops/review"
	"github.com/freightctl/freightctl/services/ops/store"
)

// Deps carries everything the handlers need. Construct once at startup
// and pass to routes.Setup.
type Deps struct {
	Store       *store.Store
	Registry    *registry.Registry
	Assigner    *assign.Engine
	Reviewer    *review.Engine
	Exporter    *export.Engine
	Coordinator *autonomy.Coordinator
	Telemetry   config.TelemetryConfig
	Metrics     *observability.Metrics
	Logger      *logging.Logger
}

// writeError maps the error taxonomy to HTTP status codes:
//
//	validation           400
//	not found            404
//	version conflict     409
//	idempotency conflict 409
//	lease held           409
//	invalid transition   422
//	external adapter     502
//	anything else        500
func writeError(c *gin.Context, d *Deps, err error) {
	body := gin.H{"error": err.Error()}

	var versionErr *store.VersionConflictError
	var adapterErr *store.ExternalAdapterError

	switch {
	case errors.Is(err, store.ErrValidation):
		c.JSON(http.StatusBadRequest, body)

	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, body)

	case errors.As(err, &versionErr):
		d.Metrics.RecordVersionConflict()
		body["expected_version"] = versionErr.Expected
		body["stored_version"] = versionErr.Actual
		c.JSON(http.StatusConflict, body)

	case errors.Is(err, store.ErrVersionConflict):
		d.Metrics.RecordVersionConflict()
		c.JSON(http.StatusConflict, body)

	case errors.Is(err, store.ErrIdempotencyKeyConflict):
		d.Metrics.RecordIdempotencyConflict()
		c.JSON(http.StatusConflict, body)

	case errors.Is(err, store.ErrLeaseHeld):
		c.JSON(http.StatusConflict, body)

	case errors.Is(err, store.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, body)

	case errors.As(err, &adapterErr):
		body["adapter"] = adapterErr.Adapter
		c.JSON(http.StatusBadGateway, body)

	default:
		d.Logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, body)
	}
}

// bindJSON binds the request body and answers 400 on failure. Returns
// false when the request was already answered.
func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// Health reports liveness.
func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
