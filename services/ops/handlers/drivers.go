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

// CreateDriver handles POST /v1/drivers.
func CreateDriver(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateDriverRequest
		if !bindJSON(c, &req) {
			return
		}
		driver, err := d.Registry.CreateDriver(c.Request.Context(),
			middleware.GetActor(c), middleware.GetIdempotencyKey(c), &req)
		d.Metrics.RecordMutation("create_driver", err)
		if err != nil {
			writeError(c, d, err)
			return
		}
		c.JSON(http.StatusCreated, driver)
	}
}

// ListDrivers handles GET /v1/drivers.
func ListDrivers(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		drivers, err := d.Store.ListDrivers()
		if err != nil {
			writeError(c, d, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"drivers": drivers, "count": len(drivers)})
	}
}

// RemoveDriver handles DELETE /v1/drivers/:driverId. Refused while the
// driver is on a load.
func RemoveDriver(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID := c.Param("driverId")
		err := d.Registry.RemoveDriver(c.Request.Context(),
			middleware.GetActor(c), middleware.GetIdempotencyKey(c), driverID)
		d.Metrics.RecordMutation("remove_driver", err)
		if err != nil {
			writeError(c, d, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "removed", "driver_id": driverID})
	}
}
