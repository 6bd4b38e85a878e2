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
)

// GetBilling handles GET /v1/loads/:loadId/billing.
func GetBilling(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		loadID := c.Param("loadId")
		if _, err := d.Store.GetLoad(loadID); err != nil {
			writeError(c, d, err)
			return
		}
		record, err := d.Store.GetBilling(loadID)
		if err != nil {
			writeError(c, d, err)
			return
		}
		if record == nil {
			// Billing has never run; the load is pre-delivery.
			c.JSON(http.StatusOK, gin.H{"load_id": loadID, "computed": false})
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

// Leakage handles GET /v1/billing/leakage, the service-wide aggregate.
func Leakage(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		totals, err := d.Store.LeakageTotals()
		if err != nil {
			writeError(c, d, err)
			return
		}
		c.JSON(http.StatusOK, totals)
	}
}
