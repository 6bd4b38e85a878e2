// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires the /v1 ops API onto a gin router.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/freightctl/freightctl/services/ops/handlers"
	"github.com/freightctl/freightctl/services/ops/middleware"
)

// Setup registers all ops routes. Every mutation honors the
// Idempotency-Key header; the X-Actor header (default "ui") stamps
// timeline actors.
func Setup(router *gin.Engine, deps *handlers.Deps) {
	router.Use(middleware.Actor())
	if deps.Metrics != nil {
		router.Use(middleware.Metrics(deps.Metrics))
	}

	router.GET("/health", handlers.Health())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		loads := v1.Group("/loads")
		{
			loads.POST("", handlers.CreateLoad(deps))
			loads.GET("", handlers.ListLoads(deps))
			loads.GET("/:loadId", handlers.GetLoad(deps))
			loads.PATCH("/:loadId", handlers.UpdateLoad(deps))
			loads.POST("/:loadId/transition", handlers.TransitionLoad(deps))
			loads.POST("/:loadId/reopen", handlers.ReopenLoad(deps))
			loads.POST("/:loadId/assign", handlers.AssignLoad(deps))
			loads.POST("/:loadId/export", handlers.ExportLoad(deps))
			loads.GET("/:loadId/billing", handlers.GetBilling(deps))
			loads.GET("/:loadId/timeline", handlers.Timeline(deps))
			loads.GET("/:loadId/telemetry", handlers.ListTelemetry(deps))
		}

		v1.POST("/assignments/batch", handlers.BatchAssign(deps))

		v1.POST("/tickets", handlers.SubmitTicket(deps))
		reviews := v1.Group("/reviews")
		{
			reviews.GET("", handlers.ListReviews(deps))
			reviews.GET("/:reviewId", handlers.GetReview(deps))
			reviews.POST("/:reviewId/resolve", handlers.ResolveReview(deps))
		}

		v1.GET("/billing/leakage", handlers.Leakage(deps))

		exports := v1.Group("/exports")
		{
			exports.GET("", handlers.ListExports(deps))
			exports.GET("/:exportId", handlers.GetExport(deps))
			exports.POST("/:exportId/replay", handlers.ReplayExport(deps))
		}

		autonomy := v1.Group("/autonomy")
		{
			autonomy.POST("/cycles", handlers.RunCycle(deps))
			autonomy.GET("/cycles/last", handlers.LastCycle(deps))
		}

		v1.POST("/telemetry", handlers.IngestTelemetry(deps))

		drivers := v1.Group("/drivers")
		{
			drivers.POST("", handlers.CreateDriver(deps))
			drivers.GET("", handlers.ListDrivers(deps))
			drivers.DELETE("/:driverId", handlers.RemoveDriver(deps))
		}

		v1.GET("/board", handlers.Board(deps))
		v1.GET("/kpi", handlers.KPI(deps))
	}
}
