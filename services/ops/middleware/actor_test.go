// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newActorRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Actor())
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actor": GetActor(c)})
	})
	return router
}

// TestActorHeaderResolved verifies X-Actor flows through to handlers.
func TestActorHeaderResolved(t *testing.T) {
	router := newActorRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(ActorHeader, "billing.clerk")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"actor":"billing.clerk"}`, rec.Body.String())
}

// TestActorDefaultsToUI verifies a missing or blank header falls back
// to the UI actor.
func TestActorDefaultsToUI(t *testing.T) {
	router := newActorRouter()

	for _, header := range []string{"", "   "} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if header != "" {
			req.Header.Set(ActorHeader, header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.JSONEq(t, `{"actor":"ui"}`, rec.Body.String())
	}
}

// TestGetIdempotencyKeyTrimsWhitespace verifies header extraction.
func TestGetIdempotencyKeyTrimsWhitespace(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/loads", nil)
	c.Request.Header.Set(IdempotencyKeyHeader, "  retry-42  ")

	assert.Equal(t, "retry-42", GetIdempotencyKey(c))
}
