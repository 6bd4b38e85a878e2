// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the ops service.
//
// Every mutation through the API is attributed to an actor so the
// timeline records who did what. The actor comes from the X-Actor
// header; absent that, requests are attributed to the UI. The autonomy
// coordinator bypasses HTTP and stamps its own actor.
package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/freightctl/freightctl/services/ops/observability"
)

// ActorHeader carries the caller identity on API requests.
const ActorHeader = "X-Actor"

// IdempotencyKeyHeader carries the client's idempotency key on
// mutations.
const IdempotencyKeyHeader = "Idempotency-Key"

// DefaultActor attributes requests that carry no X-Actor header.
const DefaultActor = "ui"

// actorKey is the gin context key for the resolved actor.
const actorKey = "freightctl_actor"

// Actor resolves the caller identity and stores it in the request
// context for handlers.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(ActorHeader))
		if actor == "" {
			actor = DefaultActor
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// GetActor returns the actor resolved by the Actor middleware.
func GetActor(c *gin.Context) string {
	if actor, ok := c.Get(actorKey); ok {
		if s, ok := actor.(string); ok && s != "" {
			return s
		}
	}
	return DefaultActor
}

// GetIdempotencyKey returns the request's Idempotency-Key header, empty
// when the client sent none.
func GetIdempotencyKey(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
}

// Metrics records request counts and latency. Uses the route template
// (c.FullPath) as the path label so load ids do not explode
// cardinality.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, path,
			strconv.Itoa(c.Writer.Status()), time.Since(started).Seconds())
	}
}
