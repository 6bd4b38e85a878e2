// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightctl/freightctl/services/ops/assign"
	"github.com/freightctl/freightctl/services/ops/autonomy"
	"github.com/freightctl/freightctl/services/ops/billing"
	"github.com/freightctl/freightctl/services/ops/config"
	"github.com/freightctl/freightctl/services/ops/datatypes"
	"github.com/freightctl/freightctl/services/ops/export"
	"github.com/freightctl/freightctl/services/ops/handlers"
	"github.com/freightctl/freightctl/services/ops/registry"
	"github.com/freightctl/freightctl/services/ops/review"
	"github.com/freightctl/freightctl/services/ops/routes"
	"github.com/freightctl/freightctl/services/ops/store"
)

type apiFixture struct {
	router *gin.Engine
	store  *store.Store
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	return newAPIWithConfig(t, config.Default())
}

func newAPIWithConfig(t *testing.T, cfg *config.Config) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := store.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	biller := billing.NewEngine(cfg.Billing, cfg.Review.RequiredDocuments, nil, nil)
	reg := registry.New(s, biller, nil)
	assigner := assign.NewEngine(s, nil)
	reviewer := review.NewEngine(s, biller, cfg.Review, cfg.Telemetry.Lookback, nil)
	exporter := export.NewEngine(s, export.NewFileBridge(t.TempDir()), cfg.Export.SubmitTimeout, nil)
	coordinator := autonomy.New(s, assigner, reviewer, biller, exporter, cfg.Autonomy, nil)

	_, err = reg.BootstrapDrivers(context.Background())
	require.NoError(t, err)

	router := gin.New()
	routes.Setup(router, &handlers.Deps{
		Store:       s,
		Registry:    reg,
		Assigner:    assigner,
		Reviewer:    reviewer,
		Exporter:    exporter,
		Coordinator: coordinator,
		Telemetry:   cfg.Telemetry,
	})
	return &apiFixture{router: router, store: s}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) createLoad(t *testing.T) datatypes.Load {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/loads", gin.H{
		"customer":          "Acme Produce",
		"pickup_location":   "Tampa Plant",
		"delivery_location": "Miami Dock 4",
		"equipment_type":    "reefer",
		"planned_miles":     280,
		"rate_total":        1200,
		"zone":              "FL-South",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var load datatypes.Load
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &load))
	return load
}

// TestCreateLoadReturnsVersionZero verifies POST /v1/loads and the
// actor header on the timeline.
func TestCreateLoadReturnsVersionZero(t *testing.T) {
	f := newAPI(t)
	load := f.createLoad(t)

	assert.Equal(t, "LOAD00001", load.LoadID)
	assert.Equal(t, datatypes.StatusPlanned, load.Status)
	assert.Equal(t, int64(0), load.Version)

	events, err := f.store.Timeline(load.LoadID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "ui", events[0].Actor)
}

// TestCreateLoadValidation verifies binding failures answer 400.
func TestCreateLoadValidation(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodPost, "/v1/loads", gin.H{"customer": "Acme"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestGetLoadNotFound verifies the 404 mapping.
func TestGetLoadNotFound(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodGet, "/v1/loads/LOAD99999", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestUpdateLoadStaleVersionAnswers409 verifies the version-conflict
// mapping carries both versions.
func TestUpdateLoadStaleVersionAnswers409(t *testing.T) {
	f := newAPI(t)
	load := f.createLoad(t)

	// Bump the version once.
	rec := f.do(t, http.MethodPatch, "/v1/loads/"+load.LoadID, gin.H{
		"expected_version": 0,
		"notes":            "call ahead",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Re-using version 0 must now conflict.
	rec = f.do(t, http.MethodPatch, "/v1/loads/"+load.LoadID, gin.H{
		"expected_version": 0,
		"notes":            "stale writer",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 0, body["expected_version"])
	assert.EqualValues(t, 1, body["stored_version"])
}

// TestIdempotencyKeyReplayAndConflict verifies a repeated key replays
// the original response and a reused key with a different body answers
// 409.
func TestIdempotencyKeyReplayAndConflict(t *testing.T) {
	f := newAPI(t)
	body := gin.H{
		"customer":          "Acme Produce",
		"pickup_location":   "Tampa Plant",
		"delivery_location": "Miami Dock 4",
		"equipment_type":    "reefer",
		"planned_miles":     280,
		"rate_total":        1200,
	}
	headers := map[string]string{"Idempotency-Key": "create-1"}

	first := f.do(t, http.MethodPost, "/v1/loads", body, headers)
	require.Equal(t, http.StatusCreated, first.Code)

	second := f.do(t, http.MethodPost, "/v1/loads", body, headers)
	require.Equal(t, http.StatusCreated, second.Code)

	var a, b datatypes.Load
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	assert.Equal(t, a.LoadID, b.LoadID)

	loads, err := f.store.ListLoads("")
	require.NoError(t, err)
	assert.Len(t, loads, 1)

	body["customer"] = "Different Shipper"
	conflict := f.do(t, http.MethodPost, "/v1/loads", body, headers)
	assert.Equal(t, http.StatusConflict, conflict.Code)
}

// TestManualTransitionToEngineOwnedStatus verifies the 422 mapping for
// illegal transitions.
func TestManualTransitionToEngineOwnedStatus(t *testing.T) {
	f := newAPI(t)
	load := f.createLoad(t)

	rec := f.do(t, http.MethodPost, "/v1/loads/"+load.LoadID+"/transition", gin.H{
		"expected_version": 0,
		"target":           "billing_ready",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// TestTransitionUnknownStatusFailsBinding verifies a made-up target is
// rejected at the binding layer.
func TestTransitionUnknownStatusFailsBinding(t *testing.T) {
	f := newAPI(t)
	load := f.createLoad(t)

	rec := f.do(t, http.MethodPost, "/v1/loads/"+load.LoadID+"/transition", gin.H{
		"expected_version": 0,
		"target":           "teleported",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestTicketFlowOverHTTP walks assign -> submit -> billing over the
// API.
func TestTicketFlowOverHTTP(t *testing.T) {
	f := newAPI(t)
	load := f.createLoad(t)

	rec := f.do(t, http.MethodPost, "/v1/loads/"+load.LoadID+"/assign", gin.H{
		"expected_version": 0,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/v1/tickets", gin.H{
		"load_id":        load.LoadID,
		"documents":      []string{"rate_confirmation", "bill_of_lading", "proof_of_delivery"},
		"gps_miles":      282,
		"delivery_zone":  "FL-South",
		"pod_signed":     true,
		"rate_on_ticket": 1200,
	}, map[string]string{"X-Actor": "driver.app"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result datatypes.TicketReview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, datatypes.DecisionAutoApproved, result.Decision)
	assert.Equal(t, 1.0, result.Confidence)

	rec = f.do(t, http.MethodGet, "/v1/loads/"+load.LoadID+"/billing", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var billingRecord datatypes.BillingRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &billingRecord))
	assert.True(t, billingRecord.Ready)
}

// TestReviewQueueFilter verifies GET /v1/reviews?decision=flagged.
func TestReviewQueueFilter(t *testing.T) {
	f := newAPI(t)
	load := f.createLoad(t)

	rec := f.do(t, http.MethodPost, "/v1/loads/"+load.LoadID+"/assign", gin.H{
		"expected_version": 0,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Missing documents: hard flag.
	rec = f.do(t, http.MethodPost, "/v1/tickets", gin.H{
		"load_id":        load.LoadID,
		"gps_miles":      282,
		"delivery_zone":  "FL-South",
		"pod_signed":     true,
		"rate_on_ticket": 1200,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/reviews?decision=flagged", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Reviews []datatypes.TicketReview `json:"reviews"`
		Count   int                      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, datatypes.DecisionFlagged, body.Reviews[0].Decision)
	assert.Zero(t, body.Reviews[0].Confidence)
}

// TestExportOverHTTP verifies export + ledger + replay endpoints.
func TestExportOverHTTP(t *testing.T) {
	f := newAPI(t)
	load := f.createLoad(t)

	rec := f.do(t, http.MethodPost, "/v1/loads/"+load.LoadID+"/assign", gin.H{
		"expected_version": 0,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/tickets", gin.H{
		"load_id":        load.LoadID,
		"documents":      []string{"rate_confirmation", "bill_of_lading", "proof_of_delivery"},
		"gps_miles":      282,
		"delivery_zone":  "FL-South",
		"pod_signed":     true,
		"rate_on_ticket": 1200,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	current, err := f.store.GetLoad(load.LoadID)
	require.NoError(t, err)
	require.Equal(t, datatypes.StatusBillingReady, current.Status)

	rec = f.do(t, http.MethodPost, "/v1/loads/"+load.LoadID+"/export", gin.H{
		"expected_version": current.Version,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var artifact datatypes.ExportArtifact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &artifact))
	assert.Equal(t, datatypes.ExportAcknowledged, artifact.Status)

	rec = f.do(t, http.MethodPost, "/v1/exports/"+artifact.ExportID+"/replay", nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var replay datatypes.ExportArtifact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &replay))
	assert.Equal(t, artifact.ExportID, replay.ReplayOf)
	assert.Equal(t, artifact.PayloadHash, replay.PayloadHash)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/v1/exports?load_id=%s", load.LoadID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var ledger struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ledger))
	assert.Equal(t, 2, ledger.Count)
}

// TestTelemetryIngestDeduplicates verifies POST /v1/telemetry counts
// duplicates.
func TestTelemetryIngestDeduplicates(t *testing.T) {
	f := newAPI(t)
	load := f.createLoad(t)

	events := gin.H{"events": []gin.H{
		{
			"event_key":    "evt-1",
			"load_id":      load.LoadID,
			"miles_driven": 120.5,
			"recorded_at":  "2026-08-25T14:00:00Z",
		},
		{
			"event_key":    "evt-1",
			"load_id":      load.LoadID,
			"miles_driven": 120.5,
			"recorded_at":  "2026-08-25T14:00:00Z",
		},
	}}

	rec := f.do(t, http.MethodPost, "/v1/telemetry", events, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 2, body["received"])
	assert.EqualValues(t, 1, body["stored"])
	assert.EqualValues(t, 1, body["duplicates"])
}

// TestAutonomyCycleEndpoint verifies POST /v1/autonomy/cycles and the
// last-summary query.
func TestAutonomyCycleEndpoint(t *testing.T) {
	f := newAPI(t)

	// No cycle yet.
	rec := f.do(t, http.MethodGet, "/v1/autonomy/cycles/last", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.createLoad(t)
	rec = f.do(t, http.MethodPost, "/v1/autonomy/cycles", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary datatypes.CycleSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Assigned)

	rec = f.do(t, http.MethodGet, "/v1/autonomy/cycles/last", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

// TestCycleExportDefaultComesFromConfig verifies an empty cycle body
// picks up the configured export flag instead of always false.
func TestCycleExportDefaultComesFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Autonomy.ExportEnabled = true
	f := newAPIWithConfig(t, cfg)
	load := f.createLoad(t)

	rec := f.do(t, http.MethodPost, "/v1/loads/"+load.LoadID+"/assign", gin.H{
		"expected_version": 0,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/tickets", gin.H{
		"load_id":        load.LoadID,
		"documents":      []string{"rate_confirmation", "bill_of_lading", "proof_of_delivery"},
		"gps_miles":      282,
		"delivery_zone":  "FL-South",
		"pod_signed":     true,
		"rate_on_ticket": 1200,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Empty body: the configured default applies.
	rec = f.do(t, http.MethodPost, "/v1/autonomy/cycles", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary datatypes.CycleSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Exported)

	// An explicit false in the body overrides the config.
	f.createLoad(t)
	rec = f.do(t, http.MethodPost, "/v1/autonomy/cycles", gin.H{
		"export_enabled": false,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Zero(t, summary.Exported)
}

// TestKPISnapshot verifies the rollup endpoint after a full lifecycle.
func TestKPISnapshot(t *testing.T) {
	f := newAPI(t)
	load := f.createLoad(t)

	rec := f.do(t, http.MethodPost, "/v1/loads/"+load.LoadID+"/assign", gin.H{
		"expected_version": 0,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/tickets", gin.H{
		"load_id":        load.LoadID,
		"documents":      []string{"rate_confirmation", "bill_of_lading", "proof_of_delivery"},
		"gps_miles":      282,
		"delivery_zone":  "FL-South",
		"pod_signed":     true,
		"rate_on_ticket": 1200,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/kpi", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot datatypes.KPISnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, 1, snapshot.TotalLoads)
	assert.Equal(t, 1, snapshot.ActiveLoads)
	assert.Equal(t, 1.0, snapshot.AutoApprovalRate)
	// Auto-approval released the driver back to the pool.
	assert.Equal(t, 4, snapshot.AvailableDrivers)
}

// TestBoardEndpoint verifies the dispatch overview shape.
func TestBoardEndpoint(t *testing.T) {
	f := newAPI(t)
	f.createLoad(t)

	rec := f.do(t, http.MethodGet, "/v1/board", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var board datatypes.DispatchBoard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
	assert.Equal(t, 1, board.Counts[datatypes.StatusPlanned])
	assert.Len(t, board.Drivers, 4)
}
