// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// TestRecordMutationCountsByOutcome verifies ok and error land on
// separate series.
func TestRecordMutationCountsByOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordMutation("create_load", nil)
	m.RecordMutation("create_load", nil)
	m.RecordMutation("create_load", errors.New("boom"))

	assert.Equal(t, float64(2),
		testutil.ToFloat64(m.MutationsTotal.WithLabelValues("create_load", "ok")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.MutationsTotal.WithLabelValues("create_load", "error")))
}

// TestRecordLeakageSkipsZeroDeltas verifies only positive movement is
// added.
func TestRecordLeakageSkipsZeroDeltas(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordLeakage(150, 0)
	m.RecordLeakage(0, 75)
	m.RecordLeakage(0, 0)

	assert.Equal(t, float64(150),
		testutil.ToFloat64(m.LeakageUSD.WithLabelValues("detected")))
	assert.Equal(t, float64(75),
		testutil.ToFloat64(m.LeakageUSD.WithLabelValues("recovered")))
}

// TestRecordCycleActions verifies per-action counts accumulate and
// zero counts create no series.
func TestRecordCycleActions(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordCycle(0.2, map[string]int{"assigned": 3, "exported": 1, "error": 0})

	assert.Equal(t, float64(3),
		testutil.ToFloat64(m.CycleLoadsTotal.WithLabelValues("assigned")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.CycleLoadsTotal.WithLabelValues("exported")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.CycleLoadsTotal))
}

// TestNilMetricsAreSafe verifies a nil receiver never panics, so
// engines can run unwired in tests.
func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	m.RecordHTTPRequest("GET", "/v1/loads", "200", 0.01)
	m.RecordMutation("create_load", nil)
	m.RecordVersionConflict()
	m.RecordIdempotentReplay()
	m.RecordIdempotencyConflict()
	m.RecordReview("auto_approved")
	m.RecordLeakage(10, 0)
	m.RecordExport("acknowledged")
	m.RecordCycle(0.1, map[string]int{"assigned": 1})
}
