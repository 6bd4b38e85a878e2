// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import "fmt"

// Key families. Keys are flat byte strings; prefix iteration gives the
// list operations their ordering. Timeline sequence numbers are fixed-
// width hex so lexicographic order matches numeric order.
const (
	prefixLoad       = "load/"
	prefixDriver     = "driver/"
	prefixReview     = "review/"
	prefixLoadReview = "loadreview/" // loadreview/<load>/<review> -> review id index
	prefixBilling    = "billing/"    // billing/<load> -> latest computation
	prefixExport     = "export/"
	prefixLoadExport = "loadexport/" // loadexport/<load>/<export> -> export id index
	prefixTimeline   = "timeline/"   // timeline/<entity>/<seq16>
	prefixIdem       = "idem/"
	prefixLease      = "lease/"
	prefixSeq        = "seq/"
	prefixTelemetry  = "telemetry/" // telemetry/<load>/<event key>
	keyCycleLast     = "cycle/last"
	keyLeakage       = "metrics/leakage"
)

// Sequence names. Counters advance inside the mutation transaction so
// issued ids are gapless under contention.
const (
	seqLoad   = "load"
	seqReview = "review"
	seqExport = "export"
	seqCycle  = "cycle"
)

func loadKey(id string) []byte   { return []byte(prefixLoad + id) }
func driverKey(id string) []byte { return []byte(prefixDriver + id) }
func reviewKey(id string) []byte { return []byte(prefixReview + id) }
func exportKey(id string) []byte { return []byte(prefixExport + id) }
func billingKey(loadID string) []byte {
	return []byte(prefixBilling + loadID)
}
func loadReviewKey(loadID, reviewID string) []byte {
	return []byte(prefixLoadReview + loadID + "/" + reviewID)
}
func loadExportKey(loadID, exportID string) []byte {
	return []byte(prefixLoadExport + loadID + "/" + exportID)
}
func timelineKey(entityID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%016x", prefixTimeline, entityID, seq))
}
func idemKey(key string) []byte  { return []byte(prefixIdem + key) }
func leaseKey(id string) []byte  { return []byte(prefixLease + id) }
func seqKey(name string) []byte  { return []byte(prefixSeq + name) }
func telemetryKey(loadID, eventKey string) []byte {
	return []byte(prefixTelemetry + loadID + "/" + eventKey)
}

// FormatLoadID renders a load sequence number as LOAD00001.
func FormatLoadID(n uint64) string { return fmt.Sprintf("LOAD%05d", n) }

// FormatReviewID renders a review sequence number as REV-000001.
func FormatReviewID(n uint64) string { return fmt.Sprintf("REV-%06d", n) }

// FormatExportID renders an export sequence number as EXP-000001.
func FormatExportID(n uint64) string { return fmt.Sprintf("EXP-%06d", n) }

// FormatCycleID renders a cycle sequence number as CYC-000001.
func FormatCycleID(n uint64) string { return fmt.Sprintf("CYC-%06d", n) }
