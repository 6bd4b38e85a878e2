// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/freightctl/freightctl/services/ops/datatypes"
)

// Telemetry events are write-once and deduplicated by event key. Badger
// entry TTL enforces the retention window.

// PutTelemetry stores events inside a mutation transaction. Returns the
// number actually stored; duplicates (same event key) are skipped.
func (tx *Tx) PutTelemetry(events []datatypes.TelemetryEvent, retention time.Duration) (int, error) {
	stored := 0
	for _, event := range events {
		key := telemetryKey(event.LoadID, event.EventKey)
		_, err := tx.txn.Get(key)
		if err == nil {
			continue
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return stored, err
		}
		data, err := json.Marshal(event)
		if err != nil {
			return stored, err
		}
		entry := badger.NewEntry(key, data).WithTTL(retention)
		if err := tx.txn.SetEntry(entry); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}

// LatestMiles returns the freshest miles reading for the load within
// the lookback window, seen from inside a mutation transaction.
func (tx *Tx) LatestMiles(loadID string, lookback time.Duration) (float64, bool, error) {
	var events []datatypes.TelemetryEvent
	prefix := []byte(prefixTelemetry + loadID + "/")
	err := scanPrefix(tx.txn, prefix, func(val []byte) error {
		var event datatypes.TelemetryEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		events = append(events, event)
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return freshestMiles(events, tx.now.Add(-lookback))
}

func freshestMiles(events []datatypes.TelemetryEvent, cutoff time.Time) (float64, bool, error) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].RecordedAt.After(events[j].RecordedAt)
	})
	for _, event := range events {
		if event.RecordedAt.Before(cutoff) {
			continue
		}
		return event.MilesDriven, true, nil
	}
	return 0, false, nil
}

// ListTelemetry returns the load's events newest first.
func (s *Store) ListTelemetry(loadID string) ([]datatypes.TelemetryEvent, error) {
	var events []datatypes.TelemetryEvent
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixTelemetry + loadID + "/")
		return scanPrefix(txn, prefix, func(val []byte) error {
			var event datatypes.TelemetryEvent
			if err := json.Unmarshal(val, &event); err != nil {
				return err
			}
			events = append(events, event)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].RecordedAt.After(events[j].RecordedAt)
	})
	return events, nil
}

// LatestMiles returns the freshest miles reading for the load recorded
// within the lookback window. The second return is false when no
// reading qualifies.
func (s *Store) LatestMiles(loadID string, lookback time.Duration) (float64, bool, error) {
	events, err := s.ListTelemetry(loadID)
	if err != nil {
		return 0, false, err
	}
	return freshestMiles(events, s.now().Add(-lookback))
}
