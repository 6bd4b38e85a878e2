// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package export hands billing_ready loads to the legacy billing
// system.
//
// An export runs in two phases. The first phase freezes the payload
// snapshot and records the artifact as submitted, atomically with the
// billing_ready check. The bridge call then happens outside the store
// transaction under a bounded timeout. The second phase records the
// result: acknowledged flips the load to exported; failed leaves the
// load billing_ready and surfaces an adapter error — a dead bridge is
// never papered over with fake success.
//
// Replays re-submit an existing artifact's snapshot byte for byte as a
// NEW artifact carrying replay_of. The original artifact and the load
// are never touched.
package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/freightctl/freightctl/pkg/logging"
	"github.com/freightctl/freightctl/services/ops/datatypes"
	"github.com/freightctl/freightctl/services/ops/store"
)

// Engine drives exports through the legacy bridge.
type Engine struct {
	store         *store.Store
	bridge        LegacyBridge
	submitTimeout time.Duration
	logger        *logging.Logger
}

// NewEngine creates an export engine.
func NewEngine(s *store.Store, bridge LegacyBridge, submitTimeout time.Duration, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	if submitTimeout <= 0 {
		submitTimeout = 10 * time.Second
	}
	return &Engine{
		store:         s,
		bridge:        bridge,
		submitTimeout: submitTimeout,
		logger:        logger,
	}
}

// Export submits a billing_ready load. Returns the artifact in its
// final state for this call; a bridge failure returns the failed
// artifact together with an ExternalAdapterError.
func (e *Engine) Export(ctx context.Context, actor, idemKey, loadID string, expectedVersion int64) (*datatypes.ExportArtifact, error) {
	artifact, replayed, err := e.createArtifact(ctx, actor, idemKey, loadID, expectedVersion)
	if err != nil {
		return nil, err
	}
	if replayed {
		// The idempotent repeat returns the artifact as the earlier
		// call left it; the bridge is not called again.
		return e.store.GetExport(artifact.ExportID)
	}
	return e.deliver(ctx, actor, artifact)
}

// Replay re-submits an existing artifact's payload as a new artifact.
func (e *Engine) Replay(ctx context.Context, actor, idemKey, exportID string) (*datatypes.ExportArtifact, error) {
	req := map[string]string{"export_id": exportID}
	out, err := e.store.Mutate(ctx, store.Mutation{
		Operation:      "replay_export:" + exportID,
		Actor:          actor,
		IdempotencyKey: idemKey,
		Request:        req,
		Apply: func(tx *store.Tx) (any, error) {
			original, err := tx.GetExport(exportID)
			if err != nil {
				return nil, err
			}
			newID, err := tx.NextExportID()
			if err != nil {
				return nil, err
			}
			replay := &datatypes.ExportArtifact{
				ExportID:    newID,
				LoadID:      original.LoadID,
				Status:      datatypes.ExportSubmitted,
				Payload:     original.Payload,
				PayloadHash: original.PayloadHash,
				ReplayOf:    original.ExportID,
				SubmittedBy: actor,
				CreatedAt:   tx.Now(),
			}
			if err := tx.PutExport(replay); err != nil {
				return nil, err
			}
			if _, err := tx.AppendEvent(original.LoadID, datatypes.EventExportReplayed, map[string]any{
				"export_id": newID,
				"replay_of": original.ExportID,
			}); err != nil {
				return nil, err
			}
			return replay, nil
		},
	})
	if err != nil {
		return nil, err
	}
	var artifact datatypes.ExportArtifact
	if err := out.Decode(&artifact); err != nil {
		return nil, err
	}
	if out.Replayed {
		return e.store.GetExport(artifact.ExportID)
	}
	return e.deliver(ctx, actor, &artifact)
}

// createArtifact is phase one: snapshot and record, atomically with the
// readiness and version checks.
func (e *Engine) createArtifact(ctx context.Context, actor, idemKey, loadID string, expectedVersion int64) (*datatypes.ExportArtifact, bool, error) {
	req := map[string]any{"load_id": loadID, "expected_version": expectedVersion}
	out, err := e.store.Mutate(ctx, store.Mutation{
		Operation:      "export_load:" + loadID,
		Actor:          actor,
		IdempotencyKey: idemKey,
		Request:        req,
		Apply: func(tx *store.Tx) (any, error) {
			load, err := tx.GetLoadForUpdate(loadID, expectedVersion)
			if err != nil {
				return nil, err
			}
			if load.Status != datatypes.StatusBillingReady {
				return nil, &store.ValidationError{Field: "status",
					Detail: "load " + loadID + " is " + string(load.Status) + ": " +
						store.ErrExportNotReady.Error()}
			}

			payload, err := buildPayload(load, tx.Now())
			if err != nil {
				return nil, err
			}
			exportID, err := tx.NextExportID()
			if err != nil {
				return nil, err
			}
			hash := sha256.Sum256(payload)
			artifact := &datatypes.ExportArtifact{
				ExportID:    exportID,
				LoadID:      loadID,
				Status:      datatypes.ExportSubmitted,
				Payload:     payload,
				PayloadHash: hex.EncodeToString(hash[:]),
				SubmittedBy: actor,
				CreatedAt:   tx.Now(),
			}
			if err := tx.PutExport(artifact); err != nil {
				return nil, err
			}
			if _, err := tx.AppendEvent(loadID, datatypes.EventExportSubmitted, map[string]any{
				"export_id": exportID,
			}); err != nil {
				return nil, err
			}
			return artifact, nil
		},
	})
	if err != nil {
		return nil, false, err
	}
	var artifact datatypes.ExportArtifact
	if err := out.Decode(&artifact); err != nil {
		return nil, false, err
	}
	return &artifact, out.Replayed, nil
}

// deliver is phase two: call the bridge and record the outcome.
func (e *Engine) deliver(ctx context.Context, actor string, artifact *datatypes.ExportArtifact) (*datatypes.ExportArtifact, error) {
	submitCtx, cancel := context.WithTimeout(ctx, e.submitTimeout)
	defer cancel()
	bridgeErr := e.bridge.Submit(submitCtx, artifact.ExportID, artifact.Payload)

	final, err := e.recordOutcome(ctx, actor, artifact, bridgeErr)
	if err != nil {
		return nil, err
	}
	if bridgeErr != nil {
		e.logger.Error("export failed",
			"export_id", artifact.ExportID,
			"load_id", artifact.LoadID,
			"bridge", e.bridge.Name(),
			"error", bridgeErr)
		return final, &store.ExternalAdapterError{
			Adapter: e.bridge.Name(),
			Op:      "submit " + artifact.ExportID,
			Err:     bridgeErr,
		}
	}
	e.logger.Info("export acknowledged",
		"export_id", artifact.ExportID, "load_id", artifact.LoadID)
	return final, nil
}

func (e *Engine) recordOutcome(ctx context.Context, actor string, artifact *datatypes.ExportArtifact, bridgeErr error) (*datatypes.ExportArtifact, error) {
	out, err := e.store.Mutate(ctx, store.Mutation{
		Operation: "finish_export:" + artifact.ExportID,
		Actor:     actor,
		Request:   artifact.ExportID,
		Apply: func(tx *store.Tx) (any, error) {
			current, err := tx.GetExport(artifact.ExportID)
			if err != nil {
				return nil, err
			}
			now := tx.Now()
			current.CompletedAt = &now
			if bridgeErr != nil {
				current.Status = datatypes.ExportFailed
				current.Error = bridgeErr.Error()
				if err := tx.PutExport(current); err != nil {
					return nil, err
				}
				_, err = tx.AppendEvent(current.LoadID, datatypes.EventExportFailed, map[string]any{
					"export_id": current.ExportID,
					"error":     current.Error,
				})
				return current, err
			}

			current.Status = datatypes.ExportAcknowledged
			if err := tx.PutExport(current); err != nil {
				return nil, err
			}
			ackDetails := map[string]any{"export_id": current.ExportID}
			if current.ReplayOf != "" {
				ackDetails["replay_of"] = current.ReplayOf
			}
			if _, err := tx.AppendEvent(current.LoadID, datatypes.EventExportAcked, ackDetails); err != nil {
				return nil, err
			}

			// First acknowledgment moves the load to exported.
			// Replays leave the load alone.
			if current.ReplayOf == "" {
				load, err := tx.GetLoad(current.LoadID)
				if err != nil {
					return nil, err
				}
				if load.Status == datatypes.StatusBillingReady {
					load.Status = datatypes.StatusExported
					if err := tx.PutLoad(load); err != nil {
						return nil, err
					}
					if _, err := tx.AppendEvent(load.LoadID, datatypes.EventLoadStatus, map[string]any{
						"from":   string(datatypes.StatusBillingReady),
						"to":     string(datatypes.StatusExported),
						"reason": "export acknowledged",
					}); err != nil {
						return nil, err
					}
				}
			}
			return current, nil
		},
	})
	if err != nil {
		return nil, err
	}
	var final datatypes.ExportArtifact
	if err := out.Decode(&final); err != nil {
		return nil, err
	}
	return &final, nil
}

// buildPayload freezes the canonical export snapshot. Field order is
// fixed by the ExportPayload struct, so identical load state yields
// identical bytes.
func buildPayload(load *datatypes.Load, now time.Time) ([]byte, error) {
	payload := datatypes.ExportPayload{
		SnapshotID:       uuid.NewString(),
		LoadID:           load.LoadID,
		Customer:         load.Customer,
		Broker:           load.Broker,
		PickupLocation:   load.PickupLocation,
		DeliveryLocation: load.DeliveryLocation,
		EquipmentType:    load.EquipmentType,
		PlannedMiles:     load.PlannedMiles,
		RateTotal:        load.RateTotal,
		Zone:             load.Zone,
		LoadVersion:      load.Version,
		ExportedAt:       now.UTC().Format(time.RFC3339),
	}
	if load.Assignment != nil {
		payload.DriverID = load.Assignment.DriverID
		payload.DriverName = load.Assignment.DriverName
	}
	return json.Marshal(payload)
}
