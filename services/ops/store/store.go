// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/freightctl/freightctl/pkg/logging"
	"github.com/freightctl/freightctl/services/ops/datatypes"
)

// ReplayObserver is notified when a mutation is answered from the
// idempotency cache. *observability.Metrics satisfies it.
type ReplayObserver interface {
	RecordIdempotentReplay()
}

// Config configures a Store.
type Config struct {
	DB                   DBConfig
	IdempotencyRetention time.Duration
	TelemetryRetention   time.Duration
	Logger               *logging.Logger

	// Replays, when set, counts idempotent replays.
	Replays ReplayObserver
}

// Store is the ops state store. All writes go through Mutate; reads use
// the query methods, which see the latest committed state.
//
// Thread Safety: safe for concurrent use. Concurrent Mutate calls that
// touch the same keys serialize through Badger's conflict detection;
// the loser gets ErrVersionConflict.
type Store struct {
	db     *badger.DB
	logger *logging.Logger

	idemRetention      time.Duration
	telemetryRetention time.Duration
	replays            ReplayObserver

	stopGC chan struct{}

	// now is swappable in tests.
	now func() time.Time
}

// New opens a Store with the given configuration.
func New(cfg Config) (*Store, error) {
	if cfg.IdempotencyRetention <= 0 {
		cfg.IdempotencyRetention = 24 * time.Hour
	}
	if cfg.TelemetryRetention <= 0 {
		cfg.TelemetryRetention = 30 * 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	db, err := openDB(cfg.DB)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:                 db,
		logger:             cfg.Logger,
		idemRetention:      cfg.IdempotencyRetention,
		telemetryRetention: cfg.TelemetryRetention,
		replays:            cfg.Replays,
		now:                time.Now,
	}

	if cfg.DB.GCInterval > 0 {
		s.stopGC = make(chan struct{})
		ratio := cfg.DB.GCDiscardRatio
		if ratio <= 0 {
			ratio = 0.5
		}
		go runGC(db, cfg.DB.GCInterval, ratio, cfg.Logger.Slog(), s.stopGC)
	}
	return s, nil
}

// NewInMemory opens an in-memory Store for tests.
func NewInMemory() (*Store, error) {
	return New(Config{DB: InMemoryDBConfig()})
}

// Close stops background GC and closes the database.
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		s.stopGC = nil
	}
	return s.db.Close()
}

// SetClock overrides the store clock. Tests only.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Mutation is one state-changing request. Apply runs inside a single
// read-write transaction; everything it writes commits atomically with
// the idempotency record and any timeline events it appends.
type Mutation struct {
	// Operation names the mutation for fingerprinting and logging,
	// e.g. "update_load".
	Operation string

	// Actor is stamped on timeline events appended by Apply.
	Actor string

	// IdempotencyKey, when non-empty, makes the mutation replay-safe:
	// a repeat with the same key and request returns the cached
	// response; a repeat with a different request is rejected.
	IdempotencyKey string

	// Request is the caller's request body. Its canonical JSON feeds
	// the idempotency fingerprint.
	Request any

	// Apply performs the mutation and returns the response payload,
	// which is cached for idempotent replays.
	Apply func(tx *Tx) (any, error)
}

// Outcome is the result of a mutation.
type Outcome struct {
	// Response is the JSON-encoded response payload.
	Response json.RawMessage

	// Replayed is true when the response was served from an
	// idempotency record instead of re-executing the mutation.
	Replayed bool
}

// Decode unmarshals the response payload into dest.
func (o *Outcome) Decode(dest any) error {
	return json.Unmarshal(o.Response, dest)
}

// Fingerprint derives the idempotency fingerprint for an operation and
// request body. Same operation + same canonical JSON = same fingerprint.
func Fingerprint(operation string, request any) string {
	data, _ := json.Marshal(request)
	h := sha256.New()
	h.Write([]byte(operation))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

type idempotencyRecord struct {
	Key         string          `json:"key"`
	Operation   string          `json:"operation"`
	Fingerprint string          `json:"fingerprint"`
	Response    json.RawMessage `json:"response"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Mutate runs one mutation. See Mutation for the contract. A Badger
// commit conflict (two writers racing on the same keys) is reported as
// ErrVersionConflict; the caller re-reads and retries.
func (s *Store) Mutate(ctx context.Context, m Mutation) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Apply == nil {
		return nil, &ValidationError{Detail: "mutation has no apply func"}
	}

	fingerprint := Fingerprint(m.Operation, m.Request)
	var out Outcome

	err := s.db.Update(func(txn *badger.Txn) error {
		if m.IdempotencyKey != "" {
			item, err := txn.Get(idemKey(m.IdempotencyKey))
			switch {
			case err == nil:
				var rec idempotencyRecord
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &rec)
				}); err != nil {
					return fmt.Errorf("decode idempotency record: %w", err)
				}
				if rec.Fingerprint != fingerprint {
					return fmt.Errorf("key %q (operation %s): %w",
						m.IdempotencyKey, rec.Operation, ErrIdempotencyKeyConflict)
				}
				out = Outcome{Response: rec.Response, Replayed: true}
				return nil
			case !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}
		}

		tx := &Tx{txn: txn, actor: m.Actor, now: s.now()}
		resp, err := m.Apply(tx)
		if err != nil {
			return err
		}

		data, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("encode response: %w", err)
		}

		if m.IdempotencyKey != "" {
			rec := idempotencyRecord{
				Key:         m.IdempotencyKey,
				Operation:   m.Operation,
				Fingerprint: fingerprint,
				Response:    data,
				CreatedAt:   s.now(),
			}
			recData, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode idempotency record: %w", err)
			}
			entry := badger.NewEntry(idemKey(m.IdempotencyKey), recData).
				WithTTL(s.idemRetention)
			if err := txn.SetEntry(entry); err != nil {
				return err
			}
		}

		out = Outcome{Response: data}
		return nil
	})

	if err != nil {
		if errors.Is(err, badger.ErrConflict) {
			s.logger.Warn("mutation lost commit race",
				"operation", m.Operation, "actor", m.Actor)
			return nil, fmt.Errorf("operation %s: concurrent write: %w",
				m.Operation, ErrVersionConflict)
		}
		return nil, err
	}

	if out.Replayed {
		if s.replays != nil {
			s.replays.RecordIdempotentReplay()
		}
		s.logger.Info("mutation replayed from idempotency record",
			"operation", m.Operation, "key", m.IdempotencyKey)
	}
	return &out, nil
}

// Tx exposes typed reads and writes inside one mutation transaction.
// It is only valid for the duration of the Apply callback.
type Tx struct {
	txn   *badger.Txn
	actor string
	now   time.Time
}

// Now returns the mutation timestamp. All writes in one mutation share
// it.
func (tx *Tx) Now() time.Time { return tx.now }

// Actor returns the mutation actor.
func (tx *Tx) Actor() string { return tx.actor }

func (tx *Tx) getJSON(key []byte, dest any) (bool, error) {
	item, err := tx.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, dest)
	}); err != nil {
		return false, err
	}
	return true, nil
}

func (tx *Tx) setJSON(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.txn.Set(key, data)
}

// GetLoad reads a load inside the transaction.
func (tx *Tx) GetLoad(id string) (*datatypes.Load, error) {
	var load datatypes.Load
	found, err := tx.getJSON(loadKey(id), &load)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &NotFoundError{Kind: "load", ID: id}
	}
	return &load, nil
}

// GetLoadForUpdate reads a load and enforces the optimistic version
// check in one step.
func (tx *Tx) GetLoadForUpdate(id string, expectedVersion int64) (*datatypes.Load, error) {
	load, err := tx.GetLoad(id)
	if err != nil {
		return nil, err
	}
	if load.Version != expectedVersion {
		return nil, &VersionConflictError{
			EntityID: id,
			Expected: expectedVersion,
			Actual:   load.Version,
		}
	}
	return load, nil
}

// InsertLoad writes a brand-new load. The load keeps the version it
// carries (zero for creations). Fails if the id is taken.
func (tx *Tx) InsertLoad(load *datatypes.Load) error {
	var existing datatypes.Load
	found, err := tx.getJSON(loadKey(load.LoadID), &existing)
	if err != nil {
		return err
	}
	if found {
		return &ValidationError{Field: "load_id",
			Detail: fmt.Sprintf("load %s already exists", load.LoadID)}
	}
	return tx.setJSON(loadKey(load.LoadID), load)
}

// PutLoad writes back a mutated load, bumping its version and
// timestamp. Callers must have read the load via GetLoadForUpdate (or
// hold it from an autonomy step inside the same transaction).
func (tx *Tx) PutLoad(load *datatypes.Load) error {
	load.Version++
	load.UpdatedAt = tx.now
	return tx.setJSON(loadKey(load.LoadID), load)
}

// GetDriver reads a driver inside the transaction.
func (tx *Tx) GetDriver(id string) (*datatypes.Driver, error) {
	var driver datatypes.Driver
	found, err := tx.getJSON(driverKey(id), &driver)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &NotFoundError{Kind: "driver", ID: id}
	}
	return &driver, nil
}

// PutDriver writes a driver.
func (tx *Tx) PutDriver(driver *datatypes.Driver) error {
	return tx.setJSON(driverKey(driver.DriverID), driver)
}

// DeleteDriver removes a driver from the pool.
func (tx *Tx) DeleteDriver(id string) error {
	return tx.txn.Delete(driverKey(id))
}

// ListDrivers returns every driver, ordered by id.
func (tx *Tx) ListDrivers() ([]datatypes.Driver, error) {
	return scanDrivers(tx.txn)
}

// GetReview reads a review inside the transaction.
func (tx *Tx) GetReview(id string) (*datatypes.TicketReview, error) {
	var review datatypes.TicketReview
	found, err := tx.getJSON(reviewKey(id), &review)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &NotFoundError{Kind: "review", ID: id}
	}
	return &review, nil
}

// PutReview writes a review and maintains the per-load index.
func (tx *Tx) PutReview(review *datatypes.TicketReview) error {
	if err := tx.setJSON(reviewKey(review.ReviewID), review); err != nil {
		return err
	}
	return tx.txn.Set(loadReviewKey(review.LoadID, review.ReviewID),
		[]byte(review.ReviewID))
}

// ListReviewsForLoad returns the load's reviews in creation order.
func (tx *Tx) ListReviewsForLoad(loadID string) ([]datatypes.TicketReview, error) {
	return scanReviewsForLoad(tx.txn, loadID)
}

// GetBilling reads the load's latest billing computation, or nil when
// none has run yet.
func (tx *Tx) GetBilling(loadID string) (*datatypes.BillingRecord, error) {
	var rec datatypes.BillingRecord
	found, err := tx.getJSON(billingKey(loadID), &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

// PutBilling writes the load's latest billing computation.
func (tx *Tx) PutBilling(rec *datatypes.BillingRecord) error {
	return tx.setJSON(billingKey(rec.LoadID), rec)
}

// GetExport reads an export artifact inside the transaction.
func (tx *Tx) GetExport(id string) (*datatypes.ExportArtifact, error) {
	var artifact datatypes.ExportArtifact
	found, err := tx.getJSON(exportKey(id), &artifact)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &NotFoundError{Kind: "export", ID: id}
	}
	return &artifact, nil
}

// PutExport writes an export artifact and maintains the per-load index.
func (tx *Tx) PutExport(artifact *datatypes.ExportArtifact) error {
	if err := tx.setJSON(exportKey(artifact.ExportID), artifact); err != nil {
		return err
	}
	return tx.txn.Set(loadExportKey(artifact.LoadID, artifact.ExportID),
		[]byte(artifact.ExportID))
}

// NextSeq advances a named counter and returns the new value. The
// counter write participates in conflict detection, so two mutations
// can never issue the same id.
func (tx *Tx) NextSeq(name string) (uint64, error) {
	var n uint64
	if _, err := tx.getJSON(seqKey(name), &n); err != nil {
		return 0, err
	}
	n++
	if err := tx.setJSON(seqKey(name), n); err != nil {
		return 0, err
	}
	return n, nil
}

// NextLoadID issues the next LOAD##### id.
func (tx *Tx) NextLoadID() (string, error) {
	n, err := tx.NextSeq(seqLoad)
	if err != nil {
		return "", err
	}
	return FormatLoadID(n), nil
}

// NextReviewID issues the next REV-###### id.
func (tx *Tx) NextReviewID() (string, error) {
	n, err := tx.NextSeq(seqReview)
	if err != nil {
		return "", err
	}
	return FormatReviewID(n), nil
}

// NextExportID issues the next EXP-###### id.
func (tx *Tx) NextExportID() (string, error) {
	n, err := tx.NextSeq(seqExport)
	if err != nil {
		return "", err
	}
	return FormatExportID(n), nil
}

// NextCycleID issues the next CYC-###### id.
func (tx *Tx) NextCycleID() (string, error) {
	n, err := tx.NextSeq(seqCycle)
	if err != nil {
		return "", err
	}
	return FormatCycleID(n), nil
}

// AppendEvent appends one timeline event for the entity. The sequence
// is per-entity and gapless; the event id is a random UUID so appends
// on unrelated entities never contend on a shared counter.
func (tx *Tx) AppendEvent(entityID, kind string, details map[string]any) (*datatypes.TimelineEvent, error) {
	seq, err := tx.NextSeq("timeline:" + entityID)
	if err != nil {
		return nil, err
	}
	event := &datatypes.TimelineEvent{
		EventID:   uuid.NewString(),
		EntityID:  entityID,
		Seq:       seq,
		Kind:      kind,
		Actor:     tx.actor,
		Timestamp: tx.now,
		Details:   details,
	}
	if err := tx.setJSON(timelineKey(entityID, seq), event); err != nil {
		return nil, err
	}
	return event, nil
}

// PutCycleSummary stores the most recent autonomy cycle summary.
func (tx *Tx) PutCycleSummary(summary *datatypes.CycleSummary) error {
	return tx.setJSON([]byte(keyCycleLast), summary)
}

// AddLeakage accumulates the service-wide leakage totals.
func (tx *Tx) AddLeakage(detectedUSD, recoveredUSD float64) error {
	var totals datatypes.LeakageTotals
	if _, err := tx.getJSON([]byte(keyLeakage), &totals); err != nil {
		return err
	}
	totals.DetectedUSD += detectedUSD
	totals.RecoveredUSD += recoveredUSD
	return tx.setJSON([]byte(keyLeakage), &totals)
}
