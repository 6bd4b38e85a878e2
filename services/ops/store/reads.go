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

	"github.com/dgraph-io/badger/v4"

	"github.com/freightctl/freightctl/services/ops/datatypes"
)

// Read-side queries. Each runs in its own read transaction and sees the
// latest committed state.

func (s *Store) viewJSON(key []byte, dest any) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
	return found, err
}

func scanPrefix(txn *badger.Txn, prefix []byte, visit func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(visit); err != nil {
			return err
		}
	}
	return nil
}

// GetLoad returns the load or a NotFoundError.
func (s *Store) GetLoad(id string) (*datatypes.Load, error) {
	var load datatypes.Load
	found, err := s.viewJSON(loadKey(id), &load)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &NotFoundError{Kind: "load", ID: id}
	}
	return &load, nil
}

// ListLoads returns all loads ordered by id, optionally filtered by
// status (empty status means all).
func (s *Store) ListLoads(status datatypes.LoadStatus) ([]datatypes.Load, error) {
	var loads []datatypes.Load
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte(prefixLoad), func(val []byte) error {
			var load datatypes.Load
			if err := json.Unmarshal(val, &load); err != nil {
				return err
			}
			if status == "" || load.Status == status {
				loads = append(loads, load)
			}
			return nil
		})
	})
	return loads, err
}

// GetDriver returns the driver or a NotFoundError.
func (s *Store) GetDriver(id string) (*datatypes.Driver, error) {
	var driver datatypes.Driver
	found, err := s.viewJSON(driverKey(id), &driver)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &NotFoundError{Kind: "driver", ID: id}
	}
	return &driver, nil
}

func scanDrivers(txn *badger.Txn) ([]datatypes.Driver, error) {
	var drivers []datatypes.Driver
	err := scanPrefix(txn, []byte(prefixDriver), func(val []byte) error {
		var driver datatypes.Driver
		if err := json.Unmarshal(val, &driver); err != nil {
			return err
		}
		drivers = append(drivers, driver)
		return nil
	})
	return drivers, err
}

// ListDrivers returns every driver ordered by id.
func (s *Store) ListDrivers() ([]datatypes.Driver, error) {
	var drivers []datatypes.Driver
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		drivers, err = scanDrivers(txn)
		return err
	})
	return drivers, err
}

// GetReview returns the review or a NotFoundError.
func (s *Store) GetReview(id string) (*datatypes.TicketReview, error) {
	var review datatypes.TicketReview
	found, err := s.viewJSON(reviewKey(id), &review)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &NotFoundError{Kind: "review", ID: id}
	}
	return &review, nil
}

func scanReviewsForLoad(txn *badger.Txn, loadID string) ([]datatypes.TicketReview, error) {
	prefix := []byte(prefixLoadReview + loadID + "/")
	var ids []string
	if err := scanPrefix(txn, prefix, func(val []byte) error {
		ids = append(ids, string(val))
		return nil
	}); err != nil {
		return nil, err
	}

	reviews := make([]datatypes.TicketReview, 0, len(ids))
	for _, id := range ids {
		item, err := txn.Get(reviewKey(id))
		if err != nil {
			return nil, err
		}
		var review datatypes.TicketReview
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &review)
		}); err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	sort.Slice(reviews, func(i, j int) bool {
		return reviews[i].ReviewID < reviews[j].ReviewID
	})
	return reviews, nil
}

// ListReviewsForLoad returns the load's reviews in creation order.
func (s *Store) ListReviewsForLoad(loadID string) ([]datatypes.TicketReview, error) {
	var reviews []datatypes.TicketReview
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		reviews, err = scanReviewsForLoad(txn, loadID)
		return err
	})
	return reviews, err
}

// ListReviews returns all reviews, optionally filtered by decision
// (empty means all). Ordered by review id.
func (s *Store) ListReviews(decision datatypes.ReviewDecision) ([]datatypes.TicketReview, error) {
	var reviews []datatypes.TicketReview
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte(prefixReview), func(val []byte) error {
			var review datatypes.TicketReview
			if err := json.Unmarshal(val, &review); err != nil {
				return err
			}
			if decision == "" || review.Decision == decision {
				reviews = append(reviews, review)
			}
			return nil
		})
	})
	return reviews, err
}

// GetBilling returns the load's latest billing computation, or nil when
// billing has never run for it.
func (s *Store) GetBilling(loadID string) (*datatypes.BillingRecord, error) {
	var rec datatypes.BillingRecord
	found, err := s.viewJSON(billingKey(loadID), &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

// GetExport returns the artifact or a NotFoundError.
func (s *Store) GetExport(id string) (*datatypes.ExportArtifact, error) {
	var artifact datatypes.ExportArtifact
	found, err := s.viewJSON(exportKey(id), &artifact)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &NotFoundError{Kind: "export", ID: id}
	}
	return &artifact, nil
}

// ListExportsForLoad returns the load's artifacts in creation order.
func (s *Store) ListExportsForLoad(loadID string) ([]datatypes.ExportArtifact, error) {
	var artifacts []datatypes.ExportArtifact
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixLoadExport + loadID + "/")
		var ids []string
		if err := scanPrefix(txn, prefix, func(val []byte) error {
			ids = append(ids, string(val))
			return nil
		}); err != nil {
			return err
		}
		for _, id := range ids {
			item, err := txn.Get(exportKey(id))
			if err != nil {
				return err
			}
			var artifact datatypes.ExportArtifact
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &artifact)
			}); err != nil {
				return err
			}
			artifacts = append(artifacts, artifact)
		}
		return nil
	})
	return artifacts, err
}

// ListExports returns every artifact ordered by export id.
func (s *Store) ListExports() ([]datatypes.ExportArtifact, error) {
	var artifacts []datatypes.ExportArtifact
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte(prefixExport), func(val []byte) error {
			var artifact datatypes.ExportArtifact
			if err := json.Unmarshal(val, &artifact); err != nil {
				return err
			}
			artifacts = append(artifacts, artifact)
			return nil
		})
	})
	return artifacts, err
}

// Timeline returns the entity's events in sequence order.
func (s *Store) Timeline(entityID string) ([]datatypes.TimelineEvent, error) {
	var events []datatypes.TimelineEvent
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixTimeline + entityID + "/")
		return scanPrefix(txn, prefix, func(val []byte) error {
			var event datatypes.TimelineEvent
			if err := json.Unmarshal(val, &event); err != nil {
				return err
			}
			events = append(events, event)
			return nil
		})
	})
	return events, err
}

// LastCycle returns the most recent autonomy cycle summary, or nil when
// no cycle has run.
func (s *Store) LastCycle() (*datatypes.CycleSummary, error) {
	var summary datatypes.CycleSummary
	found, err := s.viewJSON([]byte(keyCycleLast), &summary)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &summary, nil
}

// LeakageTotals returns the service-wide leakage aggregate.
func (s *Store) LeakageTotals() (datatypes.LeakageTotals, error) {
	var totals datatypes.LeakageTotals
	_, err := s.viewJSON([]byte(keyLeakage), &totals)
	return totals, err
}
