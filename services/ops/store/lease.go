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
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/freightctl/freightctl/services/ops/datatypes"
)

// Leases are advisory, time-bounded claims the autonomy coordinator
// takes before acting on a load. They reduce duplicate work between
// overlapping cycles; correctness still rests on the version checks
// inside Mutate. An expired lease is reclaimable by anyone.

// AcquireLease claims the load for owner until now+ttl. Re-acquiring a
// lease you already hold extends it. Returns LeaseHeldError when an
// unexpired lease belongs to someone else.
func (s *Store) AcquireLease(loadID, owner string, ttl time.Duration) (*datatypes.Lease, error) {
	if owner == "" {
		return nil, &ValidationError{Field: "owner", Detail: "lease owner is required"}
	}
	now := s.now()
	lease := &datatypes.Lease{
		LoadID:     loadID,
		Owner:      owner,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(leaseKey(loadID))
		if err == nil {
			var current datatypes.Lease
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &current)
			}); err != nil {
				return err
			}
			if current.Owner != owner && !current.Expired(now) {
				return &LeaseHeldError{LoadID: loadID, Owner: current.Owner}
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		data, err := json.Marshal(lease)
		if err != nil {
			return err
		}
		return txn.Set(leaseKey(loadID), data)
	})
	if err != nil {
		if errors.Is(err, badger.ErrConflict) {
			return nil, &LeaseHeldError{LoadID: loadID, Owner: "concurrent acquirer"}
		}
		return nil, err
	}
	return lease, nil
}

// ReleaseLease drops the load's lease if owner still holds it. Releasing
// a lease that expired or was never held is not an error.
func (s *Store) ReleaseLease(loadID, owner string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(leaseKey(loadID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var current datatypes.Lease
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &current)
		}); err != nil {
			return err
		}
		if current.Owner != owner {
			return nil
		}
		return txn.Delete(leaseKey(loadID))
	})
}

// GetLease returns the load's lease, or nil when none exists.
func (s *Store) GetLease(loadID string) (*datatypes.Lease, error) {
	var lease datatypes.Lease
	found, err := s.viewJSON(leaseKey(loadID), &lease)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &lease, nil
}
