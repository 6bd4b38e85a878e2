// Copyright (C) 2026 FreightCtl Labs (ops@freightctl.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"errors"
	"fmt"
)

// Sentinel errors for ops state operations. Every engine in the service
// reports failures through this taxonomy so the API layer can map them
// to status codes in one place.
var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrVersionConflict indicates the expected version did not match
	// the stored version. The caller should re-read and retry.
	ErrVersionConflict = errors.New("version conflict")

	// ErrIdempotencyKeyConflict indicates an idempotency key was reused
	// with a different request body.
	ErrIdempotencyKeyConflict = errors.New("idempotency key reused with different request")

	// ErrInvalidTransition indicates a status change outside the legal
	// transition table.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrValidation indicates a structurally or semantically invalid
	// request that no retry can fix.
	ErrValidation = errors.New("validation failed")

	// ErrLeaseHeld indicates another worker holds an unexpired lease on
	// the load.
	ErrLeaseHeld = errors.New("lease held by another owner")

	// ErrExportNotReady indicates an export was requested for a load
	// that is not billing_ready.
	ErrExportNotReady = errors.New("load is not billing_ready")
)

// VersionConflictError wraps ErrVersionConflict with both versions so
// the caller can report what it expected against what is stored.
type VersionConflictError struct {
	EntityID string
	Expected int64
	Actual   int64
}

// Error returns a human-readable error message.
func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s: expected version %d, stored version %d: %v",
		e.EntityID, e.Expected, e.Actual, ErrVersionConflict)
}

// Unwrap returns ErrVersionConflict for errors.Is support.
func (e *VersionConflictError) Unwrap() error {
	return ErrVersionConflict
}

// NotFoundError wraps ErrNotFound with the entity kind and id.
type NotFoundError struct {
	Kind string
	ID   string
}

// Error returns a human-readable error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.ID, ErrNotFound)
}

// Unwrap returns ErrNotFound for errors.Is support.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// TransitionError wraps ErrInvalidTransition with the rejected edge.
type TransitionError struct {
	LoadID string
	From   string
	To     string
}

// Error returns a human-readable error message.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("load %s: %s -> %s: %v", e.LoadID, e.From, e.To, ErrInvalidTransition)
}

// Unwrap returns ErrInvalidTransition for errors.Is support.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// LeaseHeldError wraps ErrLeaseHeld with the current holder.
type LeaseHeldError struct {
	LoadID string
	Owner  string
}

// Error returns a human-readable error message.
func (e *LeaseHeldError) Error() string {
	return fmt.Sprintf("load %s: held by %s: %v", e.LoadID, e.Owner, ErrLeaseHeld)
}

// Unwrap returns ErrLeaseHeld for errors.Is support.
func (e *LeaseHeldError) Unwrap() error {
	return ErrLeaseHeld
}

// ExternalAdapterError indicates an upstream system (the legacy billing
// bridge, a telemetry provider) failed or was unreachable. The failure
// is always surfaced; it is never downgraded into synthetic data.
type ExternalAdapterError struct {
	Adapter string
	Op      string
	Err     error
}

// Error returns a human-readable error message.
func (e *ExternalAdapterError) Error() string {
	return fmt.Sprintf("adapter %s: %s: %v", e.Adapter, e.Op, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *ExternalAdapterError) Unwrap() error {
	return e.Err
}

// ValidationError wraps ErrValidation with a field-level message.
type ValidationError struct {
	Field  string
	Detail string
}

// Error returns a human-readable error message.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %v", e.Field, e.Detail, ErrValidation)
	}
	return fmt.Sprintf("%s: %v", e.Detail, ErrValidation)
}

// Unwrap returns ErrValidation for errors.Is support.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
