// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage defines the persistence contracts for the catalog service.
//
// Two stores back the service: a ContextStore for business context
// definitions and a CatalogStore for the field entries accumulated under
// them. Implementations live in subpackages (storage/badger); the engine
// and registry depend only on these interfaces so tests can swap in an
// in-memory database.
package storage

import (
	"context"
	"errors"

	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
)

// ErrNotFound indicates the requested record does not exist. Callers match
// it with errors.Is; every other storage failure is wrapped in *StorageError.
var ErrNotFound = errors.New("record not found")

// StorageError wraps an infrastructure failure from the persistence layer.
//
// It distinguishes "the database broke" from domain outcomes such as
// ErrNotFound. Merge commit conflicts surface here too: the caller decides
// whether to retry, the storage layer never retries on its own.
type StorageError struct {
	// Op is the logical operation that failed, e.g. "put context".
	Op string

	// Err is the underlying driver error.
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err as a *StorageError unless it already carries
// domain meaning (nil, ErrNotFound, or an existing *StorageError).
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// ContextStore persists business context definitions.
//
// IDs are lowercase by the time they reach the store; the registry
// normalizes all input. Implementations must return deep-copyable values:
// callers own what they get back.
type ContextStore interface {
	// PutContext writes or overwrites a context definition.
	PutContext(ctx context.Context, c *datatypes.Context) error

	// GetContext returns the context with the given ID, or ErrNotFound.
	GetContext(ctx context.Context, contextID string) (*datatypes.Context, error)

	// ListContexts returns all contexts sorted by ID.
	ListContexts(ctx context.Context) ([]*datatypes.Context, error)

	// DeleteContext removes the context definition only. Returns
	// ErrNotFound when no such context exists. Cascading the catalog
	// entries is CatalogStore.DeleteContextData's job; the registry
	// runs both.
	DeleteContext(ctx context.Context, contextID string) error
}

// CatalogStore persists field catalog entries and their variant index.
type CatalogStore interface {
	// GetEntry returns the entry with the given ID, or ErrNotFound.
	GetEntry(ctx context.Context, id string) (*datatypes.CatalogEntry, error)

	// ScanVariant returns every entry of one schema variant, sorted by ID.
	ScanVariant(ctx context.Context, contextID, variantKey string) ([]*datatypes.CatalogEntry, error)

	// ScanEntries streams every entry in ascending ID order. Iteration
	// stops at the first error fn returns, which is passed through.
	ScanEntries(ctx context.Context, fn func(*datatypes.CatalogEntry) error) error

	// DeleteContextData removes every entry and index key belonging to
	// the context. Returns the number of entries removed. Deleting a
	// context with no data is not an error.
	DeleteContextData(ctx context.Context, contextID string) (int, error)

	// WithMergeTxn runs fn inside one read-write transaction. Everything
	// fn does through the MergeTxn commits atomically when fn returns
	// nil; any error discards the transaction. A commit-time write
	// conflict surfaces as *StorageError.
	WithMergeTxn(ctx context.Context, fn func(MergeTxn) error) error
}

// MergeTxn is the catalog view inside one atomic merge transaction.
//
// Reads observe the transaction's own pending writes, so an absence-cleanup
// scan that follows the batch writes sees the batch.
type MergeTxn interface {
	// Get returns the entry with the given ID, or ErrNotFound.
	Get(id string) (*datatypes.CatalogEntry, error)

	// Put stages one entry write plus its variant index key.
	Put(e *datatypes.CatalogEntry) error

	// ScanVariant returns all entries of one schema variant, including
	// entries staged earlier in this transaction.
	ScanVariant(contextID, variantKey string) ([]*datatypes.CatalogEntry, error)
}
