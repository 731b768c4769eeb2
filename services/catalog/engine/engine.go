// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine folds field observations into the persistent catalog.
//
// The merge path is the service's hot write path: one document's worth of
// observations arrives as a batch, is validated against the owning
// context, pre-aggregated in memory, and applied to storage in a single
// atomic transaction. Statistics only widen: occurrence bounds stretch,
// boolean flags latch true, casing and optional-value sets grow.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/FieldScope/pkg/validation"
	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
	"github.com/AleutianAI/FieldScope/services/catalog/identity"
	"github.com/AleutianAI/FieldScope/services/catalog/registry"
	"github.com/AleutianAI/FieldScope/services/catalog/storage"
	"github.com/AleutianAI/FieldScope/services/catalog/watch"
)

// ContextResolver supplies context definitions for observation validation.
// *registry.Registry satisfies it.
type ContextResolver interface {
	Get(ctx context.Context, contextID string) (*datatypes.Context, error)
}

// EventSink receives merge events after a successful commit. *watch.Hub
// satisfies it.
type EventSink interface {
	Broadcast(event watch.MergeEvent)
}

// MergeResult summarizes what one merged batch changed.
type MergeResult struct {
	// EntriesCreated is the number of fields seen for the first time.
	EntriesCreated int `json:"entriesCreated"`

	// EntriesUpdated is the number of existing entries the batch touched.
	EntriesUpdated int `json:"entriesUpdated"`

	// EntriesMarkedOptional is the number of entries absent from a
	// complete snapshot whose MinOccurs was forced to zero.
	EntriesMarkedOptional int `json:"entriesMarkedOptional"`
}

// Engine merges observation batches into catalog entries.
//
// # Description
//
// Merge runs in two phases. Phase one validates every observation against
// the context's declared metadata keys and pre-aggregates observations
// that resolve to the same field identity; any violation rejects the
// whole batch before storage is touched. Phase two applies the aggregates
// inside one read-write transaction, so a crash or commit conflict leaves
// the catalog exactly as it was.
//
// # Thread Safety
//
// Safe for concurrent use. Concurrent merges of overlapping entries are
// serialized by the storage layer's optimistic concurrency: the loser
// returns a StorageError and the caller retries.
type Engine struct {
	contexts ContextResolver
	catalog  storage.CatalogStore
	events   EventSink
	clock    Clock
	logger   *slog.Logger
}

// New creates a merge engine. events may be nil when no live feed is
// attached.
func New(contexts ContextResolver, catalog storage.CatalogStore, events EventSink, logger *slog.Logger) (*Engine, error) {
	if contexts == nil {
		return nil, errors.New("context resolver must not be nil")
	}
	if catalog == nil {
		return nil, errors.New("catalog store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		contexts: contexts,
		catalog:  catalog,
		events:   events,
		clock:    SystemClock(),
		logger:   logger.With(slog.String("component", "merge_engine")),
	}, nil
}

// pendingEntry accumulates every observation of one field identity within
// a batch before the storage transaction begins.
type pendingEntry struct {
	id             string
	variantKey     string
	fieldPath      string
	requiredValues map[string]string
	optionalValues map[string][]string
	minCount       int64
	maxCount       int64
	hasNull        bool
	hasEmpty       bool
	casings        map[string]int64
}

// Merge validates and applies one batch of observations.
//
// # Description
//
// All observations must belong to the named context. Identity is computed
// per observation; observations sharing an identity are pre-aggregated
// (min/max of counts, OR of flags, union of optional values, one casing
// count per observation). The aggregates are applied in a single storage
// transaction.
//
// Absence cleanup: when every observation shares one schema variant and
// snapshot is not explicitly false, entries of that variant missing from
// the batch get MinOccurs forced to zero. Their LastObservedAt is not
// touched; absence is not an observation. snapshot == true asserts the
// batch is one complete document, so spanning multiple variants is a
// validation error.
//
// # Inputs
//
//   - ctx: Cancellation; checked before and during the transaction.
//   - contextID: Owning context. Must exist and be active.
//   - observations: 1..N field observations, literal casing preserved.
//   - snapshot: Tri-state completeness marker. nil infers from variant
//     homogeneity, false suppresses cleanup, true demands one variant.
//
// # Outputs
//
//   - MergeResult: Created/updated/marked-optional entry counts.
//   - error: ValidationError (bad batch), registry sentinels (unknown or
//     inactive context), StorageError (commit conflict or I/O; caller
//     may retry).
func (e *Engine) Merge(ctx context.Context, contextID string, observations []datatypes.Observation, snapshot *bool) (MergeResult, error) {
	var result MergeResult

	if len(observations) == 0 {
		return result, datatypes.NewValidationError("at least one observation is required")
	}

	c, err := e.contexts.Get(ctx, contextID)
	if err != nil {
		return result, err
	}
	if !c.Active {
		return result, registry.ErrContextInactive
	}

	pending, order, variants, err := e.aggregate(c, observations)
	if err != nil {
		return result, err
	}

	if snapshot != nil && *snapshot && len(variants) > 1 {
		return result, datatypes.NewValidationError(
			fmt.Sprintf("snapshot batch spans %d schema variants; a snapshot covers exactly one document", len(variants)))
	}
	cleanup := len(variants) == 1 && (snapshot == nil || *snapshot)

	now := e.clock.CurrentTimeMs()
	var events []watch.MergeEvent

	err = e.catalog.WithMergeTxn(ctx, func(txn storage.MergeTxn) error {
		for _, id := range order {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := pending[id]
			existing, err := txn.Get(id)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				entry := newEntry(c.ID, p, now)
				if err := txn.Put(entry); err != nil {
					return err
				}
				result.EntriesCreated++
				events = append(events, mergeEvent(entry, true, now))
			case err != nil:
				return err
			default:
				applyPending(existing, p, now)
				if err := txn.Put(existing); err != nil {
					return err
				}
				result.EntriesUpdated++
				events = append(events, mergeEvent(existing, false, now))
			}
		}

		if !cleanup {
			return nil
		}
		var variantKey string
		for vk := range variants {
			variantKey = vk
		}
		entries, err := txn.ScanVariant(c.ID, variantKey)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if _, observed := pending[entry.ID]; observed {
				continue
			}
			if entry.MinOccurs == 0 {
				continue
			}
			entry.MinOccurs = 0
			if err := txn.Put(entry); err != nil {
				return err
			}
			result.EntriesMarkedOptional++
			events = append(events, mergeEvent(entry, false, now))
		}
		return nil
	})
	if err != nil {
		return MergeResult{}, err
	}

	if e.events != nil {
		for _, ev := range events {
			e.events.Broadcast(ev)
		}
	}

	e.logger.Info("merge committed",
		slog.String("context_id", c.ID),
		slog.Int("observations", len(observations)),
		slog.Int("created", result.EntriesCreated),
		slog.Int("updated", result.EntriesUpdated),
		slog.Int("marked_optional", result.EntriesMarkedOptional))
	return result, nil
}

// aggregate validates every observation and folds them into one
// pendingEntry per field identity. order preserves first-seen order so
// transaction writes and event emission are deterministic.
func (e *Engine) aggregate(c *datatypes.Context, observations []datatypes.Observation) (map[string]*pendingEntry, []string, map[string]struct{}, error) {
	pending := make(map[string]*pendingEntry)
	order := make([]string, 0, len(observations))
	variants := make(map[string]struct{})

	for i := range observations {
		obs := &observations[i]

		required, optional, err := registry.ValidateMetadata(c, obs.Metadata)
		if err != nil {
			return nil, nil, nil, err
		}
		literal := strings.TrimRight(strings.TrimSpace(obs.FieldPath), "/")
		canonical, err := validation.SanitizeFieldPath(obs.FieldPath)
		if err != nil {
			return nil, nil, nil, datatypes.NewValidationError(
				fmt.Sprintf("observation %d: invalid fieldPath: %v", i, err))
		}
		if obs.Count < 0 {
			return nil, nil, nil, datatypes.NewValidationError(
				fmt.Sprintf("observation %d: count must not be negative", i))
		}

		// Identity failures at this point mean the registry and identity
		// packages disagree about required keys, not bad client data.
		id, err := identity.ComputeID(c.ID, c.RequiredKeys, required, canonical)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("compute field identity: %w", err)
		}
		variantKey, err := identity.VariantKey(c.ID, c.RequiredKeys, required)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("compute variant key: %w", err)
		}
		variants[variantKey] = struct{}{}

		p, ok := pending[id]
		if !ok {
			p = &pendingEntry{
				id:             id,
				variantKey:     variantKey,
				fieldPath:      canonical,
				requiredValues: required,
				minCount:       obs.Count,
				maxCount:       obs.Count,
				casings:        make(map[string]int64),
			}
			pending[id] = p
			order = append(order, id)
		} else {
			if obs.Count < p.minCount {
				p.minCount = obs.Count
			}
			if obs.Count > p.maxCount {
				p.maxCount = obs.Count
			}
		}
		p.hasNull = p.hasNull || obs.HasNull
		p.hasEmpty = p.hasEmpty || obs.HasEmpty
		p.casings[literal]++
		for k, v := range optional {
			if p.optionalValues == nil {
				p.optionalValues = make(map[string][]string)
			}
			p.optionalValues[k] = append(p.optionalValues[k], v)
		}
	}
	return pending, order, variants, nil
}

// newEntry materializes a first-time catalog entry from a batch aggregate.
func newEntry(contextID string, p *pendingEntry, now int64) *datatypes.CatalogEntry {
	entry := &datatypes.CatalogEntry{
		ID:              p.id,
		ContextID:       contextID,
		VariantKey:      p.variantKey,
		RequiredValues:  p.requiredValues,
		FieldPath:       p.fieldPath,
		MinOccurs:       p.minCount,
		MaxOccurs:       p.maxCount,
		AllowsNull:      p.hasNull,
		AllowsEmpty:     p.hasEmpty,
		FirstObservedAt: now,
		LastObservedAt:  now,
		CasingCounts:    p.casings,
	}
	for k, values := range p.optionalValues {
		for _, v := range values {
			entry.AddOptionalValue(k, v)
		}
	}
	return entry
}

// applyPending merges a batch aggregate into an existing entry. Bounds
// widen, flags latch, sets grow; FirstObservedAt never changes.
func applyPending(entry *datatypes.CatalogEntry, p *pendingEntry, now int64) {
	if p.minCount < entry.MinOccurs {
		entry.MinOccurs = p.minCount
	}
	if p.maxCount > entry.MaxOccurs {
		entry.MaxOccurs = p.maxCount
	}
	entry.AllowsNull = entry.AllowsNull || p.hasNull
	entry.AllowsEmpty = entry.AllowsEmpty || p.hasEmpty
	if entry.CasingCounts == nil {
		entry.CasingCounts = make(map[string]int64, len(p.casings))
	}
	for literal, n := range p.casings {
		entry.CasingCounts[literal] += n
	}
	for k, values := range p.optionalValues {
		for _, v := range values {
			entry.AddOptionalValue(k, v)
		}
	}
	entry.LastObservedAt = now
}

func mergeEvent(entry *datatypes.CatalogEntry, created bool, now int64) watch.MergeEvent {
	return watch.MergeEvent{
		FieldID:    entry.ID,
		ContextID:  entry.ContextID,
		FieldPath:  entry.FieldPath,
		Created:    created,
		MinOccurs:  entry.MinOccurs,
		MaxOccurs:  entry.MaxOccurs,
		ObservedAt: now,
	}
}
