// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package query serves read-side lookups over the accumulated catalog.
//
// Search and suggest both scan the full entry keyspace and filter in
// memory. The catalog is bounded by the number of distinct fields in the
// observed integration (thousands, not millions), so a scan beats
// maintaining secondary indexes for every searchable dimension.
package query

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
	"github.com/AleutianAI/FieldScope/services/catalog/storage"
)

// Criteria selects catalog entries.
//
// # Description
//
// Two modes share this struct. When Query is non-empty the search is a
// global term search: one term OR-matched against field paths, context
// IDs, required values and optional values, with every other filter
// ignored. When Query is empty the search is scoped: all provided
// filters must hold (AND), and a metadata key with several values
// matches any of them (OR within the key).
//
// # Fields
//
//   - Query: Global search term. Enables global mode when non-empty.
//   - ContextID: Scoped mode; restricts to one context.
//   - FieldPathContains: Scoped mode; substring (or regex) on the path.
//   - UseRegex: Treat Query / FieldPathContains as a case-insensitive
//     regular expression instead of a literal substring.
//   - Metadata: Scoped mode; filters on required or optional values.
//     Keys unknown to any entry never match.
//   - Page: 0-based page index.
//   - Size: Page size; 0 selects the default, oversized values clamp.
type Criteria struct {
	Query             string
	ContextID         string
	FieldPathContains string
	UseRegex          bool
	Metadata          map[string][]string
	Page              int
	Size              int
}

// Engine answers search and suggest queries. Read-only: it never writes
// to storage.
type Engine struct {
	contexts storage.ContextStore
	catalog  storage.CatalogStore
	logger   *slog.Logger
}

// New creates a query engine.
func New(contexts storage.ContextStore, catalog storage.CatalogStore, logger *slog.Logger) (*Engine, error) {
	if contexts == nil {
		return nil, errors.New("context store must not be nil")
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
		logger:   logger.With(slog.String("component", "query_engine")),
	}, nil
}

// Search returns the page of catalog entries matching the criteria.
//
// Entries of inactive contexts (and of contexts deleted while their
// entries are still being cascaded away) are invisible in both modes.
// Results are ordered by entry ID, which the storage scan already
// guarantees, so pagination is stable across identical requests.
//
// # Outputs
//
//   - Page[CatalogEntry]: Matching slice plus Spring-style page counters.
//   - error: ValidationError for negative page/size or a bad regex;
//     StorageError on scan failure.
func (e *Engine) Search(ctx context.Context, criteria Criteria) (datatypes.Page[datatypes.CatalogEntry], error) {
	var zero datatypes.Page[datatypes.CatalogEntry]

	if criteria.Page < 0 {
		return zero, datatypes.NewValidationError("page must not be negative")
	}
	if criteria.Size < 0 {
		return zero, datatypes.NewValidationError("size must not be negative")
	}
	size := datatypes.ClampPageSize(criteria.Size)

	match, err := buildEntryMatcher(criteria)
	if err != nil {
		return zero, err
	}
	visible, err := e.visibleContexts(ctx)
	if err != nil {
		return zero, err
	}

	var matches []datatypes.CatalogEntry
	err = e.catalog.ScanEntries(ctx, func(entry *datatypes.CatalogEntry) error {
		if _, ok := visible[entry.ContextID]; !ok {
			return nil
		}
		if match(entry) {
			matches = append(matches, *entry)
		}
		return nil
	})
	if err != nil {
		return zero, err
	}

	start := criteria.Page * size
	end := start + size
	if start > len(matches) {
		start = len(matches)
	}
	if end > len(matches) {
		end = len(matches)
	}
	return datatypes.NewPage(matches[start:end], int64(len(matches)), criteria.Page, size), nil
}

// visibleContexts returns the IDs of all active contexts.
func (e *Engine) visibleContexts(ctx context.Context) (map[string]struct{}, error) {
	contexts, err := e.contexts.ListContexts(ctx)
	if err != nil {
		return nil, err
	}
	visible := make(map[string]struct{}, len(contexts))
	for _, c := range contexts {
		if c.Active {
			visible[c.ID] = struct{}{}
		}
	}
	return visible, nil
}

// termMatcher reports whether one stored (already lowercase) string
// satisfies the search term.
type termMatcher func(string) bool

// newTermMatcher compiles a term. Literal terms are lowercase substring
// matches; stored paths, context IDs and metadata values are lowercase
// by construction, so only the needle needs lowering. Regex terms get a
// case-insensitive flag prepended.
func newTermMatcher(term string, useRegex bool) (termMatcher, error) {
	if useRegex {
		re, err := regexp.Compile("(?i)" + term)
		if err != nil {
			return nil, datatypes.NewValidationError("invalid regular expression: " + err.Error())
		}
		return re.MatchString, nil
	}
	needle := strings.ToLower(term)
	return func(s string) bool {
		return strings.Contains(s, needle)
	}, nil
}

// buildEntryMatcher translates criteria into a per-entry predicate.
func buildEntryMatcher(criteria Criteria) (func(*datatypes.CatalogEntry) bool, error) {
	if term := strings.TrimSpace(criteria.Query); term != "" {
		match, err := newTermMatcher(term, criteria.UseRegex)
		if err != nil {
			return nil, err
		}
		return func(entry *datatypes.CatalogEntry) bool {
			if match(entry.FieldPath) || match(entry.ContextID) {
				return true
			}
			for _, v := range entry.RequiredValues {
				if match(v) {
					return true
				}
			}
			for _, values := range entry.OptionalValues {
				for _, v := range values {
					if match(v) {
						return true
					}
				}
			}
			return false
		}, nil
	}

	var pathMatch termMatcher
	if criteria.FieldPathContains != "" {
		var err error
		pathMatch, err = newTermMatcher(criteria.FieldPathContains, criteria.UseRegex)
		if err != nil {
			return nil, err
		}
	}
	contextID := strings.ToLower(strings.TrimSpace(criteria.ContextID))
	metadata := normalizeMetadataFilters(criteria.Metadata)

	return func(entry *datatypes.CatalogEntry) bool {
		if contextID != "" && entry.ContextID != contextID {
			return false
		}
		if pathMatch != nil && !pathMatch(entry.FieldPath) {
			return false
		}
		for key, values := range metadata {
			if !matchMetadataFilter(entry, key, values) {
				return false
			}
		}
		return true
	}, nil
}

// normalizeMetadataFilters lowercases filter keys and values the same way
// intake normalizes stored metadata.
func normalizeMetadataFilters(filters map[string][]string) map[string][]string {
	if len(filters) == 0 {
		return nil
	}
	normalized := make(map[string][]string, len(filters))
	for key, values := range filters {
		k := strings.ToLower(strings.TrimSpace(key))
		for _, v := range values {
			normalized[k] = append(normalized[k], strings.ToLower(strings.TrimSpace(v)))
		}
	}
	return normalized
}

// matchMetadataFilter applies one metadata filter to an entry. Required
// keys compare against the single stored value; optional keys test set
// containment. A key the entry knows nothing about never matches.
func matchMetadataFilter(entry *datatypes.CatalogEntry, key string, values []string) bool {
	if stored, ok := entry.RequiredValues[key]; ok {
		for _, v := range values {
			if stored == v {
				return true
			}
		}
		return false
	}
	if _, ok := entry.OptionalValues[key]; ok {
		for _, v := range values {
			if entry.HasOptionalValue(key, v) {
				return true
			}
		}
	}
	return false
}
