// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

import (
	"context"
	"sort"
	"strings"

	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
)

// DimensionFieldPath is the reserved suggest dimension for field paths.
// Any other dimension names a metadata key.
const DimensionFieldPath = "fieldpath"

// Suggest limits.
const (
	DefaultSuggestLimit = 10
	MaxSuggestLimit     = 100
)

// SuggestRequest asks for completions along one dimension.
//
// # Fields
//
//   - Dimension: "fieldpath" (case-insensitive) or a metadata key name.
//   - Prefix: Case-insensitive prefix the candidates must start with.
//     Empty returns the leading candidates of the whole dimension.
//   - ContextID: Restricts candidates to one context. Optional.
//   - Siblings: Metadata filters already chosen in the caller's UI;
//     candidates come only from entries satisfying all of them. Same
//     semantics as scoped search metadata filters.
//   - Limit: Maximum suggestions. Non-positive selects the default,
//     oversized values clamp.
type SuggestRequest struct {
	Dimension string
	Prefix    string
	ContextID string
	Siblings  map[string][]string
	Limit     int
}

// Suggest returns distinct candidate values, sorted ascending.
//
// Candidates for the fieldpath dimension are entry field paths; for a
// metadata dimension they are the stored required value and every
// accumulated optional value of that key. Entries of inactive contexts
// never contribute.
func (e *Engine) Suggest(ctx context.Context, req SuggestRequest) ([]string, error) {
	dimension := strings.ToLower(strings.TrimSpace(req.Dimension))
	if dimension == "" {
		return nil, datatypes.NewValidationError("dimension is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	if limit > MaxSuggestLimit {
		limit = MaxSuggestLimit
	}

	prefix := strings.ToLower(strings.TrimSpace(req.Prefix))
	contextID := strings.ToLower(strings.TrimSpace(req.ContextID))
	siblings := normalizeMetadataFilters(req.Siblings)

	visible, err := e.visibleContexts(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []string
	err = e.catalog.ScanEntries(ctx, func(entry *datatypes.CatalogEntry) error {
		if _, ok := visible[entry.ContextID]; !ok {
			return nil
		}
		if contextID != "" && entry.ContextID != contextID {
			return nil
		}
		for key, values := range siblings {
			if !matchMetadataFilter(entry, key, values) {
				return nil
			}
		}
		for _, candidate := range dimensionCandidates(entry, dimension) {
			if prefix != "" && !strings.HasPrefix(candidate, prefix) {
				continue
			}
			if _, dup := seen[candidate]; dup {
				continue
			}
			seen[candidate] = struct{}{}
			out = append(out, candidate)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// dimensionCandidates extracts an entry's values along a dimension.
// Stored values are lowercase already.
func dimensionCandidates(entry *datatypes.CatalogEntry, dimension string) []string {
	if dimension == DimensionFieldPath {
		return []string{entry.FieldPath}
	}
	var out []string
	if v, ok := entry.RequiredValues[dimension]; ok {
		out = append(out, v)
	}
	return append(out, entry.OptionalValues[dimension]...)
}
