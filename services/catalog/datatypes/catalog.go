// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the catalog service.
//
// This file contains the persistent domain types: business contexts and
// the catalog entries that accumulate field usage statistics. Request and
// response types live in requests.go.
package datatypes

import (
	"sort"
	"time"
)

// =============================================================================
// Business Context
// =============================================================================

// Context describes one business scenario whose documents are observed.
//
// # Description
//
// A Context declares which metadata keys identify a document's schema
// variant (RequiredKeys) and which keys are merely descriptive
// (OptionalKeys). Required keys are immutable after creation: every stored
// field identity hashes over their values, so changing them would orphan
// the accumulated statistics.
//
// # Fields
//
//   - ID: Unique lowercase identifier (e.g., "invoice-inbound").
//   - DisplayName: Human-readable name for UIs. Optional.
//   - Description: Free-form description. Optional.
//   - RequiredKeys: Metadata keys every observation must carry, in the
//     order declared at creation. Immutable.
//   - OptionalKeys: Additional metadata keys observations may carry.
//     Mutable; removing a key does not erase stored values.
//   - Active: Inactive contexts reject new observations and are hidden
//     from unscoped searches, but keep their data.
//   - CreatedAt / UpdatedAt: Unix timestamps in milliseconds (UTC).
//
// # Assumptions
//
//   - ID and all keys are already lowercase (registry normalizes input)
//   - RequiredKeys order is preserved exactly as declared
type Context struct {
	ID           string   `json:"contextId"`
	DisplayName  string   `json:"displayName,omitempty"`
	Description  string   `json:"description,omitempty"`
	RequiredKeys []string `json:"requiredMetadataKeys"`
	OptionalKeys []string `json:"optionalMetadataKeys,omitempty"`
	Active       bool     `json:"active"`
	CreatedAt    int64    `json:"createdAt"`
	UpdatedAt    int64    `json:"updatedAt"`
}

// HasRequiredKey reports whether key is one of the context's required keys.
func (c *Context) HasRequiredKey(key string) bool {
	for _, k := range c.RequiredKeys {
		if k == key {
			return true
		}
	}
	return false
}

// HasOptionalKey reports whether key is one of the context's optional keys.
func (c *Context) HasOptionalKey(key string) bool {
	for _, k := range c.OptionalKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Registry callers mutate copies, never the
// stored instance.
func (c *Context) Clone() *Context {
	clone := *c
	clone.RequiredKeys = append([]string(nil), c.RequiredKeys...)
	clone.OptionalKeys = append([]string(nil), c.OptionalKeys...)
	return &clone
}

// =============================================================================
// Catalog Entry
// =============================================================================

// CatalogEntry accumulates usage statistics for one field in one schema
// variant of one context.
//
// # Description
//
// An entry is identified by a content-addressed ID derived from the
// context, the required metadata values, and the lowercase field path.
// All statistics are merged in, never reset: counts widen, boolean flags
// latch true, optional values and casing literals accumulate.
//
// # Fields
//
//   - ID: Content-addressed entry identifier (UUID string form).
//   - ContextID: Owning context.
//   - VariantKey: Hash naming the schema variant (context + required
//     values). Scopes absence cleanup and the storage variant index.
//   - RequiredValues: The required metadata values this entry belongs to.
//   - OptionalValues: Set-valued optional metadata accumulated across
//     observations. Each slice is sorted and duplicate-free.
//   - FieldPath: Lowercase slash-separated path of the field.
//   - MinOccurs / MaxOccurs: Smallest and largest per-document occurrence
//     count observed. MinOccurs 0 means the field was absent from at least
//     one complete snapshot.
//   - AllowsNull / AllowsEmpty: Latched true once any observation reported
//     an explicit nil or an empty value.
//   - FirstObservedAt / LastObservedAt: Unix millis; FirstObservedAt is
//     set once and never changes.
//   - CasingCounts: Observation count per literal field-path casing.
//   - CanonicalCasing: Optional curated casing; when set it must be one
//     of the keys of CasingCounts.
//
// # Invariants
//
//   - 0 <= MinOccurs <= MaxOccurs
//   - AllowsNull / AllowsEmpty never flip back to false
//   - CasingCounts contains CanonicalCasing whenever CanonicalCasing != ""
type CatalogEntry struct {
	ID              string              `json:"fieldId"`
	ContextID       string              `json:"contextId"`
	VariantKey      string              `json:"variantKey"`
	RequiredValues  map[string]string   `json:"requiredValues"`
	OptionalValues  map[string][]string `json:"optionalValues,omitempty"`
	FieldPath       string              `json:"fieldPath"`
	MinOccurs       int64               `json:"minOccurs"`
	MaxOccurs       int64               `json:"maxOccurs"`
	AllowsNull      bool                `json:"allowsNull"`
	AllowsEmpty     bool                `json:"allowsEmpty"`
	FirstObservedAt int64               `json:"firstObservedAt"`
	LastObservedAt  int64               `json:"lastObservedAt"`
	CasingCounts    map[string]int64    `json:"casingCounts"`
	CanonicalCasing string              `json:"canonicalCasing,omitempty"`
}

// AddOptionalValue inserts value into the sorted set for key.
// No-op if the value is already present.
func (e *CatalogEntry) AddOptionalValue(key, value string) {
	if e.OptionalValues == nil {
		e.OptionalValues = make(map[string][]string)
	}
	values := e.OptionalValues[key]
	idx := sort.SearchStrings(values, value)
	if idx < len(values) && values[idx] == value {
		return
	}
	values = append(values, "")
	copy(values[idx+1:], values[idx:])
	values[idx] = value
	e.OptionalValues[key] = values
}

// HasOptionalValue reports whether the set for key contains value.
func (e *CatalogEntry) HasOptionalValue(key, value string) bool {
	values, ok := e.OptionalValues[key]
	if !ok {
		return false
	}
	idx := sort.SearchStrings(values, value)
	return idx < len(values) && values[idx] == value
}

// Clone returns a deep copy of the entry.
func (e *CatalogEntry) Clone() *CatalogEntry {
	clone := *e
	if e.RequiredValues != nil {
		clone.RequiredValues = make(map[string]string, len(e.RequiredValues))
		for k, v := range e.RequiredValues {
			clone.RequiredValues[k] = v
		}
	}
	if e.OptionalValues != nil {
		clone.OptionalValues = make(map[string][]string, len(e.OptionalValues))
		for k, v := range e.OptionalValues {
			clone.OptionalValues[k] = append([]string(nil), v...)
		}
	}
	if e.CasingCounts != nil {
		clone.CasingCounts = make(map[string]int64, len(e.CasingCounts))
		for k, v := range e.CasingCounts {
			clone.CasingCounts[k] = v
		}
	}
	return &clone
}

// =============================================================================
// Observation
// =============================================================================

// Observation is one field's usage in one observed document.
//
// # Description
//
// Observations are ephemeral: the engine folds them into catalog entries
// and discards them. FieldPath keeps the literal casing from the document
// so the engine can count casing variants; identity computation lowercases
// it separately.
//
// # Fields
//
//   - Metadata: Document metadata (required + optional keys). Keys and
//     values are normalized lowercase during registry validation.
//   - FieldPath: Slash-separated path, original casing preserved.
//   - Count: Occurrences of the field within the document. Zero is an
//     explicit absence report and forces MinOccurs to 0.
//   - HasNull: Field carried an explicit nil marker (e.g., xsi:nil).
//   - HasEmpty: Field was present with empty content.
type Observation struct {
	Metadata  map[string]string `json:"metadata" validate:"required,min=1"`
	FieldPath string            `json:"fieldPath" validate:"required,pathbytes"`
	Count     int64             `json:"count" validate:"gte=0"`
	HasNull   bool              `json:"hasNull"`
	HasEmpty  bool              `json:"hasEmpty"`
}

// NowMillis returns the current wall clock as Unix milliseconds.
// Persistence timestamps across the service use this resolution.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
