// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"errors"
)

// ErrValueBlocked is returned when a metadata value is rejected by the filter.
// Enterprise implementations should wrap this error with the reason.
//
// Example:
//
//	if containsPII(value) {
//	    return "", fmt.Errorf("value contains PII: %w", ErrValueBlocked)
//	}
var ErrValueBlocked = errors.New("value blocked by filter")

// FilterResult contains the outcome of a filter operation.
//
// This struct provides detailed information about what the filter did,
// useful for debugging, audit trails, and user feedback.
//
// Example:
//
//	result := FilterResult{
//	    Original:  "ssn 123-45-6789",
//	    Filtered:  "ssn [REDACTED]",
//	    WasModified: true,
//	    Detections: []Detection{
//	        {Type: "ssn", Location: "position 4-15", Action: "redacted"},
//	    },
//	}
type FilterResult struct {
	// Original is the input value before filtering.
	Original string

	// Filtered is the value after filtering transformations.
	// If WasModified is false, this equals Original.
	Filtered string

	// WasModified indicates if any transformations were applied.
	WasModified bool

	// WasBlocked indicates if the value was completely rejected.
	// If true, Filtered should not be used.
	WasBlocked bool

	// BlockReason explains why the value was blocked (if WasBlocked).
	BlockReason string

	// Detections lists what the filter found in the value.
	// Useful for audit logging and debugging.
	Detections []Detection
}

// Detection describes a single item found by the filter.
//
// Example:
//
//	detection := Detection{
//	    Type:     "credit_card",
//	    Location: "characters 45-64",
//	    Action:   "redacted",
//	    Original: "4111-1111-1111-1111",  // Only in debug mode
//	}
type Detection struct {
	// Type categorizes what was detected.
	// Common types: "ssn", "credit_card", "email", "phone", "api_key",
	// "pii", "secret"
	Type string

	// Location describes where in the value the item was found.
	// Format is implementation-specific (e.g., "characters 10-20")
	Location string

	// Action describes what was done with the detected item.
	// Values: "redacted", "masked", "replaced", "blocked", "flagged"
	Action string

	// Original is the detected content (only populated in debug mode).
	// WARNING: This may contain sensitive data - handle carefully.
	Original string

	// Replacement is what the content was replaced with (if Action is "replaced").
	Replacement string
}

// ValueFilter screens user-supplied strings before they are persisted or
// used in queries.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Filter Pipeline
//
// Values flow through filters at two points:
//
//  1. FilterValue: Before an observation's metadata values are merged
//     into the catalog
//     - Redact PII that leaked into routing metadata
//     - Block values that violate data handling policy
//
//  2. FilterQuery: Before a search term is evaluated
//     - Block query terms that would exfiltrate restricted values
//     - Strip characters disallowed by policy
//
// # Open Source Behavior
//
// The default NopValueFilter passes all values through unchanged.
// This is appropriate for local single-user deployments where content
// filtering isn't required.
//
// # Enterprise Implementation
//
// Enterprise versions implement content policies, PII detection,
// and compliance requirements.
//
// Example enterprise implementation:
//
//	type PIIFilter struct {
//	    patterns []PIIPattern
//	    policy   *Policy
//	}
//
//	func (f *PIIFilter) FilterValue(ctx context.Context, key, value string) (*FilterResult, error) {
//	    result := &FilterResult{Original: value, Filtered: value}
//
//	    for _, pattern := range f.patterns {
//	        if matches := pattern.FindAll(value); len(matches) > 0 {
//	            result.Filtered = pattern.Redact(result.Filtered)
//	            result.WasModified = true
//	            result.Detections = append(result.Detections, Detection{
//	                Type:   pattern.Name,
//	                Action: "redacted",
//	            })
//	        }
//	    }
//
//	    return result, nil
//	}
//
// # Blocking vs Transforming
//
// Filters can either:
//   - Transform: Modify content and allow it through (e.g., redact SSN)
//   - Block: Reject the entire value (e.g., policy violation)
//
// To block, return a FilterResult with WasBlocked=true and BlockReason set.
// The caller should then return ErrValueBlocked to the user.
type ValueFilter interface {
	// FilterValue processes one observation metadata value before merge.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - key: The metadata key the value belongs to
	//   - value: The raw metadata value
	//
	// Returns:
	//   - *FilterResult: The filtered value and metadata
	//   - error: Non-nil only for filter failures (not for blocks)
	//
	// If WasBlocked is true, the caller should:
	//  1. Log the block via AuditLogger
	//  2. Return ErrValueBlocked to the user
	//  3. NOT merge the observation
	FilterValue(ctx context.Context, key, value string) (*FilterResult, error)

	// FilterQuery processes a search term before evaluation.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - query: The raw search term
	//
	// Returns:
	//   - *FilterResult: The filtered term and metadata
	//   - error: Non-nil only for filter failures (not for blocks)
	FilterQuery(ctx context.Context, query string) (*FilterResult, error)
}

// NopValueFilter is the default value filter for open source.
//
// It passes all values through unchanged without any transformation
// or blocking. This is appropriate for local single-user deployments
// where content filtering isn't required.
//
// Thread-safe: This implementation has no mutable state.
//
// Example:
//
//	filter := &NopValueFilter{}
//	result, err := filter.FilterValue(ctx, "ssn", "123-45-6789")
//	// result.Filtered == "123-45-6789" (unchanged)
//	// result.WasModified == false
//	// err == nil
type NopValueFilter struct{}

// FilterValue returns the value unchanged.
//
// No transformations or blocking are applied.
func (f *NopValueFilter) FilterValue(ctx context.Context, key, value string) (*FilterResult, error) {
	return &FilterResult{
		Original:    value,
		Filtered:    value,
		WasModified: false,
		WasBlocked:  false,
		Detections:  nil,
	}, nil
}

// FilterQuery returns the query unchanged.
//
// No transformations or blocking are applied.
func (f *NopValueFilter) FilterQuery(ctx context.Context, query string) (*FilterResult, error) {
	return &FilterResult{
		Original:    query,
		Filtered:    query,
		WasModified: false,
		WasBlocked:  false,
		Detections:  nil,
	}, nil
}

// Compile-time interface compliance check.
// This ensures NopValueFilter implements ValueFilter.
var _ ValueFilter = (*NopValueFilter)(nil)
