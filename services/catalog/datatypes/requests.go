// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains request types for the catalog REST endpoints, with
// go-playground/validator tags and a shared validator instance.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Constants for Input Bounds
// =============================================================================

const (
	// MaxObservationsPerBatch is the maximum number of observations in a
	// single merge request. One batch is one storage transaction, so the
	// bound also caps transaction size.
	MaxObservationsPerBatch = 1000

	// MaxFieldPathBytes is the maximum size of a field path. Checked as
	// byte length (not rune count) to bound storage keys.
	MaxFieldPathBytes = 512

	// MaxMetadataValueBytes is the maximum size of a single metadata value.
	MaxMetadataValueBytes = 4 * 1024 // 4KB

	// MaxRequiredKeys bounds the required key set of a context.
	MaxRequiredKeys = 16

	// MaxOptionalKeys bounds the optional key set of a context.
	MaxOptionalKeys = 64
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// catalogValidate is the validator instance for catalog datatypes.
// Initialized in init() with custom validators.
var catalogValidate *validator.Validate

func init() {
	catalogValidate = validator.New()

	// Byte-length bound for field paths (storage keys embed them).
	_ = catalogValidate.RegisterValidation("pathbytes", validatePathBytes)
}

// validatePathBytes validates that a field path does not exceed
// MaxFieldPathBytes. Byte length is used rather than rune count because
// the path ends up in storage keys and hashes.
func validatePathBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxFieldPathBytes
}

// =============================================================================
// Context Requests
// =============================================================================

// CreateContextRequest registers a new business context.
//
// # Description
//
// Declares the metadata schema for a context: which keys every
// observation must carry (required) and which are merely descriptive
// (optional). Key order of RequiredKeys is preserved and participates in
// field identity, so it matters.
//
// # Validation
//
// Uses go-playground/validator:
//   - ContextID: required, 1-64 chars (charset enforced by the registry)
//   - RequiredKeys: required, 1-16 elements, no empty elements
//   - OptionalKeys: up to 64 elements, no empty elements
//
// The registry performs the deeper checks (charset, duplicates,
// required/optional overlap) because they depend on normalization.
//
// # Examples
//
//	req := CreateContextRequest{
//	    ContextID:    "invoice-inbound",
//	    RequiredKeys: []string{"doc-type", "region"},
//	    OptionalKeys: []string{"source-system"},
//	}
type CreateContextRequest struct {
	ContextID    string   `json:"contextId" validate:"required,min=1,max=64"`
	DisplayName  string   `json:"displayName" validate:"max=256"`
	Description  string   `json:"description" validate:"max=4096"`
	RequiredKeys []string `json:"requiredMetadataKeys" validate:"required,min=1,max=16,dive,required,max=64"`
	OptionalKeys []string `json:"optionalMetadataKeys" validate:"max=64,dive,required,max=64"`
	Active       *bool    `json:"active"`
}

// Validate validates the CreateContextRequest fields.
func (r *CreateContextRequest) Validate() error {
	return catalogValidate.Struct(r)
}

// EnsureDefaults populates default values for optional fields.
// New contexts are active unless the client says otherwise.
func (r *CreateContextRequest) EnsureDefaults() {
	if r.Active == nil {
		active := true
		r.Active = &active
	}
}

// UpdateContextRequest modifies the mutable fields of a context.
//
// # Description
//
// Pointer fields distinguish "not provided" (nil, keep current value)
// from "provided" (set, including empty). RequiredKeys may be echoed back
// unchanged; any actual difference is rejected by the registry because
// required keys are immutable.
//
// # Fields
//
//   - DisplayName / Description: Replaced when non-nil.
//   - OptionalKeys: Replaced wholesale when non-nil. Removing a key only
//     gates future observations; stored values remain.
//   - Active: Toggles observation intake and search visibility.
//   - RequiredKeys: Optional echo; must match the stored keys exactly.
type UpdateContextRequest struct {
	DisplayName  *string   `json:"displayName"`
	Description  *string   `json:"description"`
	RequiredKeys *[]string `json:"requiredMetadataKeys" validate:"omitempty,dive,required,max=64"`
	OptionalKeys *[]string `json:"optionalMetadataKeys" validate:"omitempty,max=64,dive,required,max=64"`
	Active       *bool     `json:"active"`
}

// Validate validates the UpdateContextRequest fields.
func (r *UpdateContextRequest) Validate() error {
	return catalogValidate.Struct(r)
}

// =============================================================================
// Observation Requests
// =============================================================================

// ObservationBatchRequest submits one document's worth of field
// observations for merging.
//
// # Description
//
// The batch is processed atomically: either every observation validates
// and merges, or none do. Every request includes a unique ID and
// timestamp for audit trails and log correlation.
//
// # Fields
//
//   - RequestID: Unique identifier for this request (UUID v4). Generated
//     server-side when absent.
//   - Timestamp: Unix timestamp in milliseconds (UTC) when the batch was
//     created. Generated server-side when absent.
//   - Snapshot: Tri-state completeness marker. True asserts the batch is
//     a complete document snapshot (fields absent from it get
//     MinOccurs=0). False suppresses absence cleanup. Absent (null) lets
//     the engine infer: cleanup runs when all observations share one
//     schema variant.
//   - Observations: 1-1000 field observations, each validated.
//
// # Validation
//
// Uses go-playground/validator:
//   - RequestID: optional, must be valid UUID v4 when present
//   - Observations: required, 1-1000 elements, each element validated
//   - Observations[].FieldPath: max 512 bytes
//   - Observations[].Count: >= 0 (zero reports explicit absence)
//
// # Examples
//
//	req := ObservationBatchRequest{
//	    Snapshot: nil, // infer
//	    Observations: []Observation{
//	        {
//	            Metadata:  map[string]string{"doc-type": "invoice", "region": "eu"},
//	            FieldPath: "Invoice/Header/InvoiceNumber",
//	            Count:     1,
//	        },
//	    },
//	}
//
// # Limitations
//
//   - Maximum 1000 observations per request; callers split larger
//     documents into multiple snapshot=false batches
type ObservationBatchRequest struct {
	RequestID    string        `json:"requestId" validate:"omitempty,uuid4"`
	Timestamp    int64         `json:"timestamp" validate:"gte=0"`
	Snapshot     *bool         `json:"snapshot"`
	Observations []Observation `json:"observations" validate:"required,min=1,max=1000,dive"`
}

// Validate validates the ObservationBatchRequest fields.
//
// Returns the validator error when any field fails. Metadata content is
// not checked here; the registry validates it against the context's
// declared keys.
func (r *ObservationBatchRequest) Validate() error {
	return catalogValidate.Struct(r)
}

// EnsureDefaults populates RequestID and Timestamp if not provided by
// the client.
func (r *ObservationBatchRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = uuid.NewString()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
}

// =============================================================================
// Casing Requests
// =============================================================================

// SelectCasingRequest picks the canonical casing for a field.
//
// The chosen casing must be one of the literal casings already observed
// for the field; the engine rejects unknown variants.
type SelectCasingRequest struct {
	CanonicalCasing string `json:"canonicalCasing" validate:"required,pathbytes"`
}

// Validate validates the SelectCasingRequest fields.
func (r *SelectCasingRequest) Validate() error {
	return catalogValidate.Struct(r)
}
