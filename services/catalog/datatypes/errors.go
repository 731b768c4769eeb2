// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// ErrorResponse is the JSON error payload returned by every endpoint.
//
// # Description
//
// Error bodies carry a human-readable message, the HTTP status code, and
// a stable machine-readable error code. Validation failures additionally
// list the offending fields so batch submitters can pinpoint the bad
// observation without re-parsing the message text.
//
// # Examples
//
//	{
//	    "message": "required metadata key missing: region",
//	    "status": 400,
//	    "error": "validation_failed",
//	    "errors": [
//	        {"field": "observations[2].metadata.region", "message": "required key missing"}
//	    ]
//	}
type ErrorResponse struct {
	Message string       `json:"message"`
	Status  int          `json:"status"`
	Code    string       `json:"error"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError locates one invalid field inside a request payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Stable error codes used in ErrorResponse.Code.
const (
	CodeValidationFailed = "validation_failed"
	CodeNotFound         = "not_found"
	CodeContextExists    = "context_exists"
	CodeContextInactive  = "context_inactive"
	CodeImmutableSchema  = "immutable_schema"
	CodeInvalidCasing    = "invalid_casing"
	CodeStorageFailure   = "storage_failure"
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeRateLimited      = "rate_limited"
)

// ValidationError is the domain-level rejection of an input: a bad metadata
// key, an observation missing a required value, a snapshot batch spanning
// variants, an unparseable search pattern. Handlers map it to HTTP 400 with
// the Details as the errors list.
//
// Distinct from the request-shape validation in requests.go: that catches
// malformed payloads at bind time, this catches inputs that are well-formed
// but wrong for the target context.
type ValidationError struct {
	// Message summarizes the rejection.
	Message string

	// Details optionally locates the offending fields.
	Details []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError with optional field details.
func NewValidationError(message string, details ...FieldError) *ValidationError {
	return &ValidationError{Message: message, Details: details}
}
