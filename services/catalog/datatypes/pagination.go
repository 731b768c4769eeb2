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

// Pagination bounds for search and list endpoints.
const (
	// DefaultPageSize is used when the client omits the size parameter.
	DefaultPageSize = 20

	// MaxPageSize caps the size parameter; larger requests are clamped,
	// not rejected.
	MaxPageSize = 200
)

// Page is a paginated result envelope.
//
// The field names mirror the pagination contract consumers of the legacy
// integration already parse: content plus totalElements/totalPages and
// the 0-based page number.
//
// An empty page past the end of the result set is valid: Content is
// empty while TotalElements still reports the full count.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
}

// NewPage builds the envelope for one page of an already-sliced result.
//
// totalElements is the size of the full result set, number the 0-based
// page index, and size the effective (clamped) page size. TotalPages is
// derived; a zero-element result has zero pages.
func NewPage[T any](content []T, totalElements int64, number, size int) Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if size > 0 {
		totalPages = int((totalElements + int64(size) - 1) / int64(size))
	}
	return Page[T]{
		Content:       content,
		TotalElements: totalElements,
		TotalPages:    totalPages,
		Number:        number,
		Size:          size,
	}
}

// ClampPageSize normalizes a requested page size to the allowed range.
// Zero selects the default; values above MaxPageSize are clamped down;
// negative values are invalid and left to the caller to reject.
func ClampPageSize(size int) int {
	switch {
	case size == 0:
		return DefaultPageSize
	case size > MaxPageSize:
		return MaxPageSize
	default:
		return size
	}
}
