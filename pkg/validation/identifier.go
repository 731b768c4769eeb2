// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided identifiers that end up
// in storage key prefixes and content-addressed hashes. Using these validators
// prevents key-space injection (a "/" smuggled into a context ID would cross
// key-prefix boundaries) and hash-canonicalization collisions (embedded
// control separators).
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// contextIDPattern matches valid business context identifiers.
// Allows: lowercase letters, digits, dots, hyphens, underscores
// Max length: 64 characters
var contextIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._\-]{0,63}$`)

// metadataKeyPattern matches valid metadata key names.
// Same character set as context IDs; keys are compared lowercase.
var metadataKeyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._\-]{0,63}$`)

// fieldPathSegmentPattern matches one segment of a document field path.
// Segments follow XML naming loosened to lowercase: an optional attribute
// marker (@), then letters/digits/underscore, with dots, hyphens, and a
// namespace colon allowed after the first character.
var fieldPathSegmentPattern = regexp.MustCompile(`^@?[a-z0-9_][a-z0-9_.:\-]*$`)

// maxFieldPathLen bounds stored field paths. Deeply nested documents stay
// well under this; anything past it is malformed input, not data.
const maxFieldPathLen = 512

// ValidateContextID validates a business context identifier for safe use in
// storage key prefixes.
//
// Valid context IDs:
//   - 1-64 characters
//   - Lowercase letters a-z
//   - Digits 0-9
//   - Dots (.), hyphens (-), underscores (_) after the first character
//
// Returns an error if the identifier is invalid.
//
// Example:
//
//	if err := validation.ValidateContextID(ctxID); err != nil {
//	    return nil, fmt.Errorf("invalid context id: %w", err)
//	}
//	// Safe to embed in a storage key prefix
func ValidateContextID(id string) error {
	if id == "" {
		return fmt.Errorf("context id cannot be empty")
	}

	if !contextIDPattern.MatchString(id) {
		return fmt.Errorf("invalid context id format: %q (must be 1-64 lowercase alphanumeric chars, dots, hyphens, or underscores)", id)
	}

	return nil
}

// ValidateMetadataKey validates a single metadata key name.
// Keys share the context ID character set so they canonicalize cleanly.
func ValidateMetadataKey(key string) error {
	if key == "" {
		return fmt.Errorf("metadata key cannot be empty")
	}

	if !metadataKeyPattern.MatchString(key) {
		return fmt.Errorf("invalid metadata key format: %q (must be 1-64 lowercase alphanumeric chars, dots, hyphens, or underscores)", key)
	}

	return nil
}

// ValidateMetadataKeys validates multiple metadata key names.
// Returns an error listing all invalid keys if any fail validation.
func ValidateMetadataKeys(keys []string) error {
	var invalid []string
	for _, k := range keys {
		if err := ValidateMetadataKey(k); err != nil {
			invalid = append(invalid, k)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid metadata keys: %v", invalid)
	}
	return nil
}

// ValidateMetadataValue validates a metadata value before it enters a
// content-addressed hash. Values are free-form except for ASCII control
// characters, which double as separators in the canonical form.
func ValidateMetadataValue(value string) error {
	if value == "" {
		return fmt.Errorf("metadata value cannot be empty")
	}

	for _, r := range value {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("metadata value contains control character 0x%02X", r)
		}
	}

	return nil
}

// ValidateFieldPath validates a slash-separated document field path.
//
// Valid field paths:
//   - 1-512 characters after trimming
//   - An optional leading slash (XPath-rooted form)
//   - Segments separated by single slashes, no empty segments
//   - Each segment: optional @ (attribute), then lowercase alphanumerics,
//     underscores, dots, hyphens, or a namespace colon
//
// Returns an error if the path is invalid.
func ValidateFieldPath(path string) error {
	if path == "" {
		return fmt.Errorf("field path cannot be empty")
	}

	if len(path) > maxFieldPathLen {
		return fmt.Errorf("field path exceeds %d characters", maxFieldPathLen)
	}

	for _, segment := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		if segment == "" {
			return fmt.Errorf("field path %q contains an empty segment", path)
		}
		if !fieldPathSegmentPattern.MatchString(segment) {
			return fmt.Errorf("invalid field path segment: %q", segment)
		}
	}

	return nil
}

// SanitizeContextID normalizes and validates a context identifier.
// Returns the lowercase identifier if valid, or an error if invalid.
//
// Use this when you need both validation and normalization:
//
//	safeID, err := validation.SanitizeContextID(userInput)
//	if err != nil {
//	    return err
//	}
//	// safeID is lowercase and validated
func SanitizeContextID(id string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(id))
	if err := ValidateContextID(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// SanitizeMetadataKey normalizes and validates a metadata key name.
// Returns the lowercase key if valid, or an error if invalid.
func SanitizeMetadataKey(key string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(key))
	if err := ValidateMetadataKey(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// SanitizeFieldPath normalizes and validates a document field path.
// Whitespace and trailing slashes are trimmed and the path is lowercased
// before validation. A leading slash is preserved: the rooted and
// unrooted spellings are distinct paths and hash to distinct identities.
func SanitizeFieldPath(path string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(path))
	normalized = strings.TrimRight(normalized, "/")
	if err := ValidateFieldPath(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
