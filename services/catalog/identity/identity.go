// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package identity derives content-addressed identifiers for observed fields.
//
// A field's identity is a pure function of the business context, the values
// of the context's required metadata keys, and the field path. Two observers
// reporting the same field in the same schema variant always produce the same
// ID, so merges are idempotent and no coordination is needed between callers.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Separator bytes for the canonical form. Both are rejected by input
// validation, so no context ID, metadata key, value, or field path can
// contain them; joining with them prevents concatenation collisions
// ("ab"+"c" vs "a"+"bc").
const (
	unitSep   = 0x1F // between a key and its value
	recordSep = 0x1E // between canonical components
)

// ErrMissingRequiredKey indicates an observation's metadata lacks one of the
// context's required keys. Returned wrapped in *MissingKeyError.
var ErrMissingRequiredKey = errors.New("missing required metadata key")

// MissingKeyError reports which required key was absent when an identity
// was requested.
type MissingKeyError struct {
	// ContextID is the context whose required key was missing.
	ContextID string

	// Key is the required metadata key that was absent or empty.
	Key string
}

// Error implements the error interface.
func (e *MissingKeyError) Error() string {
	return "context " + e.ContextID + ": missing required metadata key \"" + e.Key + "\""
}

// Unwrap returns ErrMissingRequiredKey so callers can match with errors.Is.
func (e *MissingKeyError) Unwrap() error {
	return ErrMissingRequiredKey
}

// ComputeID returns the deterministic entry ID for one observed field.
//
// # Description
//
// Builds the canonical form
//
//	lower(contextID) RS lower(k1) US lower(v1) RS ... RS lower(fieldPath)
//
// with required keys taken in the order the context declares them (never
// sorted: declaration order is part of the contract, and a context's
// required keys are immutable). The SHA-256 of that form, truncated to
// 16 bytes and rendered through uuid.FromBytes, is the entry ID.
//
// # Inputs
//
//   - contextID: The owning context's ID.
//   - requiredKeys: The context's required keys in declaration order.
//   - requiredValues: Metadata values for at least every required key.
//   - fieldPath: Slash-separated path of the observed field.
//
// # Outputs
//
//   - string: UUID-formatted entry ID.
//   - error: *MissingKeyError if any required key is absent or empty.
//
// # Examples
//
//	id, err := identity.ComputeID("invoice-inbound",
//		[]string{"partner", "doctype"},
//		map[string]string{"partner": "acme", "doctype": "850"},
//		"order/header/orderid")
//
// # Limitations
//
//   - Inputs are lowercased here as a safety net, but callers are expected
//     to pass pre-normalized values; mixed-case inputs hash identically.
func ComputeID(contextID string, requiredKeys []string, requiredValues map[string]string, fieldPath string) (string, error) {
	var b strings.Builder
	if err := writeVariantForm(&b, contextID, requiredKeys, requiredValues); err != nil {
		return "", err
	}
	b.WriteByte(recordSep)
	b.WriteString(strings.ToLower(fieldPath))

	hash := sha256.Sum256([]byte(b.String()))
	entryUUID, err := uuid.FromBytes(hash[:16])
	if err != nil {
		// Unreachable: FromBytes only fails on length != 16.
		return "", err
	}
	return entryUUID.String(), nil
}

// VariantKey returns the identifier of one schema variant.
//
// # Description
//
// A schema variant is a context plus one concrete combination of required
// metadata values. The key is the hex form of the first 16 bytes of the
// SHA-256 over the same canonical form ComputeID uses, minus the field
// path. Entries carry it so absence cleanup and the variant storage index
// can scan exactly one variant without touching its siblings.
//
// # Outputs
//
//   - string: 32-character lowercase hex key.
//   - error: *MissingKeyError if any required key is absent or empty.
func VariantKey(contextID string, requiredKeys []string, requiredValues map[string]string) (string, error) {
	var b strings.Builder
	if err := writeVariantForm(&b, contextID, requiredKeys, requiredValues); err != nil {
		return "", err
	}
	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:16]), nil
}

// writeVariantForm appends the canonical variant form (context ID plus
// required key/value pairs in declaration order) to b. An absent or empty
// required value is an error: identity over a partial key set would collide
// with a genuinely different variant.
func writeVariantForm(b *strings.Builder, contextID string, requiredKeys []string, requiredValues map[string]string) error {
	b.WriteString(strings.ToLower(contextID))
	for _, key := range requiredKeys {
		value, ok := requiredValues[key]
		if !ok || value == "" {
			return &MissingKeyError{ContextID: contextID, Key: key}
		}
		b.WriteByte(recordSep)
		b.WriteString(strings.ToLower(key))
		b.WriteByte(unitSep)
		b.WriteString(strings.ToLower(value))
	}
	return nil
}
