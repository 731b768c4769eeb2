// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry manages business context definitions and validates
// observation metadata against them.
//
// The registry is the schema authority for the catalog: it decides which
// metadata keys a context requires, which it merely allows, and whether a
// context currently accepts observations. Required keys are immutable after
// creation because every stored field identity hashes over their values.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/FieldScope/pkg/validation"
	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
	"github.com/AleutianAI/FieldScope/services/catalog/storage"
)

// Registry coordinates context definitions between the API, the seed file,
// and the stores.
//
// Thread Safety: Safe for concurrent use. Concurrent writers to the same
// context follow last-write-wins, matching the catalog's overall
// concurrency stance.
type Registry struct {
	contexts storage.ContextStore
	catalog  storage.CatalogStore
	logger   *slog.Logger
	now      func() int64
}

// New creates a Registry over the given stores.
func New(contexts storage.ContextStore, catalog storage.CatalogStore, logger *slog.Logger) (*Registry, error) {
	if contexts == nil {
		return nil, errors.New("context store must not be nil")
	}
	if catalog == nil {
		return nil, errors.New("catalog store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		contexts: contexts,
		catalog:  catalog,
		logger:   logger.With(slog.String("component", "registry")),
		now:      datatypes.NowMillis,
	}, nil
}

// Create registers a new business context.
//
// # Description
//
// Normalizes the ID and all keys to lowercase, rejects malformed input
// with *datatypes.ValidationError, and refuses IDs that already exist
// with ErrContextExists. Active defaults to true when the request leaves
// it unset.
//
// # Outputs
//
//   - *datatypes.Context: The stored definition.
//   - error: *datatypes.ValidationError, ErrContextExists, or a storage error.
func (r *Registry) Create(ctx context.Context, req *datatypes.CreateContextRequest) (*datatypes.Context, error) {
	if err := req.Validate(); err != nil {
		return nil, datatypes.NewValidationError(err.Error())
	}
	req.EnsureDefaults()

	contextID, err := validation.SanitizeContextID(req.ContextID)
	if err != nil {
		return nil, datatypes.NewValidationError(err.Error(),
			datatypes.FieldError{Field: "contextId", Message: err.Error()})
	}

	requiredKeys, err := normalizeKeySet(req.RequiredKeys, "requiredKeys")
	if err != nil {
		return nil, err
	}
	optionalKeys, err := normalizeKeySet(req.OptionalKeys, "optionalKeys")
	if err != nil {
		return nil, err
	}
	if err := rejectKeyOverlap(requiredKeys, optionalKeys); err != nil {
		return nil, err
	}

	if _, err := r.contexts.GetContext(ctx, contextID); err == nil {
		return nil, ErrContextExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	now := r.now()
	c := &datatypes.Context{
		ID:           contextID,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Description:  strings.TrimSpace(req.Description),
		RequiredKeys: requiredKeys,
		OptionalKeys: optionalKeys,
		Active:       req.Active == nil || *req.Active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.contexts.PutContext(ctx, c); err != nil {
		return nil, err
	}

	r.logger.Info("context created",
		slog.String("context_id", c.ID),
		slog.Int("required_keys", len(c.RequiredKeys)),
		slog.Int("optional_keys", len(c.OptionalKeys)))
	return c.Clone(), nil
}

// Get returns the context with the given ID, or ErrContextNotFound.
func (r *Registry) Get(ctx context.Context, contextID string) (*datatypes.Context, error) {
	c, err := r.contexts.GetContext(ctx, strings.ToLower(strings.TrimSpace(contextID)))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrContextNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns all contexts in ascending ID order, active or not.
func (r *Registry) List(ctx context.Context) ([]*datatypes.Context, error) {
	return r.contexts.ListContexts(ctx)
}

// Update applies mutable fields to an existing context.
//
// # Description
//
// DisplayName, Description, OptionalKeys, and Active can change at any
// time. RequiredKeys cannot: a request carrying a required-key set that
// differs from the stored one fails with ErrImmutableSchema (submitting
// the identical set is an accepted no-op, so idempotent PUTs work).
// Removing an optional key only stops future observations from using it;
// values already accumulated under the key remain on the entries.
func (r *Registry) Update(ctx context.Context, contextID string, req *datatypes.UpdateContextRequest) (*datatypes.Context, error) {
	if err := req.Validate(); err != nil {
		return nil, datatypes.NewValidationError(err.Error())
	}

	existing, err := r.Get(ctx, contextID)
	if err != nil {
		return nil, err
	}
	updated := existing.Clone()

	if req.RequiredKeys != nil {
		requested, err := normalizeKeySet(*req.RequiredKeys, "requiredKeys")
		if err != nil {
			return nil, err
		}
		if !equalKeys(requested, existing.RequiredKeys) {
			return nil, ErrImmutableSchema
		}
	}

	if req.OptionalKeys != nil {
		optionalKeys, err := normalizeKeySet(*req.OptionalKeys, "optionalKeys")
		if err != nil {
			return nil, err
		}
		if err := rejectKeyOverlap(existing.RequiredKeys, optionalKeys); err != nil {
			return nil, err
		}
		updated.OptionalKeys = optionalKeys
	}

	if req.DisplayName != nil {
		updated.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	updated.UpdatedAt = r.now()

	if err := r.contexts.PutContext(ctx, updated); err != nil {
		return nil, err
	}

	r.logger.Info("context updated",
		slog.String("context_id", updated.ID),
		slog.Bool("active", updated.Active))
	return updated.Clone(), nil
}

// Delete removes a context and cascades to all of its catalog entries.
// Returns the number of entries removed.
func (r *Registry) Delete(ctx context.Context, contextID string) (int, error) {
	existing, err := r.Get(ctx, contextID)
	if err != nil {
		return 0, err
	}

	removed, err := r.catalog.DeleteContextData(ctx, existing.ID)
	if err != nil {
		return removed, err
	}
	if err := r.contexts.DeleteContext(ctx, existing.ID); err != nil {
		// The definition survived but its data is gone; a retry of the
		// delete is safe and completes the cascade.
		if !errors.Is(err, storage.ErrNotFound) {
			return removed, err
		}
	}

	r.logger.Info("context deleted",
		slog.String("context_id", existing.ID),
		slog.Int("entries_removed", removed))
	return removed, nil
}

// Validate checks one observation's metadata against a context's schema.
//
// # Description
//
// Resolves the context (ErrContextNotFound / ErrContextInactive), then
// splits the metadata into required and optional values, lowercasing keys
// and values on the way. Any key outside required ∪ optional, any missing
// or empty required value, and any malformed key or value fails with a
// *datatypes.ValidationError naming the key.
func (r *Registry) Validate(ctx context.Context, contextID string, metadata map[string]string) (map[string]string, map[string]string, error) {
	c, err := r.Get(ctx, contextID)
	if err != nil {
		return nil, nil, err
	}
	return ValidateMetadata(c, metadata)
}

// ValidateMetadata is the storage-free core of Validate. The merge engine
// resolves the context once per batch and runs this per observation.
func ValidateMetadata(c *datatypes.Context, metadata map[string]string) (map[string]string, map[string]string, error) {
	if !c.Active {
		return nil, nil, ErrContextInactive
	}

	required := make(map[string]string, len(c.RequiredKeys))
	optional := make(map[string]string)

	for rawKey, rawValue := range metadata {
		key, err := validation.SanitizeMetadataKey(rawKey)
		if err != nil {
			return nil, nil, datatypes.NewValidationError(
				fmt.Sprintf("metadata key %q: %v", rawKey, err),
				datatypes.FieldError{Field: "metadata." + rawKey, Message: err.Error()})
		}
		value := strings.ToLower(strings.TrimSpace(rawValue))
		if err := validation.ValidateMetadataValue(value); err != nil {
			return nil, nil, datatypes.NewValidationError(
				fmt.Sprintf("metadata value for %q: %v", key, err),
				datatypes.FieldError{Field: "metadata." + key, Message: err.Error()})
		}

		switch {
		case c.HasRequiredKey(key):
			required[key] = value
		case c.HasOptionalKey(key):
			optional[key] = value
		default:
			return nil, nil, datatypes.NewValidationError(
				fmt.Sprintf("metadata key %q is not declared for context %q", key, c.ID),
				datatypes.FieldError{Field: "metadata." + key, Message: "key not declared"})
		}
	}

	for _, key := range c.RequiredKeys {
		if required[key] == "" {
			return nil, nil, datatypes.NewValidationError(
				fmt.Sprintf("required metadata key missing: %s", key),
				datatypes.FieldError{Field: "metadata." + key, Message: "required key missing"})
		}
	}

	return required, optional, nil
}

// normalizeKeySet sanitizes each key to lowercase and rejects duplicates,
// preserving the declared order.
func normalizeKeySet(keys []string, field string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	normalized := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, raw := range keys {
		key, err := validation.SanitizeMetadataKey(raw)
		if err != nil {
			return nil, datatypes.NewValidationError(
				fmt.Sprintf("%s: key %q: %v", field, raw, err),
				datatypes.FieldError{Field: field, Message: err.Error()})
		}
		if _, dup := seen[key]; dup {
			return nil, datatypes.NewValidationError(
				fmt.Sprintf("%s: duplicate key %q", field, key),
				datatypes.FieldError{Field: field, Message: "duplicate key"})
		}
		seen[key] = struct{}{}
		normalized = append(normalized, key)
	}
	return normalized, nil
}

// rejectKeyOverlap fails when a key appears in both sets. A key cannot be
// both identity-bearing and merely descriptive.
func rejectKeyOverlap(requiredKeys, optionalKeys []string) error {
	if len(requiredKeys) == 0 || len(optionalKeys) == 0 {
		return nil
	}
	required := make(map[string]struct{}, len(requiredKeys))
	for _, k := range requiredKeys {
		required[k] = struct{}{}
	}
	for _, k := range optionalKeys {
		if _, clash := required[k]; clash {
			return datatypes.NewValidationError(
				fmt.Sprintf("key %q cannot be both required and optional", k),
				datatypes.FieldError{Field: "optionalKeys", Message: "overlaps requiredKeys"})
		}
	}
	return nil
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
