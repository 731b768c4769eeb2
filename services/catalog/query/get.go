// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import (
	"context"
	"errors"
	"strings"

	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
	"github.com/AleutianAI/FieldScope/services/catalog/engine"
	"github.com/AleutianAI/FieldScope/services/catalog/storage"
)

// Get returns one catalog entry by its content-addressed ID.
//
// Entries of inactive contexts are invisible here exactly as they are
// in search results: the lookup answers ErrFieldNotFound rather than
// reveal that the entry still exists behind a deactivated context.
func (e *Engine) Get(ctx context.Context, fieldID string) (*datatypes.CatalogEntry, error) {
	fieldID = strings.TrimSpace(fieldID)
	if fieldID == "" {
		return nil, datatypes.NewValidationError("fieldId must not be empty")
	}

	entry, err := e.catalog.GetEntry(ctx, fieldID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, engine.ErrFieldNotFound
	}
	if err != nil {
		return nil, err
	}

	owner, err := e.contexts.GetContext(ctx, entry.ContextID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, engine.ErrFieldNotFound
	}
	if err != nil {
		return nil, err
	}
	if !owner.Active {
		return nil, engine.ErrFieldNotFound
	}

	return entry, nil
}
