// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
	"github.com/AleutianAI/FieldScope/services/catalog/storage"
)

// SelectCasing records the curated canonical casing for a field.
//
// # Description
//
// The casing must match one of the literal casings already observed for
// the field, byte for byte; curation picks among observed spellings, it
// never invents one. The read-modify-write runs in a single transaction
// so a concurrent merge cannot be overwritten with stale statistics.
//
// # Outputs
//
//   - *CatalogEntry: The updated entry.
//   - error: ErrFieldNotFound for an unknown ID, ErrInvalidCasing for a
//     casing not in CasingCounts, StorageError on commit conflict.
func (e *Engine) SelectCasing(ctx context.Context, fieldID, casing string) (*datatypes.CatalogEntry, error) {
	fieldID = strings.TrimSpace(fieldID)
	if fieldID == "" {
		return nil, datatypes.NewValidationError("fieldId must not be empty")
	}
	casing = strings.TrimSpace(casing)
	if casing == "" {
		return nil, datatypes.NewValidationError("canonicalCasing must not be empty")
	}

	var updated *datatypes.CatalogEntry
	err := e.catalog.WithMergeTxn(ctx, func(txn storage.MergeTxn) error {
		entry, err := txn.Get(fieldID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrFieldNotFound
		}
		if err != nil {
			return err
		}
		if _, observed := entry.CasingCounts[casing]; !observed {
			return fmt.Errorf("%w: %q", ErrInvalidCasing, casing)
		}
		entry.CanonicalCasing = casing
		if err := txn.Put(entry); err != nil {
			return err
		}
		updated = entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("canonical casing selected",
		slog.String("field_id", fieldID),
		slog.String("casing", casing))
	return updated, nil
}
