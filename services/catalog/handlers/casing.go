// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/FieldScope/pkg/extensions"
	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
	"github.com/AleutianAI/FieldScope/services/catalog/engine"
)

// SelectCasing designates the canonical casing for a field.
//
// PUT /v1/fields/:fieldId/casing
//
// # Description
//
// Curation picks one of the literal spellings already recorded in the
// entry's casing counts; a spelling never observed is rejected with 400
// and code "invalid_casing". An unknown field ID is 404. Success returns
// the updated entry.
func SelectCasing(eng *engine.Engine, opts extensions.ServiceOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		fieldID := c.Param("fieldId")

		var req datatypes.SelectCasingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}

		if !authorize(c, opts, "update", "field", fieldID) {
			return
		}

		updated, err := eng.SelectCasing(c.Request.Context(), fieldID, req.CanonicalCasing)
		if err != nil {
			auditRecord(c, opts.AuditLogger, "field.casing", "update", "field", fieldID, "failure")
			respondError(c, err)
			return
		}

		auditRecord(c, opts.AuditLogger, "field.casing", "update", "field", fieldID, "success")
		slog.Info("canonical casing selected",
			"field_id", fieldID,
			"canonical_casing", updated.CanonicalCasing)
		c.JSON(http.StatusOK, updated)
	}
}
