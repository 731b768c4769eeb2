// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/FieldScope/services/catalog/query"
)

// GetField returns one catalog entry by its content-addressed ID.
//
// GET /v1/fields/:fieldId
//
// # Description
//
// The ID is the same one search results and merge events carry, so a
// client can bookmark an entry and re-read its current statistics
// without paging through a search. An unknown ID is 404; so is an entry
// whose owning context has been deactivated, matching search visibility.
func GetField(queries *query.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry, err := queries.Get(c.Request.Context(), c.Param("fieldId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}
