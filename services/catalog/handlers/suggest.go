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
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/FieldScope/pkg/extensions"
	"github.com/AleutianAI/FieldScope/services/catalog/observability"
	"github.com/AleutianAI/FieldScope/services/catalog/query"
)

// SuggestValues answers typeahead completion for one dimension.
//
// GET /v1/fields/suggest?field=&prefix=&contextId=&limit=&metadata.<key>=
//
// # Description
//
// The field parameter names the dimension being completed: "fieldPath"
// or any metadata key. Sibling metadata.<key> parameters narrow the
// candidate entries to those matching the values the caller has already
// picked, which is how a faceted UI drills down. Output is a sorted,
// deduplicated list of strings.
func SuggestValues(q *query.Engine, filter extensions.ValueFilter) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := query.SuggestRequest{
			Dimension: c.Query("field"),
			Prefix:    c.Query("prefix"),
			ContextID: c.Query("contextId"),
			Siblings:  metadataFilters(c),
		}

		limit, err := intParam(c, "limit")
		if err != nil {
			respondError(c, err)
			return
		}
		req.Limit = limit

		if req.Prefix != "" {
			screened, err := screenQueryTerm(c, filter, req.Prefix)
			if err != nil {
				respondError(c, err)
				return
			}
			req.Prefix = screened
		}

		start := time.Now()
		values, err := q.Suggest(c.Request.Context(), req)
		elapsed := time.Since(start).Seconds()

		if m := observability.DefaultMetrics; m != nil {
			m.RecordSearch(observability.SearchModeSuggest, elapsed, err == nil)
		}
		if err != nil {
			respondError(c, err)
			return
		}

		if values == nil {
			values = []string{}
		}
		c.JSON(http.StatusOK, values)
	}
}
