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
	"fmt"
	"strconv"
	"strings"
	"time"

	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/FieldScope/pkg/extensions"
	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
	"github.com/AleutianAI/FieldScope/services/catalog/observability"
	"github.com/AleutianAI/FieldScope/services/catalog/query"
)

// metadataParamPrefix marks query parameters that carry metadata filters,
// e.g. ?metadata.partner=ACME&metadata.doctype=850&metadata.doctype=810.
const metadataParamPrefix = "metadata."

// SearchFields answers global and scoped catalog searches.
//
// GET /v1/fields?q=&contextId=&fieldPathContains=&useRegex=&metadata.<key>=&page=&size=
//
// # Description
//
// A non-empty q runs a global substring (or regex) search across every
// active context. Without q, the remaining parameters combine as AND
// filters; repeated values for one metadata key combine as OR. Responses
// are pages of catalog entries with pagination metadata.
//
// The free-text term passes through the configured ValueFilter first so
// enterprise deployments can screen queries the same way they screen
// stored values.
func SearchFields(q *query.Engine, filter extensions.ValueFilter) gin.HandlerFunc {
	return func(c *gin.Context) {
		criteria, err := parseSearchCriteria(c)
		if err != nil {
			respondError(c, err)
			return
		}

		mode := observability.SearchModeScoped
		if strings.TrimSpace(criteria.Query) != "" {
			mode = observability.SearchModeGlobal
		}

		if criteria.Query != "" {
			screened, err := screenQueryTerm(c, filter, criteria.Query)
			if err != nil {
				respondError(c, err)
				return
			}
			criteria.Query = screened
		}

		start := time.Now()
		page, err := q.Search(c.Request.Context(), criteria)
		elapsed := time.Since(start).Seconds()

		if m := observability.DefaultMetrics; m != nil {
			m.RecordSearch(mode, elapsed, err == nil)
		}
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, page)
	}
}

// parseSearchCriteria extracts search criteria from URL query parameters.
//
// Unparseable page/size/useRegex values are validation failures, not
// silently defaulted: a client that sends ?page=abc has a bug worth
// surfacing.
func parseSearchCriteria(c *gin.Context) (query.Criteria, error) {
	criteria := query.Criteria{
		Query:             c.Query("q"),
		ContextID:         c.Query("contextId"),
		FieldPathContains: c.Query("fieldPathContains"),
		Metadata:          metadataFilters(c),
	}

	if raw := c.Query("useRegex"); raw != "" {
		useRegex, err := strconv.ParseBool(raw)
		if err != nil {
			return criteria, datatypes.NewValidationError(
				fmt.Sprintf("useRegex must be a boolean, got %q", raw),
				datatypes.FieldError{Field: "useRegex", Message: "must be true or false"})
		}
		criteria.UseRegex = useRegex
	}

	page, err := intParam(c, "page")
	if err != nil {
		return criteria, err
	}
	size, err := intParam(c, "size")
	if err != nil {
		return criteria, err
	}
	criteria.Page = page
	criteria.Size = size

	return criteria, nil
}

// metadataFilters collects the repeated metadata.<key> parameters.
func metadataFilters(c *gin.Context) map[string][]string {
	var filters map[string][]string
	for param, values := range c.Request.URL.Query() {
		if !strings.HasPrefix(param, metadataParamPrefix) {
			continue
		}
		key := strings.TrimPrefix(param, metadataParamPrefix)
		if key == "" || len(values) == 0 {
			continue
		}
		if filters == nil {
			filters = make(map[string][]string)
		}
		filters[key] = append(filters[key], values...)
	}
	return filters
}

// intParam parses a non-negative integer query parameter, empty meaning zero.
func intParam(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, datatypes.NewValidationError(
			fmt.Sprintf("%s must be an integer, got %q", name, raw),
			datatypes.FieldError{Field: name, Message: "must be an integer"})
	}
	return value, nil
}

// screenQueryTerm runs a search term through the value filter.
func screenQueryTerm(c *gin.Context, filter extensions.ValueFilter, term string) (string, error) {
	result, err := filter.FilterQuery(c.Request.Context(), term)
	if err != nil {
		return "", fmt.Errorf("query filter: %w", err)
	}
	if result.WasBlocked {
		return "", fmt.Errorf("search term rejected (%s): %w",
			result.BlockReason, extensions.ErrValueBlocked)
	}
	if result.WasModified {
		return result.Filtered, nil
	}
	return term, nil
}
