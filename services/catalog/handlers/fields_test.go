// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
	"github.com/AleutianAI/FieldScope/services/catalog/query"
)

func newFieldsRouter(stack *testStack) *gin.Engine {
	router := gin.New()
	router.GET("/v1/fields/:fieldId", GetField(stack.queries))
	return router
}

// seededFieldID looks up the ID the merge assigned to one seeded path.
func seededFieldID(t *testing.T, stack *testStack, contextID, fieldPath string) string {
	t.Helper()

	page, err := stack.queries.Search(context.Background(), query.Criteria{ContextID: contextID})
	require.NoError(t, err)
	for _, entry := range page.Content {
		if entry.FieldPath == fieldPath {
			return entry.ID
		}
	}
	t.Fatalf("no entry for %s in %s", fieldPath, contextID)
	return ""
}

func TestGetField_ReturnsEntry(t *testing.T) {
	stack := newTestStack(t)
	seedCatalog(t, stack)
	router := newFieldsRouter(stack)

	id := seededFieldID(t, stack, "invoice-inbound", "/invoice/header/total")
	w := performJSON(t, router, http.MethodGet, "/v1/fields/"+id, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var entry datatypes.CatalogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.Equal(t, id, entry.ID)
	assert.Equal(t, "/invoice/header/total", entry.FieldPath)
	assert.Equal(t, "invoice-inbound", entry.ContextID)
}

func TestGetField_UnknownID(t *testing.T) {
	stack := newTestStack(t)
	seedCatalog(t, stack)
	router := newFieldsRouter(stack)

	w := performJSON(t, router, http.MethodGet, "/v1/fields/no-such-id", nil)

	require.Equal(t, http.StatusNotFound, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, datatypes.CodeNotFound, body.Code)
}

func TestGetField_InactiveContextIs404(t *testing.T) {
	stack := newTestStack(t)
	seedCatalog(t, stack)
	router := newFieldsRouter(stack)

	id := seededFieldID(t, stack, "payments", "/payment/remittance/amount")

	inactive := false
	_, err := stack.reg.Update(context.Background(), "payments", &datatypes.UpdateContextRequest{
		Active: &inactive,
	})
	require.NoError(t, err)

	w := performJSON(t, router, http.MethodGet, "/v1/fields/"+id, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
