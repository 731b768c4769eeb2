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
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/FieldScope/pkg/extensions"
	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
	"github.com/AleutianAI/FieldScope/services/catalog/registry"
)

func newContextRouter(stack *testStack, audit extensions.AuditLogger) *gin.Engine {
	opts := extensions.DefaultOptions()
	if audit != nil {
		opts.AuditLogger = audit
	}
	router := gin.New()
	router.POST("/v1/contexts", CreateContext(stack.reg, opts))
	router.GET("/v1/contexts", ListContexts(stack.reg))
	router.GET("/v1/contexts/:contextId", GetContext(stack.reg))
	router.PUT("/v1/contexts/:contextId", UpdateContext(stack.reg, opts))
	router.DELETE("/v1/contexts/:contextId", DeleteContext(stack.reg, opts))
	return router
}

// =============================================================================
// CreateContext Tests
// =============================================================================

func TestCreateContext_Created(t *testing.T) {
	stack := newTestStack(t)
	router := newContextRouter(stack, nil)

	w := performJSON(t, router, "POST", "/v1/contexts", gin.H{
		"contextId":            "Invoice-Inbound",
		"displayName":          "Inbound invoices",
		"requiredMetadataKeys": []string{"Partner", "DocType"},
		"optionalMetadataKeys": []string{"Channel"},
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var created datatypes.Context
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "invoice-inbound", created.ID)
	assert.Equal(t, []string{"partner", "doctype"}, created.RequiredKeys)
	assert.Equal(t, []string{"channel"}, created.OptionalKeys)
	assert.True(t, created.Active)
	assert.NotZero(t, created.CreatedAt)
}

func TestCreateContext_InvalidBody(t *testing.T) {
	stack := newTestStack(t)
	router := newContextRouter(stack, nil)

	w := performRaw(t, router, "POST", "/v1/contexts", "{not json")

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, datatypes.CodeValidationFailed, body.Code)
}

func TestCreateContext_MissingRequiredKeys(t *testing.T) {
	stack := newTestStack(t)
	router := newContextRouter(stack, nil)

	w := performJSON(t, router, "POST", "/v1/contexts", gin.H{
		"contextId": "invoice-inbound",
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, datatypes.CodeValidationFailed, body.Code)
	assert.NotEmpty(t, body.Errors)
}

func TestCreateContext_Duplicate(t *testing.T) {
	stack := newTestStack(t)
	stack.createInvoiceContext(t)
	router := newContextRouter(stack, nil)

	w := performJSON(t, router, "POST", "/v1/contexts", gin.H{
		"contextId":            "invoice-inbound",
		"requiredMetadataKeys": []string{"partner", "doctype"},
	})

	require.Equal(t, http.StatusConflict, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, datatypes.CodeContextExists, body.Code)
}

func TestCreateContext_AuditLogged(t *testing.T) {
	stack := newTestStack(t)
	audit := &capturingAuditLogger{}
	router := newContextRouter(stack, audit)

	w := performJSON(t, router, "POST", "/v1/contexts", gin.H{
		"contextId":            "deposits",
		"requiredMetadataKeys": []string{"productCode"},
	})

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, audit.events, 1)
	assert.Equal(t, "context.create", audit.events[0].EventType)
	assert.Equal(t, "deposits", audit.events[0].ResourceID)
	assert.Equal(t, "success", audit.events[0].Outcome)
	assert.Equal(t, "anonymous", audit.events[0].UserID)
}

func TestCreateContext_AuditFailureDoesNotFailRequest(t *testing.T) {
	stack := newTestStack(t)
	audit := &capturingAuditLogger{err: assert.AnError}
	router := newContextRouter(stack, audit)

	w := performJSON(t, router, "POST", "/v1/contexts", gin.H{
		"contextId":            "deposits",
		"requiredMetadataKeys": []string{"productCode"},
	})

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateContext_AuthzDenied(t *testing.T) {
	stack := newTestStack(t)
	audit := &capturingAuditLogger{}
	opts := extensions.DefaultOptions()
	opts.AuthzProvider = &denyAllAuthzProvider{}
	opts.AuditLogger = audit

	router := gin.New()
	router.POST("/v1/contexts", CreateContext(stack.reg, opts))

	w := performJSON(t, router, "POST", "/v1/contexts", gin.H{
		"contextId":            "deposits",
		"requiredMetadataKeys": []string{"productCode"},
	})

	require.Equal(t, http.StatusForbidden, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, datatypes.CodeForbidden, body.Code)

	// The denial reached the audit trail and nothing was stored.
	require.Len(t, audit.events, 1)
	assert.Equal(t, "authz.denied", audit.events[0].EventType)
	assert.Equal(t, "denied", audit.events[0].Outcome)
	_, err := stack.reg.Get(context.Background(), "deposits")
	assert.ErrorIs(t, err, registry.ErrContextNotFound)
}

// =============================================================================
// ListContexts / GetContext Tests
// =============================================================================

func TestListContexts_SortedByID(t *testing.T) {
	stack := newTestStack(t)
	stack.createInvoiceContext(t)
	router := newContextRouter(stack, nil)

	w := performJSON(t, router, "POST", "/v1/contexts", gin.H{
		"contextId":            "deposits",
		"requiredMetadataKeys": []string{"productCode"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = performJSON(t, router, "GET", "/v1/contexts", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var contexts []datatypes.Context
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &contexts))
	require.Len(t, contexts, 2)
	assert.Equal(t, "deposits", contexts[0].ID)
	assert.Equal(t, "invoice-inbound", contexts[1].ID)
}

func TestGetContext_CaseInsensitiveID(t *testing.T) {
	stack := newTestStack(t)
	stack.createInvoiceContext(t)
	router := newContextRouter(stack, nil)

	w := performJSON(t, router, "GET", "/v1/contexts/INVOICE-INBOUND", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var found datatypes.Context
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
	assert.Equal(t, "invoice-inbound", found.ID)
}

func TestGetContext_NotFound(t *testing.T) {
	stack := newTestStack(t)
	router := newContextRouter(stack, nil)

	w := performJSON(t, router, "GET", "/v1/contexts/missing", nil)

	require.Equal(t, http.StatusNotFound, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, datatypes.CodeNotFound, body.Code)
	assert.Equal(t, http.StatusNotFound, body.Status)
}

// =============================================================================
// UpdateContext Tests
// =============================================================================

func TestUpdateContext_MutableFields(t *testing.T) {
	stack := newTestStack(t)
	stack.createInvoiceContext(t)
	router := newContextRouter(stack, nil)

	w := performJSON(t, router, "PUT", "/v1/contexts/invoice-inbound", gin.H{
		"displayName": "Renamed",
		"active":      false,
	})

	require.Equal(t, http.StatusOK, w.Code)
	var updated datatypes.Context
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "Renamed", updated.DisplayName)
	assert.False(t, updated.Active)
	// Untouched fields survive.
	assert.Equal(t, []string{"partner", "doctype"}, updated.RequiredKeys)
}

func TestUpdateContext_RequiredKeysImmutable(t *testing.T) {
	stack := newTestStack(t)
	stack.createInvoiceContext(t)
	router := newContextRouter(stack, nil)

	w := performJSON(t, router, "PUT", "/v1/contexts/invoice-inbound", gin.H{
		"requiredMetadataKeys": []string{"partner", "doctype", "region"},
	})

	require.Equal(t, http.StatusConflict, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, datatypes.CodeImmutableSchema, body.Code)
}

func TestUpdateContext_NotFound(t *testing.T) {
	stack := newTestStack(t)
	router := newContextRouter(stack, nil)

	w := performJSON(t, router, "PUT", "/v1/contexts/missing", gin.H{
		"displayName": "whatever",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// =============================================================================
// DeleteContext Tests
// =============================================================================

func TestDeleteContext_CascadesAndReportsCount(t *testing.T) {
	stack := newTestStack(t)
	stack.createInvoiceContext(t)
	router := newContextRouter(stack, nil)

	// Two entries under the context.
	_, err := stack.eng.Merge(context.Background(), "invoice-inbound", []datatypes.Observation{
		invoiceObservation("/Invoice/Header/InvoiceNumber", 1),
		invoiceObservation("/Invoice/Header/Total", 1),
	}, nil)
	require.NoError(t, err)

	w := performJSON(t, router, "DELETE", "/v1/contexts/invoice-inbound", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "deleted", body["status"])
	assert.Equal(t, "invoice-inbound", body["contextId"])
	assert.Equal(t, float64(2), body["entriesRemoved"])

	w = performJSON(t, router, "GET", "/v1/contexts/invoice-inbound", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, err = stack.reg.Get(context.Background(), "invoice-inbound")
	assert.ErrorIs(t, err, registry.ErrContextNotFound)
}

func TestDeleteContext_NotFound(t *testing.T) {
	stack := newTestStack(t)
	router := newContextRouter(stack, nil)

	w := performJSON(t, router, "DELETE", "/v1/contexts/missing", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
