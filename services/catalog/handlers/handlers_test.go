// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Shared fixtures for handler tests. Each test registers only the
// handler under test on a fresh router; full route wiring is covered
// by the routes package.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/FieldScope/pkg/extensions"
	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
	"github.com/AleutianAI/FieldScope/services/catalog/engine"
	"github.com/AleutianAI/FieldScope/services/catalog/query"
	"github.com/AleutianAI/FieldScope/services/catalog/registry"
	badgerstore "github.com/AleutianAI/FieldScope/services/catalog/storage/badger"
	"github.com/AleutianAI/FieldScope/services/catalog/watch"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testStack is the full catalog service on an in-memory store.
type testStack struct {
	store   *badgerstore.Store
	reg     *registry.Registry
	eng     *engine.Engine
	queries *query.Engine
	hub     *watch.Hub
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := badgerstore.NewStore(db)
	require.NoError(t, err)

	reg, err := registry.New(store, store, nil)
	require.NoError(t, err)

	hub := watch.NewHub(nil)
	eng, err := engine.New(reg, store, hub, nil)
	require.NoError(t, err)

	queries, err := query.New(store, store, nil)
	require.NoError(t, err)

	return &testStack{store: store, reg: reg, eng: eng, queries: queries, hub: hub}
}

// createInvoiceContext registers the context most tests observe into.
func (s *testStack) createInvoiceContext(t *testing.T) {
	t.Helper()
	_, err := s.reg.Create(context.Background(), &datatypes.CreateContextRequest{
		ContextID:    "invoice-inbound",
		DisplayName:  "Inbound invoices",
		RequiredKeys: []string{"partner", "doctype"},
		OptionalKeys: []string{"channel"},
	})
	require.NoError(t, err)
}

// invoiceObservation builds one valid observation for invoice-inbound.
func invoiceObservation(path string, count int64) datatypes.Observation {
	return datatypes.Observation{
		Metadata:  map[string]string{"partner": "ACME", "doctype": "850"},
		FieldPath: path,
		Count:     count,
	}
}

// performJSON runs one request through the router with a JSON body.
func performJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// performRaw runs one request with a literal body, for malformed JSON cases.
func performRaw(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// decodeError unmarshals the error payload every endpoint shares.
func decodeError(t *testing.T, w *httptest.ResponseRecorder) datatypes.ErrorResponse {
	t.Helper()

	var body datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// capturingAuditLogger records events for assertions.
type capturingAuditLogger struct {
	events []extensions.AuditEvent
	err    error
}

func (l *capturingAuditLogger) Log(_ context.Context, event extensions.AuditEvent) error {
	if l.err != nil {
		return l.err
	}
	l.events = append(l.events, event)
	return nil
}

// denyAllAuthzProvider refuses every action.
type denyAllAuthzProvider struct{}

func (p *denyAllAuthzProvider) Authorize(context.Context, extensions.AuthzRequest) error {
	return extensions.ErrUnauthorized
}

// blockingValueFilter rejects any value or query containing the needle.
type blockingValueFilter struct {
	needle string
}

func (f *blockingValueFilter) filter(value string) *extensions.FilterResult {
	if f.needle != "" && bytes.Contains([]byte(value), []byte(f.needle)) {
		return &extensions.FilterResult{
			Original:    value,
			WasBlocked:  true,
			BlockReason: "contains blocked pattern",
		}
	}
	return &extensions.FilterResult{Original: value, Filtered: value}
}

func (f *blockingValueFilter) FilterValue(_ context.Context, _, value string) (*extensions.FilterResult, error) {
	return f.filter(value), nil
}

func (f *blockingValueFilter) FilterQuery(_ context.Context, queryTerm string) (*extensions.FilterResult, error) {
	return f.filter(queryTerm), nil
}

// redactingValueFilter replaces the needle with a fixed marker.
type redactingValueFilter struct {
	needle      string
	replacement string
}

func (f *redactingValueFilter) redact(value string) *extensions.FilterResult {
	if f.needle != "" && bytes.Contains([]byte(value), []byte(f.needle)) {
		return &extensions.FilterResult{
			Original:    value,
			Filtered:    f.replacement,
			WasModified: true,
		}
	}
	return &extensions.FilterResult{Original: value, Filtered: value}
}

func (f *redactingValueFilter) FilterValue(_ context.Context, _, value string) (*extensions.FilterResult, error) {
	return f.redact(value), nil
}

func (f *redactingValueFilter) FilterQuery(_ context.Context, queryTerm string) (*extensions.FilterResult, error) {
	return f.redact(queryTerm), nil
}
