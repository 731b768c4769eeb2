// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains the thin HTTP client the CLI uses to talk to the
// catalog server. Payload types come from the catalog datatypes package
// so the wire contract has a single source of truth.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
)

// APIError is a structured error response from the catalog server.
type APIError struct {
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Code    string                 `json:"error"`
	Errors  []datatypes.FieldError `json:"errors,omitempty"`
}

// Error renders the server's message plus any field-level details.
func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
	}
	msg := fmt.Sprintf("%s (%d %s):", e.Message, e.Status, e.Code)
	for _, fe := range e.Errors {
		msg += fmt.Sprintf("\n  - %s: %s", fe.Field, fe.Message)
	}
	return msg
}

// CatalogClient talks to the catalog REST API.
//
// # Thread Safety
//
// Safe for concurrent use; the observe command shares one instance
// across its submission workers.
type CatalogClient struct {
	baseURL   string
	authToken string
	client    *http.Client
}

// NewCatalogClient builds a client for the given server.
func NewCatalogClient(baseURL, authToken string, timeout time.Duration) *CatalogClient {
	return &CatalogClient{
		baseURL:   baseURL,
		authToken: authToken,
		client:    &http.Client{Timeout: timeout},
	}
}

// DeleteContextResult reports a cascade delete.
type DeleteContextResult struct {
	Status         string `json:"status"`
	ContextID      string `json:"contextId"`
	EntriesRemoved int    `json:"entriesRemoved"`
}

// SearchParams mirrors the query parameters of GET /v1/fields.
type SearchParams struct {
	Query             string
	ContextID         string
	FieldPathContains string
	UseRegex          bool
	Metadata          map[string][]string
	Page              int
	Size              int
}

// SuggestParams mirrors the query parameters of GET /v1/fields/suggest.
type SuggestParams struct {
	Field     string
	Prefix    string
	ContextID string
	Metadata  map[string][]string
	Limit     int
}

// CreateContext registers a new business context.
func (cc *CatalogClient) CreateContext(ctx context.Context, req datatypes.CreateContextRequest) (*datatypes.Context, error) {
	var created datatypes.Context
	if err := cc.do(ctx, http.MethodPost, "/v1/contexts", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListContexts returns every registered context.
func (cc *CatalogClient) ListContexts(ctx context.Context) ([]datatypes.Context, error) {
	var contexts []datatypes.Context
	if err := cc.do(ctx, http.MethodGet, "/v1/contexts", nil, &contexts); err != nil {
		return nil, err
	}
	return contexts, nil
}

// GetContext fetches one context by ID.
func (cc *CatalogClient) GetContext(ctx context.Context, contextID string) (*datatypes.Context, error) {
	var found datatypes.Context
	path := "/v1/contexts/" + url.PathEscape(contextID)
	if err := cc.do(ctx, http.MethodGet, path, nil, &found); err != nil {
		return nil, err
	}
	return &found, nil
}

// UpdateContext modifies the mutable fields of a context.
func (cc *CatalogClient) UpdateContext(ctx context.Context, contextID string, req datatypes.UpdateContextRequest) (*datatypes.Context, error) {
	var updated datatypes.Context
	path := "/v1/contexts/" + url.PathEscape(contextID)
	if err := cc.do(ctx, http.MethodPut, path, req, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteContext removes a context and every catalog entry it owns.
func (cc *CatalogClient) DeleteContext(ctx context.Context, contextID string) (*DeleteContextResult, error) {
	var result DeleteContextResult
	path := "/v1/contexts/" + url.PathEscape(contextID)
	if err := cc.do(ctx, http.MethodDelete, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitObservations merges one document's observation batch.
func (cc *CatalogClient) SubmitObservations(ctx context.Context, contextID string, req datatypes.ObservationBatchRequest) error {
	path := "/v1/contexts/" + url.PathEscape(contextID) + "/observations"
	return cc.do(ctx, http.MethodPost, path, req, nil)
}

// SearchFields queries the catalog.
func (cc *CatalogClient) SearchFields(ctx context.Context, params SearchParams) (*datatypes.Page[datatypes.CatalogEntry], error) {
	vals := url.Values{}
	if params.Query != "" {
		vals.Set("q", params.Query)
	}
	if params.ContextID != "" {
		vals.Set("contextId", params.ContextID)
	}
	if params.FieldPathContains != "" {
		vals.Set("fieldPathContains", params.FieldPathContains)
	}
	if params.UseRegex {
		vals.Set("useRegex", "true")
	}
	for key, values := range params.Metadata {
		for _, v := range values {
			vals.Add("metadata."+key, v)
		}
	}
	if params.Page > 0 {
		vals.Set("page", strconv.Itoa(params.Page))
	}
	if params.Size > 0 {
		vals.Set("size", strconv.Itoa(params.Size))
	}

	var page datatypes.Page[datatypes.CatalogEntry]
	if err := cc.do(ctx, http.MethodGet, "/v1/fields?"+vals.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SuggestValues completes a value prefix on one dimension.
func (cc *CatalogClient) SuggestValues(ctx context.Context, params SuggestParams) ([]string, error) {
	vals := url.Values{}
	vals.Set("field", params.Field)
	if params.Prefix != "" {
		vals.Set("prefix", params.Prefix)
	}
	if params.ContextID != "" {
		vals.Set("contextId", params.ContextID)
	}
	for key, values := range params.Metadata {
		for _, v := range values {
			vals.Add("metadata."+key, v)
		}
	}
	if params.Limit > 0 {
		vals.Set("limit", strconv.Itoa(params.Limit))
	}

	var suggestions []string
	if err := cc.do(ctx, http.MethodGet, "/v1/fields/suggest?"+vals.Encode(), nil, &suggestions); err != nil {
		return nil, err
	}
	return suggestions, nil
}

// GetField fetches one catalog entry by its content-addressed ID.
func (cc *CatalogClient) GetField(ctx context.Context, fieldID string) (*datatypes.CatalogEntry, error) {
	var entry datatypes.CatalogEntry
	path := "/v1/fields/" + url.PathEscape(fieldID)
	if err := cc.do(ctx, http.MethodGet, path, nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// SelectCasing picks the canonical casing for a field.
func (cc *CatalogClient) SelectCasing(ctx context.Context, fieldID, casing string) (*datatypes.CatalogEntry, error) {
	var updated datatypes.CatalogEntry
	path := "/v1/fields/" + url.PathEscape(fieldID) + "/casing"
	req := datatypes.SelectCasingRequest{CanonicalCasing: casing}
	if err := cc.do(ctx, http.MethodPut, path, req, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Health checks server liveness. Unlike the /v1 routes it sends no
// Authorization header; health stays open for probes.
func (cc *CatalogClient) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, cc.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := cc.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("catalog server unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// do executes one request and decodes the response or the API error.
func (cc *CatalogClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, cc.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if cc.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+cc.authToken)
	}

	resp, err := cc.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request to the catalog server failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode the server response: %w", err)
	}
	return nil
}

// decodeAPIError turns an error response into an *APIError, falling
// back to the raw body when the server did not send the structured
// shape (e.g. a proxy in the way).
func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var apiErr APIError
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Message != "" {
		if apiErr.Status == 0 {
			apiErr.Status = resp.StatusCode
		}
		return &apiErr
	}
	return &APIError{
		Message: string(bytes.TrimSpace(data)),
		Status:  resp.StatusCode,
		Code:    http.StatusText(resp.StatusCode),
	}
}
