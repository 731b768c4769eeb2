// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/FieldScope/pkg/extensions"
)

// =============================================================================
// Configuration Tests
// =============================================================================

func TestApplyConfigDefaults_AllDefaults(t *testing.T) {
	result := applyConfigDefaults(Config{})

	assert.Equal(t, 12310, result.Port)
	assert.Equal(t, "./fieldscope-data", result.DataDir)
	assert.Equal(t, "fieldscope-otel-collector:4317", result.OTelEndpoint)
	assert.False(t, result.DisableMetrics, "metrics should be enabled by default")
}

func TestApplyConfigDefaults_PreservesCustomValues(t *testing.T) {
	cfg := Config{
		Port:           8080,
		DataDir:        "/tmp/fieldscope",
		OTelEndpoint:   "localhost:4317",
		IngestRate:     50,
		IngestBurst:    10,
		DisableMetrics: true,
	}

	result := applyConfigDefaults(cfg)

	assert.Equal(t, 8080, result.Port)
	assert.Equal(t, "/tmp/fieldscope", result.DataDir)
	assert.Equal(t, "localhost:4317", result.OTelEndpoint)
	assert.Equal(t, float64(50), result.IngestRate)
	assert.Equal(t, 10, result.IngestBurst)
	assert.True(t, result.DisableMetrics)
}

func TestApplyConfigDefaults_PartialConfig(t *testing.T) {
	result := applyConfigDefaults(Config{Port: 9000})

	assert.Equal(t, 9000, result.Port)
	assert.Equal(t, "./fieldscope-data", result.DataDir)
}

func TestServiceImplementsInterface(t *testing.T) {
	var _ Service = (*service)(nil)
}

// =============================================================================
// Constructor Tests
// =============================================================================

// testConfig returns a config safe to construct repeatedly in one test
// binary: in-memory store, no global metric registration, quiet router.
func testConfig() Config {
	return Config{
		InMemory:       true,
		DisableMetrics: true,
		GinMode:        "test",
	}
}

func TestNew_InMemory(t *testing.T) {
	svc, err := New(testConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, svc)
	require.NotNil(t, svc.Router())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	svc.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNew_NilOptionsUseDefaults(t *testing.T) {
	svc, err := New(testConfig(), nil)
	require.NoError(t, err)

	// The default NopAuthProvider accepts requests without credentials.
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/contexts", nil)
	svc.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNew_CustomOptions(t *testing.T) {
	opts := extensions.DefaultOptions()
	svc, err := New(testConfig(), &opts)
	require.NoError(t, err)
	require.NotNil(t, svc)
}

func TestNew_RoundTrip(t *testing.T) {
	svc, err := New(testConfig(), nil)
	require.NoError(t, err)
	router := svc.Router()

	body, err := json.Marshal(map[string]any{
		"contextId":            "orders",
		"requiredMetadataKeys": []string{"partner"},
	})
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/contexts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	body, err = json.Marshal(map[string]any{
		"observations": []map[string]any{
			{
				"metadata":  map[string]string{"partner": "ACME"},
				"fieldPath": "/Order/Header/OrderNumber",
				"count":     1,
			},
		},
	})
	require.NoError(t, err)
	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/v1/contexts/orders/observations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/fields?contextId=orders", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/order/header/ordernumber")
}

// =============================================================================
// Seed File Tests
// =============================================================================

func TestNew_AppliesSeedFile(t *testing.T) {
	seedPath := filepath.Join(t.TempDir(), "contexts.yaml")
	seedYAML := `contexts:
  - contextId: invoice-inbound
    displayName: Inbound invoices
    requiredMetadataKeys: [partner, doctype]
    optionalMetadataKeys: [channel]
  - contextId: payments
    requiredMetadataKeys: [bank]
`
	require.NoError(t, os.WriteFile(seedPath, []byte(seedYAML), 0o644))

	cfg := testConfig()
	cfg.SeedFile = seedPath
	svc, err := New(cfg, nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/contexts", nil)
	svc.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var contexts []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &contexts))
	require.Len(t, contexts, 2)
	assert.Equal(t, "invoice-inbound", contexts[0]["contextId"])
	assert.Equal(t, "payments", contexts[1]["contextId"])
}

func TestNew_MissingSeedFileFails(t *testing.T) {
	cfg := testConfig()
	cfg.SeedFile = filepath.Join(t.TempDir(), "does-not-exist.yaml")

	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed")
}
