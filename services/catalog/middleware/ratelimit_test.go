// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
)

// =============================================================================
// NewIngestLimiter Tests
// =============================================================================

func TestNewIngestLimiter_Defaults(t *testing.T) {
	limiter := NewIngestLimiter(0, 0)

	assert.Equal(t, rate.Limit(DefaultIngestRate), limiter.Limit())
	assert.Equal(t, DefaultIngestBurst, limiter.Burst())
}

func TestNewIngestLimiter_Explicit(t *testing.T) {
	limiter := NewIngestLimiter(10, 3)

	assert.Equal(t, rate.Limit(10), limiter.Limit())
	assert.Equal(t, 3, limiter.Burst())
}

func TestNewIngestLimiter_NegativeFallsBackToDefaults(t *testing.T) {
	limiter := NewIngestLimiter(-1, -1)

	assert.Equal(t, rate.Limit(DefaultIngestRate), limiter.Limit())
	assert.Equal(t, DefaultIngestBurst, limiter.Burst())
}

// =============================================================================
// RateLimitMiddleware Tests
// =============================================================================

func newLimitedRouter(limiter *rate.Limiter) *gin.Engine {
	router := gin.New()
	router.POST("/ingest", RateLimitMiddleware(limiter), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestRateLimitMiddleware_AllowsWithinBurst(t *testing.T) {
	// Zero sustained rate: the bucket never refills, so exactly the
	// burst capacity passes.
	router := newLimitedRouter(rate.NewLimiter(0, 3))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/ingest", nil))
		assert.Equal(t, http.StatusNoContent, w.Code, "request %d should pass", i)
	}
}

func TestRateLimitMiddleware_RejectsWhenExhausted(t *testing.T) {
	router := newLimitedRouter(rate.NewLimiter(0, 1))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/ingest", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/ingest", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var body datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, datatypes.CodeRateLimited, body.Code)
	assert.Equal(t, http.StatusTooManyRequests, body.Status)
}

func TestRateLimitMiddleware_SharedAcrossRequests(t *testing.T) {
	limiter := rate.NewLimiter(0, 2)
	router := gin.New()
	group := router.Group("/", RateLimitMiddleware(limiter))
	group.POST("/a", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	group.POST("/b", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	wA := httptest.NewRecorder()
	router.ServeHTTP(wA, httptest.NewRequest("POST", "/a", nil))
	wB := httptest.NewRecorder()
	router.ServeHTTP(wB, httptest.NewRequest("POST", "/b", nil))
	require.Equal(t, http.StatusNoContent, wA.Code)
	require.Equal(t, http.StatusNoContent, wB.Code)

	// Both routes drained the same bucket.
	wC := httptest.NewRecorder()
	router.ServeHTTP(wC, httptest.NewRequest("POST", "/a", nil))
	assert.Equal(t, http.StatusTooManyRequests, wC.Code)
}
