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
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
)

// =============================================================================
// Ingest Rate Limiting
// =============================================================================

// Default ingest limiter settings. A pass-through integration under load
// submits one batch per document, so a sustained rate in the low hundreds
// per second covers realistic traffic while a misconfigured resubmission
// loop gets pushed back instead of saturating the merge path.
const (
	// DefaultIngestRate is the sustained observation batches per second.
	DefaultIngestRate = 200

	// DefaultIngestBurst is the burst capacity above the sustained rate.
	DefaultIngestBurst = 50
)

// NewIngestLimiter builds the shared token bucket for observation ingest.
//
// # Inputs
//
//   - perSecond: Sustained batches per second. Non-positive selects
//     DefaultIngestRate.
//   - burst: Burst capacity. Non-positive selects DefaultIngestBurst.
//
// # Outputs
//
//   - *rate.Limiter: Limiter shared by every ingest request.
func NewIngestLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		perSecond = DefaultIngestRate
	}
	if burst <= 0 {
		burst = DefaultIngestBurst
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// RateLimitMiddleware creates a Gin middleware that throttles requests.
//
// # Description
//
// Applies a shared token bucket to the routes it is attached to. Requests
// that find the bucket empty are rejected immediately with 429 rather than
// queued; the submitting integration retries the whole batch, which the
// merge path absorbs without double counting because replays are expected.
//
// The limiter is process-wide, not per-client. The catalog runs inside the
// integration team's own network where the goal is protecting the store
// from a runaway submitter, not fair scheduling between tenants.
//
// # Inputs
//
//   - limiter: Shared token bucket. Must not be nil.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware function ready for use with Gin
//
// # Examples
//
//	limiter := middleware.NewIngestLimiter(0, 0)
//	v1.POST("/contexts/:contextId/observations",
//	    middleware.RateLimitMiddleware(limiter),
//	    handlers.SubmitObservations(deps))
//
// # Thread Safety
//
// Thread-safe. rate.Limiter performs its own locking.
func RateLimitMiddleware(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, datatypes.ErrorResponse{
				Message: "observation ingest rate exceeded; retry the batch shortly",
				Status:  http.StatusTooManyRequests,
				Code:    datatypes.CodeRateLimited,
			})
			return
		}
		c.Next()
	}
}
