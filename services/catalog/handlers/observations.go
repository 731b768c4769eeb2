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
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/FieldScope/pkg/extensions"
	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
	"github.com/AleutianAI/FieldScope/services/catalog/engine"
	"github.com/AleutianAI/FieldScope/services/catalog/observability"
)

// SubmitObservations merges one document's worth of field observations.
//
// POST /v1/contexts/:contextId/observations
//
// # Description
//
// The batch is atomic: every observation validates against the context's
// metadata schema before any entry is written, and the whole merge commits
// in one transaction. Success returns 204 with no body — the submitting
// integration is a fire-and-forget telemetry client that only cares
// whether to retry.
//
// Replays are safe. Identity hashing makes the merge idempotent for
// bounds and flags; only casing counts accumulate per submission.
//
// Metadata values pass through the configured ValueFilter before the
// merge so enterprise deployments can redact or block sensitive values
// (account numbers, SSNs) at the boundary.
func SubmitObservations(eng *engine.Engine, opts extensions.ServiceOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		contextID := strings.ToLower(strings.TrimSpace(c.Param("contextId")))

		var req datatypes.ObservationBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}
		req.EnsureDefaults()

		if !authorize(c, opts, "create", "observation_batch", contextID) {
			return
		}

		if err := filterMetadataValues(c.Request.Context(), opts.ValueFilter, req.Observations); err != nil {
			respondError(c, err)
			return
		}

		start := time.Now()
		result, err := eng.Merge(c.Request.Context(), contextID, req.Observations, req.Snapshot)
		elapsed := time.Since(start).Seconds()

		if m := observability.DefaultMetrics; m != nil {
			m.RecordMerge(contextID, elapsed, err == nil)
		}
		if err != nil {
			respondError(c, err)
			return
		}

		if m := observability.DefaultMetrics; m != nil {
			m.RecordObservations(contextID, len(req.Observations))
			m.RecordEntryChanges(contextID, result.EntriesCreated, result.EntriesUpdated, result.EntriesMarkedOptional)
		}

		slog.Info("observation batch merged",
			"request_id", req.RequestID,
			"context_id", contextID,
			"observations", len(req.Observations),
			"created", result.EntriesCreated,
			"updated", result.EntriesUpdated,
			"marked_optional", result.EntriesMarkedOptional)

		c.Status(http.StatusNoContent)
	}
}

// filterMetadataValues screens every metadata value through the filter,
// replacing redacted values in place. A blocked value rejects the whole
// batch, consistent with batch atomicity.
func filterMetadataValues(ctx context.Context, filter extensions.ValueFilter, observations []datatypes.Observation) error {
	for i := range observations {
		for key, value := range observations[i].Metadata {
			result, err := filter.FilterValue(ctx, key, value)
			if err != nil {
				return fmt.Errorf("value filter: %w", err)
			}
			if result.WasBlocked {
				return fmt.Errorf("metadata value for %q rejected (%s): %w",
					key, result.BlockReason, extensions.ErrValueBlocked)
			}
			if result.WasModified {
				observations[i].Metadata[key] = result.Filtered
			}
		}
	}
	return nil
}
