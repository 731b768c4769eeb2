// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides HTTP request handlers for the field catalog service.
//
// Each handler is a constructor that closes over its dependencies and
// returns a gin.HandlerFunc. Domain errors flow through respondError so
// every endpoint answers with the same `{message, status, error, errors?}`
// payload and stable code vocabulary.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/FieldScope/pkg/extensions"
	"github.com/AleutianAI/FieldScope/services/catalog/datatypes"
	"github.com/AleutianAI/FieldScope/services/catalog/middleware"
	"github.com/AleutianAI/FieldScope/services/catalog/registry"
)

// =============================================================================
// Audit Helper
// =============================================================================

// auditRecord logs a security-relevant mutation, best-effort.
//
// Audit failures never fail the request; they are logged and dropped.
// The catalog is the system of record for field statistics, not for
// audit trails.
func auditRecord(c *gin.Context, audit extensions.AuditLogger, eventType, action, resourceType, resourceID, outcome string) {
	userID := "anonymous"
	if info := middleware.GetAuthInfo(c); info != nil && info.UserID != "" {
		userID = info.UserID
	}

	event := extensions.AuditEvent{
		EventType:    eventType,
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Outcome:      outcome,
	}
	if err := audit.Log(c.Request.Context(), event); err != nil {
		slog.Warn("audit log failed", "event_type", eventType, "error", err)
	}
}

// authorize runs the enterprise authorization hook for a mutation.
//
// On denial the attempt is audited and answered with 403; the caller
// must return immediately. The default NopAuthzProvider allows
// everything, so local deployments never take this branch.
func authorize(c *gin.Context, opts extensions.ServiceOptions, action, resourceType, resourceID string) bool {
	err := opts.AuthzProvider.Authorize(c.Request.Context(), extensions.AuthzRequest{
		User:         middleware.GetAuthInfo(c),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	})
	if err == nil {
		return true
	}

	auditRecord(c, opts.AuditLogger, "authz.denied", action, resourceType, resourceID, "denied")
	c.JSON(http.StatusForbidden, datatypes.ErrorResponse{
		Message: "access denied",
		Status:  http.StatusForbidden,
		Code:    datatypes.CodeForbidden,
	})
	return false
}

// =============================================================================
// Context CRUD
// =============================================================================

// CreateContext registers a new business context.
//
// POST /v1/contexts
//
// Returns 201 with the stored context (IDs and keys lowercased) on
// success, 409 when the context already exists.
func CreateContext(reg *registry.Registry, opts extensions.ServiceOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateContextRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}
		req.EnsureDefaults()

		if !authorize(c, opts, "create", "context", req.ContextID) {
			return
		}

		created, err := reg.Create(c.Request.Context(), &req)
		if err != nil {
			auditRecord(c, opts.AuditLogger, "context.create", "create", "context", req.ContextID, "failure")
			respondError(c, err)
			return
		}

		auditRecord(c, opts.AuditLogger, "context.create", "create", "context", created.ID, "success")
		slog.Info("context created", "context_id", created.ID)
		c.JSON(http.StatusCreated, created)
	}
}

// ListContexts returns every registered context, active or not,
// sorted by ID.
//
// GET /v1/contexts
func ListContexts(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		contexts, err := reg.List(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, contexts)
	}
}

// GetContext returns a single context by ID.
//
// GET /v1/contexts/:contextId
func GetContext(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		found, err := reg.Get(c.Request.Context(), c.Param("contextId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, found)
	}
}

// UpdateContext modifies the mutable fields of a context.
//
// PUT /v1/contexts/:contextId
//
// Required metadata keys are immutable; a request that tries to change
// them is answered with 409 and code "immutable_schema" so clients can
// distinguish the schema violation from ordinary validation failures.
func UpdateContext(reg *registry.Registry, opts extensions.ServiceOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		contextID := c.Param("contextId")

		var req datatypes.UpdateContextRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}

		if !authorize(c, opts, "update", "context", contextID) {
			return
		}

		updated, err := reg.Update(c.Request.Context(), contextID, &req)
		if err != nil {
			auditRecord(c, opts.AuditLogger, "context.update", "update", "context", contextID, "failure")
			respondError(c, err)
			return
		}

		auditRecord(c, opts.AuditLogger, "context.update", "update", "context", updated.ID, "success")
		slog.Info("context updated", "context_id", updated.ID)
		c.JSON(http.StatusOK, updated)
	}
}

// DeleteContext removes a context and every catalog entry under it.
//
// DELETE /v1/contexts/:contextId
//
// The cascade is deliberate: entries are meaningless without their
// context's schema. Clients (the CLI in particular) are expected to
// confirm before calling.
func DeleteContext(reg *registry.Registry, opts extensions.ServiceOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		contextID := c.Param("contextId")

		if !authorize(c, opts, "delete", "context", contextID) {
			return
		}

		removed, err := reg.Delete(c.Request.Context(), contextID)
		if err != nil {
			auditRecord(c, opts.AuditLogger, "context.delete", "delete", "context", contextID, "failure")
			respondError(c, err)
			return
		}

		auditRecord(c, opts.AuditLogger, "context.delete", "delete", "context", contextID, "success")
		slog.Info("context deleted", "context_id", contextID, "entries_removed", removed)
		c.JSON(http.StatusOK, gin.H{
			"status":         "deleted",
			"contextId":      contextID,
			"entriesRemoved": removed,
		})
	}
}
