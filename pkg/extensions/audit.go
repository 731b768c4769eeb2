// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"time"
)

// AuditEvent records one security-relevant catalog mutation.
//
// The handlers emit an event for every context create/update/delete,
// observation merge, and casing selection, regardless of outcome. What
// happens to the event is up to the AuditLogger implementation.
//
// EventType uses "category.action" naming ("context.delete",
// "catalog.merge") so downstream systems can filter without parsing.
// UserID comes from the request's AuthInfo, or "anonymous" when no
// identity was established. Outcome is one of "success", "failure",
// "blocked", or "error".
type AuditEvent struct {
	EventType    string
	Timestamp    time.Time
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Outcome      string

	// Metadata carries event-specific detail such as the error message
	// on failures or the batch size on merges.
	Metadata map[string]any
}

// AuditLogger receives catalog audit events. The handlers call Log on
// the request path, so implementations should return quickly; buffer
// and ship asynchronously if the backend is slow. A zero Timestamp
// means the implementation should stamp the event itself.
//
// Implementations must be safe for concurrent use. The default
// NopAuditLogger discards everything, which is fine for a single-user
// local catalog; enterprise builds ship events to a SIEM.
type AuditLogger interface {
	Log(ctx context.Context, event AuditEvent) error
}

// NopAuditLogger discards all events.
type NopAuditLogger struct{}

// Log drops the event and reports success.
func (l *NopAuditLogger) Log(_ context.Context, _ AuditEvent) error {
	return nil
}

var _ AuditLogger = (*NopAuditLogger)(nil)
