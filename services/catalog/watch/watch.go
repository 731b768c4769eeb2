// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch fans merged catalog changes out to live subscribers.
//
// The feed is best-effort: it is not part of the durability contract, and
// a subscriber that cannot keep up loses events rather than slowing the
// merge path down.
package watch

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// MergeEvent describes one catalog entry a merge created or changed.
type MergeEvent struct {
	// FieldID is the content-addressed entry identifier.
	FieldID string `json:"fieldId"`

	// ContextID is the owning business context.
	ContextID string `json:"contextId"`

	// FieldPath is the lowercase slash-separated path.
	FieldPath string `json:"fieldPath"`

	// Created is true when the merge created the entry, false when it
	// updated an existing one.
	Created bool `json:"created"`

	// MinOccurs and MaxOccurs are the entry's occurrence bounds after
	// the merge.
	MinOccurs int64 `json:"minOccurs"`
	MaxOccurs int64 `json:"maxOccurs"`

	// ObservedAt is the merge timestamp in Unix milliseconds.
	ObservedAt int64 `json:"observedAt"`
}

// subscriberBuffer is the per-subscriber channel capacity. A consumer
// more than this many events behind starts losing events.
const subscriberBuffer = 64

// Subscriber is one registered consumer of the merge feed.
type Subscriber struct {
	// ID uniquely identifies this subscription for Unregister.
	ID string

	// C delivers events. Closed when the subscription is removed.
	C <-chan MergeEvent

	ch chan MergeEvent
}

// Hub broadcasts merge events to all registered subscribers.
//
// Thread Safety: Hub is safe for concurrent use.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	dropped     atomic.Int64
	logger      *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		logger:      logger.With(slog.String("component", "watch_hub")),
	}
}

// Register adds a subscriber and returns it.
//
// The caller must eventually call Unregister with the subscriber's ID;
// the hub never removes subscribers on its own.
func (h *Hub) Register() *Subscriber {
	ch := make(chan MergeEvent, subscriberBuffer)
	sub := &Subscriber{
		ID: uuid.NewString(),
		C:  ch,
		ch: ch,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[sub.ID] = sub
	return sub
}

// Unregister removes a subscription and closes its channel.
//
// Outputs:
//
//   - bool: True if the subscription was found and removed.
func (h *Hub) Unregister(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subscribers[id]
	if !ok {
		return false
	}
	delete(h.subscribers, id)
	// Safe to close here: Broadcast sends under the read lock, so no
	// send can be in flight while we hold the write lock.
	close(sub.ch)
	return true
}

// Broadcast delivers an event to every subscriber without blocking.
//
// A subscriber whose buffer is full misses the event; the loss is
// counted and logged at debug level.
func (h *Hub) Broadcast(event MergeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		select {
		case sub.ch <- event:
		default:
			h.dropped.Add(1)
			h.logger.Debug("subscriber too slow, event dropped",
				slog.String("subscriber_id", sub.ID),
				slog.String("field_id", event.FieldID))
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Dropped returns the total number of events lost to slow subscribers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
