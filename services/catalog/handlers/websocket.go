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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/FieldScope/services/catalog/watch"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

func sendJSON(ws *websocket.Conn, v any) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// WatchFields streams merge events to a websocket client.
//
// GET /v1/fields/watch
//
// # Description
//
// Upgrades the connection, registers a subscriber with the watch hub,
// and writes every merge event as a JSON frame until the client
// disconnects. The feed is best-effort: a subscriber that cannot keep
// up has events dropped by the hub rather than stalling merges.
//
// The first frame is `{"action": "watch_started", "subscriberId": ...}`
// so clients can correlate server logs.
func WatchFields(hub *watch.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		sub := hub.Register()
		defer hub.Unregister(sub.ID)
		slog.Info("watch subscriber connected", "subscriber_id", sub.ID)

		if err := sendJSON(ws, map[string]any{
			"action":       "watch_started",
			"subscriberId": sub.ID,
		}); err != nil {
			return
		}

		// Reader goroutine: the client never sends data frames, but
		// reading is how gorilla surfaces close frames and dead peers.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				slog.Info("watch subscriber disconnected", "subscriber_id", sub.ID)
				return
			case event, ok := <-sub.C:
				if !ok {
					return
				}
				if err := sendJSON(ws, event); err != nil {
					return
				}
			}
		}
	}
}
