// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianConnect/services/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The daemon binds to loopback; browser-origin checks do not apply.
	CheckOrigin: func(*http.Request) bool { return true },
}

// statusBuffer caps queued updates per event stream client. A client that
// falls further behind loses intermediate statuses, never the stream.
const statusBuffer = 16

// HandleEvents handles GET /v1/session/events.
//
// # Description
//
// Upgrades to a WebSocket and streams committed session statuses. The
// client first receives a "connected" event carrying the stream session ID,
// then a "status" event with the current status, then one "status" event
// per committed change. A change racing the handshake may be delivered
// twice; it is never lost.
func (h *Handlers) HandleEvents(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	sessionID := uuid.NewString()
	logger := h.logger.With(slog.String("ws_session", sessionID))
	logger.Info("event stream connected")

	if h.metrics != nil {
		h.metrics.EventClients.Inc()
		defer h.metrics.EventClients.Dec()
	}

	updates := make(chan session.AuthStatus, statusBuffer)
	unsubscribe := h.manager.Subscribe(func(status session.AuthStatus) {
		// Runs inside the manager's commit section: never block.
		select {
		case updates <- status:
		default:
			if h.metrics != nil {
				h.metrics.EventDropsTotal.Inc()
			}
		}
	})
	defer unsubscribe()

	if err := ws.WriteJSON(Event{Type: EventTypeConnected, SessionID: sessionID}); err != nil {
		return
	}
	current := h.manager.CurrentStatus()
	if err := ws.WriteJSON(Event{Type: EventTypeStatus, Status: &current}); err != nil {
		return
	}

	// The reader notices the peer going away; inbound payloads are ignored.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case status := <-updates:
			if err := ws.WriteJSON(Event{Type: EventTypeStatus, Status: &status}); err != nil {
				logger.Info("event stream write failed", slog.String("error", err.Error()))
				return
			}
		case <-closed:
			logger.Info("event stream closed by client")
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
