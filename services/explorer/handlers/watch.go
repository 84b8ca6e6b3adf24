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
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianExplorer/services/explorer/explore"
)

// Watch event names.
const (
	EventSnapshot  = "snapshot"
	EventIteration = "iteration"
	EventDone      = "done"
	EventError     = "error"
)

// WatchEvent is one message on the watch socket.
type WatchEvent struct {
	Event       string               `json:"event"`
	Exploration *explore.Exploration `json:"exploration,omitempty"`
	Error       string               `json:"error,omitempty"`
}

const watchWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Watch handles GET /v1/explorations/:id/watch.
//
// The connection is upgraded to a WebSocket. The server sends a snapshot,
// then drives the exploration one iteration at a time and sends each
// committed state, and finally a done event once the exploration is
// terminal. Closing the socket cancels the iteration in flight; committed
// iterations are kept.
func (h *ExplorationHandler) Watch(c *gin.Context) {
	id := c.Param("id")
	exp, err := h.explorer.Exploration(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "watch exploration", err)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// The client sends nothing; a read error means it went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger := h.logger.With(slog.String("exploration_id", id))
	if err := writeEvent(ws, WatchEvent{Event: EventSnapshot, Exploration: exp}); err != nil {
		return
	}

	for !exp.Status.IsTerminal() {
		exp, err = h.explorer.RunIteration(ctx, id)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("watched iteration failed", slog.String("error", err.Error()))
				_ = writeEvent(ws, WatchEvent{Event: EventError, Error: err.Error()})
			}
			return
		}
		if err := writeEvent(ws, WatchEvent{Event: EventIteration, Exploration: exp}); err != nil {
			return
		}
	}

	if err := writeEvent(ws, WatchEvent{Event: EventDone, Exploration: exp}); err != nil {
		return
	}
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(exp.Status)),
		time.Now().Add(time.Second))
}

func writeEvent(ws *websocket.Conn, ev WatchEvent) error {
	_ = ws.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
	return ws.WriteJSON(ev)
}
