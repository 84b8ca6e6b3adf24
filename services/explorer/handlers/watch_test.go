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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianExplorer/services/explorer/explore"
)

func TestWatch_StreamsUntilTerminal(t *testing.T) {
	router := newTestRouter(t)
	exp := startExploration(t, router)

	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/explorations/" + exp.ID + "/watch"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	var events []WatchEvent
	for {
		var ev WatchEvent
		if err := ws.ReadJSON(&ev); err != nil {
			break
		}
		events = append(events, ev)
		if ev.Event == EventDone || ev.Event == EventError {
			break
		}
	}

	require.Len(t, events, 3)
	assert.Equal(t, EventSnapshot, events[0].Event)
	assert.Equal(t, explore.StatusRunning, events[0].Exploration.Status)
	assert.Equal(t, EventIteration, events[1].Event)
	assert.Equal(t, 1, events[1].Exploration.Iterations)
	assert.Equal(t, EventDone, events[2].Event)
	assert.Equal(t, explore.StatusGoalAchieved, events[2].Exploration.Status)
}

func TestWatch_UnknownExploration(t *testing.T) {
	w := do(newTestRouter(t), http.MethodGet, "/v1/explorations/nope/watch", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
