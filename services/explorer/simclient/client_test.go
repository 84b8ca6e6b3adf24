// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


package simclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianExplorer/services/explorer/explore"
)

func TestClient_Simulate(t *testing.T) {
	var got explore.SimulationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/simulate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(explore.SimulationResult{Runs: []explore.FitnessVector{
			{SuccessRate: 0.4, FailRate: 0.4, DidNotTryRate: 0.2},
			{SuccessRate: 0.5, FailRate: 0.3, DidNotTryRate: 0.2},
		}})
	}))
	defer srv.Close()

	seed := int64(42)
	c := New(srv.URL + "/")
	res, err := c.Simulate(context.Background(), explore.SimulationRequest{
		Scorecard:  explore.Scorecard{Complexity: 0.5, InitialEffort: 0.4, PerceivedRisk: 0.3, TimeToValue: 0.2},
		Population: explore.PopulationRef{ID: "pop-1", Size: 100},
		Executions: 2,
		Seed:       &seed,
	})
	require.NoError(t, err)
	assert.Len(t, res.Runs, 2)
	assert.Equal(t, 2, got.Executions)
	assert.Equal(t, "pop-1", got.Population.ID)
	require.NotNil(t, got.Seed)
	assert.Equal(t, int64(42), *got.Seed)
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "population not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Simulate(context.Background(), explore.SimulationRequest{Executions: 1})
	require.ErrorIs(t, err, ErrSimulator)
	assert.Contains(t, err.Error(), "population not found")
}

func TestClient_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Simulate(context.Background(), explore.SimulationRequest{Executions: 1})
	assert.Error(t, err)
}

func TestClient_HonorsDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := New(srv.URL).Simulate(ctx, explore.SimulationRequest{Executions: 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
