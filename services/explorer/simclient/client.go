// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


// Package simclient calls a remote outcome simulator over HTTP.
//
// Wire format:
//
//	POST {base}/v1/simulate
//	{"scorecard": {...}, "population": {"id": "..."}, "executions": 5, "seed": 42}
//
//	200 {"runs": [{"success_rate": 0.4, "fail_rate": 0.4, "did_not_try_rate": 0.2}, ...]}
package simclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AleutianAI/AleutianExplorer/services/explorer/explore"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4 << 10

// ErrSimulator wraps non-2xx responses from the simulator.
var ErrSimulator = errors.New("simulator error")

// Client implements explore.OutcomeSimulator.
//
// Thread Safety: Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its transport is used as is.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// New creates a client for the simulator at baseURL.
//
// Requests carry trace context through an otelhttp transport. Deadlines
// come from the caller's context.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Simulate implements explore.OutcomeSimulator.
func (c *Client) Simulate(ctx context.Context, req explore.SimulationRequest) (explore.SimulationResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return explore.SimulationResult{}, fmt.Errorf("marshal simulation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/simulate", bytes.NewReader(body))
	if err != nil {
		return explore.SimulationResult{}, fmt.Errorf("build simulation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return explore.SimulationResult{}, fmt.Errorf("call simulator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("simulator rejected request",
			slog.Int("status", resp.StatusCode),
			slog.String("population_id", req.Population.ID),
		)
		return explore.SimulationResult{}, fmt.Errorf("%w: status %d: %s", ErrSimulator, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result explore.SimulationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return explore.SimulationResult{}, fmt.Errorf("decode simulation result: %w", err)
	}
	return result, nil
}
