// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


// Package handlers exposes the explorer over HTTP.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianExplorer/services/explorer/explore"
)

// Explorer is the subset of *explore.Orchestrator the handlers use.
type Explorer interface {
	Start(ctx context.Context, experimentID string, goal explore.Goal, config explore.ExplorationConfig) (*explore.Exploration, error)
	RunIteration(ctx context.Context, id string) (*explore.Exploration, error)
	Run(ctx context.Context, id string) (*explore.Exploration, error)
	Exploration(ctx context.Context, id string) (*explore.Exploration, error)
	List(ctx context.Context) ([]*explore.Exploration, error)
	Tree(ctx context.Context, id string) ([]*explore.ScenarioNode, error)
	WinningPath(ctx context.Context, id string) ([]*explore.ScenarioNode, error)
}

// StartRequest is the body of POST /v1/explorations.
type StartRequest struct {
	ExperimentID string          `json:"experiment_id" binding:"required"`
	Goal         explore.Goal    `json:"goal"`
	Config       *ConfigOverride `json:"config,omitempty"`
}

// ConfigOverride carries per-exploration search limits.
//
// Absent fields take the service defaults. A field that is present is used
// as given, so an explicit 0 is rejected by validation.
type ConfigOverride struct {
	BeamWidth         *int `json:"beam_width,omitempty"`
	MaxDepth          *int `json:"max_depth,omitempty"`
	MaxLLMCalls       *int `json:"max_llm_calls,omitempty"`
	ExecutionsPerNode *int `json:"executions_per_node,omitempty"`
}

// TreeResponse is the body of GET /v1/explorations/:id/tree.
type TreeResponse struct {
	Exploration *explore.Exploration    `json:"exploration"`
	Nodes       []*explore.ScenarioNode `json:"nodes"`
}

// WinningPathResponse is the body of GET /v1/explorations/:id/winning-path.
//
// Path is empty unless the exploration achieved its goal.
type WinningPathResponse struct {
	ExplorationID string                    `json:"exploration_id"`
	Status        explore.ExplorationStatus `json:"status"`
	Path          []*explore.ScenarioNode   `json:"path"`
}

// ExplorationHandler serves exploration endpoints.
type ExplorationHandler struct {
	explorer Explorer
	defaults explore.ExplorationConfig
	logger   *slog.Logger
}

// NewExplorationHandler creates a handler.
func NewExplorationHandler(explorer Explorer, defaults explore.ExplorationConfig, logger *slog.Logger) *ExplorationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExplorationHandler{explorer: explorer, defaults: defaults, logger: logger}
}

// Start handles POST /v1/explorations.
func (h *ExplorationHandler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	exp, err := h.explorer.Start(c.Request.Context(), req.ExperimentID, req.Goal, h.withDefaults(req.Config))
	if err != nil {
		h.fail(c, "start exploration", err)
		return
	}
	h.logger.Info("exploration started",
		slog.String("exploration_id", exp.ID),
		slog.String("experiment_id", exp.ExperimentID),
	)
	c.JSON(http.StatusCreated, exp)
}

// List handles GET /v1/explorations.
func (h *ExplorationHandler) List(c *gin.Context) {
	exps, err := h.explorer.List(c.Request.Context())
	if err != nil {
		h.fail(c, "list explorations", err)
		return
	}
	if exps == nil {
		exps = []*explore.Exploration{}
	}
	c.JSON(http.StatusOK, gin.H{"explorations": exps})
}

// Get handles GET /v1/explorations/:id.
func (h *ExplorationHandler) Get(c *gin.Context) {
	exp, err := h.explorer.Exploration(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get exploration", err)
		return
	}
	c.JSON(http.StatusOK, exp)
}

// Iterate handles POST /v1/explorations/:id/iterate.
func (h *ExplorationHandler) Iterate(c *gin.Context) {
	exp, err := h.explorer.RunIteration(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "run iteration", err)
		return
	}
	c.JSON(http.StatusOK, exp)
}

// Run handles POST /v1/explorations/:id/run.
//
// The request blocks until the exploration is terminal or the client goes away.
func (h *ExplorationHandler) Run(c *gin.Context) {
	exp, err := h.explorer.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "run exploration", err)
		return
	}
	c.JSON(http.StatusOK, exp)
}

// Tree handles GET /v1/explorations/:id/tree.
//
// With ?format=text the tree is rendered as plain text.
func (h *ExplorationHandler) Tree(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	exp, err := h.explorer.Exploration(ctx, id)
	if err != nil {
		h.fail(c, "get exploration", err)
		return
	}
	nodes, err := h.explorer.Tree(ctx, id)
	if err != nil {
		h.fail(c, "get tree", err)
		return
	}

	if c.Query("format") == "text" {
		c.String(http.StatusOK, explore.FormatTree(exp, nodes))
		return
	}
	c.JSON(http.StatusOK, TreeResponse{Exploration: exp, Nodes: nodes})
}

// WinningPath handles GET /v1/explorations/:id/winning-path.
func (h *ExplorationHandler) WinningPath(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	exp, err := h.explorer.Exploration(ctx, id)
	if err != nil {
		h.fail(c, "get exploration", err)
		return
	}
	path, err := h.explorer.WinningPath(ctx, id)
	if err != nil {
		h.fail(c, "get winning path", err)
		return
	}
	if path == nil {
		path = []*explore.ScenarioNode{}
	}
	c.JSON(http.StatusOK, WinningPathResponse{ExplorationID: id, Status: exp.Status, Path: path})
}

func (h *ExplorationHandler) withDefaults(cfg *ConfigOverride) explore.ExplorationConfig {
	out := h.defaults
	if cfg == nil {
		return out
	}
	if cfg.BeamWidth != nil {
		out.BeamWidth = *cfg.BeamWidth
	}
	if cfg.MaxDepth != nil {
		out.MaxDepth = *cfg.MaxDepth
	}
	if cfg.MaxLLMCalls != nil {
		out.MaxLLMCalls = *cfg.MaxLLMCalls
	}
	if cfg.ExecutionsPerNode != nil {
		out.ExecutionsPerNode = *cfg.ExecutionsPerNode
	}
	return out
}

func (h *ExplorationHandler) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed",
			slog.String("exploration_id", c.Param("id")),
			slog.String("error", err.Error()),
		)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, explore.ErrInvalidConfig), errors.Is(err, explore.ErrInvalidGoal):
		return http.StatusBadRequest
	case errors.Is(err, explore.ErrExplorationNotFound), errors.Is(err, explore.ErrExperimentNotFound):
		return http.StatusNotFound
	case errors.Is(err, explore.ErrConcurrentIteration):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		// Client went away; nginx convention.
		return 499
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// HealthCheck handles GET /health.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
