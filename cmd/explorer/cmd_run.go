// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianExplorer/pkg/ux"
	"github.com/AleutianAI/AleutianExplorer/services/explorer/explore"
)

func runExplore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger.Slog()

	id := runResume
	if id == "" {
		goal := explore.Goal{
			Metric:     explore.Metric(runMetric),
			Comparator: explore.Comparator(runComparator),
			Threshold:  runThreshold,
		}
		exp, err := a.explorer.Start(ctx, runExperiment, goal, explorationConfig(a.cfg.Defaults))
		if err != nil {
			return fmt.Errorf("start exploration: %w", err)
		}
		id = exp.ID
		logger.Info("exploration started",
			slog.String("exploration_id", id),
			slog.Float64("baseline_success", exp.BaselineFitness.SuccessRate),
		)
	}

	exp, err := a.explorer.Run(ctx, id)
	if err != nil {
		// Committed iterations survive; the exploration can be resumed with --resume.
		return fmt.Errorf("run exploration %s: %w", id, err)
	}
	nodes, err := a.explorer.Tree(ctx, id)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), exp, nodes, runJSON)
}

// explorationConfig overlays non-zero flags on the configured defaults.
func explorationConfig(defaults explore.ExplorationConfig) explore.ExplorationConfig {
	cfg := defaults
	if runBeamWidth != 0 {
		cfg.BeamWidth = runBeamWidth
	}
	if runMaxDepth != 0 {
		cfg.MaxDepth = runMaxDepth
	}
	if runMaxCalls != 0 {
		cfg.MaxLLMCalls = runMaxCalls
	}
	if runExecutions != 0 {
		cfg.ExecutionsPerNode = runExecutions
	}
	return cfg
}

func printResult(w io.Writer, exp *explore.Exploration, nodes []*explore.ScenarioNode, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Exploration *explore.Exploration    `json:"exploration"`
			Nodes       []*explore.ScenarioNode `json:"nodes"`
		}{exp, nodes})
	}
	_, err := fmt.Fprint(w, ux.StyleTree(explore.FormatTree(exp, nodes)))
	return err
}
