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
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:           "explorer",
		Short:         "Search for scorecard changes that reach an experiment goal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the explorer HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Start an exploration (or resume one) and iterate until it terminates",
		Args:  cobra.NoArgs,
		RunE:  runExplore,
	}

	showCmd = &cobra.Command{
		Use:   "show <exploration-id>",
		Short: "Print an exploration's tree and winning path",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored explorations, newest first",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  printConfig,
	}
)

// Flags for run.
var (
	runExperiment string
	runResume     string
	runMetric     string
	runComparator string
	runThreshold  float64
	runBeamWidth  int
	runMaxDepth   int
	runMaxCalls   int
	runExecutions int
	runJSON       bool
)

// Flags for show.
var showJSON bool

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML or JSON config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	runCmd.Flags().StringVar(&runExperiment, "experiment", "", "experiment id from the catalog")
	runCmd.Flags().StringVar(&runResume, "resume", "", "continue an existing exploration instead of starting one")
	runCmd.Flags().StringVar(&runMetric, "metric", "success_rate", "goal metric (success_rate, fail_rate, did_not_try_rate)")
	runCmd.Flags().StringVar(&runComparator, "comparator", "gte", "goal comparator (gte, gt, lte, lt)")
	runCmd.Flags().Float64Var(&runThreshold, "threshold", 0, "goal threshold in [0, 1]")
	runCmd.Flags().IntVar(&runBeamWidth, "beam-width", 0, "nodes kept per depth (0 uses the configured default)")
	runCmd.Flags().IntVar(&runMaxDepth, "max-depth", 0, "deepest level to explore (0 uses the configured default)")
	runCmd.Flags().IntVar(&runMaxCalls, "max-llm-calls", 0, "proposal call budget (0 uses the configured default)")
	runCmd.Flags().IntVar(&runExecutions, "executions", 0, "simulation repetitions per node (0 uses the configured default)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the final exploration as JSON")
	runCmd.MarkFlagsMutuallyExclusive("experiment", "resume")
	runCmd.MarkFlagsOneRequired("experiment", "resume")

	showCmd.Flags().BoolVar(&showJSON, "json", false, "print nodes as JSON")

	rootCmd.AddCommand(serveCmd, runCmd, showCmd, listCmd, configCmd)
}
