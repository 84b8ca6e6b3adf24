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
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianExplorer/pkg/ux"
)

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	id := args[0]
	exp, err := a.explorer.Exploration(ctx, id)
	if err != nil {
		return err
	}
	nodes, err := a.explorer.Tree(ctx, id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := printResult(out, exp, nodes, showJSON); err != nil {
		return err
	}
	if showJSON {
		return nil
	}

	path, err := a.explorer.WinningPath(ctx, id)
	if err != nil {
		return err
	}
	if len(path) == 0 {
		fmt.Fprintf(out, "\nNo winning path (%s)\n", ux.Status(string(exp.Status)))
		return nil
	}
	fmt.Fprintln(out, "\nWinning path:")
	for i, n := range path {
		if n.Action == nil {
			fmt.Fprintf(out, "  %d. baseline (success %.3f)\n", i, n.Fitness.SuccessRate)
			continue
		}
		fmt.Fprintf(out, "  %d. [%s] %s (success %.3f)\n", i, n.Action.Category, n.Action.Description, n.Fitness.SuccessRate)
	}
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	exps, err := a.explorer.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEXPERIMENT\tDEPTH\tNODES\tCALLS\tCREATED\tSTATUS")
	for _, e := range exps {
		// Keep status last; tabwriter counts color codes as width.
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d/%d\t%s\t%s\n",
			e.ID, e.ExperimentID, e.CurrentDepth, e.TotalNodes,
			e.TotalLLMCalls, e.Config.MaxLLMCalls, e.CreatedAt.Format(time.RFC3339),
			ux.Status(string(e.Status)))
	}
	return tw.Flush()
}
