// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


package proposer

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianExplorer/services/explorer/explore"
)

const systemPrompt = `You are a product strategist proposing concrete changes to a product.
Each change is scored by how it moves four scorecard dimensions, each in [0, 1]
where lower is better for the user: complexity, initial_effort, perceived_risk,
time_to_value.

Respond with a single JSON object and nothing else:
{"proposals": [{"description": "...", "category": "...", "rationale": "...",
  "deltas": {"complexity": -0.1, "perceived_risk": 0.05}}]}

Omit dimensions a change does not affect. Never invent other fields.`

// buildPrompt renders the user message for one frontier node.
func buildPrompt(node *explore.ScenarioNode, pc explore.ProposalContext) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Goal: %s\n", pc.Goal)
	fmt.Fprintf(&sb, "Experiment: %s\n\n", pc.ExperimentID)

	sb.WriteString("Changes applied so far, starting from the baseline:\n")
	for _, n := range pc.Path {
		label := "baseline"
		if n.Action != nil {
			label = fmt.Sprintf("[%s] %s", n.Action.Category, n.Action.Description)
		}
		fmt.Fprintf(&sb, "- depth %d: %s\n  scorecard: %s\n  outcome: success %.3f, fail %.3f, did not try %.3f\n",
			n.Depth, label, formatScorecard(n.Scorecard),
			n.Fitness.SuccessRate, n.Fitness.FailRate, n.Fitness.DidNotTryRate)
	}
	if len(pc.Path) == 0 {
		fmt.Fprintf(&sb, "- current scorecard: %s\n", formatScorecard(node.Scorecard))
	}

	cats := make([]string, len(pc.Categories))
	for i, c := range pc.Categories {
		cats[i] = string(c)
	}
	fmt.Fprintf(&sb, "\nPropose %d distinct next changes that move the goal metric in the right direction.\n", pc.Count)
	fmt.Fprintf(&sb, "Allowed categories: %s.\n", strings.Join(cats, ", "))
	fmt.Fprintf(&sb, "Each delta must be within ±%.2f.\n", pc.MaxDeltaMagnitude)
	return sb.String()
}

func formatScorecard(sc explore.Scorecard) string {
	return fmt.Sprintf("complexity %.2f, initial_effort %.2f, perceived_risk %.2f, time_to_value %.2f",
		sc.Complexity, sc.InitialEffort, sc.PerceivedRisk, sc.TimeToValue)
}
