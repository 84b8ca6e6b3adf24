// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


package explore

import (
	"strings"
	"testing"
)

func TestFormatTree(t *testing.T) {
	tm, root := newTestTree(t)
	children, err := tm.Expand(root.ID, []Outcome{
		outcome(CategoryOnboarding, 0.05, 0.45),
		outcome(CategoryPricing, 0.2, 0.42),
	})
	if err != nil {
		t.Fatal(err)
	}
	_ = tm.MarkWinner(children[0].ID)
	_ = tm.MarkDominated(children[1].ID)

	exp := &Exploration{
		ID:            "exp-1",
		ExperimentID:  "checkout",
		Goal:          Goal{Metric: MetricSuccessRate, Comparator: CompareGTE, Threshold: 0.4},
		Config:        DefaultExplorationConfig(),
		Status:        StatusGoalAchieved,
		WinnerID:      children[0].ID,
		TotalLLMCalls: 1,
	}
	out := FormatTree(exp, tm.Nodes())

	for _, want := range []string{
		"Exploration: exp-1",
		"Goal: success_rate >= 0.40",
		"Status: goal_achieved",
		"LLM calls: 1/30",
		"└── baseline",
		"├── [onboarding] onboarding change",
		"└── [pricing] pricing change",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	var winnerLine, dominatedLine string
	for _, l := range lines {
		if strings.Contains(l, "[onboarding]") {
			winnerLine = l
		}
		if strings.Contains(l, "[pricing]") {
			dominatedLine = l
		}
	}
	if !strings.HasSuffix(winnerLine, "✓ ★") {
		t.Errorf("winner line = %q", winnerLine)
	}
	if strings.Contains(dominatedLine, "★") || !strings.HasSuffix(dominatedLine, "-") {
		t.Errorf("dominated line = %q", dominatedLine)
	}
}

func TestFormatTree_Empty(t *testing.T) {
	if got := FormatTree(nil, nil); got != "Empty tree" {
		t.Errorf("FormatTree(nil) = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("a much longer description", 10); got != "a much ..." {
		t.Errorf("truncate = %q", got)
	}
}
