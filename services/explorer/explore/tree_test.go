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
	"errors"
	"fmt"
	"math"
	"testing"
)

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func testBaseline() Scorecard {
	return Scorecard{Complexity: 0.6, InitialEffort: 0.5, PerceivedRisk: 0.4, TimeToValue: 0.5}
}

func newTestTree(t *testing.T) (*TreeManager, *ScenarioNode) {
	t.Helper()
	tm, err := NewTreeManager("exp-1", nil, WithIDGenerator(sequentialIDs("n")))
	if err != nil {
		t.Fatalf("NewTreeManager: %v", err)
	}
	root, err := tm.CreateRoot(testBaseline(), FitnessVector{SuccessRate: 0.3, FailRate: 0.5, DidNotTryRate: 0.2})
	if err != nil {
		t.Fatalf("CreateRoot: %v", err)
	}
	return tm, root
}

func outcome(category ActionCategory, risk float64, success float64) Outcome {
	return Outcome{
		Proposal: ActionProposal{
			Description: fmt.Sprintf("%s change", category),
			Category:    category,
			Rationale:   "test",
			Deltas:      map[Dimension]float64{DimPerceivedRisk: risk},
		},
		Fitness: FitnessVector{SuccessRate: success, FailRate: 1 - success, DidNotTryRate: 0},
	}
}

func TestTreeManager_CreateRoot(t *testing.T) {
	tm, root := newTestTree(t)

	if root.Depth != 0 || !root.IsRoot() || root.Status != NodeActive || root.Seq != 0 {
		t.Errorf("unexpected root: %+v", root)
	}
	if root.Action != nil {
		t.Error("root must not carry an action")
	}
	if _, err := tm.CreateRoot(testBaseline(), root.Fitness); !errors.Is(err, ErrTreeCorrupt) {
		t.Errorf("second root: err = %v, want ErrTreeCorrupt", err)
	}
	if f := tm.Frontier(0); len(f) != 1 || f[0].ID != root.ID {
		t.Errorf("Frontier(0) = %v", f)
	}
}

func TestTreeManager_Expand(t *testing.T) {
	tm, root := newTestTree(t)

	invalid := outcome("marketing", 0.1, 0.5)
	tooBig := outcome(CategoryFeature, 0.1, 0.5)
	tooBig.Proposal.Deltas[DimComplexity] = 2
	badFitness := outcome(CategoryFeature, 0.1, 0.5)
	badFitness.Fitness.FailRate = 0.9

	children, err := tm.Expand(root.ID, []Outcome{
		outcome(CategoryOnboarding, 0.05, 0.45),
		invalid,
		tooBig,
		badFitness,
		outcome(CategoryPricing, 0.8, 0.42),
	})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("created %d children, want 2", len(children))
	}

	a, b := children[0], children[1]
	if a.Depth != 1 || a.ParentID != root.ID || a.Status != NodeActive {
		t.Errorf("unexpected child: %+v", a)
	}
	if math.Abs(a.SuccessDelta-0.15) > 1e-9 {
		t.Errorf("SuccessDelta = %v, want 0.15", a.SuccessDelta)
	}
	if math.Abs(a.AccumulatedRisk-0.05) > 1e-9 {
		t.Errorf("AccumulatedRisk = %v, want 0.05", a.AccumulatedRisk)
	}
	if want := root.Scorecard.Apply(a.Delta); a.Scorecard != want {
		t.Errorf("Scorecard = %+v, want %+v", a.Scorecard, want)
	}
	// Risk accumulates the proposed delta even when the scorecard clamps.
	if b.Scorecard.PerceivedRisk != 1 || math.Abs(b.AccumulatedRisk-0.8) > 1e-9 {
		t.Errorf("clamped child: scorecard risk %v, accumulated %v", b.Scorecard.PerceivedRisk, b.AccumulatedRisk)
	}
	if b.Seq <= a.Seq {
		t.Error("creation order not preserved")
	}

	grand, err := tm.Expand(a.ID, []Outcome{outcome(CategorySupport, 0.1, 0.5)})
	if err != nil {
		t.Fatalf("Expand grandchild: %v", err)
	}
	if grand[0].Depth != 2 || math.Abs(grand[0].AccumulatedRisk-0.15) > 1e-9 {
		t.Errorf("grandchild: %+v", grand[0])
	}

	path, err := tm.PathTo(grand[0].ID)
	if err != nil {
		t.Fatalf("PathTo: %v", err)
	}
	if len(path) != 3 || path[0].ID != root.ID || path[2].ID != grand[0].ID {
		t.Errorf("PathTo = %v", path)
	}

	if err := ValidateForest(tm.Nodes()); err != nil {
		t.Errorf("tree not well formed: %v", err)
	}
}

func TestTreeManager_StatusTransitions(t *testing.T) {
	tm, root := newTestTree(t)
	children, _ := tm.Expand(root.ID, []Outcome{
		outcome(CategoryOnboarding, 0.05, 0.45),
		outcome(CategoryPricing, 0.2, 0.42),
		outcome(CategorySupport, 0.01, 0.38),
	})

	if err := tm.MarkWinner(children[0].ID); err != nil {
		t.Fatalf("MarkWinner: %v", err)
	}
	if err := tm.MarkDominated(children[1].ID); err != nil {
		t.Fatalf("MarkDominated: %v", err)
	}
	if err := tm.MarkExpansionFailed(children[2].ID, ProposalTimeout); err != nil {
		t.Fatalf("MarkExpansionFailed: %v", err)
	}
	if children[2].FailureKind != ProposalTimeout {
		t.Errorf("FailureKind = %q", children[2].FailureKind)
	}

	if err := tm.MarkDominated(children[0].ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("winner -> dominated: err = %v, want ErrInvalidTransition", err)
	}
	if err := tm.MarkWinner("missing"); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("unknown node: err = %v, want ErrNodeNotFound", err)
	}
	if _, err := tm.Expand(children[1].ID, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expanding dominated node: err = %v", err)
	}
	if f := tm.Frontier(1); len(f) != 0 {
		t.Errorf("Frontier(1) = %v, want empty", f)
	}
	// Nothing is ever deleted.
	if tm.Len() != 4 {
		t.Errorf("Len = %d, want 4", tm.Len())
	}
	counts := tm.CountByStatus()
	if counts[NodeWinner] != 1 || counts[NodeDominated] != 1 || counts[NodeExpansionFailed] != 1 || counts[NodeActive] != 1 {
		t.Errorf("CountByStatus = %v", counts)
	}
}

func TestTreeManager_DirtyTracksChangesSinceLoad(t *testing.T) {
	tm, root := newTestTree(t)
	children, _ := tm.Expand(root.ID, []Outcome{outcome(CategoryOnboarding, 0.05, 0.45)})

	reloaded, err := NewTreeManager("exp-1", tm.Nodes(), WithIDGenerator(sequentialIDs("m")))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.Dirty()) != 0 {
		t.Errorf("reloaded tree has %d dirty nodes", len(reloaded.Dirty()))
	}

	if err := reloaded.MarkDominated(children[0].ID); err != nil {
		t.Fatalf("MarkDominated: %v", err)
	}
	added, _ := reloaded.Expand(root.ID, []Outcome{outcome(CategoryFeature, 0, 0.31)})

	dirty := reloaded.Dirty()
	if len(dirty) != 2 || dirty[0].ID != children[0].ID || dirty[1].ID != added[0].ID {
		t.Errorf("Dirty = %v", dirty)
	}
	if added[0].Seq != 2 {
		t.Errorf("Seq after reload = %d, want 2", added[0].Seq)
	}
	// The original manager's nodes are not shared with the reloaded copy.
	if children[0].Status != NodeActive {
		t.Error("reload must copy nodes")
	}
}

func TestValidateForest(t *testing.T) {
	root := &ScenarioNode{ID: "r", Depth: 0, Status: NodeActive}
	child := &ScenarioNode{ID: "c", ParentID: "r", Depth: 1, Status: NodeActive}

	tests := []struct {
		name  string
		nodes []*ScenarioNode
		ok    bool
	}{
		{"empty", nil, true},
		{"root and child", []*ScenarioNode{root, child}, true},
		{"no root", []*ScenarioNode{child}, false},
		{"two roots", []*ScenarioNode{root, {ID: "r2", Status: NodeActive}}, false},
		{"root not at depth 0", []*ScenarioNode{{ID: "r", Depth: 1, Status: NodeActive}}, false},
		{"depth skip", []*ScenarioNode{root, {ID: "c", ParentID: "r", Depth: 2, Status: NodeActive}}, false},
		{"orphan", []*ScenarioNode{root, {ID: "c", ParentID: "x", Depth: 1, Status: NodeActive}}, false},
		{"self parent", []*ScenarioNode{root, {ID: "c", ParentID: "c", Depth: 1, Status: NodeActive}}, false},
		{"duplicate id", []*ScenarioNode{root, child, child}, false},
		{"bad status", []*ScenarioNode{{ID: "r", Status: "expanded"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateForest(tt.nodes)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrTreeCorrupt) {
				t.Errorf("err = %v, want ErrTreeCorrupt", err)
			}
		})
	}
}
