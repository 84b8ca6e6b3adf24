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
	"fmt"
	"math/rand"
	"testing"
)

func candidate(id string, seq int64, successDelta, risk float64) *ScenarioNode {
	return &ScenarioNode{ID: id, Seq: seq, SuccessDelta: successDelta, AccumulatedRisk: risk, Status: NodeActive}
}

func ids(nodes []*ScenarioNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func sameIDs(got []*ScenarioNode, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i].ID != want[i] {
			return false
		}
	}
	return true
}

func TestDominates(t *testing.T) {
	a := candidate("a", 0, 0.15, 0.05)
	b := candidate("b", 1, 0.12, 0.20)
	c := candidate("c", 2, 0.08, 0.01)
	a2 := candidate("a2", 3, 0.1505, 0.05)

	if !Dominates(a, b, 0) {
		t.Error("a has more success and less risk than b and should dominate it")
	}
	if Dominates(b, a, 0) {
		t.Error("b must not dominate a")
	}
	if Dominates(a, c, 0) || Dominates(c, a, 0) {
		t.Error("a and c trade success against risk; neither should dominate")
	}
	if Dominates(a, a, 0) {
		t.Error("a node must not dominate itself")
	}
	if Dominates(a, a2, 1e-3) || Dominates(a2, a, 1e-3) {
		t.Error("near ties within tolerance must not dominate")
	}
	if !Dominates(a2, a, 0) {
		t.Error("without tolerance a2 is strictly better on success")
	}
}

func TestFilterDominated_ScenarioABC(t *testing.T) {
	// Root success 0.30. A reaches 0.45 (risk 0.05), B 0.42 (risk 0.20), C 0.38 (risk 0.01).
	a := candidate("A", 1, 0.15, 0.05)
	b := candidate("B", 2, 0.12, 0.20)
	c := candidate("C", 3, 0.08, 0.01)

	// A beats B on both axes. C has the lowest risk, so nothing dominates it.
	nd := FilterDominated([]*ScenarioNode{a, b, c}, 1e-3)
	if !sameIDs(nd, "A", "C") {
		t.Errorf("FilterDominated = %v, want [A C]", ids(nd))
	}
	sel := BeamSelect(nd, 2)
	if !sameIDs(sel, "A", "C") {
		t.Errorf("BeamSelect = %v, want [A C]", ids(sel))
	}
}

func TestFilterDominated_DropsDominated(t *testing.T) {
	a := candidate("A", 1, 0.15, 0.05)
	b := candidate("B", 2, 0.12, 0.02) // less success but less risk than A
	c := candidate("C", 3, 0.08, 0.10) // worse than A on both axes

	nd := FilterDominated([]*ScenarioNode{a, b, c}, 1e-3)
	if !sameIDs(nd, "A", "B") {
		t.Errorf("FilterDominated = %v, want [A B]", ids(nd))
	}
}

func TestFilterDominated_KeepsCandidateWhoseDominatorWasExcluded(t *testing.T) {
	// With tolerance 0.1: a dominates b, b dominates c, but a does not dominate c.
	a := candidate("a", 0, 1.00, 0.3)
	b := candidate("b", 1, 0.85, 0.2)
	c := candidate("c", 2, 0.70, 0.1)
	tol := 0.1

	if !Dominates(a, b, tol) || !Dominates(b, c, tol) || Dominates(a, c, tol) {
		t.Fatal("fixture does not have the intended shape")
	}
	nd := FilterDominated([]*ScenarioNode{a, b, c}, tol)
	if !sameIDs(nd, "a", "c") {
		t.Errorf("FilterDominated = %v, want [a c]", ids(nd))
	}
}

func TestFilterDominated_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 300; trial++ {
		n := rng.Intn(12)
		tol := []float64{0, 1e-3, 0.05}[trial%3]
		cands := make([]*ScenarioNode, n)
		for i := range cands {
			// Coarse grid to produce ties and near ties.
			s := float64(rng.Intn(20)-5) / 50
			r := float64(rng.Intn(20)) / 40
			cands[i] = candidate(fmt.Sprintf("c%d", i), int64(i), s, r)
		}

		kept := FilterDominated(cands, tol)
		inKept := make(map[string]bool)
		for _, k := range kept {
			inKept[k.ID] = true
		}

		for _, x := range kept {
			for _, y := range kept {
				if x != y && Dominates(y, x, tol) {
					t.Fatalf("trial %d: returned %s dominated by returned %s", trial, x.ID, y.ID)
				}
			}
		}
		for _, x := range cands {
			if inKept[x.ID] {
				continue
			}
			covered := false
			for _, y := range kept {
				if Dominates(y, x, tol) {
					covered = true
					break
				}
			}
			if !covered {
				t.Fatalf("trial %d: excluded %s not dominated by any returned candidate", trial, x.ID)
			}
		}
		if n > 0 && len(kept) == 0 {
			t.Fatalf("trial %d: non-empty input produced empty result", trial)
		}
	}
}

func TestBeamSelect_RankingAndTieBreaks(t *testing.T) {
	nodes := []*ScenarioNode{
		candidate("late-tie", 5, 0.10, 0.10),
		candidate("low", 1, 0.05, 0.00),
		candidate("best", 4, 0.20, 0.30),
		candidate("early-tie", 2, 0.10, 0.10),
		candidate("safer", 3, 0.10, 0.05),
	}

	got := BeamSelect(nodes, 4)
	if !sameIDs(got, "best", "safer", "early-tie", "late-tie") {
		t.Errorf("BeamSelect = %v", ids(got))
	}
	if nodes[0].ID != "late-tie" {
		t.Error("BeamSelect must not reorder its input")
	}

	for i := 0; i < 10; i++ {
		again := BeamSelect(nodes, 4)
		if fmt.Sprint(ids(again)) != fmt.Sprint(ids(got)) {
			t.Fatalf("BeamSelect not deterministic: %v vs %v", ids(again), ids(got))
		}
	}
}

func TestBeamSelect_Size(t *testing.T) {
	nodes := []*ScenarioNode{candidate("a", 0, 0.1, 0), candidate("b", 1, 0.2, 0.1)}
	for k := 0; k <= 3; k++ {
		want := k
		if want > len(nodes) {
			want = len(nodes)
		}
		if got := BeamSelect(nodes, k); len(got) != want {
			t.Errorf("BeamSelect(k=%d) returned %d nodes, want %d", k, len(got), want)
		}
	}
	if got := BeamSelect(nil, 3); len(got) != 0 {
		t.Errorf("BeamSelect(nil) = %v", got)
	}
}
