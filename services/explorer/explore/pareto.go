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
	"sort"
)

// Dominates reports whether a Pareto-dominates b.
//
// The objectives are SuccessDelta (maximize) and AccumulatedRisk (minimize).
// a dominates b when it is at least as good on both, within tolerance, and
// better than b by more than tolerance on at least one.
//
// Thread Safety: Pure function.
func Dominates(a, b *ScenarioNode, tolerance float64) bool {
	if a.SuccessDelta < b.SuccessDelta-tolerance {
		return false
	}
	if a.AccumulatedRisk > b.AccumulatedRisk+tolerance {
		return false
	}
	return a.SuccessDelta > b.SuccessDelta+tolerance ||
		a.AccumulatedRisk < b.AccumulatedRisk-tolerance
}

// FilterDominated returns the candidates that survive Pareto filtering.
//
// The result satisfies two properties: no returned candidate dominates
// another returned candidate, and every excluded candidate is dominated by a
// returned one. With a zero tolerance this is exactly the non-dominated set.
// With a positive tolerance the dominance relation is not transitive, so a
// candidate whose only dominators were themselves excluded is kept.
//
// Dominance is acyclic (along any edge SuccessDelta-AccumulatedRisk strictly
// increases), so the decision below always settles. The result preserves
// input order.
//
// Inputs:
//   - candidates: The children created this iteration.
//   - tolerance: Equality tolerance, >= 0.
//
// Outputs:
//   - []*ScenarioNode: The survivors.
//
// Thread Safety: Pure function. O(n²) per pass.
func FilterDominated(candidates []*ScenarioNode, tolerance float64) []*ScenarioNode {
	n := len(candidates)
	if n == 0 {
		return nil
	}

	dominators := make([][]int, n)
	for i := range candidates {
		for j := range candidates {
			if i != j && Dominates(candidates[j], candidates[i], tolerance) {
				dominators[i] = append(dominators[i], j)
			}
		}
	}

	const (
		undecided = iota
		kept
		excluded
	)
	state := make([]int, n)
	for remaining := n; remaining > 0; {
		progressed := false
		for i := range candidates {
			if state[i] != undecided {
				continue
			}
			allExcluded := true
			for _, j := range dominators[i] {
				if state[j] == kept {
					state[i] = excluded
					break
				}
				if state[j] != excluded {
					allExcluded = false
				}
			}
			if state[i] == undecided && allExcluded {
				state[i] = kept
			}
			if state[i] != undecided {
				remaining--
				progressed = true
			}
		}
		if !progressed {
			// Unreachable for an acyclic relation; keep the rest rather than loop.
			for i := range state {
				if state[i] == undecided {
					state[i] = kept
					remaining--
				}
			}
		}
	}

	out := make([]*ScenarioNode, 0, n)
	for i, c := range candidates {
		if state[i] == kept {
			out = append(out, c)
		}
	}
	return out
}

// RankNodes sorts nodes best first: SuccessDelta descending, then
// AccumulatedRisk ascending, then creation order.
func RankNodes(nodes []*ScenarioNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.SuccessDelta != b.SuccessDelta {
			return a.SuccessDelta > b.SuccessDelta
		}
		if a.AccumulatedRisk != b.AccumulatedRisk {
			return a.AccumulatedRisk < b.AccumulatedRisk
		}
		return a.Seq < b.Seq
	})
}

// BeamSelect keeps at most k of the non-dominated nodes.
//
// Inputs:
//   - nondominated: Output of FilterDominated.
//   - k: Beam width.
//
// Outputs:
//   - []*ScenarioNode: min(k, len(nondominated)) nodes in rank order.
//
// Thread Safety: Pure function. The input slice is not reordered.
func BeamSelect(nondominated []*ScenarioNode, k int) []*ScenarioNode {
	if k <= 0 || len(nondominated) == 0 {
		return nil
	}
	ranked := make([]*ScenarioNode, len(nondominated))
	copy(ranked, nondominated)
	RankNodes(ranked)
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}
