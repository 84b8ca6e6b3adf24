// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


// Package storetest holds the behavioral contract every ExplorationStore
// backend must satisfy.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianExplorer/services/explorer/explore"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) explore.ExplorationStore

var epoch = time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)

// NewExploration returns a running exploration fixture.
func NewExploration(id string) *explore.Exploration {
	return &explore.Exploration{
		ID:              id,
		ExperimentID:    "exp-onboarding",
		Population:      explore.PopulationRef{ID: "pop-smb", Size: 250},
		Baseline:        explore.Scorecard{Complexity: 0.6, InitialEffort: 0.5, PerceivedRisk: 0.4, TimeToValue: 0.5},
		BaselineFitness: explore.FitnessVector{SuccessRate: 0.3, FailRate: 0.5, DidNotTryRate: 0.2},
		Goal:            explore.Goal{Metric: explore.MetricSuccessRate, Comparator: explore.CompareGTE, Threshold: 0.4},
		Config:          explore.DefaultExplorationConfig(),
		Status:          explore.StatusRunning,
		RootID:          id + "-root",
		TotalNodes:      1,
		CreatedAt:       epoch,
		UpdatedAt:       epoch,
	}
}

// NewNode returns an active node fixture. seq 0 yields the root.
func NewNode(explorationID string, seq int64) *explore.ScenarioNode {
	n := &explore.ScenarioNode{
		ID:            fmt.Sprintf("%s-n%d", explorationID, seq),
		ExplorationID: explorationID,
		Seq:           seq,
		Scorecard:     explore.Scorecard{Complexity: 0.6, InitialEffort: 0.5, PerceivedRisk: 0.4, TimeToValue: 0.5},
		Fitness:       explore.FitnessVector{SuccessRate: 0.3, FailRate: 0.5, DidNotTryRate: 0.2},
		Status:        explore.NodeActive,
		CreatedAt:     epoch,
		UpdatedAt:     epoch,
	}
	if seq == 0 {
		n.ID = explorationID + "-root"
		return n
	}
	n.ParentID = explorationID + "-root"
	n.Depth = 1
	n.Action = &explore.NodeAction{Description: "shorter signup", Category: explore.CategoryOnboarding, Rationale: "fewer fields"}
	n.Delta = explore.ScorecardDelta{InitialEffort: -0.1}
	n.SuccessDelta = 0.05
	return n
}

// Run executes the contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("save and load exploration", func(t *testing.T) {
		store := newStore(t)
		exp := NewExploration("x1")
		done := epoch.Add(time.Minute)
		exp.CompletedAt = &done
		exp.Status = explore.StatusGoalAchieved
		exp.WinnerID = "x1-n1"

		require.NoError(t, store.SaveExploration(ctx, exp))
		loaded, err := store.LoadExploration(ctx, "x1")
		require.NoError(t, err)
		assert.Equal(t, exp, loaded)

		// The caller's copy is not shared with the store.
		loaded.Status = explore.StatusRunning
		again, err := store.LoadExploration(ctx, "x1")
		require.NoError(t, err)
		assert.Equal(t, explore.StatusGoalAchieved, again.Status)
	})

	t.Run("load unknown exploration", func(t *testing.T) {
		store := newStore(t)
		_, err := store.LoadExploration(ctx, "missing")
		assert.ErrorIs(t, err, explore.ErrExplorationNotFound)
	})

	t.Run("nodes are listed in creation order", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.SaveExploration(ctx, NewExploration("x1")))
		for _, seq := range []int64{3, 0, 12, 1, 2} {
			require.NoError(t, store.SaveNode(ctx, NewNode("x1", seq)))
		}
		require.NoError(t, store.SaveNode(ctx, NewNode("other", 5)))

		nodes, err := store.ListNodes(ctx, "x1")
		require.NoError(t, err)
		require.Len(t, nodes, 5)
		for i, want := range []int64{0, 1, 2, 3, 12} {
			assert.Equal(t, want, nodes[i].Seq)
		}
		assert.Nil(t, nodes[0].Action)
		assert.Equal(t, NewNode("x1", 1), nodes[1])
	})

	t.Run("save node replaces previous version", func(t *testing.T) {
		store := newStore(t)
		n := NewNode("x1", 1)
		require.NoError(t, store.SaveNode(ctx, n))
		n.Status = explore.NodeExpansionFailed
		n.FailureKind = explore.ProposalTimeout
		require.NoError(t, store.SaveNode(ctx, n))

		nodes, err := store.ListNodes(ctx, "x1")
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		assert.Equal(t, explore.NodeExpansionFailed, nodes[0].Status)
		assert.Equal(t, explore.ProposalTimeout, nodes[0].FailureKind)
	})

	t.Run("list nodes of unknown exploration", func(t *testing.T) {
		store := newStore(t)
		nodes, err := store.ListNodes(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, nodes)
	})

	t.Run("commit writes exploration and nodes", func(t *testing.T) {
		store := newStore(t)
		exp := NewExploration("x1")
		require.NoError(t, store.Commit(ctx, exp, []*explore.ScenarioNode{NewNode("x1", 0)}))

		root := NewNode("x1", 0)
		root.Status = explore.NodeExpansionFailed
		exp.Iterations = 1
		exp.TotalLLMCalls = 3
		exp.Status = explore.StatusNoViablePaths
		require.NoError(t, store.Commit(ctx, exp, []*explore.ScenarioNode{root, NewNode("x1", 1)}))

		loaded, err := store.LoadExploration(ctx, "x1")
		require.NoError(t, err)
		assert.Equal(t, 3, loaded.TotalLLMCalls)
		assert.Equal(t, explore.StatusNoViablePaths, loaded.Status)

		nodes, err := store.ListNodes(ctx, "x1")
		require.NoError(t, err)
		require.Len(t, nodes, 2)
		assert.Equal(t, explore.NodeExpansionFailed, nodes[0].Status)
		assert.NoError(t, explore.ValidateForest(nodes))
	})

	t.Run("list explorations newest first", func(t *testing.T) {
		store := newStore(t)
		older := NewExploration("a")
		newer := NewExploration("b")
		newer.CreatedAt = epoch.Add(time.Hour)
		require.NoError(t, store.SaveExploration(ctx, older))
		require.NoError(t, store.SaveExploration(ctx, newer))

		exps, err := store.ListExplorations(ctx)
		require.NoError(t, err)
		require.Len(t, exps, 2)
		assert.Equal(t, "b", exps[0].ID)
		assert.Equal(t, "a", exps[1].ID)
	})
}
