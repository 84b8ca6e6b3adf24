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
	"context"
)

// PopulationRef identifies the persona population an experiment simulates.
// Its contents are opaque to the explorer and forwarded to the simulator.
type PopulationRef struct {
	ID   string `json:"id" yaml:"id"`
	Size int    `json:"size,omitempty" yaml:"size,omitempty"`
}

// Experiment is the subject of an exploration.
type Experiment struct {
	ID         string        `json:"id" yaml:"id"`
	Name       string        `json:"name" yaml:"name"`
	Product    string        `json:"product,omitempty" yaml:"product,omitempty"`
	Baseline   Scorecard     `json:"baseline" yaml:"baseline"`
	Population PopulationRef `json:"population" yaml:"population"`
}

// ExperimentSource resolves experiment references.
type ExperimentSource interface {
	// Experiment returns the experiment with the given id, or an error
	// wrapping ErrExperimentNotFound.
	Experiment(ctx context.Context, id string) (Experiment, error)
}

// ProposalContext is what a provider sees when asked to extend a node.
type ProposalContext struct {
	ExplorationID string
	ExperimentID  string
	Goal          Goal
	// Path runs from the root to the node being expanded, inclusive.
	Path []*ScenarioNode
	// Count is the number of proposals requested.
	Count      int
	Categories []ActionCategory
	// MaxDeltaMagnitude is the largest change accepted on any dimension.
	MaxDeltaMagnitude float64
}

// ActionProposalProvider produces candidate actions for a node.
//
// A single call is one attempt; retries are the caller's concern. Failures
// should be returned as a *ProposalError so they can be classified.
type ActionProposalProvider interface {
	Propose(ctx context.Context, node *ScenarioNode, pc ProposalContext) ([]ActionProposal, error)
}

// SimulationRequest asks the simulator to evaluate one scorecard.
type SimulationRequest struct {
	Scorecard  Scorecard     `json:"scorecard"`
	Population PopulationRef `json:"population"`
	Executions int           `json:"executions"`
	Seed       *int64        `json:"seed,omitempty"`
}

// SimulationResult holds the per-repetition outcome rates.
type SimulationResult struct {
	Runs []FitnessVector `json:"runs"`
}

// OutcomeSimulator runs the probabilistic outcome model.
type OutcomeSimulator interface {
	Simulate(ctx context.Context, req SimulationRequest) (SimulationResult, error)
}

// ExplorationStore persists explorations and their nodes.
//
// Implementations return copies; callers may mutate what they receive.
// LoadExploration returns an error wrapping ErrExplorationNotFound for unknown
// ids. ListNodes returns nodes ordered by Seq.
type ExplorationStore interface {
	SaveExploration(ctx context.Context, exp *Exploration) error
	SaveNode(ctx context.Context, node *ScenarioNode) error
	LoadExploration(ctx context.Context, id string) (*Exploration, error)
	ListNodes(ctx context.Context, explorationID string) ([]*ScenarioNode, error)

	// ListExplorations returns every stored exploration, newest first.
	ListExplorations(ctx context.Context) ([]*Exploration, error)

	// Commit writes nodes and exp in one atomic step. Either everything is
	// visible afterwards or nothing changed.
	Commit(ctx context.Context, exp *Exploration, nodes []*ScenarioNode) error
}
