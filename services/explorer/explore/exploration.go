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
	"time"
)

// ExplorationStatus is the state of an exploration session.
//
// Every status except StatusRunning is terminal.
type ExplorationStatus string

const (
	StatusRunning           ExplorationStatus = "running"
	StatusGoalAchieved      ExplorationStatus = "goal_achieved"
	StatusDepthLimitReached ExplorationStatus = "depth_limit_reached"
	StatusCostLimitReached  ExplorationStatus = "cost_limit_reached"
	StatusNoViablePaths     ExplorationStatus = "no_viable_paths"
)

// IsTerminal returns true if no further iterations may run.
func (s ExplorationStatus) IsTerminal() bool {
	return s != StatusRunning
}

// String returns the string representation of the status.
func (s ExplorationStatus) String() string {
	return string(s)
}

// Exploration is one search session over an experiment.
//
// The counters and Status are owned by the Orchestrator; nothing else writes them.
type Exploration struct {
	ID           string        `json:"id"`
	ExperimentID string        `json:"experiment_id"`
	Population   PopulationRef `json:"population"`

	Baseline        Scorecard     `json:"baseline"`
	BaselineFitness FitnessVector `json:"baseline_fitness"`

	Goal   Goal              `json:"goal"`
	Config ExplorationConfig `json:"config"`
	Status ExplorationStatus `json:"status"`

	RootID   string `json:"root_id"`
	WinnerID string `json:"winner_id,omitempty"`

	CurrentDepth  int `json:"current_depth"`
	TotalNodes    int `json:"total_nodes"`
	TotalLLMCalls int `json:"total_llm_calls"`
	Iterations    int `json:"iterations"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of the exploration.
func (e *Exploration) Clone() *Exploration {
	if e == nil {
		return nil
	}
	c := *e
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// RemainingCalls returns how many proposal calls the budget still allows.
func (e *Exploration) RemainingCalls() int {
	if r := e.Config.MaxLLMCalls - e.TotalLLMCalls; r > 0 {
		return r
	}
	return 0
}

// finish moves the exploration into a terminal status.
func (e *Exploration) finish(status ExplorationStatus, now time.Time) {
	e.Status = status
	e.UpdatedAt = now
	e.CompletedAt = &now
}

// SortExplorations orders explorations newest first, breaking ties by id.
func SortExplorations(exps []*Exploration) {
	sort.Slice(exps, func(i, j int) bool {
		if !exps[i].CreatedAt.Equal(exps[j].CreatedAt) {
			return exps[i].CreatedAt.After(exps[j].CreatedAt)
		}
		return exps[i].ID < exps[j].ID
	})
}
