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
	"time"
)

// NodeStatus represents the lifecycle state of a scenario node.
type NodeStatus string

const (
	// NodeActive nodes are eligible for expansion when they sit at the current depth.
	NodeActive NodeStatus = "active"
	// NodeDominated nodes lost the Pareto filter or the beam cut. Kept for explainability.
	NodeDominated NodeStatus = "dominated"
	// NodeWinner is the node whose fitness satisfied the goal.
	NodeWinner NodeStatus = "winner"
	// NodeExpansionFailed nodes could not obtain proposals after all retries.
	NodeExpansionFailed NodeStatus = "expansion_failed"
)

// String returns the string representation of the status.
func (s NodeStatus) String() string {
	return string(s)
}

// IsValid reports whether s is a known node status.
func (s NodeStatus) IsValid() bool {
	switch s {
	case NodeActive, NodeDominated, NodeWinner, NodeExpansionFailed:
		return true
	}
	return false
}

// NodeAction describes the change that produced a node from its parent.
type NodeAction struct {
	Description string         `json:"description"`
	Category    ActionCategory `json:"category"`
	Rationale   string         `json:"rationale"`
}

// ScenarioNode is one candidate product state in the exploration tree.
//
// Nodes are owned by a TreeManager. Other components receive copies and must
// not change Status directly.
type ScenarioNode struct {
	ID            string `json:"id"`
	ExplorationID string `json:"exploration_id"`
	// ParentID is empty for the root.
	ParentID string `json:"parent_id,omitempty"`
	Depth    int    `json:"depth"`
	// Seq is the creation order within the exploration, starting at 0 for the root.
	Seq int64 `json:"seq"`

	// Action is nil for the root.
	Action *NodeAction `json:"action,omitempty"`

	Delta     ScorecardDelta `json:"delta"`
	Scorecard Scorecard      `json:"scorecard"`
	Fitness   FitnessVector  `json:"fitness"`

	// SuccessDelta is Fitness.SuccessRate minus the root's success rate.
	SuccessDelta float64 `json:"success_delta"`
	// AccumulatedRisk is the sum of perceived-risk deltas from the root to this node.
	AccumulatedRisk float64 `json:"accumulated_risk"`

	Status NodeStatus `json:"status"`
	// FailureKind records why expansion failed. Only set for NodeExpansionFailed.
	FailureKind ProposalErrorKind `json:"failure_kind,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRoot returns true if this is the root node.
func (n *ScenarioNode) IsRoot() bool {
	return n.ParentID == ""
}

// Clone returns a deep copy of the node.
func (n *ScenarioNode) Clone() *ScenarioNode {
	if n == nil {
		return nil
	}
	c := *n
	if n.Action != nil {
		a := *n.Action
		c.Action = &a
	}
	return &c
}

// String returns a short description of the node.
func (n *ScenarioNode) String() string {
	return fmt.Sprintf("ScenarioNode{id=%s, depth=%d, status=%s, success=%.3f, risk=%.3f}",
		n.ID, n.Depth, n.Status, n.Fitness.SuccessRate, n.AccumulatedRisk)
}

// CloneNodes deep-copies a node slice.
func CloneNodes(nodes []*ScenarioNode) []*ScenarioNode {
	if nodes == nil {
		return nil
	}
	out := make([]*ScenarioNode, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}
