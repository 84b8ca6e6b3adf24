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
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Outcome is an evaluated proposal ready to become a child node.
type Outcome struct {
	Proposal ActionProposal
	Fitness  FitnessVector
}

// TreeManager owns the scenario node graph of one exploration.
//
// It is an append-only arena indexed by node id. Nodes are never deleted;
// only their Status changes. Every node created or changed since the manager
// was built is reported by Dirty so the caller can persist exactly those.
//
// Thread Safety: NOT safe for concurrent use. The orchestrator serializes
// access per exploration.
type TreeManager struct {
	explorationID     string
	maxDeltaMagnitude float64
	logger            *slog.Logger
	now               func() time.Time
	newID             func() string

	nodes    []*ScenarioNode
	byID     map[string]*ScenarioNode
	children map[string][]*ScenarioNode
	root     *ScenarioNode
	nextSeq  int64
	dirty    map[string]struct{}
}

// TreeOption configures a TreeManager.
type TreeOption func(*TreeManager)

// WithTreeLogger sets the logger.
func WithTreeLogger(logger *slog.Logger) TreeOption {
	return func(t *TreeManager) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithMaxDeltaMagnitude sets the largest accepted per-dimension delta.
func WithMaxDeltaMagnitude(m float64) TreeOption {
	return func(t *TreeManager) {
		t.maxDeltaMagnitude = m
	}
}

// WithClock overrides the time source for node timestamps.
func WithClock(now func() time.Time) TreeOption {
	return func(t *TreeManager) {
		t.now = now
	}
}

// WithIDGenerator overrides node id generation.
func WithIDGenerator(gen func() string) TreeOption {
	return func(t *TreeManager) {
		t.newID = gen
	}
}

// NewTreeManager builds a manager from previously persisted nodes.
//
// Inputs:
//   - explorationID: The exploration the nodes belong to.
//   - nodes: Stored nodes in any order. May be empty for a new exploration.
//   - opts: Optional configuration.
//
// Outputs:
//   - *TreeManager: The manager. The nodes are copied.
//   - error: Wraps ErrTreeCorrupt if the nodes do not form a valid tree.
func NewTreeManager(explorationID string, nodes []*ScenarioNode, opts ...TreeOption) (*TreeManager, error) {
	t := &TreeManager{
		explorationID:     explorationID,
		maxDeltaMagnitude: 1.0,
		logger:            slog.Default(),
		now:               time.Now,
		newID:             uuid.NewString,
		byID:              make(map[string]*ScenarioNode, len(nodes)),
		children:          make(map[string][]*ScenarioNode),
		dirty:             make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	if err := ValidateForest(nodes); err != nil {
		return nil, err
	}

	sorted := CloneNodes(nodes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })
	for _, n := range sorted {
		if n.ExplorationID != explorationID {
			return nil, fmt.Errorf("%w: node %s belongs to exploration %s", ErrTreeCorrupt, n.ID, n.ExplorationID)
		}
		t.insert(n)
		if n.Seq >= t.nextSeq {
			t.nextSeq = n.Seq + 1
		}
	}
	t.dirty = make(map[string]struct{})
	return t, nil
}

func (t *TreeManager) insert(n *ScenarioNode) {
	t.nodes = append(t.nodes, n)
	t.byID[n.ID] = n
	if n.IsRoot() {
		t.root = n
	} else {
		t.children[n.ParentID] = append(t.children[n.ParentID], n)
	}
	t.dirty[n.ID] = struct{}{}
}

// CreateRoot creates the depth 0 node seeded from the baseline.
//
// Inputs:
//   - baseline: The experiment's baseline scorecard.
//   - fitness: The simulated fitness of the baseline.
//
// Outputs:
//   - *ScenarioNode: The root.
//   - error: Wraps ErrTreeCorrupt if a root already exists.
func (t *TreeManager) CreateRoot(baseline Scorecard, fitness FitnessVector) (*ScenarioNode, error) {
	if t.root != nil {
		return nil, fmt.Errorf("%w: exploration %s already has root %s", ErrTreeCorrupt, t.explorationID, t.root.ID)
	}
	if err := baseline.Validate(); err != nil {
		return nil, fmt.Errorf("baseline scorecard: %w", err)
	}
	if err := fitness.Validate(); err != nil {
		return nil, fmt.Errorf("baseline fitness: %w", err)
	}

	now := t.now()
	root := &ScenarioNode{
		ID:            t.newID(),
		ExplorationID: t.explorationID,
		Depth:         0,
		Seq:           t.nextSeq,
		Scorecard:     baseline,
		Fitness:       fitness,
		Status:        NodeActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	t.nextSeq++
	t.insert(root)
	return root, nil
}

// Expand creates one active child of parent per accepted outcome.
//
// Each outcome's proposal is re-validated and its deltas applied to the
// parent's scorecard with clamping. Outcomes with an invalid proposal or
// fitness are dropped and logged, never turned into nodes.
//
// Inputs:
//   - parentID: The node being expanded. Must be active.
//   - outcomes: Evaluated proposals, in the order children should be created.
//
// Outputs:
//   - []*ScenarioNode: The created children.
//   - error: ErrNodeNotFound or ErrInvalidTransition for a bad parent.
func (t *TreeManager) Expand(parentID string, outcomes []Outcome) ([]*ScenarioNode, error) {
	parent, ok := t.byID[parentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, parentID)
	}
	if parent.Status != NodeActive {
		return nil, fmt.Errorf("%w: cannot expand %s node %s", ErrInvalidTransition, parent.Status, parentID)
	}

	var rootSuccess float64
	if t.root != nil {
		rootSuccess = t.root.Fitness.SuccessRate
	}

	created := make([]*ScenarioNode, 0, len(outcomes))
	for _, o := range outcomes {
		delta, err := o.Proposal.Validate(t.maxDeltaMagnitude)
		if err != nil {
			t.logger.Warn("dropping invalid proposal",
				slog.String("exploration_id", t.explorationID),
				slog.String("node_id", parentID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := o.Fitness.Validate(); err != nil {
			t.logger.Warn("dropping candidate with invalid fitness",
				slog.String("exploration_id", t.explorationID),
				slog.String("node_id", parentID),
				slog.String("error", err.Error()),
			)
			continue
		}

		now := t.now()
		child := &ScenarioNode{
			ID:            t.newID(),
			ExplorationID: t.explorationID,
			ParentID:      parent.ID,
			Depth:         parent.Depth + 1,
			Seq:           t.nextSeq,
			Action: &NodeAction{
				Description: o.Proposal.Description,
				Category:    o.Proposal.Category,
				Rationale:   o.Proposal.Rationale,
			},
			Delta:           delta,
			Scorecard:       parent.Scorecard.Apply(delta),
			Fitness:         o.Fitness,
			SuccessDelta:    o.Fitness.SuccessRate - rootSuccess,
			AccumulatedRisk: parent.AccumulatedRisk + delta.PerceivedRisk,
			Status:          NodeActive,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		t.nextSeq++
		t.insert(child)
		created = append(created, child)
	}
	return created, nil
}

// MarkExpansionFailed records that no proposals could be obtained for a node.
func (t *TreeManager) MarkExpansionFailed(id string, kind ProposalErrorKind) error {
	n, err := t.transition(id, NodeExpansionFailed)
	if err != nil {
		return err
	}
	n.FailureKind = kind
	return nil
}

// MarkDominated prunes a node from future frontiers. The node is kept.
func (t *TreeManager) MarkDominated(id string) error {
	_, err := t.transition(id, NodeDominated)
	return err
}

// MarkWinner marks the node that satisfied the goal.
func (t *TreeManager) MarkWinner(id string) error {
	_, err := t.transition(id, NodeWinner)
	return err
}

// transition moves an active node into a final status.
func (t *TreeManager) transition(id string, to NodeStatus) (*ScenarioNode, error) {
	n, ok := t.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if n.Status != NodeActive {
		return nil, fmt.Errorf("%w: %s -> %s for node %s", ErrInvalidTransition, n.Status, to, id)
	}
	n.Status = to
	n.UpdatedAt = t.now()
	t.dirty[id] = struct{}{}
	return n, nil
}

// Frontier returns the active nodes at depth, in creation order.
func (t *TreeManager) Frontier(depth int) []*ScenarioNode {
	var out []*ScenarioNode
	for _, n := range t.nodes {
		if n.Status == NodeActive && n.Depth == depth {
			out = append(out, n)
		}
	}
	return out
}

// Root returns the root node, or nil if none was created.
func (t *TreeManager) Root() *ScenarioNode {
	return t.root
}

// Node returns the node with the given id.
func (t *TreeManager) Node(id string) (*ScenarioNode, bool) {
	n, ok := t.byID[id]
	return n, ok
}

// Children returns the children of a node in creation order.
func (t *TreeManager) Children(id string) []*ScenarioNode {
	return t.children[id]
}

// Len returns the number of nodes in the tree.
func (t *TreeManager) Len() int {
	return len(t.nodes)
}

// Nodes returns every node in creation order.
func (t *TreeManager) Nodes() []*ScenarioNode {
	out := make([]*ScenarioNode, len(t.nodes))
	copy(out, t.nodes)
	return out
}

// PathTo returns the nodes from the root to id, inclusive.
func (t *TreeManager) PathTo(id string) ([]*ScenarioNode, error) {
	n, ok := t.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	var path []*ScenarioNode
	for n != nil {
		path = append(path, n)
		if n.IsRoot() {
			break
		}
		n = t.byID[n.ParentID]
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// CountByStatus returns the number of nodes in each status.
func (t *TreeManager) CountByStatus() map[NodeStatus]int {
	counts := make(map[NodeStatus]int)
	for _, n := range t.nodes {
		counts[n.Status]++
	}
	return counts
}

// Dirty returns nodes created or changed since the manager was built, in
// creation order.
func (t *TreeManager) Dirty() []*ScenarioNode {
	var out []*ScenarioNode
	for _, n := range t.nodes {
		if _, ok := t.dirty[n.ID]; ok {
			out = append(out, n)
		}
	}
	return out
}

// ValidateForest checks the structural invariants of a node set.
//
// The set must have exactly one root at depth 0 (or be empty), every other
// node's parent must be present with depth one less, node ids must be unique
// and known statuses used. Since depth strictly increases along every edge,
// no node can be its own ancestor.
//
// Outputs:
//   - error: Wraps ErrTreeCorrupt describing the first violation.
func ValidateForest(nodes []*ScenarioNode) error {
	if len(nodes) == 0 {
		return nil
	}

	byID := make(map[string]*ScenarioNode, len(nodes))
	roots := 0
	for _, n := range nodes {
		if n == nil {
			return fmt.Errorf("%w: nil node", ErrTreeCorrupt)
		}
		if _, dup := byID[n.ID]; dup {
			return fmt.Errorf("%w: duplicate node id %s", ErrTreeCorrupt, n.ID)
		}
		if !n.Status.IsValid() {
			return fmt.Errorf("%w: node %s has unknown status %q", ErrTreeCorrupt, n.ID, n.Status)
		}
		byID[n.ID] = n
		if n.IsRoot() {
			roots++
			if n.Depth != 0 {
				return fmt.Errorf("%w: root %s at depth %d", ErrTreeCorrupt, n.ID, n.Depth)
			}
		}
	}
	if roots != 1 {
		return fmt.Errorf("%w: %d roots", ErrTreeCorrupt, roots)
	}

	for _, n := range nodes {
		if n.IsRoot() {
			continue
		}
		p, ok := byID[n.ParentID]
		if !ok {
			return fmt.Errorf("%w: node %s has unknown parent %s", ErrTreeCorrupt, n.ID, n.ParentID)
		}
		if n.Depth != p.Depth+1 {
			return fmt.Errorf("%w: node %s at depth %d under parent at depth %d", ErrTreeCorrupt, n.ID, n.Depth, p.Depth)
		}
	}
	return nil
}
