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
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Test doubles
// =============================================================================

type fakeStore struct {
	mu           sync.Mutex
	explorations map[string]*Exploration
	nodes        map[string]map[string]*ScenarioNode
	commitErr    error
	commits      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		explorations: make(map[string]*Exploration),
		nodes:        make(map[string]map[string]*ScenarioNode),
	}
}

func (s *fakeStore) SaveExploration(_ context.Context, exp *Exploration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.explorations[exp.ID] = exp.Clone()
	return nil
}

func (s *fakeStore) SaveNode(_ context.Context, n *ScenarioNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putNode(n)
	return nil
}

func (s *fakeStore) putNode(n *ScenarioNode) {
	m, ok := s.nodes[n.ExplorationID]
	if !ok {
		m = make(map[string]*ScenarioNode)
		s.nodes[n.ExplorationID] = m
	}
	m[n.ID] = n.Clone()
}

func (s *fakeStore) LoadExploration(_ context.Context, id string) (*Exploration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.explorations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExplorationNotFound, id)
	}
	return exp.Clone(), nil
}

func (s *fakeStore) ListNodes(_ context.Context, id string) ([]*ScenarioNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ScenarioNode, 0, len(s.nodes[id]))
	for _, n := range s.nodes[id] {
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *fakeStore) ListExplorations(_ context.Context) ([]*Exploration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Exploration, 0, len(s.explorations))
	for _, e := range s.explorations {
		out = append(out, e.Clone())
	}
	SortExplorations(out)
	return out, nil
}

func (s *fakeStore) Commit(_ context.Context, exp *Exploration, nodes []*ScenarioNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return s.commitErr
	}
	s.commits++
	s.explorations[exp.ID] = exp.Clone()
	for _, n := range nodes {
		s.putNode(n)
	}
	return nil
}

type fakeExperiments map[string]Experiment

func (f fakeExperiments) Experiment(_ context.Context, id string) (Experiment, error) {
	e, ok := f[id]
	if !ok {
		return Experiment{}, fmt.Errorf("%w: %s", ErrExperimentNotFound, id)
	}
	return e, nil
}

// riskKeyedSimulator returns a fixed success rate per perceived-risk level.
func riskKeyedSimulator(rates map[int]float64) *MockSimulator {
	return &MockSimulator{
		SimulateFunc: func(_ context.Context, req SimulationRequest) (SimulationResult, error) {
			key := int(math.Round(req.Scorecard.PerceivedRisk * 100))
			s, ok := rates[key]
			if !ok {
				return SimulationResult{}, fmt.Errorf("no outcome for risk %d", key)
			}
			runs := make([]FitnessVector, req.Executions)
			for i := range runs {
				runs[i] = FitnessVector{SuccessRate: s, FailRate: 1 - s}
			}
			return SimulationResult{Runs: runs}, nil
		},
	}
}

func riskProposal(name string, risk float64) ActionProposal {
	return ActionProposal{
		Description: name,
		Category:    CategoryOnboarding,
		Rationale:   "test " + name,
		Deltas:      map[Dimension]float64{DimPerceivedRisk: risk},
	}
}

func testServiceConfig() ServiceConfig {
	cfg := DefaultServiceConfig()
	cfg.Proposal.Timeout = time.Second
	cfg.Proposal.InitialBackoff = time.Millisecond
	cfg.Proposal.MaxBackoff = 2 * time.Millisecond
	cfg.Proposal.RateLimit = 0
	cfg.Proposal.CircuitBreaker = CircuitBreakerConfig{}
	cfg.Simulation.Timeout = time.Second
	return cfg
}

func newTestOrchestrator(store ExplorationStore, provider ActionProposalProvider, sim OutcomeSimulator) *Orchestrator {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return NewOrchestrator(store, fakeExperiments{
		"exp-checkout": {
			ID:         "exp-checkout",
			Name:       "Checkout redesign",
			Baseline:   testBaseline(),
			Population: PopulationRef{ID: "pop-1", Size: 200},
		},
	}, provider, sim, testServiceConfig(),
		WithNow(func() time.Time { return clock }),
		WithIDs(sequentialIDs("id-")),
	)
}

// =============================================================================
// Scenarios
// =============================================================================

func TestOrchestrator_GoalAchievedWithBestCandidate(t *testing.T) {
	store := newFakeStore()
	// Baseline risk 0.40 succeeds at 0.30; A, B and C land at 0.45, 0.42 and 0.38.
	sim := riskKeyedSimulator(map[int]float64{40: 0.30, 45: 0.45, 60: 0.42, 41: 0.38})
	provider := &MockProposalProvider{Proposals: []ActionProposal{
		riskProposal("A", 0.05),
		riskProposal("B", 0.20),
		riskProposal("C", 0.01),
	}}
	o := newTestOrchestrator(store, provider, sim)
	ctx := context.Background()

	exp, err := o.Start(ctx, "exp-checkout",
		Goal{Metric: MetricSuccessRate, Comparator: CompareGTE, Threshold: 0.40},
		ExplorationConfig{BeamWidth: 2, MaxDepth: 1, MaxLLMCalls: 10, ExecutionsPerNode: 3})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if exp.Status != StatusRunning || exp.TotalNodes != 1 || math.Abs(exp.BaselineFitness.SuccessRate-0.30) > 1e-9 {
		t.Fatalf("unexpected start state: %+v", exp)
	}

	exp, err = o.RunIteration(ctx, exp.ID)
	if err != nil {
		t.Fatalf("RunIteration: %v", err)
	}
	if exp.Status != StatusGoalAchieved {
		t.Fatalf("status = %s, want goal_achieved", exp.Status)
	}
	if exp.TotalLLMCalls != 1 || provider.Calls() != 1 {
		t.Errorf("calls: exploration %d, provider %d", exp.TotalLLMCalls, provider.Calls())
	}
	if exp.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	nodes, err := o.Tree(ctx, exp.ID)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	byName := make(map[string]*ScenarioNode)
	for _, n := range nodes {
		if n.Action != nil {
			byName[n.Action.Description] = n
		}
	}
	if len(nodes) != 4 || len(byName) != 3 {
		t.Fatalf("tree has %d nodes", len(nodes))
	}
	if byName["A"].Status != NodeWinner || exp.WinnerID != byName["A"].ID {
		t.Errorf("A status = %s, winner = %s", byName["A"].Status, exp.WinnerID)
	}
	// A beats B on success and risk; C keeps its place on lower risk.
	if byName["B"].Status != NodeDominated {
		t.Errorf("B status = %s, want dominated", byName["B"].Status)
	}
	if byName["C"].Status != NodeActive {
		t.Errorf("C status = %s, want active", byName["C"].Status)
	}

	path, err := o.WinningPath(ctx, exp.ID)
	if err != nil {
		t.Fatalf("WinningPath: %v", err)
	}
	if len(path) != 2 || path[0].ID != exp.RootID || path[1].ID != exp.WinnerID {
		t.Errorf("WinningPath = %v", path)
	}
}

func TestOrchestrator_AllProposalsFail(t *testing.T) {
	store := newFakeStore()
	provider := &MockProposalProvider{Err: NewProposalError(ProposalMalformedOutput, errors.New("not json"))}
	o := newTestOrchestrator(store, provider, &MockSimulator{})
	ctx := context.Background()

	exp, err := o.Start(ctx, "exp-checkout",
		Goal{Metric: MetricSuccessRate, Comparator: CompareGTE, Threshold: 0.8},
		DefaultExplorationConfig())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	exp, err = o.RunIteration(ctx, exp.ID)
	if err != nil {
		t.Fatalf("RunIteration: %v", err)
	}
	if exp.Status != StatusNoViablePaths {
		t.Errorf("status = %s, want no_viable_paths", exp.Status)
	}
	// Each attempt was issued and counts.
	if exp.TotalLLMCalls != 3 {
		t.Errorf("TotalLLMCalls = %d, want 3", exp.TotalLLMCalls)
	}

	nodes, _ := o.Tree(ctx, exp.ID)
	if len(nodes) != 1 || nodes[0].Status != NodeExpansionFailed || nodes[0].FailureKind != ProposalMalformedOutput {
		t.Errorf("root after failure: %+v", nodes[0])
	}
	if path, err := o.WinningPath(ctx, exp.ID); err != nil || path != nil {
		t.Errorf("WinningPath = %v, %v; want nil", path, err)
	}
}

func TestOrchestrator_BudgetCoversOnlyPartOfFrontier(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	exp := &Exploration{
		ID:           "x1",
		ExperimentID: "exp-checkout",
		Population:   PopulationRef{ID: "pop-1"},
		Baseline:     testBaseline(),
		Goal:         Goal{Metric: MetricSuccessRate, Comparator: CompareGTE, Threshold: 0.99},
		Config:       ExplorationConfig{BeamWidth: 2, MaxDepth: 4, MaxLLMCalls: 5, ExecutionsPerNode: 2},
		Status:       StatusRunning,
		RootID:       "root",
		CurrentDepth: 1,
		TotalNodes:   3,
		// Four calls already spent: one left for a two-node frontier.
		TotalLLMCalls: 4,
		Iterations:    1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	root := &ScenarioNode{ID: "root", ExplorationID: "x1", Scorecard: testBaseline(), Status: NodeActive,
		Fitness: FitnessVector{SuccessRate: 0.3, FailRate: 0.7}}
	first := &ScenarioNode{ID: "first", ExplorationID: "x1", ParentID: "root", Depth: 1, Seq: 1, Status: NodeActive,
		Scorecard: testBaseline(), Fitness: FitnessVector{SuccessRate: 0.4, FailRate: 0.6}, SuccessDelta: 0.1}
	second := &ScenarioNode{ID: "second", ExplorationID: "x1", ParentID: "root", Depth: 1, Seq: 2, Status: NodeActive,
		Scorecard: testBaseline(), Fitness: FitnessVector{SuccessRate: 0.35, FailRate: 0.65}, SuccessDelta: 0.05}
	if err := store.Commit(ctx, exp, []*ScenarioNode{root, first, second}); err != nil {
		t.Fatal(err)
	}

	provider := &MockProposalProvider{Proposals: []ActionProposal{riskProposal("calmer", -0.1)}}
	o := newTestOrchestrator(store, provider, &MockSimulator{})

	got, err := o.RunIteration(ctx, "x1")
	if err != nil {
		t.Fatalf("RunIteration: %v", err)
	}
	if provider.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1", provider.Calls())
	}
	if got.Status != StatusCostLimitReached || got.TotalLLMCalls != 5 {
		t.Errorf("status = %s, calls = %d", got.Status, got.TotalLLMCalls)
	}

	nodes, _ := o.Tree(ctx, "x1")
	var secondNode *ScenarioNode
	for _, n := range nodes {
		if n.ID == "second" {
			secondNode = n
		}
	}
	if secondNode == nil || secondNode.Status != NodeActive {
		t.Errorf("unexpanded node: %+v", secondNode)
	}
	if len(nodes) != 4 {
		t.Errorf("tree has %d nodes, want 4", len(nodes))
	}
}

func TestOrchestrator_RefundedSlotExpandsSkippedNode(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	exp := &Exploration{
		ID:           "x1",
		ExperimentID: "exp-checkout",
		Population:   PopulationRef{ID: "pop-1"},
		Baseline:     testBaseline(),
		Goal:         Goal{Metric: MetricSuccessRate, Comparator: CompareGTE, Threshold: 0.99},
		Config:       ExplorationConfig{BeamWidth: 3, MaxDepth: 4, MaxLLMCalls: 5, ExecutionsPerNode: 2},
		Status:       StatusRunning,
		RootID:       "root",
		CurrentDepth: 1,
		TotalNodes:   4,
		// Two calls left for a three-node frontier.
		TotalLLMCalls: 3,
		Iterations:    1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	root := &ScenarioNode{ID: "root", ExplorationID: "x1", Scorecard: testBaseline(), Status: NodeActive,
		Fitness: FitnessVector{SuccessRate: 0.3, FailRate: 0.7}}
	nodes := []*ScenarioNode{root}
	for i, id := range []string{"first", "second", "third"} {
		nodes = append(nodes, &ScenarioNode{ID: id, ExplorationID: "x1", ParentID: "root", Depth: 1, Seq: int64(i + 1),
			Status: NodeActive, Scorecard: testBaseline(),
			Fitness: FitnessVector{SuccessRate: 0.4, FailRate: 0.6}, SuccessDelta: 0.1 - 0.01*float64(i)})
	}
	if err := store.Commit(ctx, exp, nodes); err != nil {
		t.Fatal(err)
	}

	cfg := testServiceConfig()
	cfg.Proposal.CircuitBreaker = CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		OpenDuration:     time.Minute,
		HalfOpenMax:      1,
	}

	var o *Orchestrator
	// The half-open slot holder waits until its sibling has been rejected.
	provider := &MockProposalProvider{
		ProposeFunc: func(ctx context.Context, _ *ScenarioNode, _ ProposalContext) ([]ActionProposal, error) {
			deadline := time.Now().Add(2 * time.Second)
			for o.Provider().Breaker().Stats().TotalRejections == 0 && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
			return []ActionProposal{riskProposal("calmer", -0.1)}, nil
		},
	}
	o = NewOrchestrator(store, fakeExperiments{
		"exp-checkout": {ID: "exp-checkout", Name: "Checkout redesign", Baseline: testBaseline()},
	}, provider, &MockSimulator{}, cfg,
		WithNow(func() time.Time { return now }),
		WithIDs(sequentialIDs("id-")),
	)

	// Open the circuit, then move its clock past OpenDuration so the next
	// attempt is the single half-open trial.
	br := o.Provider().Breaker()
	br.RecordFailure()
	br.now = func() time.Time { return time.Now().Add(time.Hour) }

	got, err := o.RunIteration(ctx, "x1")
	if err != nil {
		t.Fatalf("RunIteration: %v", err)
	}
	if provider.Calls() != 2 {
		t.Errorf("provider calls = %d, want 2", provider.Calls())
	}
	if got.Status != StatusCostLimitReached || got.TotalLLMCalls != 5 {
		t.Errorf("status = %s, calls = %d", got.Status, got.TotalLLMCalls)
	}

	tree, _ := o.Tree(ctx, "x1")
	failed := 0
	thirdExpanded := false
	for _, n := range tree {
		if n.Status == NodeExpansionFailed {
			failed++
			if n.FailureKind != ProposalUnavailable {
				t.Errorf("%s failure kind = %s, want unavailable", n.ID, n.FailureKind)
			}
			if n.ID == "third" {
				t.Error("third node was rejected instead of expanded")
			}
		}
		if n.ParentID == "third" {
			thirdExpanded = true
		}
	}
	if failed != 1 {
		t.Errorf("expansion_failed nodes = %d, want 1", failed)
	}
	if !thirdExpanded {
		t.Error("refunded slot was not granted to the skipped third node")
	}
}

// =============================================================================
// Properties
// =============================================================================

func TestOrchestrator_TerminalIsNoOp(t *testing.T) {
	store := newFakeStore()
	provider := &MockProposalProvider{Err: errors.New("down")}
	o := newTestOrchestrator(store, provider, &MockSimulator{})
	ctx := context.Background()

	exp, _ := o.Start(ctx, "exp-checkout", Goal{Metric: MetricSuccessRate, Comparator: CompareGTE, Threshold: 0.8}, DefaultExplorationConfig())
	done, err := o.RunIteration(ctx, exp.ID)
	if err != nil || !done.Status.IsTerminal() {
		t.Fatalf("expected terminal state, got %v, %v", done, err)
	}
	calls := provider.Calls()
	commits := store.commits

	again, err := o.RunIteration(ctx, exp.ID)
	if err != nil {
		t.Fatalf("RunIteration on terminal: %v", err)
	}
	if !reflect.DeepEqual(again, done) {
		t.Errorf("terminal exploration changed:\n got %+v\nwant %+v", again, done)
	}
	if provider.Calls() != calls || store.commits != commits {
		t.Error("terminal iteration performed work")
	}
}

func TestOrchestrator_RunNeverExceedsCallBudget(t *testing.T) {
	for _, limit := range []int{1, 2, 5, 7, 13} {
		t.Run(fmt.Sprintf("max_llm_calls=%d", limit), func(t *testing.T) {
			store := newFakeStore()
			var mu sync.Mutex
			n := 0
			provider := &MockProposalProvider{
				ProposeFunc: func(_ context.Context, _ *ScenarioNode, _ ProposalContext) ([]ActionProposal, error) {
					mu.Lock()
					n++
					k := n
					mu.Unlock()
					if k%3 == 0 {
						return nil, NewProposalError(ProposalRateLimited, errors.New("slow down"))
					}
					return []ActionProposal{
						{Description: "simplify", Category: CategorySimplification, Rationale: "r",
							Deltas: map[Dimension]float64{DimComplexity: -0.05, DimPerceivedRisk: 0.02}},
						{Description: "faster value", Category: CategoryFeature, Rationale: "r",
							Deltas: map[Dimension]float64{DimTimeToValue: -0.04 * float64(k%4)}},
					}, nil
				},
			}
			o := newTestOrchestrator(store, provider, &MockSimulator{})
			ctx := context.Background()

			exp, err := o.Start(ctx, "exp-checkout",
				Goal{Metric: MetricSuccessRate, Comparator: CompareGTE, Threshold: 0.99},
				ExplorationConfig{BeamWidth: 3, MaxDepth: 10, MaxLLMCalls: limit, ExecutionsPerNode: 2})
			if err != nil {
				t.Fatalf("Start: %v", err)
			}
			final, err := o.Run(ctx, exp.ID)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if !final.Status.IsTerminal() {
				t.Fatalf("status = %s, want terminal", final.Status)
			}
			if final.TotalLLMCalls > limit {
				t.Errorf("TotalLLMCalls = %d exceeds %d", final.TotalLLMCalls, limit)
			}
			if final.TotalLLMCalls != provider.Calls() {
				t.Errorf("TotalLLMCalls = %d, provider saw %d", final.TotalLLMCalls, provider.Calls())
			}

			nodes, _ := o.Tree(ctx, exp.ID)
			if err := ValidateForest(nodes); err != nil {
				t.Errorf("forest invalid: %v", err)
			}
			for _, node := range nodes {
				if node.Depth > final.Config.MaxDepth {
					t.Errorf("node %s at depth %d", node.ID, node.Depth)
				}
			}
			if final.TotalNodes != len(nodes) {
				t.Errorf("TotalNodes = %d, stored %d", final.TotalNodes, len(nodes))
			}
		})
	}
}

func TestOrchestrator_DepthLimit(t *testing.T) {
	store := newFakeStore()
	provider := &MockProposalProvider{Proposals: []ActionProposal{
		{Description: "trim", Category: CategorySimplification, Rationale: "r", Deltas: map[Dimension]float64{DimComplexity: -0.05}},
	}}
	o := newTestOrchestrator(store, provider, &MockSimulator{})
	ctx := context.Background()

	exp, _ := o.Start(ctx, "exp-checkout", Goal{Metric: MetricSuccessRate, Comparator: CompareGTE, Threshold: 0.99},
		ExplorationConfig{BeamWidth: 1, MaxDepth: 2, MaxLLMCalls: 50, ExecutionsPerNode: 1})
	final, err := o.Run(ctx, exp.ID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if final.Status != StatusDepthLimitReached || final.CurrentDepth != 2 || final.Iterations != 2 {
		t.Errorf("final = %s depth %d iterations %d", final.Status, final.CurrentDepth, final.Iterations)
	}
}

func TestOrchestrator_CommitFailureIsRetryable(t *testing.T) {
	store := newFakeStore()
	sim := riskKeyedSimulator(map[int]float64{40: 0.30, 45: 0.45})
	provider := &MockProposalProvider{Proposals: []ActionProposal{riskProposal("A", 0.05)}}
	o := newTestOrchestrator(store, provider, sim)
	ctx := context.Background()

	exp, err := o.Start(ctx, "exp-checkout", Goal{Metric: MetricSuccessRate, Comparator: CompareGTE, Threshold: 0.4},
		ExplorationConfig{BeamWidth: 2, MaxDepth: 3, MaxLLMCalls: 10, ExecutionsPerNode: 1})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	before, _ := store.LoadExploration(ctx, exp.ID)

	store.commitErr = errors.New("disk full")
	if _, err := o.RunIteration(ctx, exp.ID); !errors.Is(err, ErrStore) {
		t.Fatalf("err = %v, want ErrStore", err)
	}
	after, _ := store.LoadExploration(ctx, exp.ID)
	if !reflect.DeepEqual(before, after) {
		t.Errorf("failed iteration changed stored state:\n%+v\n%+v", before, after)
	}
	if nodes, _ := store.ListNodes(ctx, exp.ID); len(nodes) != 1 {
		t.Errorf("failed iteration stored %d nodes", len(nodes))
	}

	store.commitErr = nil
	got, err := o.RunIteration(ctx, exp.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got.Status != StatusGoalAchieved || got.Iterations != 1 || got.TotalLLMCalls != 1 {
		t.Errorf("after retry: %+v", got)
	}
}

func TestOrchestrator_SimulationFailureDropsCandidate(t *testing.T) {
	store := newFakeStore()
	// No outcome is defined for risk 0.60, so B's simulation fails.
	sim := riskKeyedSimulator(map[int]float64{40: 0.30, 45: 0.35})
	provider := &MockProposalProvider{Proposals: []ActionProposal{riskProposal("A", 0.05), riskProposal("B", 0.20)}}
	o := newTestOrchestrator(store, provider, sim)
	ctx := context.Background()

	exp, _ := o.Start(ctx, "exp-checkout", Goal{Metric: MetricSuccessRate, Comparator: CompareGTE, Threshold: 0.9},
		ExplorationConfig{BeamWidth: 2, MaxDepth: 1, MaxLLMCalls: 10, ExecutionsPerNode: 1})
	exp, err := o.RunIteration(ctx, exp.ID)
	if err != nil {
		t.Fatalf("RunIteration: %v", err)
	}
	nodes, _ := o.Tree(ctx, exp.ID)
	if len(nodes) != 2 || nodes[1].Action.Description != "A" {
		t.Errorf("expected only A to become a node, got %v", nodes)
	}
	if exp.Status != StatusDepthLimitReached {
		t.Errorf("status = %s", exp.Status)
	}
}

func TestOrchestrator_StartRejectsBadInput(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(store, &MockProposalProvider{}, &MockSimulator{})
	ctx := context.Background()
	goal := Goal{Metric: MetricSuccessRate, Comparator: CompareGTE, Threshold: 0.5}

	tests := []struct {
		name       string
		experiment string
		goal       Goal
		config     ExplorationConfig
		want       error
	}{
		{"zero beam width", "exp-checkout", goal, ExplorationConfig{BeamWidth: 0, MaxDepth: 2, MaxLLMCalls: 5, ExecutionsPerNode: 1}, ErrInvalidConfig},
		{"zero depth", "exp-checkout", goal, ExplorationConfig{BeamWidth: 2, MaxDepth: 0, MaxLLMCalls: 5, ExecutionsPerNode: 1}, ErrInvalidConfig},
		{"malformed goal", "exp-checkout", Goal{Metric: "revenue", Comparator: CompareGTE, Threshold: 0.5}, DefaultExplorationConfig(), ErrInvalidGoal},
		{"unknown experiment", "exp-missing", goal, DefaultExplorationConfig(), ErrExperimentNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := o.Start(ctx, tt.experiment, tt.goal, tt.config); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if len(store.explorations) != 0 {
		t.Errorf("rejected starts stored %d explorations", len(store.explorations))
	}
}

func TestOrchestrator_UnknownExploration(t *testing.T) {
	o := newTestOrchestrator(newFakeStore(), &MockProposalProvider{}, &MockSimulator{})
	ctx := context.Background()

	if _, err := o.RunIteration(ctx, "nope"); !errors.Is(err, ErrExplorationNotFound) {
		t.Errorf("RunIteration: err = %v", err)
	}
	if _, err := o.Tree(ctx, "nope"); !errors.Is(err, ErrExplorationNotFound) {
		t.Errorf("Tree: err = %v", err)
	}
	if _, err := o.WinningPath(ctx, "nope"); !errors.Is(err, ErrExplorationNotFound) {
		t.Errorf("WinningPath: err = %v", err)
	}
}

func TestOrchestrator_IterationsAreSerialized(t *testing.T) {
	o := newTestOrchestrator(newFakeStore(), &MockProposalProvider{}, &MockSimulator{})
	unlock, err := o.locks.acquire(context.Background(), "x1")
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := o.RunIteration(ctx, "x1"); !errors.Is(err, ErrConcurrentIteration) {
		t.Errorf("err = %v, want ErrConcurrentIteration", err)
	}
}

func TestOrchestrator_ListNewestFirst(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(store, &MockProposalProvider{}, &MockSimulator{})
	ctx := context.Background()
	goal := Goal{Metric: MetricSuccessRate, Comparator: CompareGTE, Threshold: 0.5}

	first, _ := o.Start(ctx, "exp-checkout", goal, DefaultExplorationConfig())
	second, _ := o.Start(ctx, "exp-checkout", goal, DefaultExplorationConfig())

	got, err := o.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	// Same clock, so ids break the tie.
	if len(got) != 2 || got[0].ID != first.ID || got[1].ID != second.ID {
		t.Errorf("List = %v", got)
	}
}
