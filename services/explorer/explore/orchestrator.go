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
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Orchestrator drives explorations: it creates them, advances them one depth
// per iteration, and answers tree queries.
//
// The orchestrator keeps no exploration state in memory between calls. Every
// iteration loads the exploration from the store and commits its changes in
// one atomic step at the end, so a failed iteration can simply be retried.
//
// Thread Safety: Safe for concurrent use. Iterations of the same exploration
// are serialized; different explorations proceed in parallel.
type Orchestrator struct {
	store       ExplorationStore
	experiments ExperimentSource
	provider    *ResilientProvider
	evaluator   *OutcomeEvaluator
	config      ServiceConfig

	logger *slog.Logger
	tracer *Tracer
	now    func() time.Time
	newID  func() string

	locks keyedLock
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer *Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDs overrides exploration and node id generation.
func WithIDs(gen func() string) Option {
	return func(o *Orchestrator) {
		if gen != nil {
			o.newID = gen
		}
	}
}

// NewOrchestrator creates an orchestrator.
//
// Inputs:
//   - store: Persistence for explorations and nodes.
//   - experiments: Resolves experiment ids to baselines and populations.
//   - provider: Proposal source. Wrapped with the configured call policy.
//   - simulator: Outcome model.
//   - config: Service configuration. Search, Proposal and Simulation are used.
//   - opts: Optional configuration.
//
// Outputs:
//   - *Orchestrator: Ready to use.
func NewOrchestrator(
	store ExplorationStore,
	experiments ExperimentSource,
	provider ActionProposalProvider,
	simulator OutcomeSimulator,
	config ServiceConfig,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		experiments: experiments,
		config:      config,
		logger:      slog.Default(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracer == nil {
		o.tracer = NewTracer(o.logger, config.Observability.TracingEnabled)
	}

	o.provider = NewResilientProvider(provider, config.Proposal,
		WithResilientLogger(o.logger),
		WithResilientTracer(o.tracer),
	)
	o.evaluator = NewOutcomeEvaluator(simulator, config.Simulation, config.Search.MaxDeltaMagnitude, o.logger, o.tracer)
	return o
}

// Provider returns the wrapped proposal provider.
func (o *Orchestrator) Provider() *ResilientProvider {
	return o.provider
}

// Start creates an exploration and its root node.
//
// The baseline is simulated once to seed the root's fitness. Invalid config
// or goal is rejected before anything is stored.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - experimentID: The experiment to explore.
//   - goal: The target condition.
//   - config: Search limits.
//
// Outputs:
//   - *Exploration: The new exploration in status running.
//   - error: ErrInvalidConfig, ErrInvalidGoal, ErrExperimentNotFound, a
//     simulation error, or ErrStore.
func (o *Orchestrator) Start(ctx context.Context, experimentID string, goal Goal, config ExplorationConfig) (_ *Exploration, err error) {
	ctx, span := o.tracer.TraceStart(ctx, experimentID, goal, config)
	defer func() { o.tracer.EndSpan(span, err) }()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := goal.Validate(); err != nil {
		return nil, err
	}

	experiment, err := o.experiments.Experiment(ctx, experimentID)
	if err != nil {
		return nil, fmt.Errorf("resolve experiment %q: %w", experimentID, err)
	}
	if err := experiment.Baseline.Validate(); err != nil {
		return nil, fmt.Errorf("experiment %q baseline: %w", experimentID, err)
	}

	fitness, err := o.evaluator.Simulate(ctx, experiment.Baseline, experiment.Population, config.ExecutionsPerNode)
	if err != nil {
		return nil, fmt.Errorf("evaluate baseline: %w", err)
	}

	now := o.now()
	exp := &Exploration{
		ID:              o.newID(),
		ExperimentID:    experiment.ID,
		Population:      experiment.Population,
		Baseline:        experiment.Baseline,
		BaselineFitness: fitness,
		Goal:            goal,
		Config:          config,
		Status:          StatusRunning,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	tree, err := o.newTree(exp.ID, nil)
	if err != nil {
		return nil, err
	}
	root, err := tree.CreateRoot(experiment.Baseline, fitness)
	if err != nil {
		return nil, err
	}
	exp.RootID = root.ID
	exp.TotalNodes = tree.Len()

	if err := o.store.Commit(ctx, exp, tree.Dirty()); err != nil {
		return nil, fmt.Errorf("%w: save new exploration: %w", ErrStore, err)
	}
	RecordNodesCreated(ctx, 1)

	o.logger.Info("exploration started",
		slog.String("exploration_id", exp.ID),
		slog.String("experiment_id", exp.ExperimentID),
		slog.String("goal", goal.String()),
		slog.Float64("baseline_success_rate", fitness.SuccessRate),
	)
	return exp.Clone(), nil
}

// proposalResult is the settled outcome of one frontier node's proposal call.
type proposalResult struct {
	proposals []ActionProposal
	attempts  int
	err       error
}

// RunIteration advances an exploration by one depth, or terminates it.
//
// A terminal exploration is returned unchanged. Proposal and simulation
// failures are absorbed into node statuses; only infrastructure failures are
// returned as errors, in which case nothing from this iteration is stored.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - id: The exploration id.
//
// Outputs:
//   - *Exploration: The exploration after the iteration.
//   - error: ErrExplorationNotFound, ErrTreeCorrupt, ErrStore, or
//     ErrConcurrentIteration if ctx ended while waiting for another iteration.
func (o *Orchestrator) RunIteration(ctx context.Context, id string) (*Exploration, error) {
	unlock, err := o.locks.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	exp, err := o.loadExploration(ctx, id)
	if err != nil {
		return nil, err
	}
	if exp.Status.IsTerminal() {
		return exp, nil
	}

	nodes, err := o.store.ListNodes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: list nodes: %w", ErrStore, err)
	}
	tree, err := o.newTree(id, nodes)
	if err != nil {
		return nil, err
	}

	start := o.now()
	ctx, span := o.tracer.TraceIteration(ctx, exp)
	logger := LoggerWithTrace(ctx, o.logger).With(slog.String("exploration_id", id))

	created, retained, err := o.iterate(ctx, logger, exp, tree)
	if err == nil {
		if cerr := o.store.Commit(ctx, exp, tree.Dirty()); cerr != nil {
			err = fmt.Errorf("%w: commit iteration: %w", ErrStore, cerr)
			logger.Error("iteration commit failed",
				slog.Int("depth", exp.CurrentDepth),
				slog.String("error", cerr.Error()),
			)
		}
	}
	o.tracer.EndIteration(span, exp, len(created), len(retained), err)
	RecordIteration(ctx, o.now().Sub(start))
	if err != nil {
		return nil, err
	}

	RecordNodesCreated(ctx, len(created))
	RecordNodesDominated(ctx, len(created)-len(retained))
	logger.Info("iteration complete",
		slog.Int("depth", exp.CurrentDepth),
		slog.String("status", exp.Status.String()),
		slog.Int("calls_used", exp.TotalLLMCalls),
		slog.Int("children_created", len(created)),
		slog.Int("children_retained", len(retained)),
	)
	if exp.Status.IsTerminal() {
		RecordTermination(ctx, exp.Status)
		logger.Info("exploration finished",
			slog.String("status", exp.Status.String()),
			slog.Int("total_nodes", exp.TotalNodes),
			slog.Int("calls_used", exp.TotalLLMCalls),
			slog.String("winner_id", exp.WinnerID),
		)
	}
	return exp.Clone(), nil
}

// iterate performs one iteration on the loaded state. It mutates exp and
// tree in memory only.
func (o *Orchestrator) iterate(ctx context.Context, logger *slog.Logger, exp *Exploration, tree *TreeManager) (created, retained []*ScenarioNode, err error) {
	now := o.now()
	exp.Iterations++
	exp.UpdatedAt = now

	frontier := tree.Frontier(exp.CurrentDepth)
	if len(frontier) == 0 {
		exp.finish(StatusNoViablePaths, now)
		return nil, nil, nil
	}

	// Slots refunded by rejected attempts are granted to the next nodes in
	// frontier order.
	budget := NewCallBudget(exp.Config.MaxLLMCalls, exp.TotalLLMCalls)
	var expanding []*ScenarioNode
	var results []proposalResult
	pending := frontier
	for len(pending) > 0 && ctx.Err() == nil {
		granted := budget.Grant(len(pending))
		if granted == 0 {
			break
		}
		batch := pending[:granted]
		pending = pending[granted:]
		batchResults, err := o.proposeAll(ctx, exp, tree, budget, batch)
		if err != nil {
			return nil, nil, err
		}
		expanding = append(expanding, batch...)
		results = append(results, batchResults...)
	}
	if len(pending) > 0 && ctx.Err() == nil {
		logger.Warn("call budget exhausted, skipping frontier nodes",
			slog.Int("depth", exp.CurrentDepth),
			slog.Int("skipped", len(pending)),
		)
	}

	// A cancelled caller must not turn its own cancellation into failed nodes.
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	exp.TotalLLMCalls += budget.Used()

	// Validate proposals before spending simulations on them.
	var jobs []evaluationJob
	for i, node := range expanding {
		res := results[i]
		if res.err != nil {
			kind := ClassifyProposalError(res.err)
			if err := tree.MarkExpansionFailed(node.ID, kind); err != nil {
				return nil, nil, err
			}
			RecordExpansionFailure(ctx, kind)
			logger.Warn("node expansion failed",
				slog.String("node_id", node.ID),
				slog.Int("depth", node.Depth),
				slog.Int("attempts", res.attempts),
				slog.String("kind", string(kind)),
				slog.String("error", res.err.Error()),
			)
			continue
		}
		for _, p := range res.proposals {
			if _, verr := p.Validate(o.config.Search.MaxDeltaMagnitude); verr != nil {
				logger.Warn("dropping invalid proposal",
					slog.String("node_id", node.ID),
					slog.String("category", string(p.Category)),
					slog.String("error", verr.Error()),
				)
				continue
			}
			jobs = append(jobs, evaluationJob{parent: node, proposal: p})
		}
	}

	evals := o.evaluator.evaluateAll(ctx, jobs, exp.Population, exp.Config.ExecutionsPerNode, o.config.Simulation.MaxConcurrency)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	outcomes := make(map[string][]Outcome, len(expanding))
	for i, job := range jobs {
		if evals[i].err != nil {
			logger.Warn("dropping candidate after simulation failure",
				slog.String("node_id", job.parent.ID),
				slog.String("error", evals[i].err.Error()),
			)
			continue
		}
		outcomes[job.parent.ID] = append(outcomes[job.parent.ID], Outcome{
			Proposal: job.proposal,
			Fitness:  evals[i].fitness,
		})
	}

	for _, node := range expanding {
		if len(outcomes[node.ID]) == 0 {
			continue
		}
		children, err := tree.Expand(node.ID, outcomes[node.ID])
		if err != nil {
			return nil, nil, err
		}
		created = append(created, children...)
	}
	exp.TotalNodes = tree.Len()

	// Siblings from different parents compete in one pool.
	nondominated := FilterDominated(created, o.config.Search.EqualityTolerance)
	retained = BeamSelect(nondominated, exp.Config.BeamWidth)

	keep := make(map[string]struct{}, len(retained))
	for _, n := range retained {
		keep[n.ID] = struct{}{}
	}
	for _, n := range created {
		if _, ok := keep[n.ID]; ok {
			continue
		}
		if err := tree.MarkDominated(n.ID); err != nil {
			return nil, nil, err
		}
	}

	if len(retained) == 0 {
		if exp.TotalLLMCalls >= exp.Config.MaxLLMCalls {
			exp.finish(StatusCostLimitReached, now)
		} else {
			exp.finish(StatusNoViablePaths, now)
		}
		return created, retained, nil
	}

	for _, n := range retained {
		if exp.Goal.SatisfiedBy(n.Fitness, o.config.Search.EqualityTolerance) {
			if err := tree.MarkWinner(n.ID); err != nil {
				return nil, nil, err
			}
			exp.WinnerID = n.ID
			exp.finish(StatusGoalAchieved, now)
			return created, retained, nil
		}
	}

	exp.CurrentDepth++
	switch {
	case exp.CurrentDepth >= exp.Config.MaxDepth:
		exp.finish(StatusDepthLimitReached, now)
	case exp.TotalLLMCalls >= exp.Config.MaxLLMCalls:
		exp.finish(StatusCostLimitReached, now)
	}
	return created, retained, nil
}

// proposeAll requests proposals for every node concurrently. Each node
// already holds one reserved budget slot.
func (o *Orchestrator) proposeAll(ctx context.Context, exp *Exploration, tree *TreeManager, budget *CallBudget, nodes []*ScenarioNode) ([]proposalResult, error) {
	// Paths are read before fan-out; the tree is not touched concurrently.
	contexts := make([]ProposalContext, len(nodes))
	for i, n := range nodes {
		path, err := tree.PathTo(n.ID)
		if err != nil {
			return nil, err
		}
		contexts[i] = ProposalContext{
			ExplorationID:     exp.ID,
			ExperimentID:      exp.ExperimentID,
			Goal:              exp.Goal,
			Path:              CloneNodes(path),
			Count:             o.config.Search.ProposalsPerNode,
			Categories:        Categories(),
			MaxDeltaMagnitude: o.config.Search.MaxDeltaMagnitude,
		}
	}

	snapshots := CloneNodes(nodes)
	return fanOut(ctx, snapshots, 0, func(ctx context.Context, i int, node *ScenarioNode) proposalResult {
		ctx, span := o.tracer.TraceProposal(ctx, node)
		proposals, attempts, err := o.provider.Propose(ctx, budget, node, contexts[i])
		if err == nil && len(proposals) > contexts[i].Count {
			proposals = proposals[:contexts[i].Count]
		}
		o.tracer.EndProposal(span, len(proposals), attempts, err)
		return proposalResult{proposals: proposals, attempts: attempts, err: err}
	}), nil
}

// Run calls RunIteration until the exploration is terminal.
//
// Outputs:
//   - *Exploration: The final exploration.
//   - error: An iteration error, or ctx.Err() if cancelled between iterations.
func (o *Orchestrator) Run(ctx context.Context, id string) (*Exploration, error) {
	for {
		exp, err := o.RunIteration(ctx, id)
		if err != nil {
			return nil, err
		}
		if exp.Status.IsTerminal() {
			return exp, nil
		}
		if err := ctx.Err(); err != nil {
			return exp, err
		}
	}
}

// Exploration returns the stored exploration.
func (o *Orchestrator) Exploration(ctx context.Context, id string) (*Exploration, error) {
	return o.loadExploration(ctx, id)
}

// List returns every stored exploration, newest first.
func (o *Orchestrator) List(ctx context.Context) ([]*Exploration, error) {
	exps, err := o.store.ListExplorations(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list explorations: %w", ErrStore, err)
	}
	return exps, nil
}

// Tree returns every node of an exploration in creation order.
func (o *Orchestrator) Tree(ctx context.Context, id string) ([]*ScenarioNode, error) {
	if _, err := o.loadExploration(ctx, id); err != nil {
		return nil, err
	}
	nodes, err := o.store.ListNodes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: list nodes: %w", ErrStore, err)
	}
	return nodes, nil
}

// WinningPath returns the root-to-winner sequence, or nil if no node won.
func (o *Orchestrator) WinningPath(ctx context.Context, id string) ([]*ScenarioNode, error) {
	exp, err := o.loadExploration(ctx, id)
	if err != nil {
		return nil, err
	}
	if exp.WinnerID == "" {
		return nil, nil
	}
	nodes, err := o.store.ListNodes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: list nodes: %w", ErrStore, err)
	}
	tree, err := o.newTree(id, nodes)
	if err != nil {
		return nil, err
	}
	return tree.PathTo(exp.WinnerID)
}

func (o *Orchestrator) loadExploration(ctx context.Context, id string) (*Exploration, error) {
	exp, err := o.store.LoadExploration(ctx, id)
	if err != nil {
		if errors.Is(err, ErrExplorationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load exploration: %w", ErrStore, err)
	}
	return exp, nil
}

func (o *Orchestrator) newTree(id string, nodes []*ScenarioNode) (*TreeManager, error) {
	return NewTreeManager(id, nodes,
		WithTreeLogger(o.logger),
		WithMaxDeltaMagnitude(o.config.Search.MaxDeltaMagnitude),
		WithClock(o.now),
		WithIDGenerator(o.newID),
	)
}

// keyedLock serializes work per key. Waiting honors context cancellation.
type keyedLock struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func (k *keyedLock) acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return func() {
			<-e.ch
			k.release(key, e)
		}, nil
	case <-ctx.Done():
		k.release(key, e)
		return nil, fmt.Errorf("%w: %w", ErrConcurrentIteration, ctx.Err())
	}
}

func (k *keyedLock) release(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}
