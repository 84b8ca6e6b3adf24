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
	"fmt"
	"log/slog"
	"time"
)

// OutcomeEvaluator turns a scorecard into a comparable fitness vector.
//
// Thread Safety: Safe for concurrent use if the simulator is.
type OutcomeEvaluator struct {
	simulator         OutcomeSimulator
	timeout           time.Duration
	seed              *int64
	maxDeltaMagnitude float64
	logger            *slog.Logger
	tracer            *Tracer
}

// NewOutcomeEvaluator creates an evaluator.
//
// Inputs:
//   - simulator: The outcome model.
//   - config: Per-call timeout and optional seed.
//   - maxDeltaMagnitude: Largest accepted per-dimension delta.
//   - logger: Logger (nil for the default logger).
//   - tracer: Tracer (nil for a disabled tracer).
func NewOutcomeEvaluator(simulator OutcomeSimulator, config SimulationConfig, maxDeltaMagnitude float64, logger *slog.Logger, tracer *Tracer) *OutcomeEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = NewTracer(logger, false)
	}
	return &OutcomeEvaluator{
		simulator:         simulator,
		timeout:           config.Timeout,
		seed:              config.Seed,
		maxDeltaMagnitude: maxDeltaMagnitude,
		logger:            logger,
		tracer:            tracer,
	}
}

// Evaluate applies an action to a parent scorecard and simulates the result.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - parent: The parent node's scorecard.
//   - action: The proposal to evaluate.
//   - population: The persona population to simulate.
//   - executions: Number of simulation repetitions.
//
// Outputs:
//   - Scorecard: The parent scorecard with the action's deltas applied and clamped.
//   - FitnessVector: Aggregate over all repetitions.
//   - error: Validation or simulation failure. No fitness is fabricated.
func (e *OutcomeEvaluator) Evaluate(ctx context.Context, parent Scorecard, action ActionProposal, population PopulationRef, executions int) (Scorecard, FitnessVector, error) {
	delta, err := action.Validate(e.maxDeltaMagnitude)
	if err != nil {
		return Scorecard{}, FitnessVector{}, err
	}
	sc := parent.Apply(delta)
	f, err := e.Simulate(ctx, sc, population, executions)
	if err != nil {
		return Scorecard{}, FitnessVector{}, err
	}
	return sc, f, nil
}

// Simulate runs the outcome model for one scorecard and aggregates the runs.
func (e *OutcomeEvaluator) Simulate(ctx context.Context, sc Scorecard, population PopulationRef, executions int) (FitnessVector, error) {
	ctx, span := e.tracer.TraceSimulation(ctx, sc, executions)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := e.simulator.Simulate(ctx, SimulationRequest{
		Scorecard:  sc,
		Population: population,
		Executions: executions,
		Seed:       e.seed,
	})
	if err == nil && len(res.Runs) != executions {
		e.logger.Debug("simulator returned unexpected run count",
			slog.Int("requested", executions),
			slog.Int("returned", len(res.Runs)),
		)
	}

	var f FitnessVector
	if err == nil {
		f, err = AggregateFitness(res.Runs)
	}
	RecordSimulation(ctx, err == nil, time.Since(start))
	if err != nil {
		err = fmt.Errorf("simulate: %w", err)
	}
	e.tracer.EndSimulation(span, f, err)
	return f, err
}

// evaluationJob is one proposal awaiting evaluation.
type evaluationJob struct {
	parent   *ScenarioNode
	proposal ActionProposal
}

// evaluationResult is the settled outcome of an evaluationJob.
type evaluationResult struct {
	fitness FitnessVector
	err     error
}

// evaluateAll evaluates every job concurrently and waits for all of them.
func (e *OutcomeEvaluator) evaluateAll(ctx context.Context, jobs []evaluationJob, population PopulationRef, executions, limit int) []evaluationResult {
	return fanOut(ctx, jobs, limit, func(ctx context.Context, _ int, job evaluationJob) evaluationResult {
		_, f, err := e.Evaluate(ctx, job.parent.Scorecard, job.proposal, population, executions)
		return evaluationResult{fitness: f, err: err}
	})
}
