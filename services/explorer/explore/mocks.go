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
	"sync/atomic"
)

// MockProposalProvider is a test implementation of ActionProposalProvider.
//
// Thread Safety: Safe for concurrent use if ProposeFunc is.
type MockProposalProvider struct {
	// Proposals are returned by every call when ProposeFunc is nil.
	Proposals []ActionProposal

	// Err is returned (if set) when ProposeFunc is nil.
	Err error

	// ProposeFunc allows custom behavior per call.
	ProposeFunc func(ctx context.Context, node *ScenarioNode, pc ProposalContext) ([]ActionProposal, error)

	calls int64
}

// Propose implements ActionProposalProvider.
func (m *MockProposalProvider) Propose(ctx context.Context, node *ScenarioNode, pc ProposalContext) ([]ActionProposal, error) {
	atomic.AddInt64(&m.calls, 1)
	if m.ProposeFunc != nil {
		return m.ProposeFunc(ctx, node, pc)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]ActionProposal, len(m.Proposals))
	copy(out, m.Proposals)
	return out, nil
}

// Calls returns the number of Propose calls received.
func (m *MockProposalProvider) Calls() int {
	return int(atomic.LoadInt64(&m.calls))
}

// MockSimulator is a test implementation of OutcomeSimulator.
//
// Without SimulateFunc it returns LinearFitness for every repetition.
//
// Thread Safety: Safe for concurrent use if SimulateFunc is.
type MockSimulator struct {
	Err          error
	SimulateFunc func(ctx context.Context, req SimulationRequest) (SimulationResult, error)

	calls int64
}

// Simulate implements OutcomeSimulator.
func (m *MockSimulator) Simulate(ctx context.Context, req SimulationRequest) (SimulationResult, error) {
	atomic.AddInt64(&m.calls, 1)
	if m.SimulateFunc != nil {
		return m.SimulateFunc(ctx, req)
	}
	if m.Err != nil {
		return SimulationResult{}, m.Err
	}
	runs := make([]FitnessVector, req.Executions)
	for i := range runs {
		runs[i] = LinearFitness(req.Scorecard)
	}
	return SimulationResult{Runs: runs}, nil
}

// Calls returns the number of Simulate calls received.
func (m *MockSimulator) Calls() int {
	return int(atomic.LoadInt64(&m.calls))
}

// LinearFitness is a deterministic stand-in for the outcome model: every
// scorecard dimension lowers the success rate, and perceived risk shifts the
// remainder toward not trying.
func LinearFitness(sc Scorecard) FitnessVector {
	success := clamp(0.9-0.25*sc.Complexity-0.2*sc.InitialEffort-0.2*sc.PerceivedRisk-0.15*sc.TimeToValue, 0, 1)
	rest := 1 - success
	didNotTry := rest * clamp(0.3+0.5*sc.PerceivedRisk, 0, 1)
	return FitnessVector{
		SuccessRate:   success,
		FailRate:      rest - didNotTry,
		DidNotTryRate: didNotTry,
	}
}
