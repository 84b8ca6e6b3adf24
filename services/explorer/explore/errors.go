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
)

// Sentinel errors for the explore package.
var (
	// Configuration errors
	ErrInvalidConfig = errors.New("invalid exploration config")
	ErrInvalidGoal   = errors.New("invalid exploration goal")

	// Proposal validation errors
	ErrUnknownCategory  = errors.New("unknown action category")
	ErrUnknownDimension = errors.New("unknown scorecard dimension")
	ErrDeltaOutOfRange  = errors.New("scorecard delta out of range")
	ErrEmptyRationale   = errors.New("action rationale is empty")

	// Evaluation errors
	ErrInvalidFitness = errors.New("invalid fitness vector")

	// Budget errors
	ErrLLMCallLimitExceeded = errors.New("llm call limit exceeded")

	// Circuit breaker errors
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// Lookup and persistence errors
	ErrExplorationNotFound = errors.New("exploration not found")
	ErrExperimentNotFound  = errors.New("experiment not found")
	ErrNodeNotFound        = errors.New("scenario node not found")
	ErrStore               = errors.New("exploration store failure")
	ErrTreeCorrupt         = errors.New("scenario tree is not well formed")
	ErrInvalidTransition   = errors.New("invalid node status transition")

	// Concurrency errors
	ErrConcurrentIteration = errors.New("another iteration holds the exploration")
)

// ProposalErrorKind classifies a failed proposal call.
type ProposalErrorKind string

const (
	ProposalTimeout         ProposalErrorKind = "timeout"
	ProposalMalformedOutput ProposalErrorKind = "malformed_output"
	ProposalRateLimited     ProposalErrorKind = "rate_limited"
	ProposalUnavailable     ProposalErrorKind = "unavailable"
)

// ProposalError is the typed error returned by an ActionProposalProvider.
type ProposalError struct {
	Kind ProposalErrorKind
	Err  error
}

// Error implements error.
func (e *ProposalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("proposal %s", e.Kind)
	}
	return fmt.Sprintf("proposal %s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProposalError) Unwrap() error {
	return e.Err
}

// NewProposalError wraps err with the given kind.
func NewProposalError(kind ProposalErrorKind, err error) *ProposalError {
	return &ProposalError{Kind: kind, Err: err}
}

// ClassifyProposalError returns the kind of a proposal failure.
//
// Errors that are not a *ProposalError are classified by their cause:
// deadline errors become timeouts, circuit rejections and everything else
// become unavailable.
func ClassifyProposalError(err error) ProposalErrorKind {
	var pe *ProposalError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ProposalTimeout
	}
	return ProposalUnavailable
}
