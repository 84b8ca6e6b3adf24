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
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

// ResilientProvider applies the call policy around an ActionProposalProvider.
//
// Each attempt passes, in order: the call budget, the circuit breaker, the
// rate limiter, and a per-attempt timeout. Failed attempts are retried with
// bounded exponential backoff up to MaxAttempts. An attempt rejected by the
// breaker or the limiter is never issued and gives its budget slot back.
//
// Thread Safety: Safe for concurrent use.
type ResilientProvider struct {
	provider ActionProposalProvider
	config   ProposalConfig
	breaker  *CircuitBreaker
	limiter  *rate.Limiter
	logger   *slog.Logger
	tracer   *Tracer
}

// ResilientOption configures a ResilientProvider.
type ResilientOption func(*ResilientProvider)

// WithResilientLogger sets the logger.
func WithResilientLogger(logger *slog.Logger) ResilientOption {
	return func(r *ResilientProvider) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithResilientTracer sets the tracer.
func WithResilientTracer(tracer *Tracer) ResilientOption {
	return func(r *ResilientProvider) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// NewResilientProvider wraps provider with the configured call policy.
//
// Inputs:
//   - provider: The underlying provider. One Propose call is one attempt.
//   - config: Timeout, retry, rate limit and circuit breaker settings.
//   - opts: Optional configuration.
//
// Outputs:
//   - *ResilientProvider: Ready to use.
func NewResilientProvider(provider ActionProposalProvider, config ProposalConfig, opts ...ResilientOption) *ResilientProvider {
	r := &ResilientProvider{
		provider: provider,
		config:   config,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tracer == nil {
		r.tracer = NewTracer(r.logger, false)
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	burst := config.RateBurst
	if burst < 1 {
		burst = 1
	}
	r.limiter = rate.NewLimiter(limit, burst)

	r.breaker = NewCircuitBreaker(config.CircuitBreaker, func(from, to CircuitState) {
		ctx := context.Background()
		r.tracer.TraceCircuitStateChange(ctx, from, to)
		RecordCircuitBreakerState(ctx, to)
	})
	return r
}

// Breaker returns the circuit breaker guarding the provider.
func (r *ResilientProvider) Breaker() *CircuitBreaker {
	return r.breaker
}

// Propose requests proposals for one node.
//
// The caller must already hold one reserved slot in budget for the first
// attempt. Retries reserve their own slots and stop when the budget is
// exhausted.
//
// Inputs:
//   - ctx: Context for cancellation. Cancelling it stops retries.
//   - budget: The iteration's call budget.
//   - node: The node to expand.
//   - pc: The proposal context.
//
// Outputs:
//   - []ActionProposal: The proposals from the first successful attempt.
//   - int: Number of attempts actually issued.
//   - error: The final failure. ClassifyProposalError yields its kind.
func (r *ResilientProvider) Propose(ctx context.Context, budget *CallBudget, node *ScenarioNode, pc ProposalContext) ([]ActionProposal, int, error) {
	var (
		attempts int
		holdSlot = true
		lastErr  error
	)

	op := func() ([]ActionProposal, error) {
		if !holdSlot && !budget.TryReserve() {
			if lastErr == nil {
				return nil, backoff.Permanent(ErrLLMCallLimitExceeded)
			}
			return nil, backoff.Permanent(fmt.Errorf("%w: %w", ErrLLMCallLimitExceeded, lastErr))
		}
		holdSlot = false

		allowed, release := r.breaker.Allow()
		if !allowed {
			budget.Refund()
			return nil, backoff.Permanent(NewProposalError(ProposalUnavailable, ErrCircuitOpen))
		}
		if release != nil {
			defer release()
		}

		if err := r.limiter.Wait(ctx); err != nil {
			budget.Refund()
			return nil, backoff.Permanent(err)
		}

		budget.MarkIssued()
		attempts++

		attemptCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()

		start := time.Now()
		proposals, err := r.provider.Propose(attemptCtx, node, pc)
		if err == nil {
			r.breaker.RecordSuccess()
			RecordLLMCall(ctx, "success")
			r.logger.Debug("proposal attempt succeeded",
				slog.String("node_id", node.ID),
				slog.Int("attempt", attempts),
				slog.Int("proposals", len(proposals)),
				slog.Duration("duration", time.Since(start)),
			)
			return proposals, nil
		}

		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			var pe *ProposalError
			if !errors.As(err, &pe) {
				err = NewProposalError(ProposalTimeout, err)
			}
		}

		kind := ClassifyProposalError(err)
		r.breaker.RecordFailure()
		RecordLLMCall(ctx, string(kind))
		r.logger.Debug("proposal attempt failed",
			slog.String("node_id", node.ID),
			slog.Int("attempt", attempts),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		lastErr = err
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.InitialBackoff
	b.MaxInterval = r.config.MaxBackoff

	maxTries := r.config.MaxAttempts
	if maxTries < 1 {
		maxTries = 1
	}

	proposals, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(maxTries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.logger.Debug("retrying proposal call",
				slog.String("node_id", node.ID),
				slog.Duration("backoff", next),
				slog.String("error", err.Error()),
			)
		}),
	)
	if err != nil {
		return nil, attempts, err
	}
	return proposals, attempts, nil
}
