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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("aleutian.explorer")

// Metrics for exploration operations.
var (
	llmCallsTotal          metric.Int64Counter
	nodesCreatedTotal      metric.Int64Counter
	nodesDominatedTotal    metric.Int64Counter
	expansionFailuresTotal metric.Int64Counter
	simulationsTotal       metric.Int64Counter
	terminationsTotal      metric.Int64Counter
	iterationDuration      metric.Float64Histogram
	simulationDuration     metric.Float64Histogram
	circuitBreakerState    metric.Int64Gauge

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		if llmCallsTotal, err = meter.Int64Counter(
			"explorer_llm_calls_total",
			metric.WithDescription("Proposal call attempts by outcome"),
		); err != nil {
			metricsErr = err
			return
		}

		if nodesCreatedTotal, err = meter.Int64Counter(
			"explorer_nodes_created_total",
			metric.WithDescription("Scenario nodes created"),
		); err != nil {
			metricsErr = err
			return
		}

		if nodesDominatedTotal, err = meter.Int64Counter(
			"explorer_nodes_dominated_total",
			metric.WithDescription("Scenario nodes removed by Pareto filtering or the beam"),
		); err != nil {
			metricsErr = err
			return
		}

		if expansionFailuresTotal, err = meter.Int64Counter(
			"explorer_expansion_failures_total",
			metric.WithDescription("Nodes whose proposal call failed after retries, by kind"),
		); err != nil {
			metricsErr = err
			return
		}

		if simulationsTotal, err = meter.Int64Counter(
			"explorer_simulations_total",
			metric.WithDescription("Outcome simulations by outcome"),
		); err != nil {
			metricsErr = err
			return
		}

		if terminationsTotal, err = meter.Int64Counter(
			"explorer_terminations_total",
			metric.WithDescription("Explorations reaching a terminal status"),
		); err != nil {
			metricsErr = err
			return
		}

		if iterationDuration, err = meter.Float64Histogram(
			"explorer_iteration_duration_seconds",
			metric.WithDescription("Wall clock duration of one iteration"),
			metric.WithUnit("s"),
		); err != nil {
			metricsErr = err
			return
		}

		if simulationDuration, err = meter.Float64Histogram(
			"explorer_simulation_duration_seconds",
			metric.WithDescription("Duration of one simulation call"),
			metric.WithUnit("s"),
		); err != nil {
			metricsErr = err
			return
		}

		if circuitBreakerState, err = meter.Int64Gauge(
			"explorer_circuit_breaker_state",
			metric.WithDescription("Proposal circuit breaker state (0=closed, 1=open, 2=half-open)"),
		); err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// RecordLLMCall records one issued proposal attempt.
//
// Thread Safety: Safe for concurrent use.
func RecordLLMCall(ctx context.Context, outcome string) {
	if err := initMetrics(); err != nil {
		return
	}
	llmCallsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordNodesCreated records created nodes.
func RecordNodesCreated(ctx context.Context, count int) {
	if err := initMetrics(); err != nil || count == 0 {
		return
	}
	nodesCreatedTotal.Add(ctx, int64(count))
}

// RecordNodesDominated records nodes pruned this iteration.
func RecordNodesDominated(ctx context.Context, count int) {
	if err := initMetrics(); err != nil || count == 0 {
		return
	}
	nodesDominatedTotal.Add(ctx, int64(count))
}

// RecordExpansionFailure records a node marked expansion_failed.
func RecordExpansionFailure(ctx context.Context, kind ProposalErrorKind) {
	if err := initMetrics(); err != nil {
		return
	}
	expansionFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}

// RecordSimulation records one simulation call.
func RecordSimulation(ctx context.Context, success bool, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	simulationsTotal.Add(ctx, 1, attrs)
	simulationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordIteration records the duration of one iteration.
func RecordIteration(ctx context.Context, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	iterationDuration.Record(ctx, duration.Seconds())
}

// RecordTermination records an exploration reaching a terminal status.
func RecordTermination(ctx context.Context, status ExplorationStatus) {
	if err := initMetrics(); err != nil {
		return
	}
	terminationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status.String())))
}

// RecordCircuitBreakerState records the current breaker state.
func RecordCircuitBreakerState(ctx context.Context, state CircuitState) {
	if err := initMetrics(); err != nil {
		return
	}
	circuitBreakerState.Record(ctx, int64(state))
}
