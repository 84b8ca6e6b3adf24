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
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const explorerTracerName = "aleutian.explorer"

// Tracer provides OpenTelemetry tracing for exploration operations.
//
// When disabled every Trace method returns a no-op span.
//
// Thread Safety: Safe for concurrent use.
type Tracer struct {
	tracer  trace.Tracer
	logger  *slog.Logger
	enabled bool
}

// NewTracer creates a new tracer.
//
// Inputs:
//   - logger: Logger for structured logging (can be nil for the default logger).
//   - enabled: Whether spans are recorded.
//
// Outputs:
//   - *Tracer: Tracer instance.
func NewTracer(logger *slog.Logger, enabled bool) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracer{
		tracer:  otel.Tracer(explorerTracerName),
		logger:  logger,
		enabled: enabled,
	}
}

// TraceStart starts a span for creating an exploration.
func (t *Tracer) TraceStart(ctx context.Context, experimentID string, goal Goal, cfg ExplorationConfig) (context.Context, trace.Span) {
	if !t.enabled {
		return ctx, noop.Span{}
	}
	return t.tracer.Start(ctx, "explorer.start",
		trace.WithAttributes(
			attribute.String("explorer.experiment_id", experimentID),
			attribute.String("explorer.goal", goal.String()),
			attribute.Int("explorer.beam_width", cfg.BeamWidth),
			attribute.Int("explorer.max_depth", cfg.MaxDepth),
			attribute.Int("explorer.max_llm_calls", cfg.MaxLLMCalls),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// TraceIteration starts a span for one iteration.
func (t *Tracer) TraceIteration(ctx context.Context, exp *Exploration) (context.Context, trace.Span) {
	if !t.enabled {
		return ctx, noop.Span{}
	}
	return t.tracer.Start(ctx, "explorer.iteration",
		trace.WithAttributes(
			attribute.String("explorer.exploration_id", exp.ID),
			attribute.Int("explorer.depth", exp.CurrentDepth),
			attribute.Int("explorer.calls_used", exp.TotalLLMCalls),
		),
	)
}

// EndIteration completes an iteration span.
//
// Inputs:
//   - span: The span to end.
//   - exp: The exploration after the iteration.
//   - created: Children created this iteration.
//   - retained: Children kept by the beam.
//   - err: Infrastructure error, if the iteration aborted.
func (t *Tracer) EndIteration(span trace.Span, exp *Exploration, created, retained int, err error) {
	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.String("explorer.status", exp.Status.String()),
		attribute.Int("explorer.children_created", created),
		attribute.Int("explorer.children_retained", retained),
		attribute.Int("explorer.total_llm_calls", exp.TotalLLMCalls),
	)
	endSpan(span, err)
}

// TraceProposal starts a span for requesting proposals for one node.
func (t *Tracer) TraceProposal(ctx context.Context, node *ScenarioNode) (context.Context, trace.Span) {
	if !t.enabled {
		return ctx, noop.Span{}
	}
	return t.tracer.Start(ctx, "explorer.propose",
		trace.WithAttributes(
			attribute.String("explorer.node_id", node.ID),
			attribute.Int("explorer.node_depth", node.Depth),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndProposal completes a proposal span.
func (t *Tracer) EndProposal(span trace.Span, proposals, attempts int, err error) {
	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.Int("explorer.proposals", proposals),
		attribute.Int("explorer.attempts", attempts),
	)
	if err != nil {
		span.SetAttributes(attribute.String("explorer.failure_kind", string(ClassifyProposalError(err))))
	}
	endSpan(span, err)
}

// TraceSimulation starts a span for one simulation call.
func (t *Tracer) TraceSimulation(ctx context.Context, sc Scorecard, executions int) (context.Context, trace.Span) {
	if !t.enabled {
		return ctx, noop.Span{}
	}
	return t.tracer.Start(ctx, "explorer.simulate",
		trace.WithAttributes(
			attribute.Float64("explorer.scorecard.complexity", sc.Complexity),
			attribute.Float64("explorer.scorecard.initial_effort", sc.InitialEffort),
			attribute.Float64("explorer.scorecard.perceived_risk", sc.PerceivedRisk),
			attribute.Float64("explorer.scorecard.time_to_value", sc.TimeToValue),
			attribute.Int("explorer.executions", executions),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSimulation completes a simulation span.
func (t *Tracer) EndSimulation(span trace.Span, f FitnessVector, err error) {
	if span == nil {
		return
	}
	if err == nil {
		span.SetAttributes(attribute.Float64("explorer.success_rate", f.SuccessRate))
	}
	endSpan(span, err)
}

// TraceCircuitStateChange records a circuit breaker transition on the current span.
func (t *Tracer) TraceCircuitStateChange(ctx context.Context, from, to CircuitState) {
	t.logger.WarnContext(ctx, "proposal circuit breaker state change",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)
	if !t.enabled {
		return
	}
	trace.SpanFromContext(ctx).AddEvent("circuit_breaker_state_change",
		trace.WithAttributes(
			attribute.String("from", from.String()),
			attribute.String("to", to.String()),
		),
	)
}

// EndSpan completes a span with the outcome of err.
func (t *Tracer) EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	endSpan(span, err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// LoggerWithTrace returns a logger enriched with trace context.
//
// Inputs:
//   - ctx: Context containing trace information.
//   - logger: Base logger.
//
// Outputs:
//   - *slog.Logger: Logger with trace_id and span_id when a span is active.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		slog.String("trace_id", spanCtx.TraceID().String()),
		slog.String("span_id", spanCtx.SpanID().String()),
	)
}
