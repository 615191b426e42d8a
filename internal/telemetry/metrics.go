package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EngineMetrics holds the refinement engine's meters. A nil *EngineMetrics is
// valid and records nothing, so instrumentation never forces wiring.
type EngineMetrics struct {
	turns       metric.Int64Counter
	oracleCalls metric.Int64Counter
	iterations  metric.Int64Histogram
}

// NewEngineMetrics registers the engine meters on the given meter.
func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	turns, err := meter.Int64Counter("draftd.turns",
		metric.WithDescription("Processed conversational turns by outcome"))
	if err != nil {
		return nil, fmt.Errorf("creating turns counter: %w", err)
	}
	oracleCalls, err := meter.Int64Counter("draftd.oracle.calls",
		metric.WithDescription("Generation oracle invocations"))
	if err != nil {
		return nil, fmt.Errorf("creating oracle calls counter: %w", err)
	}
	iterations, err := meter.Int64Histogram("draftd.convergence.iterations",
		metric.WithDescription("Iterations spent per convergence run"))
	if err != nil {
		return nil, fmt.Errorf("creating iterations histogram: %w", err)
	}
	return &EngineMetrics{turns: turns, oracleCalls: oracleCalls, iterations: iterations}, nil
}

// RecordTurn counts one processed turn with its phase outcome.
func (m *EngineMetrics) RecordTurn(ctx context.Context, phase string) {
	if m == nil {
		return
	}
	m.turns.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", phase)))
}

// RecordConvergence counts one convergence run's oracle spend.
func (m *EngineMetrics) RecordConvergence(ctx context.Context, outcome string, iterations int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.oracleCalls.Add(ctx, int64(iterations), attrs)
	m.iterations.Record(ctx, int64(iterations), attrs)
}
