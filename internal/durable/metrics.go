package durable

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds step instruments. A nil *Metrics records nothing.
type Metrics struct {
	executedCount metric.Int64Counter
	replayedCount metric.Int64Counter
	failedCount   metric.Int64Counter
	duration      metric.Float64Histogram
}

// NewMetrics creates the step instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.executedCount, err = meter.Int64Counter("genetix.steps.executed",
		metric.WithDescription("Steps whose function ran"),
		metric.WithUnit("{step}")); err != nil {
		return nil, fmt.Errorf("steps executed counter: %w", err)
	}
	if m.replayedCount, err = meter.Int64Counter("genetix.steps.replayed",
		metric.WithDescription("Steps answered from the journal"),
		metric.WithUnit("{step}")); err != nil {
		return nil, fmt.Errorf("steps replayed counter: %w", err)
	}
	if m.failedCount, err = meter.Int64Counter("genetix.steps.failed",
		metric.WithDescription("Steps that recorded a failure"),
		metric.WithUnit("{step}")); err != nil {
		return nil, fmt.Errorf("steps failed counter: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("genetix.steps.duration",
		metric.WithDescription("Step function duration"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("steps duration histogram: %w", err)
	}
	return &m, nil
}

func (m *Metrics) recordExecuted(ctx context.Context, label string, elapsed time.Duration, failed bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("step", label))
	m.executedCount.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
	if failed {
		m.failedCount.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) recordReplayed(ctx context.Context, label string) {
	if m == nil {
		return
	}
	m.replayedCount.Add(ctx, 1, metric.WithAttributes(attribute.String("step", label)))
}
