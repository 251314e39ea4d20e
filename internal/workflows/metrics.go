package workflows

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fyrsmithlabs/genetix/internal/workflows"

// Run outcomes as recorded in metrics.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeFailed  = "failed"
)

// Metrics counts code agent runs executed by the activity.
type Metrics struct {
	runs     metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics creates the run instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	runs, err := meter.Int64Counter(
		"genetix.workflows.code_agent.executions",
		metric.WithDescription("Total number of code agent run executions by outcome"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run counter: %w", err)
	}
	duration, err := meter.Float64Histogram(
		"genetix.workflows.code_agent.duration",
		metric.WithDescription("Duration of code agent run executions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run duration: %w", err)
	}
	return &Metrics{runs: runs, duration: duration}, nil
}

func (m *Metrics) record(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.runs.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}
