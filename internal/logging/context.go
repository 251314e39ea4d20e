package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type runCtxKey struct{}
type stepCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

// Run identifies the agent run a log entry belongs to.
type Run struct {
	ID        string
	ProjectID string
}

// ContextFields extracts correlation data from ctx.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if run, ok := ctx.Value(runCtxKey{}).(Run); ok {
		fields = append(fields, zap.String("run.id", run.ID))
		if run.ProjectID != "" {
			fields = append(fields, zap.String("project.id", run.ProjectID))
		}
	}
	if label := StepFromContext(ctx); label != "" {
		fields = append(fields, zap.String("step.label", label))
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	return fields
}

// WithRun tags ctx with the run and project identifiers.
func WithRun(ctx context.Context, runID, projectID string) context.Context {
	return context.WithValue(ctx, runCtxKey{}, Run{ID: runID, ProjectID: projectID})
}

// RunFromContext returns the run stored by WithRun.
func RunFromContext(ctx context.Context) (Run, bool) {
	run, ok := ctx.Value(runCtxKey{}).(Run)
	return run, ok
}

// WithStep tags ctx with the durable step label being executed.
func WithStep(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, stepCtxKey{}, label)
}

// StepFromContext returns the step label, or "".
func StepFromContext(ctx context.Context) string {
	s, _ := ctx.Value(stepCtxKey{}).(string)
	return s
}

// WithRequestID tags ctx with an HTTP request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, id)
}

// RequestIDFromContext returns the request ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(requestCtxKey{}).(string)
	return s
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return NewNop()
}
