package durable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/genetix/internal/logging"
)

// StepError is a failure recorded for a step. Replays return the same
// StepError the first execution returned.
type StepError struct {
	Label   string
	Message string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %s", e.Label, e.Message)
}

// Transient marks err as not worth recording: Step returns it without
// writing a failure, so the next attempt of the run executes the step again.
// Use it for provider outages and other errors a retry can fix.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// Executor runs the steps of one run against a Journal.
type Executor struct {
	runID       string
	journal     Journal
	stepTimeout time.Duration
	logger      *logging.Logger
	metrics     *Metrics
	tracer      trace.Tracer
	now         func() time.Time

	mu   sync.Mutex
	uses map[string]int
}

// Option configures an Executor.
type Option func(*Executor)

// WithStepTimeout bounds each step function. A step that exceeds it
// records a failure.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Executor) { e.stepTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithMetrics records step counters and durations.
func WithMetrics(m *Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithTracer wraps each executed step in a span.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// New returns an executor for runID.
func New(runID string, journal Journal, opts ...Option) *Executor {
	e := &Executor{
		runID:   runID,
		journal: journal,
		logger:  logging.NewNop(),
		tracer:  noop.NewTracerProvider().Tracer("durable"),
		now:     time.Now,
		uses:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunID returns the run this executor belongs to.
func (e *Executor) RunID() string {
	return e.runID
}

// nextKey returns the journal key for the next use of label.
func (e *Executor) nextKey(label string) (string, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	seq := e.uses[label]
	e.uses[label] = seq + 1
	if seq == 0 {
		return label, 0
	}
	return label + ":" + strconv.Itoa(seq), seq
}

// Step runs fn at most once for this use of label in the run and returns
// its recorded outcome. T must round-trip through encoding/json.
//
// Cancellation of ctx itself and errors marked Transient are returned
// without being recorded, so the next attempt re-executes the step.
func Step[T any](ctx context.Context, e *Executor, label string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	key, seq := e.nextKey(label)
	ctx = logging.WithStep(ctx, key)

	rec, ok, err := e.journal.Load(ctx, e.runID, key)
	if err != nil {
		return zero, err
	}
	if ok {
		e.logger.Debug(ctx, "step replayed")
		e.metrics.recordReplayed(ctx, label)
		return decode[T](label, rec)
	}

	ctx, span := e.tracer.Start(ctx, "step "+label, trace.WithAttributes(
		attribute.String("step.key", key),
		attribute.String("run.id", e.runID),
	))
	defer span.End()

	stepCtx := ctx
	if e.stepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, e.stepTimeout)
		defer cancel()
	}

	start := e.now()
	value, fnErr := fn(stepCtx)
	elapsed := e.now().Sub(start)

	if fnErr != nil && ctx.Err() != nil {
		span.SetStatus(codes.Error, "cancelled")
		return zero, ctx.Err()
	}
	if IsTransient(fnErr) {
		span.SetStatus(codes.Error, fnErr.Error())
		e.logger.Warn(ctx, "step failed transiently", zap.Error(fnErr))
		return zero, fnErr
	}

	rec = Record{Label: label, Seq: seq, RecordedAt: e.now()}
	if fnErr != nil {
		if errors.Is(fnErr, context.DeadlineExceeded) && stepCtx.Err() != nil {
			fnErr = fmt.Errorf("timed out after %s: %w", e.stepTimeout, fnErr)
		}
		rec.Failure = fnErr.Error()
		span.SetStatus(codes.Error, rec.Failure)
	} else {
		raw, err := json.Marshal(value)
		if err != nil {
			return zero, fmt.Errorf("encode step %q result: %w", key, err)
		}
		rec.Value = raw
	}

	if err := e.journal.Save(ctx, e.runID, key, rec); err != nil {
		if !errors.Is(err, ErrAlreadyRecorded) {
			return zero, err
		}
		// Another attempt recorded this step first; its outcome is authoritative.
		winner, found, loadErr := e.journal.Load(ctx, e.runID, key)
		if loadErr != nil {
			return zero, loadErr
		}
		if found {
			rec = winner
		}
	}

	e.metrics.recordExecuted(ctx, label, elapsed, rec.Failed())
	if rec.Failed() {
		e.logger.Warn(ctx, "step failed", zap.String("error", rec.Failure), zap.Duration("elapsed", elapsed))
	} else {
		e.logger.Debug(ctx, "step executed", zap.Duration("elapsed", elapsed))
	}
	return decode[T](label, rec)
}

func decode[T any](label string, rec Record) (T, error) {
	var v T
	if rec.Failed() {
		return v, &StepError{Label: label, Message: rec.Failure}
	}
	if len(rec.Value) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(rec.Value, &v); err != nil {
		return v, fmt.Errorf("decode step %q result: %w", label, err)
	}
	return v, nil
}
