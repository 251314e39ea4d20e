// Package workflows runs code agent runs as Temporal workflows.
//
// The workflow is a thin shell around one long activity. Durability inside
// the run comes from the step journal, keyed by the workflow ID: when
// Temporal retries the activity, steps recorded by the previous attempt are
// replayed instead of executed again.
package workflows

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/genetix/internal/codeagent"
	"github.com/fyrsmithlabs/genetix/internal/events"
	"github.com/fyrsmithlabs/genetix/internal/logging"
	"github.com/fyrsmithlabs/genetix/internal/publisher"
)

// DefaultRunTimeout bounds an activity attempt when the input sets none.
const DefaultRunTimeout = 30 * time.Minute

// HeartbeatTimeout is how long Temporal waits without a heartbeat before it
// treats the worker as lost and retries the activity elsewhere.
const HeartbeatTimeout = 5 * time.Minute

// heartbeatInterval keeps silent steps, such as a long install, alive.
var heartbeatInterval = time.Minute

// CodeAgentInput starts a CodeAgentWorkflow.
type CodeAgentInput struct {
	Event      codeagent.Event
	RunTimeout time.Duration
	// MaxAttempts bounds activity attempts. Zero means 3.
	MaxAttempts int32
}

// CodeAgentWorkflow executes one code agent run.
func CodeAgentWorkflow(ctx workflow.Context, input CodeAgentInput) (*publisher.Outcome, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting code agent run", "project", input.Event.Data.ProjectID)

	timeout := input.RunTimeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	attempts := input.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	ao := workflow.ActivityOptions{
		// The runner enforces the run timeout itself; the margin lets it
		// report the failure before Temporal abandons the attempt.
		StartToCloseTimeout: timeout + time.Minute,
		HeartbeatTimeout:    HeartbeatTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        5 * time.Second,
			BackoffCoefficient:     2,
			MaximumAttempts:        attempts,
			NonRetryableErrorTypes: []string{ErrTypeInvalidEvent},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var a *Activities
	var outcome publisher.Outcome
	if err := workflow.ExecuteActivity(ctx, a.RunCodeAgent, input).Get(ctx, &outcome); err != nil {
		logger.Error("Code agent run failed", "error", err)
		return nil, NewWorkflowError("run_code_agent", ErrorSeverityCritical, err, input.Event.Data.ProjectID)
	}

	logger.Info("Code agent run finished", "summary", outcome.Summary != "", "files", len(outcome.Files))
	return &outcome, nil
}

// Activities holds the dependencies of the workflow's activities.
type Activities struct {
	Runner  *codeagent.Runner
	Logger  *logging.Logger
	Metrics *Metrics
}

// RunCodeAgent executes the run with the workflow ID as run ID.
func (a *Activities) RunCodeAgent(ctx context.Context, input CodeAgentInput) (*publisher.Outcome, error) {
	info := activity.GetInfo(ctx)
	runID := info.WorkflowExecution.ID

	logger := a.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger.Info(ctx, "code agent activity started",
		zap.String("run.id", runID),
		zap.Int32("attempt", info.Attempt))

	runner := *a.Runner
	runner.Events = heartbeatEmitter{next: runner.Events}
	stop := keepAlive(ctx, heartbeatInterval)
	defer stop()

	start := time.Now()
	outcome, err := runner.Run(ctx, runID, input.Event)
	if err != nil {
		a.Metrics.record(ctx, OutcomeFailed, time.Since(start))
		return nil, activityError(err)
	}
	if outcome.Summary == "" || len(outcome.Files) == 0 {
		a.Metrics.record(ctx, OutcomeError, time.Since(start))
	} else {
		a.Metrics.record(ctx, OutcomeSuccess, time.Since(start))
	}
	return outcome, nil
}

// heartbeatEmitter records an activity heartbeat for every run event, so
// progress through ticks and tools keeps the attempt alive.
type heartbeatEmitter struct {
	next events.Emitter
}

func (e heartbeatEmitter) Emit(ctx context.Context, ev events.Event) {
	activity.RecordHeartbeat(ctx, string(ev.Kind))
	if e.next != nil {
		e.next.Emit(ctx, ev)
	}
}

// keepAlive heartbeats every interval until the returned func is called.
func keepAlive(ctx context.Context, interval time.Duration) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx, "running")
			}
		}
	}()
	return func() { close(done) }
}
