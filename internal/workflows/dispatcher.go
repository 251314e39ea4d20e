package workflows

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/genetix/internal/codeagent"
	"github.com/fyrsmithlabs/genetix/internal/logging"
)

// Dispatcher starts runs asynchronously and returns their run ID.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev codeagent.Event) (string, error)
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return "code-agent-" + uuid.NewString()
}

// TemporalDispatcher starts a CodeAgentWorkflow per event.
type TemporalDispatcher struct {
	Client     client.Client
	TaskQueue  string
	RunTimeout time.Duration
}

// Dispatch validates ev and starts its workflow.
func (d *TemporalDispatcher) Dispatch(ctx context.Context, ev codeagent.Event) (string, error) {
	if err := ev.Validate(); err != nil {
		return "", err
	}
	opts := client.StartWorkflowOptions{
		ID:        NewRunID(),
		TaskQueue: d.TaskQueue,
	}
	run, err := d.Client.ExecuteWorkflow(ctx, opts, CodeAgentWorkflow, CodeAgentInput{Event: ev, RunTimeout: d.RunTimeout})
	if err != nil {
		return "", fmt.Errorf("start code agent workflow: %w", err)
	}
	return run.GetID(), nil
}

// InProcessDispatcher runs events on goroutines of the current process.
// Runs do not survive a restart.
type InProcessDispatcher struct {
	runner *codeagent.Runner
	logger *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewInProcessDispatcher returns a dispatcher whose runs are cancelled by
// Close.
func NewInProcessDispatcher(runner *codeagent.Runner, logger *logging.Logger) *InProcessDispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &InProcessDispatcher{runner: runner, logger: logger, ctx: ctx, cancel: cancel}
}

// Dispatch validates ev and runs it in the background.
func (d *InProcessDispatcher) Dispatch(ctx context.Context, ev codeagent.Event) (string, error) {
	if err := ev.Validate(); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", fmt.Errorf("dispatcher closed")
	}

	runID := NewRunID()
	logCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if _, err := d.runner.Run(d.ctx, runID, ev); err != nil {
			d.logger.Warn(logCtx, "in-process run failed", zap.String("run.id", runID), zap.Error(err))
		}
	}()
	return runID, nil
}

// Wait blocks until every dispatched run has returned.
func (d *InProcessDispatcher) Wait() {
	d.wg.Wait()
}

// Close cancels in-flight runs and waits for them.
func (d *InProcessDispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cancel()
	d.wg.Wait()
}
