// Package codeagent wires the tool set, the code agent, the network
// controller and the result publisher into one run per trigger event.
package codeagent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/genetix/internal/agent"
	"github.com/fyrsmithlabs/genetix/internal/config"
	"github.com/fyrsmithlabs/genetix/internal/durable"
	"github.com/fyrsmithlabs/genetix/internal/events"
	"github.com/fyrsmithlabs/genetix/internal/llm"
	"github.com/fyrsmithlabs/genetix/internal/logging"
	"github.com/fyrsmithlabs/genetix/internal/network"
	"github.com/fyrsmithlabs/genetix/internal/publisher"
	"github.com/fyrsmithlabs/genetix/internal/state"
	"github.com/fyrsmithlabs/genetix/internal/store"
	"github.com/fyrsmithlabs/genetix/internal/tools"
	"github.com/fyrsmithlabs/genetix/internal/workspace"
)

// NetworkName names the network every run drives.
const NetworkName = "coding-agent-network"

// Runner executes code agent runs. A Runner is safe for concurrent use;
// runs share nothing but the providers below.
type Runner struct {
	Workspaces workspace.Provider
	Journal    durable.Journal
	Store      store.Store
	Model      llm.Model
	Engine     config.EngineConfig

	// Optional.
	Events  events.Emitter
	Logger  *logging.Logger
	Metrics *durable.Metrics
	Tracer  trace.Tracer
}

// Run executes ev as run runID. Steps already recorded for runID in the
// journal are replayed, so calling Run again with the same ID resumes the
// run instead of starting over.
func (r *Runner) Run(ctx context.Context, runID string, ev Event) (*publisher.Outcome, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	if r.Workspaces == nil || r.Journal == nil || r.Store == nil || r.Model == nil {
		return nil, errors.New("codeagent: runner is missing a dependency")
	}

	logger := r.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	emitter := r.Events
	if emitter == nil {
		emitter = events.Nop{}
	}

	if r.Engine.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Engine.RunTimeout.Duration())
		defer cancel()
	}
	ctx = logging.WithRun(ctx, runID, ev.Data.ProjectID)

	opts := []durable.Option{durable.WithLogger(logger), durable.WithMetrics(r.Metrics)}
	if r.Engine.StepTimeout > 0 {
		opts = append(opts, durable.WithStepTimeout(r.Engine.StepTimeout.Duration()))
	}
	if r.Tracer != nil {
		opts = append(opts, durable.WithTracer(r.Tracer))
	}
	steps := durable.New(runID, r.Journal, opts...)

	start := time.Now()
	emitter.Emit(ctx, events.Event{RunID: runID, Kind: events.RunStarted, Time: start, Data: map[string]any{"project_id": ev.Data.ProjectID}})
	logger.Info(ctx, "code agent run started")

	outcome, err := r.run(ctx, steps, logger, emitter, ev)
	if err != nil {
		emitter.Emit(ctx, events.Event{RunID: runID, Kind: events.RunFailed, Time: time.Now(), Data: map[string]any{"error": err.Error()}})
		logger.Error(ctx, "code agent run failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}
	emitter.Emit(ctx, events.Event{RunID: runID, Kind: events.RunPublished, Time: time.Now(), Data: map[string]any{
		"url":     outcome.URL,
		"title":   outcome.Title,
		"files":   len(outcome.Files),
		"summary": outcome.Summary != "",
	}})
	logger.Info(ctx, "code agent run finished",
		zap.Bool("summary", outcome.Summary != ""),
		zap.Int("files", len(outcome.Files)),
		zap.Duration("elapsed", time.Since(start)))
	return outcome, nil
}

func (r *Runner) run(ctx context.Context, steps *durable.Executor, logger *logging.Logger, emitter events.Emitter, ev Event) (*publisher.Outcome, error) {
	workspaceID, err := durable.Step(ctx, steps, "get-sandbox-id", func(ctx context.Context) (string, error) {
		h, err := r.Workspaces.Create(ctx)
		if err != nil {
			return "", durable.Transient(fmt.Errorf("create sandbox: %w", err))
		}
		return h.ID(), nil
	})
	if err != nil {
		return nil, err
	}

	registry, err := tools.Default()
	if err != nil {
		return nil, err
	}
	net := network.New(NetworkName, agent.NewCodeAgent(r.Model, registry))
	if r.Engine.MaxIterations > 0 {
		net.MaxIter = r.Engine.MaxIterations
	}

	rc := &tools.RunContext{
		Steps:       steps,
		State:       state.New(),
		Workspaces:  r.Workspaces,
		WorkspaceID: workspaceID,
		Events:      emitter,
		Logger:      logger.With(zap.String("workspace.id", workspaceID)),
	}
	if _, err := net.Run(ctx, rc, ev.Data.Value); err != nil {
		return nil, err
	}

	pub := &publisher.Publisher{Store: r.Store, Port: r.Engine.SandboxPort}
	return pub.Publish(ctx, rc, ev.Data.ProjectID)
}
