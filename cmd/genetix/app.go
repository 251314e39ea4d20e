package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"dagger.io/dagger"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/genetix/internal/codeagent"
	"github.com/fyrsmithlabs/genetix/internal/config"
	"github.com/fyrsmithlabs/genetix/internal/durable"
	"github.com/fyrsmithlabs/genetix/internal/events"
	"github.com/fyrsmithlabs/genetix/internal/llm"
	"github.com/fyrsmithlabs/genetix/internal/logging"
	"github.com/fyrsmithlabs/genetix/internal/secrets"
	"github.com/fyrsmithlabs/genetix/internal/store"
	"github.com/fyrsmithlabs/genetix/internal/telemetry"
	"github.com/fyrsmithlabs/genetix/internal/workspace"
)

// app holds the components every command shares. close releases them in
// reverse order of construction.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	store     store.Store
	runner    *codeagent.Runner

	closers []func(context.Context) error
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func (a *app) close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	lc := logging.NewDefaultConfig()
	if cfg.Level != "" {
		lc.Level = cfg.Level
	}
	if cfg.Format != "" {
		lc.Format = cfg.Format
	}
	logger, err := logging.NewLogger(lc, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return logger, nil
}

// newApp wires the runner and its dependencies from cfg. The caller must
// call close even when newApp fails part way.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	a.onClose(func(context.Context) error {
		_ = logger.Sync()
		return nil
	})

	tel, err := telemetry.New(ctx, cfg.Telemetry, version)
	if err != nil {
		return a, err
	}
	a.telemetry = tel
	a.onClose(tel.Shutdown)
	if tel.Degraded() {
		logger.Warn(ctx, "telemetry degraded, continuing without exporters")
	}

	workspaces, err := a.workspaces(ctx)
	if err != nil {
		return a, err
	}

	var nc *nats.Conn
	if cfg.Journal.Backend == "nats" || cfg.NATS.Events {
		nc, err = nats.Connect(cfg.NATS.URL, nats.Name("genetix"))
		if err != nil {
			return a, fmt.Errorf("connecting to nats: %w", err)
		}
		a.onClose(func(context.Context) error {
			return nc.Drain()
		})
		logger.Info(ctx, "nats connected", zap.String("url", cfg.NATS.URL))
	}

	journal, err := a.journal(ctx, nc)
	if err != nil {
		return a, err
	}

	var emitter events.Emitter = events.Nop{}
	if cfg.NATS.Events {
		scrubber, err := secrets.New()
		if err != nil {
			return a, fmt.Errorf("building secret scrubber: %w", err)
		}
		emitter = events.NewNATSEmitter(nc, scrubber, logger)
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return a, fmt.Errorf("opening store: %w", err)
	}
	a.store = st
	a.onClose(func(context.Context) error { return st.Close() })

	model, err := llm.New(ctx, cfg.Model)
	if err != nil {
		return a, fmt.Errorf("building model: %w", err)
	}

	metrics, err := durable.NewMetrics(tel.Meter("genetix/durable"))
	if err != nil {
		return a, fmt.Errorf("creating step metrics: %w", err)
	}

	a.runner = &codeagent.Runner{
		Workspaces: workspaces,
		Journal:    journal,
		Store:      st,
		Model:      model,
		Engine:     cfg.Engine,
		Events:     emitter,
		Logger:     logger,
		Metrics:    metrics,
		Tracer:     tel.Tracer("genetix/codeagent"),
	}
	logger.Info(ctx, "runner configured",
		zap.String("workspace", cfg.Workspace.Backend),
		zap.String("journal", cfg.Journal.Backend),
		zap.String("store", cfg.Store.Backend),
		zap.String("model_provider", cfg.Model.Provider),
		zap.String("model", cfg.Model.Name),
	)
	return a, nil
}

func (a *app) workspaces(ctx context.Context) (workspace.Provider, error) {
	switch a.cfg.Workspace.Backend {
	case "dagger":
		client, err := dagger.Connect(ctx, dagger.WithLogOutput(os.Stderr))
		if err != nil {
			return nil, fmt.Errorf("connecting to dagger: %w", err)
		}
		a.onClose(func(context.Context) error { return client.Close() })
		return workspace.NewDaggerProvider(client, a.cfg.Workspace.Image), nil
	default:
		p, err := workspace.NewLocalProvider(a.cfg.Workspace.Root)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

func (a *app) journal(ctx context.Context, nc *nats.Conn) (durable.Journal, error) {
	if a.cfg.Journal.Backend != "nats" {
		return durable.NewMemoryJournal(), nil
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("creating jetstream context: %w", err)
	}
	j, err := durable.NewKVJournal(ctx, js, a.cfg.NATS.Bucket)
	if err != nil {
		return nil, fmt.Errorf("opening step journal: %w", err)
	}
	return j, nil
}
