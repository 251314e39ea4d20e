package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/genetix/internal/workflows"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the Temporal worker for code agent runs",
	Long: `Poll the configured Temporal task queue and execute code agent
workflows. Use a shared journal (journal.backend: nats) so a retried
activity resumes on any worker.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	defer func() { _ = a.close(context.Background()) }()
	if err != nil {
		return err
	}
	logger := a.logger

	if cfg.Journal.Backend == "memory" {
		logger.Warn(ctx, "memory journal in use, retried activities restart from scratch")
	}

	c, err := dialTemporal(cfg.Temporal.HostPort, cfg.Temporal.Namespace, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	metrics, err := workflows.NewMetrics(a.telemetry.Meter("genetix/workflows"))
	if err != nil {
		return fmt.Errorf("creating workflow metrics: %w", err)
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.CodeAgentWorkflow)
	w.RegisterActivity(&workflows.Activities{
		Runner:  a.runner,
		Logger:  logger,
		Metrics: metrics,
	})
	logger.Info(ctx, "worker configured", zap.String("task_queue", cfg.Temporal.TaskQueue))

	// Run stops the worker once the channel closes.
	stop := make(chan interface{})
	go func() {
		<-ctx.Done()
		logger.Info(context.Background(), "shutdown signal received")
		close(stop)
	}()

	logger.Info(ctx, "worker starting")
	if err := w.Run(stop); err != nil {
		return fmt.Errorf("worker error: %w", err)
	}

	logger.Info(context.Background(), "worker stopped gracefully")
	return nil
}
