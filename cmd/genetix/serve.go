package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/genetix/internal/http"
	"github.com/fyrsmithlabs/genetix/internal/logging"
	"github.com/fyrsmithlabs/genetix/internal/workflows"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the message API. Each created message starts a code agent run,
either in this process or on a Temporal worker depending on
server.dispatcher.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
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

	var dispatcher workflows.Dispatcher
	switch cfg.Server.Dispatcher {
	case "temporal":
		c, err := dialTemporal(cfg.Temporal.HostPort, cfg.Temporal.Namespace, logger)
		if err != nil {
			return err
		}
		defer c.Close()
		dispatcher = &workflows.TemporalDispatcher{
			Client:     c,
			TaskQueue:  cfg.Temporal.TaskQueue,
			RunTimeout: cfg.Engine.RunTimeout.Duration(),
		}
	default:
		d := workflows.NewInProcessDispatcher(a.runner, logger)
		defer d.Close()
		dispatcher = d
	}

	srv, err := http.NewServer(a.store, dispatcher, logger, &http.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		RatePerMinute: cfg.Server.RatePerMinute,
		Meter:         a.telemetry.Meter("genetix/http"),
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "http shutdown failed", zap.Error(err))
		return err
	}
	logger.Info(shutdownCtx, "server stopped gracefully")
	return nil
}

func dialTemporal(hostPort, namespace string, logger *logging.Logger) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  hostPort,
		Namespace: namespace,
		Logger:    logging.NewTemporalAdapter(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create Temporal client: %w", err)
	}
	logger.Info(context.Background(), "temporal client connected",
		zap.String("host", hostPort),
		zap.String("namespace", namespace),
	)
	return c, nil
}
