package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/genetix/internal/codeagent"
	"github.com/fyrsmithlabs/genetix/internal/workflows"
)

var (
	runProjectID string
	runID        string
)

var runCmd = &cobra.Command{
	Use:   "run [message]",
	Short: "Execute one code agent run in this process",
	Long: `Run the code agent once for a message and print the outcome as JSON.

Examples:
  # Build something in project p1
  genetix run --project p1 "a todo app with local storage"

  # Resume an interrupted run against a persistent journal
  genetix run --project p1 --run-id code-agent-1234 "a todo app"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOnce,
}

func init() {
	runCmd.Flags().StringVar(&runProjectID, "project", "", "project the result is stored under (required)")
	runCmd.Flags().StringVar(&runID, "run-id", "", "run identifier; reuse one to resume its recorded steps")
	_ = runCmd.MarkFlagRequired("project")
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ev := codeagent.NewEvent(strings.Join(args, " "), runProjectID)
	if err := ev.Validate(); err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	defer func() { _ = a.close(context.Background()) }()
	if err != nil {
		return err
	}

	id := runID
	if id == "" {
		id = workflows.NewRunID()
	}
	a.logger.Info(ctx, "starting run", zap.String("run.id", id), zap.String("project.id", runProjectID))

	outcome, err := a.runner.Run(ctx, id, ev)
	if err != nil {
		return fmt.Errorf("run %s: %w", id, err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		RunID   string `json:"runId"`
		Outcome any    `json:"outcome"`
	}{RunID: id, Outcome: outcome})
}
