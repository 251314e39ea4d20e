package main

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/genetix/internal/monitor"
)

var watchCmd = &cobra.Command{
	Use:   "watch <run-id>",
	Short: "Follow a run's progress in the terminal",
	Long: `Subscribe to the events a run publishes on NATS (nats.events: true)
and render its iterations, tool calls and terminal output until the run
publishes its result or fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("genetix-watch"))
	if err != nil {
		return fmt.Errorf("connecting to nats: %w", err)
	}
	defer nc.Close()

	sub, err := monitor.Subscribe(nc, args[0])
	if err != nil {
		return err
	}
	defer func() { _ = sub.Close() }()

	model := monitor.NewModel(args[0], cfg.Engine.MaxIterations, sub.Events())
	final, err := tea.NewProgram(model, tea.WithContext(cmd.Context())).Run()
	if err != nil {
		return fmt.Errorf("running watch: %w", err)
	}
	if m, ok := final.(monitor.Model); ok && m.Failed() {
		return errors.New("run did not publish a result")
	}
	return nil
}
