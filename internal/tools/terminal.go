package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/genetix/internal/durable"
	"github.com/fyrsmithlabs/genetix/internal/events"
)

// TerminalArgs are the arguments of the terminal tool.
type TerminalArgs struct {
	Command string `json:"command" jsonschema:"shell command to run in the sandbox working directory"`
}

// Terminal runs one shell command per invocation as a durable step.
func Terminal() (Tool, error) {
	return newTyped("terminal", "Use the terminal to run commands", runTerminal)
}

func runTerminal(ctx context.Context, rc *RunContext, args TerminalArgs) Result {
	res, err := durable.Step(ctx, rc.Steps, "terminal", func(ctx context.Context) (Result, error) {
		var (
			mu             sync.Mutex
			stdout, stderr strings.Builder
		)
		collect := func(buf *strings.Builder, stream string) func(string) {
			return func(chunk string) {
				mu.Lock()
				buf.WriteString(chunk)
				mu.Unlock()
				rc.emit(ctx, events.ToolOutput, map[string]any{"tool": "terminal", "stream": stream, "chunk": chunk})
			}
		}

		h, err := rc.connect(ctx)
		if err == nil {
			var out string
			out, err = runIn(ctx, h, args.Command, collect(&stdout, "stdout"), collect(&stderr, "stderr"))
			if err == nil {
				return Ok(out), nil
			}
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		mu.Lock()
		defer mu.Unlock()
		return Failure(fmt.Sprintf("Command failed: %v\nstdout: %s\nstderr: %s", err, stdout.String(), stderr.String())), nil
	})
	if err != nil {
		// Timeouts, cancellation and journal errors.
		rc.Log().Warn(ctx, "terminal step error", zap.Error(err))
		return Failure(fmt.Sprintf("Command failed: %v\nstdout: \nstderr: ", err))
	}
	rc.emit(ctx, events.ToolFinished, map[string]any{"tool": "terminal", "failed": res.Failed})
	return res
}
