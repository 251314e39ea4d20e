// Package network drives agents in a loop until the run reports completion
// or exhausts its iteration budget.
package network

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/genetix/internal/agent"
	"github.com/fyrsmithlabs/genetix/internal/events"
	"github.com/fyrsmithlabs/genetix/internal/llm"
	"github.com/fyrsmithlabs/genetix/internal/state"
	"github.com/fyrsmithlabs/genetix/internal/tools"
)

// DefaultMaxIter bounds the number of ticks when Network.MaxIter is zero.
const DefaultMaxIter = 15

// RouterArgs is what a Router decides on.
type RouterArgs struct {
	Network   *Network
	State     *state.State
	Iteration int
	History   []llm.Message
}

// Router picks the agent for the next tick. Returning nil ends the run.
type Router func(ctx context.Context, args *RouterArgs) *agent.Agent

// DefaultRouter routes to the first agent until a summary is recorded.
func DefaultRouter(_ context.Context, args *RouterArgs) *agent.Agent {
	if args.State.Summary() != "" || len(args.Network.Agents) == 0 {
		return nil
	}
	return args.Network.Agents[0]
}

// Network is a set of agents and the routing policy between them.
type Network struct {
	Name    string
	Agents  []*agent.Agent
	MaxIter int
	Router  Router
}

// Result is the final state of a network run.
type Result struct {
	Iterations int
	State      state.Snapshot
	History    []llm.Message
}

// New returns a network with the default router and iteration cap.
func New(name string, agents ...*agent.Agent) *Network {
	return &Network{Name: name, Agents: agents, MaxIter: DefaultMaxIter, Router: DefaultRouter}
}

// Run ticks until the router returns nil, a summary is recorded or MaxIter
// ticks have run. Reaching the cap is not an error. Agent errors, including
// provider failures, abort the run.
func (n *Network) Run(ctx context.Context, rc *tools.RunContext, input string) (*Result, error) {
	maxIter := n.MaxIter
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}
	router := n.Router
	if router == nil {
		router = DefaultRouter
	}
	if len(n.Agents) == 0 {
		return nil, errors.New("network has no agents")
	}

	log := rc.Log().With(zap.String("network", n.Name))
	history := []llm.Message{{Role: llm.RoleUser, Text: input}}

	iter := 0
	for iter < maxIter {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next := router(ctx, &RouterArgs{Network: n, State: rc.State, Iteration: iter, History: history})
		if next == nil {
			break
		}

		start := time.Now()
		n.emit(ctx, rc, events.TickStarted, map[string]any{"iteration": iter + 1, "agent": next.Name})
		turn, err := next.Run(ctx, rc, history)
		if err != nil {
			log.Warn(ctx, "agent turn failed", zap.Int("iteration", iter+1), zap.Error(err))
			return nil, err
		}
		history = append(history, turn.Messages...)
		iter++
		n.emit(ctx, rc, events.TickFinished, map[string]any{
			"iteration":  iter,
			"agent":      next.Name,
			"tool_calls": len(turn.Response.ToolCalls),
		})
		log.Debug(ctx, "tick finished",
			zap.Int("iteration", iter),
			zap.Int("tool_calls", len(turn.Response.ToolCalls)),
			zap.Duration("elapsed", time.Since(start)))

		if rc.State.Summary() != "" {
			break
		}
	}

	snap := rc.State.Snapshot()
	n.emit(ctx, rc, events.RunDone, map[string]any{"iterations": iter, "summary": snap.Summary != ""})
	log.Info(ctx, "network finished", zap.Int("iterations", iter), zap.Bool("summary", snap.Summary != ""))
	return &Result{Iterations: iter, State: snap, History: history}, nil
}

func (n *Network) emit(ctx context.Context, rc *tools.RunContext, kind events.Kind, data map[string]any) {
	if rc.Events != nil {
		rc.Events.Emit(ctx, events.Event{RunID: rc.Steps.RunID(), Kind: kind, Time: time.Now(), Data: data})
	}
}
