// Package events publishes the progress of agent runs.
//
// Events are published to NATS subjects of the form
//
//	runs.{run_id}.{kind}
//
// where kind is one of the Kind constants (which may contain dots), so a
// client can follow a single run with "runs.<id>.>" or every run with
// "runs.>". Publishing is best-effort: a run never fails because an event
// could not be delivered.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/genetix/internal/logging"
	"github.com/fyrsmithlabs/genetix/internal/secrets"
)

// Kind names an event type.
type Kind string

const (
	RunStarted   Kind = "run.started"
	TickStarted  Kind = "tick.started"
	TickFinished Kind = "tick.finished"
	ToolOutput   Kind = "tool.output"
	ToolFinished Kind = "tool.finished"
	RunDone      Kind = "run.done"
	RunFailed    Kind = "run.failed"
	RunPublished Kind = "run.published"
)

// Event is one progress notification.
type Event struct {
	RunID string         `json:"run_id"`
	Kind  Kind           `json:"kind"`
	Time  time.Time      `json:"time"`
	Data  map[string]any `json:"data,omitempty"`
}

// Emitter publishes events.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}

// NATSEmitter publishes JSON-encoded events to NATS core subjects.
type NATSEmitter struct {
	nc       *nats.Conn
	scrubber secrets.Scrubber
	logger   *logging.Logger
}

var _ Emitter = (*NATSEmitter)(nil)

// NewNATSEmitter returns an emitter that scrubs string data with scrubber
// before publishing. scrubber may be nil.
func NewNATSEmitter(nc *nats.Conn, scrubber secrets.Scrubber, logger *logging.Logger) *NATSEmitter {
	if scrubber == nil {
		scrubber = secrets.Nop{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &NATSEmitter{nc: nc, scrubber: scrubber, logger: logger}
}

// Subject returns the subject for a run's events of kind.
func Subject(runID string, kind Kind) string {
	return fmt.Sprintf("runs.%s.%s", subjectToken(runID), kind)
}

// RunSubject returns the wildcard subject matching every event of a run.
func RunSubject(runID string) string {
	return "runs." + subjectToken(runID) + ".>"
}

// subjectToken replaces characters NATS reserves in subject tokens.
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n':
			return '_'
		}
		return r
	}, s)
}

func (e *NATSEmitter) Emit(ctx context.Context, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	if len(ev.Data) > 0 {
		scrubbed := make(map[string]any, len(ev.Data))
		for k, v := range ev.Data {
			if s, ok := v.(string); ok {
				v = e.scrubber.Scrub(s).Scrubbed
			}
			scrubbed[k] = v
		}
		ev.Data = scrubbed
	}
	data, err := json.Marshal(ev)
	if err != nil {
		e.logger.Warn(ctx, "marshal run event", zap.Error(err))
		return
	}
	if err := e.nc.Publish(Subject(ev.RunID, ev.Kind), data); err != nil {
		e.logger.Warn(ctx, "publish run event", zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}

// Recorder keeps events in memory for inspection.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns the recorded events in emission order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events in emission order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]Kind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	return kinds
}
