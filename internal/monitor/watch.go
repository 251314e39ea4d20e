// Package monitor renders the live progress of a code agent run in the
// terminal from the events the run publishes on NATS.
package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/fyrsmithlabs/genetix/internal/events"
)

const bufferSize = 256

// Subscription delivers the decoded events of one run.
type Subscription struct {
	sub    *nats.Subscription
	raw    chan *nats.Msg
	events chan events.Event
	done   chan struct{}
	once   sync.Once
}

// Subscribe follows every event published for runID.
func Subscribe(nc *nats.Conn, runID string) (*Subscription, error) {
	raw := make(chan *nats.Msg, bufferSize)
	sub, err := nc.ChanSubscribe(events.RunSubject(runID), raw)
	if err != nil {
		return nil, fmt.Errorf("subscribe to run %s: %w", runID, err)
	}
	s := &Subscription{
		sub:    sub,
		raw:    raw,
		events: make(chan events.Event, bufferSize),
		done:   make(chan struct{}),
	}
	go s.decode()
	return s, nil
}

func (s *Subscription) decode() {
	defer close(s.events)
	for {
		var msg *nats.Msg
		select {
		case msg = <-s.raw:
		case <-s.done:
			return
		}
		var ev events.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
		if terminal(ev.Kind) {
			// Nothing follows a terminal event.
			_ = s.sub.Unsubscribe()
			return
		}
	}
}

// Events is closed after a terminal event or once Close is called.
func (s *Subscription) Events() <-chan events.Event {
	return s.events
}

// Close stops the subscription. It is safe to call after the run ended and
// without draining Events.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if uerr := s.sub.Unsubscribe(); uerr != nil && !errors.Is(uerr, nats.ErrBadSubscription) {
			err = uerr
		}
	})
	return err
}

func terminal(k events.Kind) bool {
	return k == events.RunPublished || k == events.RunFailed
}
