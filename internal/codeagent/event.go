package codeagent

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// EventName is the trigger that starts a code agent run.
const EventName = "code-agent/run"

// MaxValueLength bounds the change request, in characters.
const MaxValueLength = 10000

// ErrInvalidEvent is returned by Event.Validate.
var ErrInvalidEvent = errors.New("invalid event")

// Event asks for one run.
type Event struct {
	Name string    `json:"name"`
	Data EventData `json:"data"`
}

// EventData is the payload of a run trigger.
type EventData struct {
	// Value is the natural-language change request.
	Value string `json:"value"`
	// ProjectID groups the persisted messages of the run.
	ProjectID string `json:"projectId"`
}

// NewEvent returns a code-agent/run event.
func NewEvent(value, projectID string) Event {
	return Event{Name: EventName, Data: EventData{Value: value, ProjectID: projectID}}
}

// Validate checks the event name and payload.
func (e Event) Validate() error {
	switch {
	case e.Name != EventName:
		return fmt.Errorf("%w: unexpected name %q", ErrInvalidEvent, e.Name)
	case e.Data.Value == "":
		return fmt.Errorf("%w: Message is required", ErrInvalidEvent)
	case utf8.RuneCountInString(e.Data.Value) > MaxValueLength:
		return fmt.Errorf("%w: Message is too long", ErrInvalidEvent)
	case e.Data.ProjectID == "":
		return fmt.Errorf("%w: Project ID is required", ErrInvalidEvent)
	}
	return nil
}
