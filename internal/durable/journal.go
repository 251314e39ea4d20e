package durable

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// ErrAlreadyRecorded is returned by Journal.Save when the key already holds
// a record. The first record wins.
var ErrAlreadyRecorded = errors.New("step already recorded")

// Record is the persisted outcome of one step.
type Record struct {
	Label      string          `json:"label"`
	Seq        int             `json:"seq"`
	Value      json.RawMessage `json:"value,omitempty"`
	Failure    string          `json:"failure,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Failed reports whether the step recorded an error.
func (r Record) Failed() bool {
	return r.Failure != ""
}

// Journal persists step records keyed by (run ID, step key).
type Journal interface {
	// Load returns the record for key, or ok=false if none exists.
	Load(ctx context.Context, runID, key string) (rec Record, ok bool, err error)
	// Save stores rec under key. It returns ErrAlreadyRecorded if a record
	// exists.
	Save(ctx context.Context, runID, key string, rec Record) error
}

// MemoryJournal keeps records in process memory.
type MemoryJournal struct {
	mu   sync.Mutex
	runs map[string]map[string]Record
}

var _ Journal = (*MemoryJournal)(nil)

// NewMemoryJournal returns an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{runs: make(map[string]map[string]Record)}
}

func (j *MemoryJournal) Load(_ context.Context, runID, key string) (Record, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec, ok := j.runs[runID][key]
	return rec, ok, nil
}

func (j *MemoryJournal) Save(_ context.Context, runID, key string, rec Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	steps, ok := j.runs[runID]
	if !ok {
		steps = make(map[string]Record)
		j.runs[runID] = steps
	}
	if _, exists := steps[key]; exists {
		return ErrAlreadyRecorded
	}
	steps[key] = rec
	return nil
}

// Keys returns the recorded step keys of a run.
func (j *MemoryJournal) Keys(runID string) []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	keys := make([]string, 0, len(j.runs[runID]))
	for k := range j.runs[runID] {
		keys = append(keys, k)
	}
	return keys
}
