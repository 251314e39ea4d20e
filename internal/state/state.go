// Package state holds the mutable record of one agent run: the files the
// agent has written and the completion summary it reported.
package state

import (
	"maps"
	"sync"
)

// Snapshot is a point-in-time copy of a run's state.
type Snapshot struct {
	Files   map[string]string `json:"files"`
	Summary string            `json:"summary"`
}

// State is shared by every tool invocation and hook of a run. All methods
// are safe for concurrent use.
type State struct {
	mu      sync.Mutex
	files   map[string]string
	summary string
}

// New returns an empty state.
func New() *State {
	return &State{files: map[string]string{}}
}

// Files returns a copy of the published files map.
func (s *State) Files() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.files)
}

// SetFiles replaces the files map wholesale with a copy of files.
func (s *State) SetFiles(files map[string]string) {
	cp := maps.Clone(files)
	if cp == nil {
		cp = map[string]string{}
	}
	s.mu.Lock()
	s.files = cp
	s.mu.Unlock()
}

// Summary returns the completion summary, or "" if the agent has not finished.
func (s *State) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// SetSummary records summary if none is set yet. It reports whether the
// value was stored; empty summaries are never stored.
func (s *State) SetSummary(summary string) bool {
	if summary == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary != "" {
		return false
	}
	s.summary = summary
	return true
}

// Snapshot returns a copy of files and summary taken under one lock.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Files: maps.Clone(s.files), Summary: s.summary}
}

// IsError reports whether the run ended without a usable result: no
// summary, or no files.
func (s Snapshot) IsError() bool {
	return s.Summary == "" || len(s.Files) == 0
}
