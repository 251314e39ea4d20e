package state

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_SetFilesReplacesWholesale(t *testing.T) {
	s := New()
	s.SetFiles(map[string]string{"a.txt": "1", "b.txt": "2"})
	s.SetFiles(map[string]string{"c.txt": "3"})

	assert.Equal(t, map[string]string{"c.txt": "3"}, s.Files())
}

func TestState_FilesAreCopies(t *testing.T) {
	in := map[string]string{"a.txt": "1"}
	s := New()
	s.SetFiles(in)
	in["a.txt"] = "mutated"

	out := s.Files()
	out["b.txt"] = "added"

	assert.Equal(t, map[string]string{"a.txt": "1"}, s.Files())
}

func TestState_SetSummaryOnce(t *testing.T) {
	s := New()
	assert.False(t, s.SetSummary(""))
	assert.True(t, s.SetSummary("Built a todo app"))
	assert.False(t, s.SetSummary("Something else"))
	assert.Equal(t, "Built a todo app", s.Summary())
}

func TestSnapshot_IsError(t *testing.T) {
	tests := []struct {
		name  string
		snap  Snapshot
		isErr bool
	}{
		{"empty", Snapshot{}, true},
		{"summary only", Snapshot{Summary: "done"}, true},
		{"files only", Snapshot{Files: map[string]string{"a": "1"}}, true},
		{"both", Snapshot{Summary: "done", Files: map[string]string{"a": "1"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isErr, tt.snap.IsError())
		})
	}
}

func TestState_ConcurrentWrites(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.SetFiles(map[string]string{fmt.Sprintf("f%d", i): "x"})
			s.SetSummary(fmt.Sprintf("summary %d", i))
			_ = s.Snapshot()
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Len(t, snap.Files, 1)
	assert.NotEmpty(t, snap.Summary)
}
