// Package history provides caller-side storage for completed pipeline runs.
// The engine itself never persists anything; hosts that want to keep
// execution logs or render past runs attach a store via the coordinator's
// Recorder option.
package history

import (
	"fmt"
	"sync"

	"github.com/hupe1980/pipemesh/pipeline"
)

// InMemoryStore is a process-local store of completed Results keyed by run
// ID. It implements pipeline.RunRecorder and is safe for concurrent use.
// Swap for a durable implementation when runs must outlive the process.
type InMemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*pipeline.Result
	ids  []string // insertion order
}

// NewInMemoryStore creates an empty run history store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{runs: make(map[string]*pipeline.Result)}
}

// Record implements pipeline.RunRecorder. Recording the same run twice is an
// error; run IDs are unique per execution.
func (s *InMemoryStore) Record(result *pipeline.Result) error {
	if result == nil {
		return fmt.Errorf("result must not be nil")
	}
	if result.RunID == "" {
		return fmt.Errorf("result has no run id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[result.RunID]; exists {
		return fmt.Errorf("run %s already recorded", result.RunID)
	}
	s.runs[result.RunID] = result
	s.ids = append(s.ids, result.RunID)

	return nil
}

// Get returns the recorded result for a run ID.
func (s *InMemoryStore) Get(runID string) (*pipeline.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s not found", runID)
	}

	return res, nil
}

// List returns all recorded run IDs in insertion order.
func (s *InMemoryStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}
