package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockAdapter is a lightweight in-memory WorkflowAdapter useful for tests and
// examples. It supports canned responses per input, a fixed artificial
// latency, and a scripted number of leading failures to exercise retry paths.
// All methods are safe for concurrent use.
type MockAdapter struct {
	mu          sync.Mutex
	responses   map[string]any
	delay       time.Duration
	failures    int
	invocations int
}

// NewMockAdapter constructs a MockAdapter with no canned responses; unknown
// inputs echo a descriptive string.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{responses: make(map[string]any)}
}

// AddResponse registers a deterministic output for a string input.
func (m *MockAdapter) AddResponse(input string, output any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[input] = output
}

// SetDelay makes every invocation sleep for d before responding, honoring
// context cancellation while waiting.
func (m *MockAdapter) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// FailTimes scripts the next n invocations to return an error before the
// adapter starts succeeding again.
func (m *MockAdapter) FailTimes(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
}

// Invocations returns how many times Invoke has been called.
func (m *MockAdapter) Invocations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invocations
}

// Invoke implements WorkflowAdapter.
func (m *MockAdapter) Invoke(ctx context.Context, input any, _ *SharedContext) (AgentResult, error) {
	m.mu.Lock()
	m.invocations++
	delay := m.delay
	fail := m.failures > 0
	if fail {
		m.failures--
	}
	var output any
	if s, ok := input.(string); ok {
		if canned, ok := m.responses[s]; ok {
			output = canned
		}
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return AgentResult{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	if fail {
		return AgentResult{}, fmt.Errorf("mock adapter scripted failure")
	}

	if output == nil {
		output = fmt.Sprintf("mock response to: %v", input)
	}

	return AgentResult{
		Output:   output,
		Metadata: map[string]any{"provider": "mock"},
	}, nil
}
