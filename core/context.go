package core

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event kinds recorded in the execution log. Adapters may log additional,
// free-form kinds; these are the ones the coordinator itself emits.
const (
	EventPipelineStarted  = "pipeline_started"
	EventPipelineFinished = "pipeline_finished"
	EventStepStarted      = "step_started"
	EventStepSucceeded    = "step_succeeded"
	EventStepFailed       = "step_failed"
	EventStepTimedOut     = "step_timed_out"
	EventStepSkipped      = "step_skipped"
	EventStepRetried      = "step_retried"
)

// ErrResultRecorded is returned by RecordStepResult when a result for the
// same agent ID was already recorded.
var ErrResultRecorded = errors.New("step result already recorded")

// Message is one entry of the conversation memory shared by all steps.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LogRecord is one append-only execution log entry. Records are immutable
// once appended; the log only grows for the lifetime of a run.
type LogRecord struct {
	Timestamp time.Time `json:"timestamp"`
	AgentID   string    `json:"agent_id,omitempty"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
}

// DefaultMaxMessages bounds the conversation memory when no override is given.
const DefaultMaxMessages = 256

// SharedContext is the mutable state shared by all steps of one pipeline
// run: bounded conversation memory, a string-keyed variable map, an
// append-only execution log, and per-step result storage.
//
// One SharedContext exists per run, owned by the coordinator for that run
// and never shared across concurrent runs. All mutating operations are
// serialized by an internal mutex so concurrently executing parallel steps
// cannot corrupt the variable map or the log; no operation performs I/O
// under the lock. Reads return defensive copies.
//
// Concurrent writes to the same variable key are last-write-wins by
// completion order.
type SharedContext struct {
	runID string

	mu          sync.RWMutex
	messages    []Message
	maxMessages int
	variables   map[string]any
	log         []LogRecord
	stepResults map[string]any
}

// ContextOptions configures construction of a SharedContext.
type ContextOptions struct {
	// RunID overrides the generated run identifier.
	RunID string
	// MaxMessages bounds the conversation memory; oldest entries are dropped
	// once the bound is exceeded. Non-positive values fall back to
	// DefaultMaxMessages.
	MaxMessages int
}

// NewSharedContext creates the shared state for a single pipeline run.
func NewSharedContext(optFns ...func(o *ContextOptions)) *SharedContext {
	opts := ContextOptions{
		MaxMessages: DefaultMaxMessages,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = DefaultMaxMessages
	}

	return &SharedContext{
		runID:       opts.RunID,
		maxMessages: opts.MaxMessages,
		variables:   make(map[string]any),
		stepResults: make(map[string]any),
	}
}

// RunID returns the unique identifier of this pipeline run.
func (c *SharedContext) RunID() string { return c.runID }

// GetVariable returns the value stored under key and whether it exists.
func (c *SharedContext) GetVariable(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.variables[key]
	return v, ok
}

// SetVariable stores a value under key, overwriting any previous value.
func (c *SharedContext) SetVariable(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables[key] = value
}

// Variables returns a shallow copy of the variable map as of the most recent
// completed write.
func (c *SharedContext) Variables() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.variables))
	for k, v := range c.variables {
		out[k] = v
	}
	return out
}

// AppendMessage adds a role/content entry to the conversation memory,
// evicting the oldest entries beyond the configured bound.
func (c *SharedContext) AppendMessage(role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, Message{Role: role, Content: content})
	if len(c.messages) > c.maxMessages {
		drop := len(c.messages) - c.maxMessages
		c.messages = append(c.messages[:0:0], c.messages[drop:]...)
	}
}

// ConversationHistory returns a copy of the conversation memory in append order.
func (c *SharedContext) ConversationHistory() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// LogEvent appends a record to the execution log. It never fails; the log is
// append-only and grows monotonically.
func (c *SharedContext) LogEvent(agentID, kind, detail string) {
	rec := LogRecord{
		Timestamp: time.Now().UTC(),
		AgentID:   agentID,
		Kind:      kind,
		Detail:    detail,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, rec)
}

// ExecutionLog returns a copy of the execution log in append order.
func (c *SharedContext) ExecutionLog() []LogRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]LogRecord, len(c.log))
	copy(out, c.log)
	return out
}

// RecordStepResult stores the normalized result for a finished step. Calling
// it twice for the same agent ID returns ErrResultRecorded instead of
// silently overwriting.
func (c *SharedContext) RecordStepResult(agentID string, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.stepResults[agentID]; exists {
		return fmt.Errorf("%w: agent %s", ErrResultRecorded, agentID)
	}
	c.stepResults[agentID] = result

	return nil
}

// StepResult returns the recorded result for an agent ID and whether one exists.
func (c *SharedContext) StepResult(agentID string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.stepResults[agentID]
	return v, ok
}

// StepResults returns a shallow copy of the per-step result map. Only steps
// that finished (successfully or with a recorded failure) have entries.
func (c *SharedContext) StepResults() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.stepResults))
	for k, v := range c.stepResults {
		out[k] = v
	}
	return out
}
