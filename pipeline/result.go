package pipeline

import (
	"time"

	"github.com/hupe1980/pipemesh/core"
)

// Status is the terminal state of a whole pipeline run.
type Status string

const (
	// StatusCompleted means every step reached a successful terminal state.
	StatusCompleted Status = "completed"
	// StatusFailed means the run was aborted by a step failure under fail_fast.
	StatusFailed Status = "failed"
	// StatusTimedOut means the pipeline's overall execution budget elapsed.
	StatusTimedOut Status = "timed_out"
	// StatusPartiallyCompleted means at least one step failed while the run
	// continued to the end under the continue policy.
	StatusPartiallyCompleted Status = "partially_completed"
)

// StepState is the terminal (or transient) state of a single step.
type StepState string

const (
	// StepNotStarted marks a step the run never reached.
	StepNotStarted StepState = "not_started"
	// StepRunning marks a step currently executing.
	StepRunning StepState = "running"
	// StepSucceeded marks a step whose adapter returned a result.
	StepSucceeded StepState = "succeeded"
	// StepFailed marks a step whose retries were exhausted by adapter errors
	// or which was cancelled by a fail-fast abort.
	StepFailed StepState = "failed"
	// StepTimedOut marks a step aborted by its own timeout after retries, or
	// cancelled by the pipeline's overall deadline.
	StepTimedOut StepState = "timed_out"
	// StepSkipped marks a step gated off by a branch predicate or skipped
	// after a fail-fast abort. Skipped steps record no result entry.
	StepSkipped StepState = "skipped"
)

// Terminal reports whether the state is an end state.
func (s StepState) Terminal() bool {
	switch s {
	case StepSucceeded, StepFailed, StepTimedOut, StepSkipped:
		return true
	default:
		return false
	}
}

// ErrorKind classifies an entry of Result.Errors.
type ErrorKind string

const (
	// ErrKindValidation marks a configuration rejected before execution.
	ErrKindValidation ErrorKind = "validation"
	// ErrKindAgentExecution marks an adapter invocation error.
	ErrKindAgentExecution ErrorKind = "agent_execution"
	// ErrKindStepTimeout marks a step aborted by a timeout.
	ErrKindStepTimeout ErrorKind = "step_timeout"
	// ErrKindAggregation marks a failure of the result aggregation strategy.
	ErrKindAggregation ErrorKind = "aggregation"
)

// StepError describes one recorded failure.
type StepError struct {
	AgentID string    `json:"agent_id,omitempty"`
	Kind    ErrorKind `json:"error_kind"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *StepError) Error() string {
	if e.AgentID == "" {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind) + " [" + e.AgentID + "]: " + e.Message
}

// StepOutcome is the per-step record kept by the coordinator: terminal state,
// normalized output for successful steps, and the failure for others.
type StepOutcome struct {
	AgentID string     `json:"agent_id"`
	State   StepState  `json:"state"`
	Output  any        `json:"output,omitempty"`
	Err     *StepError `json:"error,omitempty"`
}

// Result is the immutable outcome of one Coordinator.Run call.
type Result struct {
	// RunID matches the shared context's run identifier.
	RunID string `json:"run_id"`
	// Status is the terminal run state.
	Status Status `json:"status"`
	// StepResults maps agent IDs to outcomes for every step that finished
	// (successfully or with a recorded failure). Skipped and never-started
	// steps have no entry.
	StepResults map[string]StepOutcome `json:"step_results"`
	// Outcomes lists all steps in declaration order, including skipped and
	// never-started ones.
	Outcomes []StepOutcome `json:"outcomes"`
	// AggregatedOutput is the reducer's output, nil if aggregation failed or
	// was not attempted.
	AggregatedOutput any `json:"aggregated_output,omitempty"`
	// Errors lists recorded failures in declaration order, aggregation
	// errors last.
	Errors []StepError `json:"errors,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	executionLog []core.LogRecord
}

// ExecutionLog returns a copy of the run's append-only execution log so
// callers can persist or render it.
func (r *Result) ExecutionLog() []core.LogRecord {
	out := make([]core.LogRecord, len(r.executionLog))
	copy(out, r.executionLog)
	return out
}
