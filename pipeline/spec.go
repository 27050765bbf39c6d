package pipeline

import (
	"time"

	"github.com/hupe1980/pipemesh/core"
)

// TransitionType selects the coordination strategy for a pipeline run.
type TransitionType string

const (
	// TransitionSequential executes steps strictly in declaration order,
	// feeding each step the normalized output of its predecessor.
	TransitionSequential TransitionType = "sequential"
	// TransitionParallel launches all steps concurrently against the same
	// initial input and joins on their terminal states.
	TransitionParallel TransitionType = "parallel"
	// TransitionConditional executes steps in order, gating each one on its
	// branch predicate; a false predicate skips the step and propagates the
	// predecessor's output unchanged.
	TransitionConditional TransitionType = "conditional"
)

// Valid reports whether the transition type is one of the known strategies.
func (t TransitionType) Valid() bool {
	switch t {
	case TransitionSequential, TransitionParallel, TransitionConditional:
		return true
	default:
		return false
	}
}

// FailurePolicy controls how a run reacts to a failing step.
type FailurePolicy string

const (
	// FailFast aborts the run on the first step failure. Sequential and
	// conditional runs skip the remaining steps; parallel runs cancel all
	// in-flight siblings.
	FailFast FailurePolicy = "fail_fast"
	// ContinueOnError lets the run proceed past failing steps. A failed
	// step contributes a nil output downstream and the run finishes
	// partially completed.
	ContinueOnError FailurePolicy = "continue"
)

// Valid reports whether the failure policy is known.
func (p FailurePolicy) Valid() bool {
	return p == FailFast || p == ContinueOnError
}

// InputTransform derives a step's input from the previous step's normalized
// output (or the pipeline's initial input) and the shared context. Transforms
// must be pure; they run on the coordinator's goroutine for ordered
// transitions and inside the step's goroutine for parallel ones.
type InputTransform func(previous any, shared *core.SharedContext) any

// OutputTransform normalizes a raw adapter output before it is recorded and
// propagated downstream. Must be pure.
type OutputTransform func(raw any) any

// BranchPredicate gates a step in a conditional pipeline. It receives the
// predecessor's output (the initial input for the first step) and the shared
// context; returning false skips the step. Must be pure.
type BranchPredicate func(previous any, shared *core.SharedContext) bool

// StepSpec declaratively describes one pipeline step.
type StepSpec struct {
	// AgentID uniquely identifies the step within its pipeline.
	AgentID string
	// Capability names the WorkflowAdapter resolved at run time through the
	// resolver the host passes to Coordinator.Run.
	Capability string
	// InputTransform derives the step input; nil passes the previous output
	// through unchanged.
	InputTransform InputTransform
	// OutputTransform normalizes the raw adapter result; nil keeps it as is.
	OutputTransform OutputTransform
	// BranchPredicate gates the step in conditional pipelines; nil means
	// "always run". It is ignored (not an error) for other transitions.
	BranchPredicate BranchPredicate
	// Timeout bounds a single invocation attempt. Must be positive.
	Timeout time.Duration
	// MaxRetries is the number of additional attempts after a failed or
	// timed out invocation, each with identical input.
	MaxRetries int
}

// Config is the declarative description of one pipeline: its ordered steps
// plus pipeline-wide policy.
type Config struct {
	// Name is a human-readable identifier, not required to be unique.
	Name string
	// Steps is the non-empty ordered step list.
	Steps []StepSpec
	// Transition selects the coordination strategy.
	Transition TransitionType
	// MaxExecutionTime is the wall-clock budget for the whole run. When it
	// elapses all in-flight steps are cancelled and the run ends timed out.
	// It always wins over per-step timeouts and retries.
	MaxExecutionTime time.Duration
	// FailurePolicy controls the reaction to failing steps.
	FailurePolicy FailurePolicy
	// Aggregation names a built-in result aggregation strategy. Ignored when
	// Aggregator is set; empty defaults to AggregateLastStep.
	Aggregation string
	// Aggregator is an optional caller-supplied reducer overriding the named
	// strategy. Must be pure.
	Aggregator Aggregator
}
