package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/pipemesh/core"
	"github.com/hupe1980/pipemesh/logging"
)

// ErrStepTimeout is returned internally when a single invocation attempt
// exceeds its step timeout. It surfaces in step error messages and can be
// matched with errors.Is on wrapped adapter errors.
var ErrStepTimeout = errors.New("step timed out")

// errFailFast is the cancellation cause used when a fail-fast abort cancels
// the in-flight siblings of a failed parallel step.
var errFailFast = errors.New("pipeline aborted after step failure")

// RunRecorder receives completed results, e.g. for persisting execution logs.
// The history package provides an in-memory implementation.
type RunRecorder interface {
	Record(result *Result) error
}

// Options holds configuration overrides passed to New().
type Options struct {
	// Logger receives coordinator diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
	// MaxConversationMessages bounds each run's conversation memory.
	MaxConversationMessages int
	// RetryBackoffBase is the delay before the first retry; it doubles per
	// subsequent retry.
	RetryBackoffBase time.Duration
	// RetryBackoffMax caps the per-retry delay.
	RetryBackoffMax time.Duration
	// Recorder, when set, receives every completed Result.
	Recorder RunRecorder
}

// Coordinator drives pipeline runs: it validates configs, executes steps
// according to the transition strategy, enforces timeouts, retries and
// failure policy, and produces an immutable Result per run.
//
// A Coordinator holds no per-run state and is safe for concurrent Run calls;
// each run owns its own SharedContext.
type Coordinator struct {
	logger      logging.Logger
	maxMessages int
	backoffBase time.Duration
	backoffMax  time.Duration
	recorder    RunRecorder
}

// New constructs a Coordinator with optional overrides.
func New(optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		Logger:                  logging.NoOpLogger{},
		MaxConversationMessages: core.DefaultMaxMessages,
		RetryBackoffBase:        100 * time.Millisecond,
		RetryBackoffMax:         2 * time.Second,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Coordinator{
		logger:      opts.Logger,
		maxMessages: opts.MaxConversationMessages,
		backoffBase: opts.RetryBackoffBase,
		backoffMax:  opts.RetryBackoffMax,
		recorder:    opts.Recorder,
	}
}

// Run executes one pipeline. It returns an error only when the configuration
// or resolver is rejected before execution starts; past validation callers
// always receive a Result, with step failures, timeouts and aggregation
// problems captured inside it.
func (c *Coordinator) Run(ctx context.Context, cfg Config, initialInput any, resolve core.AdapterResolver) (*Result, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	if resolve == nil {
		return nil, &ValidationError{Field: "adapter_resolver", Reason: "must not be nil"}
	}

	shared := core.NewSharedContext(func(o *core.ContextOptions) {
		o.MaxMessages = c.maxMessages
	})

	r := &run{
		c:        c,
		cfg:      cfg,
		shared:   shared,
		resolve:  resolve,
		initial:  initialInput,
		logger:   c.logger,
		outcomes: make([]StepOutcome, len(cfg.Steps)),
	}
	for i := range cfg.Steps {
		r.outcomes[i] = StepOutcome{AgentID: cfg.Steps[i].AgentID, State: StepNotStarted}
	}

	started := time.Now().UTC()
	shared.LogEvent("", core.EventPipelineStarted, cfg.Name)
	c.logger.Info("pipeline run started",
		"pipeline", cfg.Name,
		"run_id", shared.RunID(),
		"transition", string(cfg.Transition),
		"steps", len(cfg.Steps),
	)

	runCtx, cancel := context.WithTimeout(ctx, cfg.MaxExecutionTime)
	defer cancel()

	switch cfg.Transition {
	case TransitionParallel:
		r.runParallel(runCtx)
	case TransitionConditional:
		r.runOrdered(runCtx, true)
	default:
		r.runOrdered(runCtx, false)
	}

	res := &Result{
		RunID:       shared.RunID(),
		Status:      r.finalStatus(runCtx),
		StepResults: make(map[string]StepOutcome, len(r.outcomes)),
		Outcomes:    r.outcomes,
		StartedAt:   started,
	}

	for _, oc := range r.outcomes {
		switch oc.State {
		case StepSucceeded, StepFailed, StepTimedOut:
			res.StepResults[oc.AgentID] = oc
		}
		if oc.Err != nil {
			res.Errors = append(res.Errors, *oc.Err)
		}
	}

	// Aggregation only makes sense for runs that went the distance; failed
	// and timed out runs keep their step errors without an extra
	// aggregation error on top.
	if res.Status == StatusCompleted || res.Status == StatusPartiallyCompleted {
		agg := resolveAggregator(cfg)
		out, err := agg(r.outcomes)
		if err != nil {
			res.Errors = append(res.Errors, StepError{Kind: ErrKindAggregation, Message: err.Error()})
			c.logger.Warn("result aggregation failed", "run_id", res.RunID, "error", err)
		} else {
			res.AggregatedOutput = out
		}
	}

	res.FinishedAt = time.Now().UTC()
	shared.LogEvent("", core.EventPipelineFinished, string(res.Status))
	res.executionLog = shared.ExecutionLog()

	c.logger.Info("pipeline run finished",
		"pipeline", cfg.Name,
		"run_id", res.RunID,
		"status", string(res.Status),
		"duration", res.FinishedAt.Sub(res.StartedAt),
	)

	if c.recorder != nil {
		if err := c.recorder.Record(res); err != nil {
			c.logger.Warn("failed to record run result", "run_id", res.RunID, "error", err)
		}
	}

	return res, nil
}

// backoffFor returns the delay before the given attempt (attempt 2 is the
// first retry). Exponential doubling from the base, capped at the maximum.
func (c *Coordinator) backoffFor(attempt int) time.Duration {
	d := c.backoffBase << (attempt - 2)
	if d <= 0 || d > c.backoffMax {
		return c.backoffMax
	}
	return d
}

// run is the per-execution state owned by a single Run call. Outcome slots
// are only written by the goroutine executing the corresponding step.
type run struct {
	c        *Coordinator
	cfg      Config
	shared   *core.SharedContext
	resolve  core.AdapterResolver
	initial  any
	logger   logging.Logger
	outcomes []StepOutcome
}

// runOrdered drives sequential and conditional transitions. Step i has fully
// reached a terminal state before step i+1 starts. With gated=true each
// step's branch predicate is evaluated against the predecessor's output (the
// initial input for the first step).
func (r *run) runOrdered(ctx context.Context, gated bool) {
	prev := r.initial

	for i := range r.cfg.Steps {
		spec := r.cfg.Steps[i]
		oc := &r.outcomes[i]

		if ctx.Err() != nil {
			// Budget exhausted before this step started; it stays not_started.
			continue
		}

		if gated && spec.BranchPredicate != nil && !spec.BranchPredicate(prev, r.shared) {
			oc.State = StepSkipped
			r.shared.LogEvent(spec.AgentID, core.EventStepSkipped, "branch predicate returned false")
			// Predecessor output propagates unchanged past the skipped step.
			continue
		}

		input := prev
		if spec.InputTransform != nil {
			input = spec.InputTransform(prev, r.shared)
		}

		r.executeStep(ctx, i, input)

		if oc.State == StepSucceeded {
			prev = oc.Output
			continue
		}

		if r.cfg.FailurePolicy == FailFast {
			r.skipRemaining(i + 1)
			return
		}
		// continue policy: the failed step contributes nil downstream.
		prev = nil
	}
}

// runParallel launches every step concurrently against the initial input and
// joins on all terminal states. Under fail_fast the first failing step
// cancels its in-flight siblings.
func (r *run) runParallel(ctx context.Context) {
	stepCtx := ctx
	var abort context.CancelCauseFunc
	if r.cfg.FailurePolicy == FailFast {
		stepCtx, abort = context.WithCancelCause(ctx)
		defer abort(nil)
	}

	var wg sync.WaitGroup
	for i := range r.cfg.Steps {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			spec := r.cfg.Steps[idx]
			input := r.initial
			if spec.InputTransform != nil {
				input = spec.InputTransform(r.initial, r.shared)
			}

			r.executeStep(stepCtx, idx, input)

			if abort != nil {
				if state := r.outcomes[idx].State; state == StepFailed || state == StepTimedOut {
					abort(errFailFast)
				}
			}
		}(i)
	}

	wg.Wait()
}

// skipRemaining marks all steps from index on as skipped after a fail-fast abort.
func (r *run) skipRemaining(from int) {
	for i := from; i < len(r.cfg.Steps); i++ {
		r.outcomes[i].State = StepSkipped
		r.shared.LogEvent(r.cfg.Steps[i].AgentID, core.EventStepSkipped, "skipped after fail-fast abort")
	}
}

// executeStep runs one step to a terminal state: resolve the adapter, invoke
// it with the step timeout, retry up to MaxRetries times with backoff, and
// record the outcome. A result entry is recorded for every executed step,
// successful or not.
func (r *run) executeStep(ctx context.Context, idx int, input any) {
	spec := r.cfg.Steps[idx]
	oc := &r.outcomes[idx]

	oc.State = StepRunning
	r.shared.LogEvent(spec.AgentID, core.EventStepStarted, spec.Capability)

	adapter, err := r.resolve(spec.Capability)
	if err != nil {
		r.finishStep(oc, StepFailed, ErrKindAgentExecution, fmt.Sprintf("resolve capability %q: %v", spec.Capability, err))
		return
	}

	attempts := spec.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			r.shared.LogEvent(spec.AgentID, core.EventStepRetried, fmt.Sprintf("attempt %d of %d", attempt, attempts))
			if !r.sleep(ctx, r.c.backoffFor(attempt)) {
				break
			}
		}

		start := time.Now()
		output, err := r.invokeOnce(ctx, adapter, spec, input)
		elapsed := time.Since(start)

		if err == nil {
			normalized := output
			if spec.OutputTransform != nil {
				normalized = spec.OutputTransform(output)
			}

			oc.State = StepSucceeded
			oc.Output = normalized

			if recErr := r.shared.RecordStepResult(spec.AgentID, normalized); recErr != nil {
				r.logger.Warn("could not record step result", "agent_id", spec.AgentID, "error", recErr)
			}
			r.shared.LogEvent(spec.AgentID, core.EventStepSucceeded, fmt.Sprintf("attempt %d took %s", attempt, elapsed))
			r.logger.Debug("step succeeded", "agent_id", spec.AgentID, "attempt", attempt, "duration", elapsed)

			return
		}

		lastErr = err
		r.logger.Warn("step attempt failed", "agent_id", spec.AgentID, "attempt", attempt, "error", err)

		if ctx.Err() != nil {
			break
		}
	}

	if ctx.Err() != nil {
		switch cause := context.Cause(ctx); {
		case errors.Is(cause, errFailFast):
			r.finishStep(oc, StepFailed, ErrKindAgentExecution, "cancelled: another step failed")
		case errors.Is(cause, context.DeadlineExceeded):
			r.finishStep(oc, StepTimedOut, ErrKindStepTimeout, "cancelled: pipeline execution budget exceeded")
		default:
			r.finishStep(oc, StepFailed, ErrKindAgentExecution, "cancelled: run context cancelled")
		}
		return
	}

	if errors.Is(lastErr, ErrStepTimeout) {
		r.finishStep(oc, StepTimedOut, ErrKindStepTimeout, fmt.Sprintf("no response within %s after %d attempts", spec.Timeout, attempts))
		return
	}

	r.finishStep(oc, StepFailed, ErrKindAgentExecution, lastErr.Error())
}

// finishStep records a terminal failure state, its error payload and the
// matching log event.
func (r *run) finishStep(oc *StepOutcome, state StepState, kind ErrorKind, msg string) {
	oc.State = state
	oc.Err = &StepError{AgentID: oc.AgentID, Kind: kind, Message: msg}

	if err := r.shared.RecordStepResult(oc.AgentID, oc.Err); err != nil {
		r.logger.Warn("could not record step result", "agent_id", oc.AgentID, "error", err)
	}

	event := core.EventStepFailed
	if state == StepTimedOut {
		event = core.EventStepTimedOut
	}
	r.shared.LogEvent(oc.AgentID, event, msg)
}

// invokeOnce performs a single adapter invocation bounded by the step
// timeout. The invocation runs in its own goroutine so a hung adapter cannot
// block the coordinator; on timeout the attempt is abandoned (the buffered
// channel lets the goroutine finish without leaking) and the adapter is
// expected to honor the cancelled context. Adapter panics are recovered and
// reported as execution errors.
func (r *run) invokeOnce(ctx context.Context, adapter core.WorkflowAdapter, spec StepSpec, input any) (any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	type attemptResult struct {
		output any
		err    error
	}

	ch := make(chan attemptResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				ch <- attemptResult{err: fmt.Errorf("adapter panic: %v", rec)}
			}
		}()

		res, err := adapter.Invoke(attemptCtx, input, r.shared)
		if err != nil {
			ch <- attemptResult{err: err}
			return
		}
		ch <- attemptResult{output: res.Output}
	}()

	select {
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return nil, fmt.Errorf("%w after %s", ErrStepTimeout, spec.Timeout)
	case ar := <-ch:
		if ar.err != nil {
			if errors.Is(ar.err, context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, fmt.Errorf("%w after %s", ErrStepTimeout, spec.Timeout)
			}
			return nil, ar.err
		}
		return ar.output, nil
	}
}

// sleep waits for d, returning false if the run context is cancelled first.
func (r *run) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// finalStatus derives the run status: the overall deadline always wins, then
// any step failure maps to failed (fail_fast) or partially completed
// (continue), otherwise the run completed.
func (r *run) finalStatus(runCtx context.Context) Status {
	if runCtx.Err() != nil && errors.Is(context.Cause(runCtx), context.DeadlineExceeded) {
		return StatusTimedOut
	}

	failed := false
	for i := range r.outcomes {
		switch r.outcomes[i].State {
		case StepFailed, StepTimedOut:
			failed = true
		}
	}

	if !failed {
		return StatusCompleted
	}
	if r.cfg.FailurePolicy == FailFast {
		return StatusFailed
	}
	return StatusPartiallyCompleted
}
