package pipeline

import "fmt"

// ValidationError describes why a Config was rejected before any step ran.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid pipeline config: %s: %s", e.Field, e.Reason)
}

func validationErrorf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks a Config without side effects. It enforces a non-empty
// step list, unique agent IDs, positive timeouts, known enum values and a
// resolvable aggregation strategy. Branch predicates on non-conditional
// pipelines are ignored, not rejected.
func Validate(cfg Config) error {
	if len(cfg.Steps) == 0 {
		return validationErrorf("steps", "at least one step is required")
	}

	if !cfg.Transition.Valid() {
		return validationErrorf("transition_type", "unknown transition %q", cfg.Transition)
	}

	if !cfg.FailurePolicy.Valid() {
		return validationErrorf("failure_policy", "unknown policy %q", cfg.FailurePolicy)
	}

	if cfg.MaxExecutionTime <= 0 {
		return validationErrorf("max_execution_time", "must be positive, got %s", cfg.MaxExecutionTime)
	}

	seen := make(map[string]struct{}, len(cfg.Steps))
	for i, step := range cfg.Steps {
		field := fmt.Sprintf("steps[%d]", i)

		if step.AgentID == "" {
			return validationErrorf(field+".agent_id", "must not be empty")
		}
		if _, dup := seen[step.AgentID]; dup {
			return validationErrorf(field+".agent_id", "duplicate agent id %q", step.AgentID)
		}
		seen[step.AgentID] = struct{}{}

		if step.Capability == "" {
			return validationErrorf(field+".capability_name", "must not be empty")
		}
		if step.Timeout <= 0 {
			return validationErrorf(field+".timeout", "must be positive, got %s", step.Timeout)
		}
		if step.MaxRetries < 0 {
			return validationErrorf(field+".max_retries", "must not be negative, got %d", step.MaxRetries)
		}
	}

	if cfg.Aggregator == nil {
		if _, ok := builtinAggregator(cfg.Aggregation); !ok {
			return validationErrorf("aggregation_strategy", "unknown strategy %q", cfg.Aggregation)
		}
	}

	return nil
}
