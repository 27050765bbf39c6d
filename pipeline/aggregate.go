package pipeline

import "fmt"

// Built-in aggregation strategy names.
const (
	// AggregateLastStep returns the result of the last step, in declaration
	// order, that succeeded.
	AggregateLastStep = "last_step"
	// AggregateConcatenate returns the ordered list of all successful step
	// outputs.
	AggregateConcatenate = "concatenate"
	// AggregateKeyedByAgent returns a map from agent ID to output for
	// successful steps only.
	AggregateKeyedByAgent = "keyed_by_agent"
)

// Aggregator reduces the ordered per-step outcomes of a run into one
// pipeline-level output. Implementations must be pure; they receive outcomes
// in declaration order, including skipped and failed ones.
type Aggregator func(outcomes []StepOutcome) (any, error)

// AggregationError describes a strategy that failed to reduce results. It is
// recorded in Result.Errors but never changes the run status.
type AggregationError struct {
	Strategy string
	Reason   string
}

// Error implements the error interface.
func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregation %q failed: %s", e.Strategy, e.Reason)
}

// builtinAggregator resolves a built-in strategy by name. The empty name
// resolves to last_step.
func builtinAggregator(name string) (Aggregator, bool) {
	switch name {
	case "", AggregateLastStep:
		return aggregateLastStep, true
	case AggregateConcatenate:
		return aggregateConcatenate, true
	case AggregateKeyedByAgent:
		return aggregateKeyedByAgent, true
	default:
		return nil, false
	}
}

// resolveAggregator picks the caller-supplied reducer when present, the named
// built-in otherwise. Config validation guarantees resolvability.
func resolveAggregator(cfg Config) Aggregator {
	if cfg.Aggregator != nil {
		return cfg.Aggregator
	}
	agg, _ := builtinAggregator(cfg.Aggregation)
	return agg
}

func aggregateLastStep(outcomes []StepOutcome) (any, error) {
	for i := len(outcomes) - 1; i >= 0; i-- {
		if outcomes[i].State == StepSucceeded {
			return outcomes[i].Output, nil
		}
	}
	return nil, &AggregationError{Strategy: AggregateLastStep, Reason: "no step succeeded"}
}

func aggregateConcatenate(outcomes []StepOutcome) (any, error) {
	out := make([]any, 0, len(outcomes))
	for _, oc := range outcomes {
		if oc.State == StepSucceeded {
			out = append(out, oc.Output)
		}
	}
	return out, nil
}

func aggregateKeyedByAgent(outcomes []StepOutcome) (any, error) {
	out := make(map[string]any, len(outcomes))
	for _, oc := range outcomes {
		if oc.State == StepSucceeded {
			out[oc.AgentID] = oc.Output
		}
	}
	return out, nil
}
