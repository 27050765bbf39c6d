package pipeline

import (
	"testing"
	"time"

	"github.com/hupe1980/pipemesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Name:             "valid",
		Transition:       TransitionSequential,
		FailurePolicy:    FailFast,
		MaxExecutionTime: time.Minute,
		Aggregation:      AggregateLastStep,
		Steps: []StepSpec{
			{AgentID: "a", Capability: "cap-a", Timeout: time.Second},
			{AgentID: "b", Capability: "cap-b", Timeout: time.Second},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, Validate(validConfig()))

	// Empty aggregation name defaults to last_step.
	cfg := validConfig()
	cfg.Aggregation = ""
	assert.NoError(t, Validate(cfg))

	// A custom aggregator makes the name irrelevant.
	cfg.Aggregation = "whatever"
	cfg.Aggregator = func([]StepOutcome) (any, error) { return nil, nil }
	assert.NoError(t, Validate(cfg))
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
		field  string
	}{
		{
			name:   "empty steps",
			mutate: func(cfg *Config) { cfg.Steps = nil },
			field:  "steps",
		},
		{
			name:   "unknown transition",
			mutate: func(cfg *Config) { cfg.Transition = "roundrobin" },
			field:  "transition_type",
		},
		{
			name:   "unknown failure policy",
			mutate: func(cfg *Config) { cfg.FailurePolicy = "retry-forever" },
			field:  "failure_policy",
		},
		{
			name:   "non-positive execution budget",
			mutate: func(cfg *Config) { cfg.MaxExecutionTime = 0 },
			field:  "max_execution_time",
		},
		{
			name:   "duplicate agent id",
			mutate: func(cfg *Config) { cfg.Steps[1].AgentID = "a" },
			field:  "steps[1].agent_id",
		},
		{
			name:   "empty agent id",
			mutate: func(cfg *Config) { cfg.Steps[0].AgentID = "" },
			field:  "steps[0].agent_id",
		},
		{
			name:   "empty capability",
			mutate: func(cfg *Config) { cfg.Steps[0].Capability = "" },
			field:  "steps[0].capability_name",
		},
		{
			name:   "non-positive timeout",
			mutate: func(cfg *Config) { cfg.Steps[1].Timeout = 0 },
			field:  "steps[1].timeout",
		},
		{
			name:   "negative retries",
			mutate: func(cfg *Config) { cfg.Steps[0].MaxRetries = -1 },
			field:  "steps[0].max_retries",
		},
		{
			name:   "unknown aggregation strategy",
			mutate: func(cfg *Config) { cfg.Aggregation = "median" },
			field:  "aggregation_strategy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidate_PredicateOutsideConditionalIsIgnored(t *testing.T) {
	cfg := validConfig()
	cfg.Steps[0].BranchPredicate = func(any, *core.SharedContext) bool { return true }
	assert.NoError(t, Validate(cfg))
}
