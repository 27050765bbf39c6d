package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// StepSpecWire is the serializable subset of StepSpec. Transforms and
// predicates are code, not data; hosts attach them after decoding.
type StepSpecWire struct {
	AgentID        string  `json:"agent_id" yaml:"agent_id"`
	Capability     string  `json:"capability_name" yaml:"capability_name"`
	TimeoutSeconds float64 `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int     `json:"max_retries" yaml:"max_retries"`
}

// ConfigWire is the serializable subset of Config, matching the natural JSON
// schema for pipeline requests:
//
//	{pipeline_name, steps: [...], transition_type,
//	 max_execution_time_seconds, failure_policy, aggregation_strategy}
type ConfigWire struct {
	Name                    string         `json:"pipeline_name" yaml:"pipeline_name"`
	Steps                   []StepSpecWire `json:"steps" yaml:"steps"`
	Transition              TransitionType `json:"transition_type" yaml:"transition_type"`
	MaxExecutionTimeSeconds float64        `json:"max_execution_time_seconds" yaml:"max_execution_time_seconds"`
	FailurePolicy           FailurePolicy  `json:"failure_policy" yaml:"failure_policy"`
	Aggregation             string         `json:"aggregation_strategy" yaml:"aggregation_strategy"`
}

// Config converts the wire form into an executable Config. The result still
// needs Validate (or Coordinator.Run, which validates) before use.
func (w ConfigWire) Config() Config {
	cfg := Config{
		Name:             w.Name,
		Transition:       w.Transition,
		MaxExecutionTime: secondsToDuration(w.MaxExecutionTimeSeconds),
		FailurePolicy:    w.FailurePolicy,
		Aggregation:      w.Aggregation,
		Steps:            make([]StepSpec, len(w.Steps)),
	}

	for i, s := range w.Steps {
		cfg.Steps[i] = StepSpec{
			AgentID:    s.AgentID,
			Capability: s.Capability,
			Timeout:    secondsToDuration(s.TimeoutSeconds),
			MaxRetries: s.MaxRetries,
		}
	}

	return cfg
}

// DecodeConfigJSON parses a JSON pipeline definition.
func DecodeConfigJSON(data []byte) (Config, error) {
	var w ConfigWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Config{}, fmt.Errorf("decode pipeline config: %w", err)
	}
	return w.Config(), nil
}

// DecodeConfigYAML parses a YAML pipeline definition.
func DecodeConfigYAML(data []byte) (Config, error) {
	var w ConfigWire
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Config{}, fmt.Errorf("decode pipeline config: %w", err)
	}
	return w.Config(), nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
