// Package pipeline implements the pipemesh orchestration engine. A
// Coordinator executes a configured sequence of agent steps according to a
// transition strategy (sequential, parallel, conditional) while giving every
// step controlled access to a shared memory context.
//
// Typical usage:
//
//	registry := core.NewRegistry()
//	_ = registry.Register("summarize", myAdapter)
//
//	cfg := pipeline.Config{
//		Name:             "report",
//		Transition:       pipeline.TransitionSequential,
//		FailurePolicy:    pipeline.FailFast,
//		MaxExecutionTime: time.Minute,
//		Aggregation:      pipeline.AggregateLastStep,
//		Steps: []pipeline.StepSpec{
//			{AgentID: "fetch", Capability: "retrieval", Timeout: 10 * time.Second},
//			{AgentID: "write", Capability: "summarize", Timeout: 30 * time.Second},
//		},
//	}
//
//	coordinator := pipeline.New()
//	result, err := coordinator.Run(ctx, cfg, "input", registry.Resolver())
//
// Past configuration validation the coordinator never returns an error:
// step failures, timeouts and aggregation problems are all captured in the
// returned Result.
package pipeline
