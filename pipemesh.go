// Package pipemesh provides a high-level façade over the pipeline
// Coordinator and the adapter Registry, enabling concise construction of
// multi-agent pipelines. Most applications interact with this package by:
//  1. Creating a PipeMesh via New() (optionally overriding logger, backoff,
//     run recorder)
//  2. Registering one or more workflow adapters by capability name
//  3. Running pipeline configurations against those capabilities
//
// The façade delegates orchestration to pipeline.Coordinator while keeping
// setup ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a structured logger and a
// durable run recorder.
package pipemesh

import (
	"context"

	"github.com/hupe1980/pipemesh/core"
	"github.com/hupe1980/pipemesh/logging"
	"github.com/hupe1980/pipemesh/pipeline"
)

// Options configures the PipeMesh instance.
type Options struct {
	// Logger receives engine diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
	// Recorder, when set, receives every completed run result.
	Recorder pipeline.RunRecorder
	// MaxConversationMessages bounds each run's conversation memory.
	MaxConversationMessages int
}

// PipeMesh bundles an adapter registry with a coordinator. It is safe for
// concurrent use; each Run call owns its own shared context.
type PipeMesh struct {
	registry    *core.Registry
	coordinator *pipeline.Coordinator
}

// New constructs a PipeMesh with optional overrides.
func New(optFns ...func(o *Options)) *PipeMesh {
	opts := Options{
		Logger:                  logging.NoOpLogger{},
		MaxConversationMessages: core.DefaultMaxMessages,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	coordinator := pipeline.New(func(o *pipeline.Options) {
		o.Logger = opts.Logger
		o.Recorder = opts.Recorder
		o.MaxConversationMessages = opts.MaxConversationMessages
	})

	return &PipeMesh{
		registry:    core.NewRegistry(),
		coordinator: coordinator,
	}
}

// RegisterAdapter binds a workflow adapter to a capability name.
func (p *PipeMesh) RegisterAdapter(capability string, adapter core.WorkflowAdapter) error {
	return p.registry.Register(capability, adapter)
}

// Registry exposes the underlying adapter registry, e.g. for sharing it with
// other engine instances.
func (p *PipeMesh) Registry() *core.Registry { return p.registry }

// Run executes a pipeline configuration against the registered capabilities.
func (p *PipeMesh) Run(ctx context.Context, cfg pipeline.Config, initialInput any) (*pipeline.Result, error) {
	return p.coordinator.Run(ctx, cfg, initialInput, p.registry.Resolver())
}
