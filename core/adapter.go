package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownCapability is returned by a Registry when no adapter has been
// registered under the requested capability name.
var ErrUnknownCapability = errors.New("unknown capability")

// AgentResult is the value a WorkflowAdapter produces for one invocation.
// Output carries the step's payload; Metadata carries provider-specific
// details (model name, token usage, latency) that the engine passes through
// without interpretation.
type AgentResult struct {
	Output   any            `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// WorkflowAdapter is the capability contract the engine invokes for each
// pipeline step. Implementations perform the step's actual work; what that
// work is stays opaque to the coordinator.
//
// Contract:
//   - Invoke must honor ctx cancellation; the coordinator may stop waiting on
//     timeout and must never be blocked indefinitely.
//   - All shared-state mutations go through the SharedContext's own
//     operations, synchronously, before Invoke returns. Adapters must not
//     touch the context after returning control.
//   - The coordinator does not assume idempotency: a retried step is
//     re-invoked with identical input, so non-idempotent side effects may
//     apply more than once.
type WorkflowAdapter interface {
	Invoke(ctx context.Context, input any, shared *SharedContext) (AgentResult, error)
}

// AdapterFunc adapts a plain function to the WorkflowAdapter interface.
type AdapterFunc func(ctx context.Context, input any, shared *SharedContext) (AgentResult, error)

// Invoke implements WorkflowAdapter.
func (f AdapterFunc) Invoke(ctx context.Context, input any, shared *SharedContext) (AgentResult, error) {
	return f(ctx, input, shared)
}

// AdapterResolver maps a capability name to a concrete WorkflowAdapter. The
// host supplies one per Coordinator.Run call; the engine holds no global
// registry of its own.
type AdapterResolver func(capability string) (WorkflowAdapter, error)

// Registry is a host-constructed mapping from capability names to adapters.
// It is safe for concurrent use, so a single registry can back many pipeline
// runs at once.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]WorkflowAdapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]WorkflowAdapter)}
}

// Register binds an adapter to a capability name. Registering the same name
// twice is an error; use a fresh registry per deployment configuration
// instead of mutating bindings in place.
func (r *Registry) Register(capability string, adapter WorkflowAdapter) error {
	if capability == "" {
		return errors.New("capability name must not be empty")
	}
	if adapter == nil {
		return fmt.Errorf("adapter for capability %q must not be nil", capability)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[capability]; exists {
		return fmt.Errorf("capability %q already registered", capability)
	}
	r.adapters[capability] = adapter

	return nil
}

// Resolve returns the adapter bound to the capability name.
func (r *Registry) Resolve(capability string) (WorkflowAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[capability]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, capability)
	}

	return adapter, nil
}

// Capabilities returns an unordered snapshot of registered capability names.
func (r *Registry) Capabilities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}

	return names
}

// Resolver returns an AdapterResolver backed by this registry, suitable for
// passing directly into Coordinator.Run.
func (r *Registry) Resolver() AdapterResolver {
	return r.Resolve
}
