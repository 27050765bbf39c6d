// Package core defines the leaf types shared by the pipemesh engine and its
// collaborators: the WorkflowAdapter capability contract, the per-run
// SharedContext (conversation memory, variables, execution log, step
// results), and the host-constructed adapter Registry.
//
// Everything in this package is transport- and provider-agnostic. The
// pipeline package drives execution; concrete adapters live behind the
// WorkflowAdapter interface and are resolved by capability name through a
// resolver the host supplies per run.
package core
