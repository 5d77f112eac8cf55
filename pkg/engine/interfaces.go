package engine

import (
	"context"
)

// The interfaces below describe the external collaborators that act on a Plan.
// The planner core only produces descriptors for them and never calls any of them.

// Executor runs the steps of a plan for real.
type Executor interface {
	// Execute performs the plan; tasks in one wave may run concurrently.
	Execute(ctx context.Context, plan *Plan) error

	// ExecuteStep performs a single plan step.
	ExecuteStep(ctx context.Context, step PlanStep) error
}

// SecretStore resolves and rotates credentials referenced by rotate-secret tasks.
type SecretStore interface {
	// Resolve returns the secret stored under a reference.
	Resolve(ctx context.Context, ref string) ([]byte, error)

	// Rotate issues a new secret under a reference.
	Rotate(ctx context.Context, ref string) error
}

// ConfigRunner applies configure tasks through a configuration-management tool.
type ConfigRunner interface {
	// Run applies the configuration described by a step.
	Run(ctx context.Context, step PlanStep) error
}

// InfraApplier provisions runtimes for deploy tasks through an infrastructure-as-code tool.
type InfraApplier interface {
	// Apply provisions the runtime described by a step.
	Apply(ctx context.Context, step PlanStep) error

	// Discover reports whether the component already exists on the target platform.
	Discover(ctx context.Context, component Component) (bool, error)
}

// WorkflowEngine schedules and runs automation loops.
type WorkflowEngine interface {
	// Enable registers the workflows with the engine.
	Enable(ctx context.Context, entries []ScheduleEntry) error
}
