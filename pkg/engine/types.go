package engine

import (
	"fmt"
)

// ActionKind is the kind of action a task performs.
type ActionKind string

const (
	// ActionDeploy provisions a runtime (VM, container, service).
	ActionDeploy ActionKind = "deploy"

	// ActionConfigure applies configuration to an existing runtime.
	ActionConfigure ActionKind = "configure"

	// ActionRotateSecret issues or rotates credentials.
	ActionRotateSecret ActionKind = "rotate-secret"

	// ActionDiscover inventories existing state.
	ActionDiscover ActionKind = "discover"

	// ActionOther covers tasks outside the enumerated kinds.
	ActionOther ActionKind = "other"
)

// Validate checks if the action kind is one of the enumerated values.
func (a ActionKind) Validate() error {
	switch a {
	case ActionDeploy, ActionConfigure, ActionRotateSecret, ActionDiscover, ActionOther:
		return nil
	default:
		return fmt.Errorf("unknown action kind %q", a)
	}
}

// Profile is the complete declarative description of one deployment.
// A Profile is immutable once loaded.
type Profile struct {
	// Name is the profile name.
	Name string `json:"name"`

	// Description is a free-form description shown in reports.
	Description string `json:"description,omitempty"`

	// Source is where the profile was loaded from.
	Source string `json:"source,omitempty"`

	// Components are the infrastructure units, in declaration order.
	Components []Component `json:"components"`

	// Workflows are the automation loops declared by the profile.
	Workflows []Workflow `json:"workflows,omitempty"`

	// Backups are the expected backup jobs.
	Backups []BackupExpectation `json:"backups,omitempty"`
}

// Component is a named infrastructure or service unit.
type Component struct {
	// ID is unique within the profile.
	ID string `json:"id"`

	// Category groups components (datastore, automation, observability, ...).
	Category string `json:"category"`

	// Description is a free-form description.
	Description string `json:"description,omitempty"`

	// Installed records that the component already exists on the target platform.
	Installed bool `json:"installed,omitempty"`

	// Tasks are the component's tasks in declaration order.
	Tasks []Task `json:"tasks"`
}

// Task is an atomic installable or configurable action.
type Task struct {
	// ID is unique within the profile.
	ID string `json:"id"`

	// ComponentID is the owning component.
	ComponentID string `json:"component"`

	// Description is a human description of the task.
	Description string `json:"description,omitempty"`

	// Action is the task's action kind.
	Action ActionKind `json:"action"`

	// DependsOn lists the task ids that must run first.
	DependsOn []string `json:"depends_on,omitempty"`

	// Idempotent marks the task as safe to re-run. It is a contract, not enforced.
	Idempotent bool `json:"idempotent"`

	// Precondition is an optional expression that must hold for the task to run.
	Precondition string `json:"precondition,omitempty"`

	// Parameters are opaque task parameters handed to external executors.
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// Summary returns the description, falling back to the task id.
func (t *Task) Summary() string {
	if t.Description != "" {
		return t.Description
	}
	return t.ID
}

// Workflow describes a named automation loop.
type Workflow struct {
	// Loop is the loop identifier (main, discovery, adaptive, ...).
	Loop string `json:"loop"`

	// Runtime is an opaque tag naming the runtime that hosts the loop.
	Runtime string `json:"runtime"`

	// Template references the workflow template.
	Template string `json:"template"`

	// Description is a free-form description.
	Description string `json:"description,omitempty"`

	// Phases are ordered stage names.
	Phases []string `json:"phases,omitempty"`

	// Inputs name external signal sources.
	Inputs []string `json:"inputs,omitempty"`

	// Outputs name downstream effects.
	Outputs []string `json:"outputs,omitempty"`

	// Trigger activates the loop.
	Trigger Trigger `json:"trigger"`
}

// Trigger is a cron recurrence, a fixed interval, or both (cron with a timer fallback).
type Trigger struct {
	// Cron is a standard five-field cron expression.
	Cron string `json:"cron,omitempty"`

	// Timezone applies to Cron. Defaults to UTC when Cron is set.
	Timezone string `json:"timezone,omitempty"`

	// IntervalSeconds is a fixed interval, or the fallback interval when Cron is set.
	IntervalSeconds int `json:"interval_seconds,omitempty"`
}

// HasCron reports whether the trigger has a cron recurrence.
func (t Trigger) HasCron() bool {
	return t.Cron != ""
}

// HasInterval reports whether the trigger has an interval.
func (t Trigger) HasInterval() bool {
	return t.IntervalSeconds > 0
}

// Describe returns the resolved, human-readable trigger description.
func (t Trigger) Describe() string {
	switch {
	case t.HasCron() && t.HasInterval():
		return fmt.Sprintf("cron %q (%s) with fallback every %ds", t.Cron, t.timezone(), t.IntervalSeconds)
	case t.HasCron():
		return fmt.Sprintf("cron %q (%s)", t.Cron, t.timezone())
	case t.HasInterval():
		return fmt.Sprintf("every %ds", t.IntervalSeconds)
	default:
		return "no trigger"
	}
}

func (t Trigger) timezone() string {
	if t.Timezone == "" {
		return "UTC"
	}
	return t.Timezone
}

// ScheduleEntry joins a workflow to its trigger for reporting. It is derived, not stored.
type ScheduleEntry struct {
	Loop        string  `json:"loop"`
	Runtime     string  `json:"runtime"`
	Template    string  `json:"template"`
	Trigger     Trigger `json:"trigger"`
	Description string  `json:"description"`
}

// ScheduleEntries derives one schedule entry per workflow, in profile order.
func (p *Profile) ScheduleEntries() []ScheduleEntry {
	entries := make([]ScheduleEntry, 0, len(p.Workflows))
	for _, wf := range p.Workflows {
		entries = append(entries, ScheduleEntry{
			Loop:        wf.Loop,
			Runtime:     wf.Runtime,
			Template:    wf.Template,
			Trigger:     wf.Trigger,
			Description: wf.Trigger.Describe(),
		})
	}
	return entries
}

// Component returns the component with the given id.
func (p *Profile) Component(id string) (*Component, bool) {
	for i := range p.Components {
		if p.Components[i].ID == id {
			return &p.Components[i], true
		}
	}
	return nil, false
}

// Tasks returns all tasks in declaration order (component order, then task order).
func (p *Profile) Tasks() []Task {
	var tasks []Task
	for _, c := range p.Components {
		tasks = append(tasks, c.Tasks...)
	}
	return tasks
}

// BackupExpectation declares a backup job the deployment is expected to have.
type BackupExpectation struct {
	// Datastore is the expected datastore name.
	Datastore string `json:"datastore"`

	// Namespace is the expected namespace. Empty matches any namespace.
	Namespace string `json:"namespace,omitempty"`

	// Retention is the expected retention policy.
	Retention Retention `json:"retention"`

	// ExpectedGuests are the component ids the job must cover.
	ExpectedGuests []string `json:"expected_guests,omitempty"`
}

// Outcome is the simulated result of a task in a dry-run.
type Outcome string

const (
	OutcomeCreate           Outcome = "would-create"
	OutcomeUpdate           Outcome = "would-update"
	OutcomeSkip             Outcome = "would-skip-already-satisfied"
	OutcomeFailPrecondition Outcome = "would-fail-precondition"
)

// Outcomes lists every outcome in reporting order.
var Outcomes = []Outcome{OutcomeCreate, OutcomeUpdate, OutcomeSkip, OutcomeFailPrecondition}

// PlanStep is one task of a plan with its simulated outcome.
type PlanStep struct {
	// Index is the 1-based position in execution order.
	Index int `json:"index"`

	// Task is the task id.
	Task string `json:"task"`

	// Component is the owning component id.
	Component string `json:"component"`

	// Description is the task summary.
	Description string `json:"description"`

	// Action is the task's action kind.
	Action ActionKind `json:"action"`

	// Idempotent mirrors the task's idempotency contract.
	Idempotent bool `json:"idempotent"`

	// DependsOn lists the task's dependencies.
	DependsOn []string `json:"depends_on,omitempty"`

	// Wave is the 0-based execution wave.
	Wave int `json:"wave"`

	// Outcome is the simulated outcome.
	Outcome Outcome `json:"outcome"`

	// Reason explains the outcome.
	Reason string `json:"reason"`

	// Parameters are the task parameters, passed through for external executors.
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// PlanSummary counts steps per outcome.
type PlanSummary struct {
	Total              int `json:"total"`
	ToCreate           int `json:"to_create"`
	ToUpdate           int `json:"to_update"`
	AlreadySatisfied   int `json:"already_satisfied"`
	FailedPrecondition int `json:"failed_precondition"`
}

// Plan is the ordered, simulated execution plan. It is derived and never persisted.
type Plan struct {
	// Profile is the profile name.
	Profile string `json:"profile"`

	// Description is the profile description.
	Description string `json:"description,omitempty"`

	// DryRun is always true; the core never executes tasks.
	DryRun bool `json:"dry_run"`

	// Fingerprint identifies the plan content; identical profiles give identical fingerprints.
	Fingerprint string `json:"fingerprint"`

	// Steps are the tasks in execution order.
	Steps []PlanStep `json:"steps"`

	// Waves group task ids that an external executor may run concurrently.
	Waves [][]string `json:"waves"`

	// Summary counts steps per outcome.
	Summary PlanSummary `json:"summary"`
}

// Components returns the distinct component ids touched by the plan, in step order.
func (p *Plan) Components() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range p.Steps {
		if !seen[s.Component] {
			seen[s.Component] = true
			ids = append(ids, s.Component)
		}
	}
	return ids
}
