package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// planNamespace is the UUID namespace for plan fingerprints.
var planNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://ralf.dev/plan"))

// PreconditionEvaluator decides whether a task's precondition expression holds.
// Implementations must be pure functions of their arguments.
type PreconditionEvaluator interface {
	// Evaluate returns whether task.Precondition holds for the given profile.
	Evaluate(ctx context.Context, profile *Profile, component *Component, task *Task) (bool, error)
}

// DryRunPlanner simulates a task graph and classifies every task without side effects.
type DryRunPlanner struct {
	// evaluator checks task preconditions; nil fails every task that declares one
	evaluator PreconditionEvaluator
}

// NewDryRunPlanner creates a new dry-run planner.
func NewDryRunPlanner(evaluator PreconditionEvaluator) *DryRunPlanner {
	return &DryRunPlanner{evaluator: evaluator}
}

// Plan computes the simulated outcome of each task in graph order. When graph is nil
// it is built from the profile. Plan reads nothing but the profile.
func (p *DryRunPlanner) Plan(ctx context.Context, profile *Profile, graph *TaskGraph) (*Plan, error) {
	if profile == nil {
		return nil, &Error{Kind: KindInternal, Message: "profile is nil"}
	}
	if graph == nil {
		var err error
		graph, err = BuildTaskGraph(profile)
		if err != nil {
			return nil, err
		}
	}

	plan := &Plan{
		Profile:     profile.Name,
		Description: profile.Description,
		DryRun:      true,
		Steps:       make([]PlanStep, 0, graph.Len()),
		Waves:       graph.Waves(),
	}

	outcomes := make(map[string]Outcome, graph.Len())
	for i, id := range graph.Order() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		task, ok := graph.Task(id)
		if !ok {
			return nil, &Error{Kind: KindInternal, Message: "task missing from graph", Identifier: id}
		}
		component, ok := profile.Component(task.ComponentID)
		if !ok {
			return nil, &Error{
				Kind:       KindInternal,
				Message:    fmt.Sprintf("task %q references missing component %q", task.ID, task.ComponentID),
				Identifier: task.ID,
			}
		}

		outcome, reason := p.classify(ctx, profile, component, task, graph, outcomes)
		outcomes[id] = outcome

		plan.Steps = append(plan.Steps, PlanStep{
			Index:       i + 1,
			Task:        task.ID,
			Component:   task.ComponentID,
			Description: task.Summary(),
			Action:      task.Action,
			Idempotent:  task.Idempotent,
			DependsOn:   graph.Dependencies(id),
			Wave:        graph.Wave(id),
			Outcome:     outcome,
			Reason:      reason,
			Parameters:  task.Parameters,
		})
		plan.Summary.add(outcome)
	}

	fingerprint, err := fingerprintPlan(plan)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Message: "failed to fingerprint plan", Err: err}
	}
	plan.Fingerprint = fingerprint

	return plan, nil
}

// classify determines a task's outcome. Dependencies are always classified first
// because tasks are visited in graph order.
func (p *DryRunPlanner) classify(
	ctx context.Context,
	profile *Profile,
	component *Component,
	task *Task,
	graph *TaskGraph,
	outcomes map[string]Outcome,
) (Outcome, string) {
	for _, dep := range graph.Dependencies(task.ID) {
		if outcomes[dep] == OutcomeFailPrecondition {
			return OutcomeFailPrecondition, "blocked by " + dep
		}
	}

	if task.Precondition != "" {
		if p.evaluator == nil {
			return OutcomeFailPrecondition, "precondition cannot be evaluated: no evaluator configured"
		}
		ok, err := p.evaluator.Evaluate(ctx, profile, component, task)
		if err != nil {
			return OutcomeFailPrecondition, fmt.Sprintf("precondition error: %v", err)
		}
		if !ok {
			return OutcomeFailPrecondition, fmt.Sprintf("precondition not met: %s", task.Precondition)
		}
	}

	if component.Installed {
		if task.Idempotent && (task.Action == ActionDeploy || task.Action == ActionDiscover) {
			return OutcomeSkip, fmt.Sprintf("component %s already installed", component.ID)
		}
		return OutcomeUpdate, fmt.Sprintf("component %s installed; %s re-applied", component.ID, task.Action)
	}

	return OutcomeCreate, fmt.Sprintf("component %s not installed", component.ID)
}

// add counts one outcome.
func (s *PlanSummary) add(outcome Outcome) {
	s.Total++
	switch outcome {
	case OutcomeCreate:
		s.ToCreate++
	case OutcomeUpdate:
		s.ToUpdate++
	case OutcomeSkip:
		s.AlreadySatisfied++
	case OutcomeFailPrecondition:
		s.FailedPrecondition++
	}
}

// fingerprintPlan derives a name-based UUID from the plan content. The plan holds no
// timestamps and encoding/json sorts map keys, so equal plans hash equally.
func fingerprintPlan(plan *Plan) (string, error) {
	canonical := struct {
		Profile string     `json:"profile"`
		Steps   []PlanStep `json:"steps"`
		Waves   [][]string `json:"waves"`
	}{plan.Profile, plan.Steps, plan.Waves}

	data, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}
	return uuid.NewSHA1(planNamespace, data).String(), nil
}
