package config

import (
	"context"
	"fmt"
	"sort"

	"go.starlark.net/starlark"

	"github.com/ralf-homelab/ralf/pkg/engine"
)

// DefaultMaxSteps bounds precondition evaluation when no budget is configured.
const DefaultMaxSteps = 100000

// StarlarkEvaluator evaluates task preconditions as Starlark expressions.
// It implements engine.PreconditionEvaluator.
//
// Expressions see the predeclared values profile, component and task (dicts) and the
// builtins has_component(id) and has_task(id). Execution is bounded by a step budget
// rather than wall-clock time, so the same profile always evaluates the same way.
type StarlarkEvaluator struct {
	maxSteps uint64
}

// NewStarlarkEvaluator creates a new Starlark evaluator.
func NewStarlarkEvaluator(maxSteps uint64) *StarlarkEvaluator {
	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}
	return &StarlarkEvaluator{
		maxSteps: maxSteps,
	}
}

// Evaluate returns whether the task's precondition holds. The expression must yield
// a bool; any other value is an error.
func (se *StarlarkEvaluator) Evaluate(ctx context.Context, profile *engine.Profile, component *engine.Component, task *engine.Task) (bool, error) {
	if task.Precondition == "" {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	thread := &starlark.Thread{
		Name: "precondition:" + task.ID,
		Print: func(_ *starlark.Thread, msg string) {
			// Suppress print
		},
		Load: func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
			return nil, fmt.Errorf("load(%q) is not permitted in preconditions", module)
		},
	}
	thread.SetMaxExecutionSteps(se.maxSteps)

	predeclared, err := se.environment(profile, component, task)
	if err != nil {
		return false, err
	}

	val, err := starlark.Eval(thread, task.ID+".precondition", task.Precondition, predeclared)
	if err != nil {
		return false, fmt.Errorf("starlark evaluation failed: %w", err)
	}

	result, ok := val.(starlark.Bool)
	if !ok {
		return false, fmt.Errorf("precondition must evaluate to a bool, got %s", val.Type())
	}
	return bool(result), nil
}

// environment builds the predeclared names visible to a precondition.
func (se *StarlarkEvaluator) environment(profile *engine.Profile, component *engine.Component, task *engine.Task) (starlark.StringDict, error) {
	components := make(map[string]bool, len(profile.Components))
	tasks := make(map[string]bool)
	componentList := make([]interface{}, 0, len(profile.Components))
	for _, c := range profile.Components {
		components[c.ID] = true
		componentList = append(componentList, componentInput(&c))
		for _, t := range c.Tasks {
			tasks[t.ID] = true
		}
	}

	profileVal, err := toStarlarkValue(map[string]interface{}{
		"name":       profile.Name,
		"components": componentList,
		"workflows":  workflowLoops(profile),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to convert profile: %w", err)
	}
	componentVal, err := toStarlarkValue(componentInput(component))
	if err != nil {
		return nil, fmt.Errorf("failed to convert component %s: %w", component.ID, err)
	}
	params := normalizeParameters(task.Parameters)
	if params == nil {
		params = map[string]interface{}{}
	}
	taskVal, err := toStarlarkValue(map[string]interface{}{
		"id":         task.ID,
		"action":     string(task.Action),
		"idempotent": task.Idempotent,
		"depends_on": stringsToInterfaces(task.DependsOn),
		"parameters": params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to convert task %s: %w", task.ID, err)
	}

	return starlark.StringDict{
		"profile":       profileVal,
		"component":     componentVal,
		"task":          taskVal,
		"has_component": membershipBuiltin("has_component", components),
		"has_task":      membershipBuiltin("has_task", tasks),
	}, nil
}

func componentInput(c *engine.Component) map[string]interface{} {
	ids := make([]string, 0, len(c.Tasks))
	for _, t := range c.Tasks {
		ids = append(ids, t.ID)
	}
	return map[string]interface{}{
		"id":        c.ID,
		"category":  c.Category,
		"installed": c.Installed,
		"tasks":     stringsToInterfaces(ids),
	}
}

func workflowLoops(profile *engine.Profile) []interface{} {
	loops := make([]interface{}, 0, len(profile.Workflows))
	for _, w := range profile.Workflows {
		loops = append(loops, w.Loop)
	}
	return loops
}

// membershipBuiltin returns a builtin reporting whether its single string argument is in set.
func membershipBuiltin(name string, set map[string]bool) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var id string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &id); err != nil {
			return nil, err
		}
		return starlark.Bool(set[id]), nil
	})
}

func stringsToInterfaces(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// toStarlarkValue converts a Go value to a Starlark value. Dict keys are inserted in
// sorted order so iteration inside expressions is deterministic.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		dict := starlark.NewDict(len(val))
		for _, k := range keys {
			starlarkVal, err := toStarlarkValue(val[k])
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		dict.Freeze()
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
