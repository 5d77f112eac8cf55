package config

import (
	"fmt"

	"github.com/ralf-homelab/ralf/pkg/engine"
)

// ProfileDocument is the on-disk profile as decoded from YAML, JSON or CUE.
// Field names in validation errors are the document keys.
type ProfileDocument struct {
	// Name is the profile name.
	Name string `yaml:"name" json:"name" validate:"required"`

	// Description is a free-form description.
	Description string `yaml:"description" json:"description,omitempty"`

	// Components are the infrastructure units in declaration order.
	Components []ComponentConfig `yaml:"components" json:"components,omitempty" validate:"dive"`

	// Workflows are the automation loops.
	Workflows []WorkflowConfig `yaml:"workflows" json:"workflows,omitempty" validate:"dive"`

	// Backups are the expected backup jobs.
	Backups []BackupConfig `yaml:"backups" json:"backups,omitempty" validate:"dive"`
}

// ComponentConfig is a component entry of the document.
type ComponentConfig struct {
	// ID is the component identifier (e.g., "postgres").
	ID string `yaml:"id" json:"id" validate:"required,identifier"`

	// Category groups components (e.g., "datastore", "automation").
	Category string `yaml:"category" json:"category,omitempty"`

	// Description is a free-form description.
	Description string `yaml:"description" json:"description,omitempty"`

	// Installed marks the component as already present on the platform.
	Installed bool `yaml:"installed" json:"installed,omitempty"`

	// Tasks are the component's tasks in declaration order.
	Tasks []TaskConfig `yaml:"tasks" json:"tasks,omitempty" validate:"dive"`
}

// TaskConfig is a task entry of a component.
type TaskConfig struct {
	// ID is unique within the profile.
	ID string `yaml:"id" json:"id" validate:"required,identifier"`

	// Description is a human description.
	Description string `yaml:"description" json:"description,omitempty"`

	// Action is the action kind.
	Action string `yaml:"action" json:"action" validate:"required,oneof=deploy configure rotate-secret discover other"`

	// DependsOn lists task ids that must run first. References are resolved by the graph builder.
	DependsOn []string `yaml:"depends_on" json:"depends_on,omitempty" validate:"dive,required"`

	// Idempotent marks the task as safe to re-run.
	Idempotent bool `yaml:"idempotent" json:"idempotent,omitempty"`

	// Precondition is an optional Starlark expression.
	Precondition string `yaml:"precondition" json:"precondition,omitempty"`

	// Parameters are opaque parameters for external executors.
	Parameters map[string]interface{} `yaml:"parameters" json:"parameters,omitempty"`
}

// WorkflowConfig is a workflow entry of the document.
type WorkflowConfig struct {
	Loop        string         `yaml:"loop" json:"loop" validate:"required"`
	Runtime     string         `yaml:"runtime" json:"runtime" validate:"required"`
	Template    string         `yaml:"template" json:"template,omitempty"`
	Description string         `yaml:"description" json:"description,omitempty"`
	Phases      []string       `yaml:"phases" json:"phases,omitempty" validate:"dive,required"`
	Inputs      []string       `yaml:"inputs" json:"inputs,omitempty" validate:"dive,required"`
	Outputs     []string       `yaml:"outputs" json:"outputs,omitempty" validate:"dive,required"`
	Trigger     *TriggerConfig `yaml:"trigger" json:"trigger" validate:"required"`
}

// TriggerConfig is a workflow trigger. At least one of Cron or IntervalSeconds is required.
type TriggerConfig struct {
	Cron            string `yaml:"cron" json:"cron,omitempty" validate:"omitempty,cron"`
	Timezone        string `yaml:"timezone" json:"timezone,omitempty" validate:"omitempty,timezone"`
	IntervalSeconds int    `yaml:"interval_seconds" json:"interval_seconds,omitempty" validate:"gte=0"`
}

// BackupConfig is an expected backup job.
type BackupConfig struct {
	Datastore      string   `yaml:"datastore" json:"datastore" validate:"required"`
	Namespace      string   `yaml:"namespace" json:"namespace,omitempty"`
	Retention      string   `yaml:"retention" json:"retention" validate:"required,retention"`
	ExpectedGuests []string `yaml:"expected_guests" json:"expected_guests,omitempty" validate:"dive,required"`
}

// ToEngineProfile converts a validated document into the immutable engine profile.
func (d *ProfileDocument) ToEngineProfile(source string) (*engine.Profile, error) {
	profile := &engine.Profile{
		Name:        d.Name,
		Description: d.Description,
		Source:      source,
		Components:  make([]engine.Component, 0, len(d.Components)),
		Workflows:   make([]engine.Workflow, 0, len(d.Workflows)),
		Backups:     make([]engine.BackupExpectation, 0, len(d.Backups)),
	}

	for _, c := range d.Components {
		component := engine.Component{
			ID:          c.ID,
			Category:    c.Category,
			Description: c.Description,
			Installed:   c.Installed,
			Tasks:       make([]engine.Task, 0, len(c.Tasks)),
		}
		for _, t := range c.Tasks {
			component.Tasks = append(component.Tasks, engine.Task{
				ID:           t.ID,
				ComponentID:  c.ID,
				Description:  t.Description,
				Action:       engine.ActionKind(t.Action),
				DependsOn:    copyStrings(t.DependsOn),
				Idempotent:   t.Idempotent,
				Precondition: t.Precondition,
				Parameters:   normalizeParameters(t.Parameters),
			})
		}
		profile.Components = append(profile.Components, component)
	}

	for _, w := range d.Workflows {
		trigger := engine.Trigger{
			Cron:            w.Trigger.Cron,
			Timezone:        w.Trigger.Timezone,
			IntervalSeconds: w.Trigger.IntervalSeconds,
		}
		if trigger.Cron != "" && trigger.Timezone == "" {
			trigger.Timezone = "UTC"
		}
		profile.Workflows = append(profile.Workflows, engine.Workflow{
			Loop:        w.Loop,
			Runtime:     w.Runtime,
			Template:    w.Template,
			Description: w.Description,
			Phases:      copyStrings(w.Phases),
			Inputs:      copyStrings(w.Inputs),
			Outputs:     copyStrings(w.Outputs),
			Trigger:     trigger,
		})
	}

	for i, b := range d.Backups {
		retention, err := engine.ParseRetention(b.Retention)
		if err != nil {
			return nil, engine.NewSchemaViolationError(indexPath("backups", i)+".retention", err.Error())
		}
		profile.Backups = append(profile.Backups, engine.BackupExpectation{
			Datastore:      b.Datastore,
			Namespace:      b.Namespace,
			Retention:      retention,
			ExpectedGuests: copyStrings(b.ExpectedGuests),
		})
	}

	return profile, nil
}

func copyStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// normalizeParameters converts decoded document values into JSON-compatible
// types. Mapping keys become strings.
func normalizeParameters(params map[string]interface{}) map[string]interface{} {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalizeValue(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	case []string:
		return stringsToInterfaces(val)
	case float32:
		return float64(val)
	case int32:
		return int(val)
	case uint64:
		return int64(val)
	default:
		return v
	}
}
