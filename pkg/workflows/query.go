// Package workflows answers which automation loops of a profile match a runtime
// and loop filter.
package workflows

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ralf-homelab/ralf/pkg/engine"
)

// Filter selects workflows. Empty fields match every value of that dimension.
type Filter struct {
	// Runtime matches the workflow runtime exactly.
	Runtime string `json:"runtime,omitempty"`

	// Loops matches any of the listed loop ids exactly.
	Loops []string `json:"loops,omitempty"`
}

// Matches reports whether a workflow satisfies every supplied filter.
func (f Filter) Matches(w engine.Workflow) bool {
	if f.Runtime != "" && w.Runtime != f.Runtime {
		return false
	}
	if len(f.Loops) == 0 {
		return true
	}
	for _, loop := range f.Loops {
		if w.Loop == loop {
			return true
		}
	}
	return false
}

// String describes the filter, e.g. "runtime=orchestrator loop=main,discovery".
func (f Filter) String() string {
	var parts []string
	if f.Runtime != "" {
		parts = append(parts, "runtime="+f.Runtime)
	}
	if len(f.Loops) > 0 {
		loops := append([]string(nil), f.Loops...)
		sort.Strings(loops)
		parts = append(parts, "loop="+strings.Join(loops, ","))
	}
	if len(parts) == 0 {
		return "all workflows"
	}
	return strings.Join(parts, " ")
}

// Match is a matching workflow annotated for runbooks and external orchestrators.
type Match struct {
	Loop        string         `json:"loop"`
	Runtime     string         `json:"runtime"`
	Template    string         `json:"template"`
	Description string         `json:"description,omitempty"`
	Phases      []string       `json:"phases"`
	Inputs      []string       `json:"inputs"`
	Outputs     []string       `json:"outputs"`
	Trigger     engine.Trigger `json:"trigger"`

	// Schedule is the resolved trigger description.
	Schedule string `json:"schedule"`
}

// Result is the outcome of a workflow query. An empty result is not an error.
type Result struct {
	Profile   string           `json:"profile"`
	Filter    Filter           `json:"filter"`
	Workflows []Match          `json:"workflows"`
	Warnings  []engine.Warning `json:"warnings"`
}

// Query returns the profile's workflows matching filter, in profile order.
func Query(profile *engine.Profile, filter Filter) *Result {
	result := &Result{
		Profile:   profile.Name,
		Filter:    filter,
		Workflows: make([]Match, 0),
		Warnings:  make([]engine.Warning, 0),
	}

	entries := profile.ScheduleEntries()
	for i, w := range profile.Workflows {
		if !filter.Matches(w) {
			continue
		}
		result.Workflows = append(result.Workflows, Match{
			Loop:        w.Loop,
			Runtime:     w.Runtime,
			Template:    w.Template,
			Description: w.Description,
			Phases:      nonNil(w.Phases),
			Inputs:      nonNil(w.Inputs),
			Outputs:     nonNil(w.Outputs),
			Trigger:     w.Trigger,
			Schedule:    entries[i].Description,
		})
	}

	if len(result.Workflows) == 0 {
		result.Warnings = append(result.Warnings, engine.Warning{
			Kind:    engine.WarningNoMatchingWorkflow,
			Subject: filter.String(),
			Message: fmt.Sprintf("no workflow matches %s", filter.String()),
		})
	}

	return result
}

// Loops returns the distinct loop ids declared by a profile, in profile order.
func Loops(profile *engine.Profile) []string {
	seen := make(map[string]bool)
	var loops []string
	for _, w := range profile.Workflows {
		if !seen[w.Loop] {
			seen[w.Loop] = true
			loops = append(loops, w.Loop)
		}
	}
	return loops
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
