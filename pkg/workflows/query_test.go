package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralf-homelab/ralf/pkg/engine"
)

func loopProfile() *engine.Profile {
	return &engine.Profile{
		Name: "homelab",
		Workflows: []engine.Workflow{
			{
				Loop:     "main",
				Runtime:  "orchestrator",
				Template: "workflows/main.json",
				Phases:   []string{"observe", "decide", "act"},
				Inputs:   []string{"prometheus", "loki"},
				Outputs:  []string{"matrix"},
				Trigger:  engine.Trigger{Cron: "*/5 * * * *", Timezone: "UTC", IntervalSeconds: 900},
			},
			{
				Loop:    "discovery",
				Runtime: "discovery-agent",
				Trigger: engine.Trigger{IntervalSeconds: 900},
			},
			{
				Loop:    "adaptive",
				Runtime: "orchestrator",
				Trigger: engine.Trigger{Cron: "0 3 * * *", Timezone: "Europe/Berlin"},
			},
		},
	}
}

func loopsOf(r *Result) []string {
	loops := make([]string, 0, len(r.Workflows))
	for _, m := range r.Workflows {
		loops = append(loops, m.Loop)
	}
	return loops
}

func TestQuery(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "no filter matches all in order", filter: Filter{}, want: []string{"main", "discovery", "adaptive"}},
		{name: "runtime", filter: Filter{Runtime: "orchestrator"}, want: []string{"main", "adaptive"}},
		{name: "loop", filter: Filter{Loops: []string{"main"}}, want: []string{"main"}},
		{name: "several loops keep profile order", filter: Filter{Loops: []string{"adaptive", "main"}}, want: []string{"main", "adaptive"}},
		{name: "runtime and loop", filter: Filter{Runtime: "orchestrator", Loops: []string{"discovery"}}, want: []string{}},
		{name: "runtime is exact", filter: Filter{Runtime: "Orchestrator"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Query(loopProfile(), tt.filter)
			assert.Equal(t, tt.want, loopsOf(result))
		})
	}
}

func TestQuery_MainLoopScenario(t *testing.T) {
	result := Query(loopProfile(), Filter{Loops: []string{"main"}})

	require.Len(t, result.Workflows, 1)
	match := result.Workflows[0]
	assert.Equal(t, "orchestrator", match.Runtime)
	assert.Equal(t, []string{"observe", "decide", "act"}, match.Phases)
	assert.Equal(t, []string{"prometheus", "loki"}, match.Inputs)
	assert.Equal(t, []string{"matrix"}, match.Outputs)
	assert.Equal(t, `cron "*/5 * * * *" (UTC) with fallback every 900s`, match.Schedule)
	assert.Empty(t, result.Warnings)
}

func TestQuery_TriggerDescriptions(t *testing.T) {
	result := Query(loopProfile(), Filter{})
	require.Len(t, result.Workflows, 3)
	assert.Equal(t, "every 900s", result.Workflows[1].Schedule)
	assert.Equal(t, `cron "0 3 * * *" (Europe/Berlin)`, result.Workflows[2].Schedule)
	assert.Equal(t, []string{}, result.Workflows[1].Phases, "absent lists render as empty")
}

func TestQuery_NoMatch(t *testing.T) {
	result := Query(loopProfile(), Filter{Runtime: "orchestrator", Loops: []string{"nightly"}})

	assert.Empty(t, result.Workflows)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, engine.WarningNoMatchingWorkflow, result.Warnings[0].Kind)
	assert.Equal(t, "runtime=orchestrator loop=nightly", result.Warnings[0].Subject)
}

func TestQuery_EmptyProfile(t *testing.T) {
	result := Query(&engine.Profile{Name: "bare"}, Filter{})
	assert.Empty(t, result.Workflows)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "all workflows", result.Warnings[0].Subject)
}

func TestLoops(t *testing.T) {
	assert.Equal(t, []string{"main", "discovery", "adaptive"}, Loops(loopProfile()))
}
