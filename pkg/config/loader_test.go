package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralf-homelab/ralf/pkg/engine"
)

const homelabProfile = `
name: homelab
description: Base services
components:
  - id: postgres
    category: datastore
    tasks:
      - id: install
        description: Install PostgreSQL
        action: deploy
        idempotent: true
        parameters:
          version: "16"
          port: 5432
      - id: configure
        action: configure
        depends_on: [install]
  - id: n8n
    category: automation
    installed: true
    tasks:
      - id: n8n-deploy
        action: deploy
        depends_on: [install]
workflows:
  - loop: main
    runtime: orchestrator
    template: workflows/main.json
    phases: [observe, decide, act]
    inputs: [prometheus]
    outputs: [matrix]
    trigger:
      cron: "*/5 * * * *"
      interval_seconds: 900
  - loop: discovery
    runtime: discovery-agent
    trigger:
      cron: "0 3 * * *"
      timezone: Europe/Berlin
backups:
  - datastore: D1
    namespace: homelab
    retention: 30d
    expected_guests: [postgres]
`

func TestParse_YAML(t *testing.T) {
	profile, err := Parse([]byte(homelabProfile), FormatYAML, "homelab.yaml")
	require.NoError(t, err)

	assert.Equal(t, "homelab", profile.Name)
	assert.Equal(t, "homelab.yaml", profile.Source)
	require.Len(t, profile.Components, 2)

	postgres := profile.Components[0]
	assert.Equal(t, "datastore", postgres.Category)
	require.Len(t, postgres.Tasks, 2)
	assert.Equal(t, "postgres", postgres.Tasks[0].ComponentID)
	assert.Equal(t, engine.ActionDeploy, postgres.Tasks[0].Action)
	assert.True(t, postgres.Tasks[0].Idempotent)
	assert.Equal(t, "16", postgres.Tasks[0].Parameters["version"])
	assert.Equal(t, []string{"install"}, postgres.Tasks[1].DependsOn)
	assert.True(t, profile.Components[1].Installed)

	require.Len(t, profile.Workflows, 2)
	assert.Equal(t, "UTC", profile.Workflows[0].Trigger.Timezone, "timezone defaults to UTC")
	assert.Equal(t, 900, profile.Workflows[0].Trigger.IntervalSeconds)
	assert.Equal(t, "Europe/Berlin", profile.Workflows[1].Trigger.Timezone)

	require.Len(t, profile.Backups, 1)
	assert.Equal(t, engine.RetentionDuration, profile.Backups[0].Retention.Kind)
	assert.Equal(t, 30*24*time.Hour, profile.Backups[0].Retention.Duration)
}

func TestParse_UnknownDependencyIsLeftToGraph(t *testing.T) {
	doc := `
name: p
components:
  - id: c
    tasks:
      - id: a
        action: deploy
        depends_on: [ghost]
`
	profile, err := Parse([]byte(doc), FormatYAML, "p.yaml")
	require.NoError(t, err)

	_, err = engine.BuildTaskGraph(profile)
	assert.True(t, engine.IsKind(err, engine.KindUnknownDependency))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		kind     engine.ErrorKind
		path     string
		contains string
	}{
		{
			name: "malformed syntax",
			doc:  "name: [unclosed\n",
			kind: engine.KindProfileParse,
		},
		{
			name: "empty document",
			doc:  "",
			kind: engine.KindProfileParse,
		},
		{
			name: "root is a list",
			doc:  "- a\n- b\n",
			kind: engine.KindSchemaViolation,
		},
		{
			name:     "missing name",
			doc:      "components: []\n",
			kind:     engine.KindSchemaViolation,
			path:     "name",
			contains: "is required",
		},
		{
			name: "unknown action kind",
			doc: `
name: p
components:
  - id: postgres
    tasks:
      - id: install
        action: deploy
      - id: configure
        action: explode
`,
			kind:     engine.KindSchemaViolation,
			path:     "components[0].tasks[1].action",
			contains: `unknown action kind "explode"`,
		},
		{
			name: "unknown field",
			doc: `
name: p
components:
  - id: postgres
    tasks:
      - id: install
        action: deploy
        retries: 3
`,
			kind:     engine.KindSchemaViolation,
			path:     "components[0].tasks[0].retries",
			contains: `unknown field "retries"`,
		},
		{
			name: "scalar where list expected",
			doc: `
name: p
components:
  - id: postgres
    tasks:
      - id: install
        action: deploy
      - id: configure
        action: configure
        depends_on: install
`,
			kind:     engine.KindSchemaViolation,
			path:     "components[0].tasks[1].depends_on",
			contains: "expected list",
		},
		{
			name: "wrong scalar type",
			doc: `
name: p
workflows:
  - loop: main
    runtime: orchestrator
    trigger:
      interval_seconds: soon
`,
			kind:     engine.KindSchemaViolation,
			path:     "workflows[0].trigger.interval_seconds",
			contains: "expected integer",
		},
		{
			name: "trigger without cron or interval",
			doc: `
name: p
workflows:
  - loop: main
    runtime: orchestrator
    trigger:
      timezone: UTC
`,
			kind:     engine.KindSchemaViolation,
			path:     "workflows[0].trigger.cron",
			contains: "trigger needs a cron expression",
		},
		{
			name: "missing trigger",
			doc: `
name: p
workflows:
  - loop: main
    runtime: orchestrator
`,
			kind:     engine.KindSchemaViolation,
			path:     "workflows[0].trigger",
			contains: "is required",
		},
		{
			name: "invalid cron",
			doc: `
name: p
workflows:
  - loop: main
    runtime: orchestrator
    trigger:
      cron: "61 * * * *"
`,
			kind:     engine.KindSchemaViolation,
			path:     "workflows[0].trigger.cron",
			contains: "invalid cron expression",
		},
		{
			name: "unknown timezone",
			doc: `
name: p
workflows:
  - loop: main
    runtime: orchestrator
    trigger:
      cron: "0 3 * * *"
      timezone: Mars/Olympus
`,
			kind:     engine.KindSchemaViolation,
			path:     "workflows[0].trigger.timezone",
			contains: "unknown timezone",
		},
		{
			name: "negative interval",
			doc: `
name: p
workflows:
  - loop: main
    runtime: orchestrator
    trigger:
      interval_seconds: -5
`,
			kind: engine.KindSchemaViolation,
			path: "workflows[0].trigger.interval_seconds",
		},
		{
			name: "invalid retention",
			doc: `
name: p
backups:
  - datastore: D1
    retention: forever
`,
			kind:     engine.KindSchemaViolation,
			path:     "backups[0].retention",
			contains: "invalid retention",
		},
		{
			name: "missing retention",
			doc: `
name: p
backups:
  - datastore: D1
`,
			kind: engine.KindSchemaViolation,
			path: "backups[0].retention",
		},
		{
			name: "retention overflowing a duration",
			doc: `
name: p
backups:
  - datastore: D1
    retention: 300y
`,
			kind:     engine.KindSchemaViolation,
			path:     "backups[0].retention",
			contains: "too large",
		},
		{
			name: "duplicate component id",
			doc: `
name: p
components:
  - id: postgres
  - id: postgres
`,
			kind:     engine.KindSchemaViolation,
			path:     "components[1].id",
			contains: "duplicate component id",
		},
		{
			name: "duplicate task id across components",
			doc: `
name: p
components:
  - id: a
    tasks:
      - id: install
        action: deploy
  - id: b
    tasks:
      - id: install
        action: deploy
`,
			kind:     engine.KindSchemaViolation,
			path:     "components[1].tasks[0].id",
			contains: "duplicate task id",
		},
		{
			name: "expected guest is not a component",
			doc: `
name: p
components:
  - id: postgres
backups:
  - datastore: D1
    retention: keep-last=7
    expected_guests: [postgres, grafana]
`,
			kind:     engine.KindSchemaViolation,
			path:     "backups[0].expected_guests[1]",
			contains: `"grafana"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatYAML, "p.yaml")
			require.Error(t, err)

			var e *engine.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.kind, e.Kind, e.Error())
			if tt.path != "" {
				assert.Equal(t, tt.path, e.Path, e.Error())
			}
			if tt.contains != "" {
				assert.Contains(t, e.Message, tt.contains)
			}
			assert.Equal(t, engine.ExitInvalidProfile, engine.ExitCode(err))
		})
	}
}

func TestParse_JSON(t *testing.T) {
	doc := `{
  "name": "json-profile",
  "components": [
    {"id": "postgres", "tasks": [{"id": "install", "action": "deploy", "idempotent": true}]}
  ],
  "workflows": [
    {"loop": "main", "runtime": "orchestrator", "trigger": {"interval_seconds": 60}}
  ]
}`
	profile, err := Parse([]byte(doc), FormatJSON, "p.json")
	require.NoError(t, err)
	assert.Equal(t, "json-profile", profile.Name)
	assert.Equal(t, "install", profile.Components[0].Tasks[0].ID)
	assert.Equal(t, "", profile.Workflows[0].Trigger.Timezone, "no timezone without cron")
}

func TestParse_CUE(t *testing.T) {
	doc := `
name: "cue-profile"
components: [{
	id:       "postgres"
	category: "datastore"
	tasks: [
		{id: "install", action: "deploy", idempotent: true},
		{id: "configure", action: "configure", depends_on: ["install"]},
	]
}]
workflows: [{
	loop:    "main"
	runtime: "orchestrator"
	trigger: {cron: "*/5 * * * *", interval_seconds: 900}
}]
backups: [{datastore: "D1", retention: "keep-last=7"}]
`
	profile, err := Parse([]byte(doc), FormatCUE, "p.cue")
	require.NoError(t, err)
	assert.Equal(t, "cue-profile", profile.Name)
	require.Len(t, profile.Components[0].Tasks, 2)
	assert.Equal(t, []string{"install"}, profile.Components[0].Tasks[1].DependsOn)
	assert.Equal(t, "UTC", profile.Workflows[0].Trigger.Timezone)
	assert.Equal(t, engine.RetentionCount, profile.Backups[0].Retention.Kind)
	assert.Equal(t, 7, profile.Backups[0].Retention.Count)
}

func TestParse_CUEErrors(t *testing.T) {
	t.Run("syntax", func(t *testing.T) {
		_, err := Parse([]byte(`name: "x"`+"\ncomponents: [{\n"), FormatCUE, "p.cue")
		assert.True(t, engine.IsKind(err, engine.KindProfileParse), "%v", err)
	})

	t.Run("unknown action", func(t *testing.T) {
		doc := `
name: "x"
components: [{id: "c", tasks: [{id: "t", action: "explode"}]}]
`
		_, err := Parse([]byte(doc), FormatCUE, "p.cue")
		require.Error(t, err)
		var e *engine.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, engine.KindSchemaViolation, e.Kind)
		assert.Contains(t, e.Path, "components[0].tasks[0]")
	})

	t.Run("go validation still applies", func(t *testing.T) {
		doc := `
name: "x"
workflows: [{loop: "main", runtime: "r", trigger: {cron: "not a cron"}}]
`
		_, err := Parse([]byte(doc), FormatCUE, "p.cue")
		require.Error(t, err)
		var e *engine.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, "workflows[0].trigger.cron", e.Path)
	})
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "homelab.yml")
	require.NoError(t, os.WriteFile(path, []byte(homelabProfile), 0o644))

	profile, err := LoadProfile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, profile.Source)

	_, err = LoadProfile(context.Background(), filepath.Join(dir, "missing.yaml"))
	assert.True(t, engine.IsKind(err, engine.KindProfileParse))

	_, err = LoadProfile(context.Background(), filepath.Join(dir, "profile.toml"))
	assert.True(t, engine.IsKind(err, engine.KindProfileParse))
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"a.yaml": FormatYAML,
		"a.YML":  FormatYAML,
		"a.json": FormatJSON,
		"a.cue":  FormatCUE,
	}
	for path, want := range tests {
		got, err := FormatFromPath(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := FormatFromPath("a.ini")
	assert.Error(t, err)
}

func TestParse_NestedParametersArePlannable(t *testing.T) {
	doc := `
name: lab
components:
  - id: proxy
    tasks:
      - id: deploy
        action: deploy
        parameters:
          ports:
            8080: web
            8443: admin
          upstreams:
            - {1: primary}
`
	profile, err := Parse([]byte(doc), FormatYAML, "lab.yaml")
	require.NoError(t, err)

	params := profile.Components[0].Tasks[0].Parameters
	assert.Equal(t, map[string]interface{}{"8080": "web", "8443": "admin"}, params["ports"])
	assert.Equal(t, []interface{}{map[string]interface{}{"1": "primary"}}, params["upstreams"])

	plan, err := engine.NewDryRunPlanner(nil).Plan(context.Background(), profile, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, plan.Fingerprint)

	data, err := json.Marshal(plan)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"8080":"web"`)
}
