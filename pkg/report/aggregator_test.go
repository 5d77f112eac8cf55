package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralf-homelab/ralf/pkg/engine"
	"github.com/ralf-homelab/ralf/pkg/policy"
)

func newAggregator(t *testing.T, opts Options) *Aggregator {
	t.Helper()
	opts.Logger = zerolog.Nop()
	a, err := NewAggregator(opts)
	require.NoError(t, err)
	return a
}

func writeArtifact(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func reportProfile(dir string) *engine.Profile {
	return &engine.Profile{
		Name:   "homelab",
		Source: filepath.Join(dir, "profile.yaml"),
	}
}

func TestAggregate_OneFindingOneMalformed(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "a-critical.json", `{"policy": "ssh", "target": "pve01", "status": "fail", "severity": "critical"}`)
	writeArtifact(t, dir, "b-broken.json", `{"policy": `)

	report, err := newAggregator(t, Options{}).Aggregate(context.Background(), reportProfile(dir), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Summary.Findings)
	require.Len(t, report.Findings.Critical, 1)
	assert.Equal(t, "ssh", report.Findings.Critical[0].Policy)

	require.Len(t, report.Warnings, 1)
	assert.Equal(t, engine.WarningArtifactParse, report.Warnings[0].Kind)
	assert.Equal(t, "b-broken.json", report.Warnings[0].Subject)
}

func TestAggregate_MissingBackupJob(t *testing.T) {
	dir := t.TempDir()
	profile := reportProfile(dir)
	retention, err := engine.ParseRetention("30d")
	require.NoError(t, err)
	profile.Backups = []engine.BackupExpectation{{Datastore: "D1", Retention: retention}}

	report, err := newAggregator(t, Options{}).Aggregate(context.Background(), profile, dir)
	require.NoError(t, err)

	require.Len(t, report.Reconciliation, 1)
	assert.Equal(t, ReconcileMissingJob, report.Reconciliation[0].Status)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, engine.WarningMissingBackupJob, report.Warnings[0].Kind)
	assert.Equal(t, "missing backup job for D1", report.Warnings[0].Message)
}

func TestAggregate_GroupingAndOrdering(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "01.json", `{"policy": "p2", "target": "b", "severity": "warning"}`)
	writeArtifact(t, dir, "02.json", `{"policy": "p1", "target": "b", "severity": "warning"}`)
	writeArtifact(t, dir, "03.json", `{"policy": "p1", "target": "a", "severity": "warning"}`)
	writeArtifact(t, dir, "04.json", `{"policy": "p9", "target": "z", "severity": "INFO", "status": "pass"}`)
	writeArtifact(t, dir, "05.json", `{"policy": "p1", "target": "b", "severity": "warning"}`)
	writeArtifact(t, dir, "notes.txt", `ignored`)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0o755))

	report, err := newAggregator(t, Options{}).Aggregate(context.Background(), reportProfile(dir), dir)
	require.NoError(t, err)

	assert.Empty(t, report.Findings.Critical)
	require.Len(t, report.Findings.Warning, 4)
	var order []string
	for _, f := range report.Findings.Warning {
		order = append(order, f.Target+"/"+f.Policy+"/"+filepath.Base(f.Source))
	}
	assert.Equal(t, []string{"a/p1/03.json", "b/p1/02.json", "b/p1/05.json", "b/p2/01.json"}, order)
	require.Len(t, report.Findings.Info, 1)
	assert.Equal(t, policy.StatusPass, report.Findings.Info[0].Status)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, 0, report.Summary.Failing)
}

func TestAggregate_Reconciliation(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "pbs-d1.json", `{"kind": "backup-job", "datastore": "D1", "retention": "30d", "guests": ["postgres"]}`)
	writeArtifact(t, dir, "pbs-d2.json", `{"datastore": "D2"}`)

	profile := reportProfile(dir)
	r30, err := engine.ParseRetention("30d")
	require.NoError(t, err)
	profile.Backups = []engine.BackupExpectation{
		{Datastore: "D1", Retention: r30, ExpectedGuests: []string{"postgres"}},
		{Datastore: "D2", Retention: r30},
	}

	report, err := newAggregator(t, Options{}).Aggregate(context.Background(), profile, dir)
	require.NoError(t, err)

	require.Len(t, report.BackupJobs, 2)
	require.Len(t, report.Reconciliation, 2)
	assert.Equal(t, ReconcileOK, report.Reconciliation[0].Status)
	assert.Equal(t, "pbs-d1", report.Reconciliation[0].Job)
	assert.Equal(t, ReconcileMissingRetention, report.Reconciliation[1].Status)
	assert.Equal(t, 1, report.Summary.Reconciled)
	assert.Equal(t, 2, report.Summary.Expectations)

	require.Len(t, report.Warnings, 1)
	assert.Equal(t, engine.WarningMissingRetention, report.Warnings[0].Kind)
}

func TestAggregate_ResultsDirectory(t *testing.T) {
	t.Run("default directory next to profile", func(t *testing.T) {
		dir := t.TempDir()
		results := filepath.Join(dir, DefaultResultsSubdir)
		require.NoError(t, os.Mkdir(results, 0o755))
		writeArtifact(t, results, "f.json", `{"policy": "p"}`)

		report, err := newAggregator(t, Options{}).Aggregate(context.Background(), reportProfile(dir), "")
		require.NoError(t, err)
		assert.Equal(t, results, report.ResultsDir)
		assert.Equal(t, 1, report.Summary.Findings)
	})

	t.Run("configured subdirectory", func(t *testing.T) {
		dir := t.TempDir()
		a := newAggregator(t, Options{ResultsSubdir: "scans"})
		assert.Equal(t, filepath.Join(dir, "scans"), a.ResultsDir(reportProfile(dir), ""))
		assert.Equal(t, "/explicit", a.ResultsDir(reportProfile(dir), "/explicit"))
	})

	t.Run("missing default directory is a warning", func(t *testing.T) {
		dir := t.TempDir()
		report, err := newAggregator(t, Options{}).Aggregate(context.Background(), reportProfile(dir), "")
		require.NoError(t, err)
		assert.Equal(t, 0, report.Summary.Findings)
		require.Len(t, report.Warnings, 1)
		assert.Equal(t, engine.WarningResultsDirMissing, report.Warnings[0].Kind)
	})

	t.Run("missing explicit directory is fatal", func(t *testing.T) {
		_, err := newAggregator(t, Options{}).Aggregate(context.Background(), reportProfile(t.TempDir()), filepath.Join(t.TempDir(), "absent"))
		require.Error(t, err)
		assert.True(t, engine.IsKind(err, engine.KindResultsDirectory))
		assert.Equal(t, engine.ExitResultsDir, engine.ExitCode(err))
	})

	t.Run("file instead of directory is fatal", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "results.json")
		writeArtifact(t, dir, "results.json", `{}`)

		_, err := newAggregator(t, Options{}).Aggregate(context.Background(), reportProfile(dir), file)
		assert.True(t, engine.IsKind(err, engine.KindResultsDirectory))
	})
}

type stubEvaluator struct {
	result *policy.Result
	err    error
}

func (s stubEvaluator) EvaluateProfile(context.Context, *engine.Profile) (*policy.Result, error) {
	return s.result, s.err
}

func TestAggregate_ProfilePolicies(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "scan.json", `{"policy": "ssh", "target": "pve01", "severity": "critical", "status": "fail"}`)

	eval := stubEvaluator{result: &policy.Result{
		Findings: []policy.Finding{{
			Policy: "secret-rotation-idempotent", Target: "app-secret", Status: policy.StatusFail,
			Severity: policy.SeverityCritical, Source: "builtin:secret-rotation-idempotent",
		}},
		Failures: []policy.Failure{{Policy: "custom", Source: "custom.rego", Error: "boom"}},
	}}

	report, err := newAggregator(t, Options{Policies: eval}).Aggregate(context.Background(), reportProfile(dir), dir)
	require.NoError(t, err)

	require.Len(t, report.Findings.Critical, 2)
	assert.Equal(t, "app-secret", report.Findings.Critical[0].Target)
	assert.Equal(t, "pve01", report.Findings.Critical[1].Target)
	assert.Equal(t, 2, report.Summary.Failing)

	require.Len(t, report.Warnings, 1)
	assert.Equal(t, engine.WarningPolicyEvaluation, report.Warnings[0].Kind)
}

func TestAggregate_ProfilePoliciesError(t *testing.T) {
	dir := t.TempDir()
	report, err := newAggregator(t, Options{Policies: stubEvaluator{err: errors.New("engine down")}}).
		Aggregate(context.Background(), reportProfile(dir), dir)
	require.NoError(t, err)

	require.Len(t, report.Warnings, 1)
	assert.Equal(t, engine.WarningPolicyEvaluation, report.Warnings[0].Kind)
	assert.Contains(t, report.Warnings[0].Message, "engine down")
}

func TestAggregate_WithPolicyEngine(t *testing.T) {
	dir := t.TempDir()
	eng, err := policy.NewEngine(zerolog.Nop())
	require.NoError(t, err)

	profile := reportProfile(dir)
	profile.Components = []engine.Component{{
		ID:       "vault",
		Category: "secrets",
		Tasks: []engine.Task{{
			ID: "vault-rotate", ComponentID: "vault", Action: engine.ActionRotateSecret,
		}},
	}}

	report, err := newAggregator(t, Options{Policies: eng}).Aggregate(context.Background(), profile, dir)
	require.NoError(t, err)

	require.Len(t, report.Findings.Critical, 1)
	assert.Equal(t, "vault-rotate", report.Findings.Critical[0].Target)
	assert.Equal(t, "builtin:secret-rotation-idempotent", report.Findings.Critical[0].Source)
}

func TestAggregate_Snapshot(t *testing.T) {
	dir := t.TempDir()
	a := newAggregator(t, Options{})

	first, err := a.Aggregate(context.Background(), reportProfile(dir), dir)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Summary.Findings)

	writeArtifact(t, dir, "late.json", `{"policy": "p"}`)
	second, err := a.Aggregate(context.Background(), reportProfile(dir), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Summary.Findings)
}
