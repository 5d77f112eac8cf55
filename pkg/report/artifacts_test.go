package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralf-homelab/ralf/pkg/policy"
)

func newReader(t *testing.T) *ArtifactReader {
	t.Helper()
	r, err := NewArtifactReader()
	require.NoError(t, err)
	return r
}

func TestDecode_Finding(t *testing.T) {
	art, err := newReader(t).Decode([]byte(`{
		"kind": "policy-finding",
		"policy": "ssh-hardening",
		"target": "pve01",
		"status": "FAIL",
		"severity": "Critical",
		"details": "password login enabled",
		"scanner": "lynis",
		"score": 42
	}`), "results/ssh.json")
	require.NoError(t, err)

	require.Equal(t, ArtifactPolicyFinding, art.Kind)
	require.NotNil(t, art.Finding)
	assert.Equal(t, policy.Finding{
		Policy:   "ssh-hardening",
		Target:   "pve01",
		Status:   policy.StatusFail,
		Severity: policy.SeverityCritical,
		Details:  "password login enabled",
		Source:   "results/ssh.json",
	}, *art.Finding)
}

func TestDecode_FindingDefaults(t *testing.T) {
	art, err := newReader(t).Decode([]byte(`{"target": "n8n", "summary": "from summary"}`), "dir/cis-benchmark.json")
	require.NoError(t, err)

	require.Equal(t, ArtifactPolicyFinding, art.Kind)
	assert.Equal(t, "cis-benchmark", art.Finding.Policy)
	assert.Equal(t, policy.StatusUnknown, art.Finding.Status)
	assert.Equal(t, policy.SeverityInfo, art.Finding.Severity)
	assert.Equal(t, "from summary", art.Finding.Details)
}

func TestDecode_BackupJob(t *testing.T) {
	art, err := newReader(t).Decode([]byte(`{
		"datastore": "D1",
		"namespace": "homelab",
		"endpoint": "https://pbs01:8007",
		"schedules": {"backup": "daily 02:00", "verify": "weekly", "sync": "hourly"},
		"retention": 7,
		"guests": ["postgres", "n8n"]
	}`), "results/pbs-d1.json")
	require.NoError(t, err)

	require.Equal(t, ArtifactBackupJob, art.Kind)
	assert.Equal(t, BackupJob{
		ID:        "pbs-d1",
		Datastore: "D1",
		Namespace: "homelab",
		Endpoint:  "https://pbs01:8007",
		Schedules: Schedules{Backup: "daily 02:00", Verify: "weekly", Sync: "hourly"},
		Retention: "7",
		Guests:    []string{"postgres", "n8n"},
		Source:    "results/pbs-d1.json",
	}, *art.BackupJob)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{name: "malformed json", data: `{"policy": `, wantErr: "invalid JSON"},
		{name: "trailing data", data: `{"policy": "a"} {"policy": "b"}`, wantErr: "trailing data"},
		{name: "array", data: `[{"policy": "a"}]`, wantErr: "must be a JSON object, got an array"},
		{name: "unknown kind", data: `{"kind": "inventory"}`, wantErr: "unknown artifact kind"},
		{name: "no kind markers", data: `{"foo": "bar"}`, wantErr: "cannot determine artifact kind"},
		{name: "nested value", data: `{"policy": "a", "extra": {"x": 1}}`, wantErr: "does not match schema"},
		{name: "bad status", data: `{"policy": "a", "status": "maybe"}`, wantErr: "does not match schema"},
		{name: "bad severity type", data: `{"policy": "a", "severity": 3}`, wantErr: "does not match schema"},
		{name: "empty datastore", data: `{"datastore": ""}`, wantErr: "does not match schema"},
		{name: "guests not a list", data: `{"datastore": "D1", "guests": "postgres"}`, wantErr: "does not match schema"},
		{name: "job without datastore", data: `{"kind": "backup-job", "id": "x"}`, wantErr: "does not match schema"},
		{name: "unknown schedule", data: `{"datastore": "D1", "schedules": {"prune": "daily"}}`, wantErr: "does not match schema"},
	}

	reader := newReader(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reader.Decode([]byte(tt.data), "bad.json")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDetectKind_Explicit(t *testing.T) {
	kind, err := detectKind(map[string]interface{}{"kind": "Backup-Job", "policy": "x"})
	require.NoError(t, err)
	assert.Equal(t, ArtifactBackupJob, kind)
}
