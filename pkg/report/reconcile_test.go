package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralf-homelab/ralf/pkg/engine"
)

func expect(t *testing.T, datastore, namespace, retention string, guests ...string) engine.BackupExpectation {
	t.Helper()
	exp := engine.BackupExpectation{Datastore: datastore, Namespace: namespace, ExpectedGuests: guests}
	if retention != "" {
		r, err := engine.ParseRetention(retention)
		require.NoError(t, err)
		exp.Retention = r
	}
	return exp
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name        string
		exp         engine.BackupExpectation
		jobs        []BackupJob
		wantStatus  ReconcileStatus
		wantKinds   []engine.WarningKind
		wantMessage string
	}{
		{
			name:        "missing job",
			exp:         expect(t, "D1", "", "30d"),
			wantStatus:  ReconcileMissingJob,
			wantKinds:   []engine.WarningKind{engine.WarningMissingBackupJob},
			wantMessage: "missing backup job for D1",
		},
		{
			name:       "ok",
			exp:        expect(t, "D1", "", "30d"),
			jobs:       []BackupJob{{ID: "j1", Datastore: "D1", Retention: "45d"}},
			wantStatus: ReconcileOK,
		},
		{
			name:       "expectation namespace empty matches any",
			exp:        expect(t, "D1", "", "7"),
			jobs:       []BackupJob{{ID: "j1", Datastore: "D1", Namespace: "prod", Retention: "keep-last=10"}},
			wantStatus: ReconcileOK,
		},
		{
			name:        "namespace must match when set",
			exp:         expect(t, "D1", "prod", "30d"),
			jobs:        []BackupJob{{ID: "j1", Datastore: "D1", Namespace: "lab", Retention: "30d"}},
			wantStatus:  ReconcileMissingJob,
			wantKinds:   []engine.WarningKind{engine.WarningMissingBackupJob},
			wantMessage: "missing backup job for D1/prod",
		},
		{
			name:        "missing retention",
			exp:         expect(t, "D1", "", "30d"),
			jobs:        []BackupJob{{ID: "j1", Datastore: "D1"}},
			wantStatus:  ReconcileMissingRetention,
			wantKinds:   []engine.WarningKind{engine.WarningMissingRetention},
			wantMessage: "backup job j1 for D1 has no retention (expected 30d)",
		},
		{
			name:       "weaker retention",
			exp:        expect(t, "D1", "", "30d"),
			jobs:       []BackupJob{{ID: "j1", Datastore: "D1", Retention: "7d"}},
			wantStatus: ReconcileRetentionMismatch,
			wantKinds:  []engine.WarningKind{engine.WarningRetentionMismatch},
		},
		{
			name:       "different retention kind",
			exp:        expect(t, "D1", "", "30d"),
			jobs:       []BackupJob{{ID: "j1", Datastore: "D1", Retention: "keep-last=30"}},
			wantStatus: ReconcileRetentionMismatch,
			wantKinds:  []engine.WarningKind{engine.WarningRetentionMismatch},
		},
		{
			name:       "unparseable retention",
			exp:        expect(t, "D1", "", "30d"),
			jobs:       []BackupJob{{ID: "j1", Datastore: "D1", Retention: "forever"}},
			wantStatus: ReconcileRetentionMismatch,
			wantKinds:  []engine.WarningKind{engine.WarningRetentionMismatch},
		},
		{
			name:        "missing guests",
			exp:         expect(t, "D1", "", "30d", "postgres", "n8n", "vault"),
			jobs:        []BackupJob{{ID: "j1", Datastore: "D1", Retention: "30d", Guests: []string{"n8n"}}},
			wantStatus:  ReconcileMissingGuests,
			wantKinds:   []engine.WarningKind{engine.WarningMissingGuests},
			wantMessage: "backup job j1 for D1 does not cover expected guests: postgres, vault",
		},
		{
			name:       "job without guest list is not checked",
			exp:        expect(t, "D1", "", "30d", "postgres"),
			jobs:       []BackupJob{{ID: "j1", Datastore: "D1", Retention: "30d"}},
			wantStatus: ReconcileOK,
		},
		{
			name:       "every failed check warns",
			exp:        expect(t, "D1", "", "30d", "postgres"),
			jobs:       []BackupJob{{ID: "j1", Datastore: "D1", Retention: "1d", Guests: []string{"n8n"}}},
			wantStatus: ReconcileRetentionMismatch,
			wantKinds:  []engine.WarningKind{engine.WarningRetentionMismatch, engine.WarningMissingGuests},
		},
		{
			name: "first matching job wins",
			exp:  expect(t, "D1", "", "30d"),
			jobs: []BackupJob{
				{ID: "a", Datastore: "D2", Retention: "30d"},
				{ID: "b", Datastore: "D1", Retention: "1d"},
				{ID: "c", Datastore: "D1", Retention: "90d"},
			},
			wantStatus: ReconcileRetentionMismatch,
			wantKinds:  []engine.WarningKind{engine.WarningRetentionMismatch},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, warnings := Reconcile([]engine.BackupExpectation{tt.exp}, tt.jobs)
			require.Len(t, results, 1)
			assert.Equal(t, tt.wantStatus, results[0].Status)

			var kinds []engine.WarningKind
			for _, w := range warnings {
				kinds = append(kinds, w.Kind)
			}
			assert.Equal(t, tt.wantKinds, kinds)

			if tt.wantMessage != "" {
				require.NotEmpty(t, warnings)
				assert.Equal(t, tt.wantMessage, warnings[0].Message)
			}
		})
	}
}

func TestReconcile_ProfileOrder(t *testing.T) {
	results, _ := Reconcile([]engine.BackupExpectation{
		expect(t, "D2", "", "7d"),
		expect(t, "D1", "", "7d"),
	}, nil)

	require.Len(t, results, 2)
	assert.Equal(t, "D2", results[0].Datastore)
	assert.Equal(t, "D1", results[1].Datastore)
}
