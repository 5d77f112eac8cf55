package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ralf-homelab/ralf/pkg/engine"
)

// ReconcileStatus is the outcome of matching one backup expectation.
type ReconcileStatus string

const (
	ReconcileOK                ReconcileStatus = "ok"
	ReconcileMissingJob        ReconcileStatus = "missing-job"
	ReconcileMissingRetention  ReconcileStatus = "missing-retention"
	ReconcileRetentionMismatch ReconcileStatus = "retention-mismatch"
	ReconcileMissingGuests     ReconcileStatus = "missing-guests"
)

// Reconciliation is the outcome for one backup expectation, in profile order.
type Reconciliation struct {
	Datastore         string          `json:"datastore"`
	Namespace         string          `json:"namespace,omitempty"`
	ExpectedRetention string          `json:"expected_retention,omitempty"`
	Job               string          `json:"job,omitempty"`
	ActualRetention   string          `json:"actual_retention,omitempty"`
	Status            ReconcileStatus `json:"status"`
	MissingGuests     []string        `json:"missing_guests,omitempty"`
	Message           string          `json:"message,omitempty"`
}

// Reconcile matches every backup expectation against the discovered jobs. A job
// matches when the datastore is equal and the namespace is equal or the
// expectation leaves it empty; the first matching job in artifact order wins.
// The status reports the first failed check and a warning is emitted for every
// failed check.
func Reconcile(expectations []engine.BackupExpectation, jobs []BackupJob) ([]Reconciliation, []engine.Warning) {
	results := make([]Reconciliation, 0, len(expectations))
	var warnings []engine.Warning

	for _, exp := range expectations {
		rec := Reconciliation{
			Datastore:         exp.Datastore,
			Namespace:         exp.Namespace,
			ExpectedRetention: exp.Retention.String(),
			Status:            ReconcileOK,
		}
		subject := expectationSubject(exp)

		job := matchJob(exp, jobs)
		if job == nil {
			rec.Status = ReconcileMissingJob
			rec.Message = "missing backup job for " + subject
			warnings = append(warnings, engine.Warning{
				Kind:    engine.WarningMissingBackupJob,
				Subject: subject,
				Message: rec.Message,
			})
			results = append(results, rec)
			continue
		}

		rec.Job = job.ID
		rec.ActualRetention = job.Retention

		var problems []string
		fail := func(status ReconcileStatus, kind engine.WarningKind, msg string) {
			if rec.Status == ReconcileOK {
				rec.Status = status
			}
			problems = append(problems, msg)
			warnings = append(warnings, engine.Warning{Kind: kind, Subject: subject, Message: msg})
		}

		if job.Retention == "" {
			fail(ReconcileMissingRetention, engine.WarningMissingRetention,
				fmt.Sprintf("backup job %s for %s has no retention (expected %s)", job.ID, subject, exp.Retention))
		} else if actual, err := engine.ParseRetention(job.Retention); err != nil {
			fail(ReconcileRetentionMismatch, engine.WarningRetentionMismatch,
				fmt.Sprintf("backup job %s for %s has unparseable retention: %v", job.ID, subject, err))
		} else if ok, reason := exp.Retention.Satisfies(actual); !ok {
			fail(ReconcileRetentionMismatch, engine.WarningRetentionMismatch,
				fmt.Sprintf("backup job %s for %s: %s", job.ID, subject, reason))
		}

		if len(job.Guests) > 0 {
			rec.MissingGuests = missingGuests(exp.ExpectedGuests, job.Guests)
			if len(rec.MissingGuests) > 0 {
				fail(ReconcileMissingGuests, engine.WarningMissingGuests,
					fmt.Sprintf("backup job %s for %s does not cover expected guests: %s", job.ID, subject, strings.Join(rec.MissingGuests, ", ")))
			}
		}

		rec.Message = strings.Join(problems, "; ")
		results = append(results, rec)
	}

	return results, warnings
}

func matchJob(exp engine.BackupExpectation, jobs []BackupJob) *BackupJob {
	for i := range jobs {
		if jobs[i].Datastore != exp.Datastore {
			continue
		}
		if exp.Namespace == "" || jobs[i].Namespace == exp.Namespace {
			return &jobs[i]
		}
	}
	return nil
}

func missingGuests(expected, actual []string) []string {
	have := make(map[string]bool, len(actual))
	for _, g := range actual {
		have[g] = true
	}
	var missing []string
	for _, g := range expected {
		if !have[g] {
			missing = append(missing, g)
		}
	}
	sort.Strings(missing)
	return missing
}

func expectationSubject(exp engine.BackupExpectation) string {
	if exp.Namespace == "" {
		return exp.Datastore
	}
	return exp.Datastore + "/" + exp.Namespace
}
