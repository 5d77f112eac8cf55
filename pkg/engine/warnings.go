package engine

import (
	"sort"
)

// WarningKind classifies a non-fatal finding. Warnings are accumulated into the
// produced result and never abort an invocation.
type WarningKind string

const (
	WarningArtifactParse      WarningKind = "ResultArtifactParseError"
	WarningMissingBackupJob   WarningKind = "MissingBackupJobWarning"
	WarningMissingRetention   WarningKind = "MissingRetentionWarning"
	WarningRetentionMismatch  WarningKind = "RetentionMismatchWarning"
	WarningMissingGuests      WarningKind = "MissingGuestCoverageWarning"
	WarningNoMatchingWorkflow WarningKind = "NoMatchingWorkflowWarning"
	WarningResultsDirMissing  WarningKind = "ResultsDirectoryMissingWarning"
	WarningPolicyEvaluation   WarningKind = "PolicyEvaluationWarning"
)

// Warning is one non-fatal finding.
type Warning struct {
	// Kind is the warning classification.
	Kind WarningKind `json:"kind"`

	// Subject is what the warning is about (file name, datastore, filter, ...).
	Subject string `json:"subject"`

	// Message is the human-readable description.
	Message string `json:"message"`
}

// SortWarnings orders warnings by kind, subject, then message.
func SortWarnings(warnings []Warning) {
	sort.SliceStable(warnings, func(i, j int) bool {
		a, b := warnings[i], warnings[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		return a.Message < b.Message
	})
}
