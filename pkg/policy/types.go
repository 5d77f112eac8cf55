package policy

import (
	"fmt"
	"strings"

	"github.com/ralf-homelab/ralf/pkg/engine"
)

// Severity represents the severity level of a finding.
type Severity string

const (
	// SeverityInfo is for informational findings.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityCritical is for findings that must be addressed.
	SeverityCritical Severity = "critical"
)

// Severities lists every severity in report grouping order.
var Severities = []Severity{SeverityCritical, SeverityWarning, SeverityInfo}

// ParseSeverity normalises a severity value. Empty input yields SeverityInfo.
// "error" and "high" are folded into critical, "warn" and "medium" into warning
// and "low" into info.
func ParseSeverity(raw string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info", "low":
		return SeverityInfo, nil
	case "warning", "warn", "medium":
		return SeverityWarning, nil
	case "critical", "error", "high":
		return SeverityCritical, nil
	default:
		return "", fmt.Errorf("unknown severity %q", raw)
	}
}

// Status is the outcome recorded by a policy check.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusUnknown Status = "unknown"
)

// ParseStatus normalises a status value. Empty input yields StatusUnknown.
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "unknown":
		return StatusUnknown, nil
	case "pass", "passed", "ok":
		return StatusPass, nil
	case "fail", "failed":
		return StatusFail, nil
	default:
		return "", fmt.Errorf("unknown status %q", raw)
	}
}

// Policy represents a profile policy with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. The module must define a "deny" set.
	Rego string `json:"rego"`

	// Severity is the default severity for denials that do not carry one.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Source is "builtin:<name>" or the file the policy was loaded from.
	Source string `json:"source"`
}

// Finding is one policy check outcome, either produced by an external tool and
// read from a results directory or produced by evaluating a profile policy.
type Finding struct {
	// Policy is the name of the policy.
	Policy string `json:"policy"`

	// Target is what the policy was evaluated against.
	Target string `json:"target"`

	// Status is the check outcome.
	Status Status `json:"status"`

	// Severity is the finding severity.
	Severity Severity `json:"severity"`

	// Details is a human-readable description.
	Details string `json:"details,omitempty"`

	// Source is the artifact file or "builtin:<policy>".
	Source string `json:"source"`
}

// Input is the document a profile policy is evaluated against. Rego sees it as
// input.profile.
type Input struct {
	Profile *engine.Profile `json:"profile"`
}

// Failure records a policy that could not be evaluated.
type Failure struct {
	Policy string `json:"policy"`
	Source string `json:"source"`
	Error  string `json:"error"`
}

// Result is the outcome of evaluating every enabled policy against a profile.
type Result struct {
	// Findings are the denials, in policy name order, then rego set order.
	Findings []Finding `json:"findings"`

	// Failures are the policies that failed to evaluate.
	Failures []Failure `json:"failures,omitempty"`

	// Evaluated lists the names of the policies that were evaluated.
	Evaluated []string `json:"evaluated"`
}

// Warnings converts evaluation failures into report warnings.
func (r *Result) Warnings() []engine.Warning {
	warnings := make([]engine.Warning, 0, len(r.Failures))
	for _, f := range r.Failures {
		warnings = append(warnings, engine.Warning{
			Kind:    engine.WarningPolicyEvaluation,
			Subject: f.Policy,
			Message: fmt.Sprintf("policy %s (%s) could not be evaluated: %s", f.Policy, f.Source, f.Error),
		})
	}
	return warnings
}
