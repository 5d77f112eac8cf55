package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ralf-homelab/ralf/pkg/policy"
	"github.com/ralf-homelab/ralf/pkg/report"
)

// Report renders a policy and backup report.
func Report(w io.Writer, r *report.Report, format Format) error {
	switch format {
	case FormatText:
	case FormatMarkdown:
		return reportMarkdown(w, r)
	default:
		return structured(w, r, format)
	}

	header := fmt.Sprintf("Policy pipeline report for profile %q", r.Profile)
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("=", len(header)))
	if r.Description != "" {
		fmt.Fprintln(w, r.Description)
	}
	fmt.Fprintf(w, "Results directory: %s\n\n", r.ResultsDir)

	if r.Summary.Findings == 0 {
		fmt.Fprintln(w, "No policy results found.")
	} else {
		fmt.Fprintf(w, "Findings (%d):\n", r.Summary.Findings)
		tw := newTable(w, table.Row{"Severity", "Target", "Policy", "Status", "Details", "Source"})
		for _, severity := range policy.Severities {
			for _, f := range r.Findings.Group(severity) {
				tw.AppendRow(table.Row{f.Severity, orDash(f.Target), f.Policy, f.Status, orDash(f.Details), f.Source})
			}
		}
		tw.Render()
	}

	if len(r.Reconciliation) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Backup reconciliation:")
		tw := newTable(w, table.Row{"Datastore", "Namespace", "Expected", "Job", "Actual", "Status"})
		for _, rec := range r.Reconciliation {
			tw.AppendRow(table.Row{
				rec.Datastore,
				orDash(rec.Namespace),
				orDash(rec.ExpectedRetention),
				orDash(rec.Job),
				orDash(rec.ActualRetention),
				rec.Status,
			})
		}
		tw.Render()
	}

	writeWarnings(w, r.Warnings)

	s := r.Summary
	fmt.Fprintf(w, "\nSummary: %d findings (%d critical, %d warning, %d info, %d failing), %d/%d backup expectations reconciled, %d warnings\n",
		s.Findings, s.Critical, s.Warning, s.Info, s.Failing, s.Reconciled, s.Expectations, s.Warnings)

	return nil
}
