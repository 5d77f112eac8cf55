package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ralf-homelab/ralf/pkg/engine"
	"github.com/ralf-homelab/ralf/pkg/policy"
	"github.com/ralf-homelab/ralf/pkg/report"
	"github.com/ralf-homelab/ralf/pkg/workflows"
)

// Markdown documents carry no timestamp; the same input renders the same bytes.

func planMarkdown(w io.Writer, plan *engine.Plan) error {
	fmt.Fprintf(w, "# Installation plan: %s\n\n", plan.Profile)
	if plan.Description != "" {
		fmt.Fprintf(w, "%s\n\n", plan.Description)
	}
	mode := "dry-run"
	if !plan.DryRun {
		mode = "simulation"
	}
	fmt.Fprintf(w, "- Mode: %s\n- Fingerprint: `%s`\n\n", mode, plan.Fingerprint)

	fmt.Fprintln(w, "## Tasks")
	fmt.Fprintln(w)
	if len(plan.Steps) == 0 {
		fmt.Fprintln(w, "_No tasks to plan._")
		return nil
	}
	tw := newTable(w, table.Row{"#", "Task", "Component", "Action", "Wave", "Depends on", "Outcome", "Reason"})
	for _, s := range plan.Steps {
		tw.AppendRow(table.Row{s.Index, s.Task, s.Component, s.Action, s.Wave + 1, joinOrDash(s.DependsOn, ", "), s.Outcome, s.Reason})
	}
	tw.RenderMarkdown()

	fmt.Fprintln(w)
	fmt.Fprintln(w, "## Execution waves")
	fmt.Fprintln(w)
	for i, wave := range plan.Waves {
		fmt.Fprintf(w, "%d. %s\n", i+1, strings.Join(wave, ", "))
	}

	sum := plan.Summary
	fmt.Fprintf(w, "\n## Summary\n\n- Tasks: %d\n- To create: %d\n- To update: %d\n- Already satisfied: %d\n- Failing preconditions: %d\n",
		sum.Total, sum.ToCreate, sum.ToUpdate, sum.AlreadySatisfied, sum.FailedPrecondition)
	return nil
}

func workflowsMarkdown(w io.Writer, result *workflows.Result) error {
	fmt.Fprintf(w, "# Workflows: %s\n\n", result.Profile)
	fmt.Fprintf(w, "Filter: `%s`\n\n", result.Filter.String())

	if len(result.Workflows) == 0 {
		fmt.Fprintln(w, "_No matching workflows._")
	} else {
		tw := newTable(w, table.Row{"Loop", "Runtime", "Template", "Schedule", "Phases", "Inputs", "Outputs"})
		for _, m := range result.Workflows {
			tw.AppendRow(table.Row{
				m.Loop,
				m.Runtime,
				orDash(m.Template),
				m.Schedule,
				joinOrDash(m.Phases, " -> "),
				joinOrDash(m.Inputs, ", "),
				joinOrDash(m.Outputs, ", "),
			})
		}
		tw.RenderMarkdown()
	}

	warningsMarkdown(w, result.Warnings)
	return nil
}

func reportMarkdown(w io.Writer, r *report.Report) error {
	fmt.Fprintf(w, "# Policy pipeline report: %s\n\n", r.Profile)
	if r.Description != "" {
		fmt.Fprintf(w, "%s\n\n", r.Description)
	}
	fmt.Fprintf(w, "Results directory: `%s`\n\n", r.ResultsDir)

	fmt.Fprintln(w, "## Findings")
	fmt.Fprintln(w)
	if r.Summary.Findings == 0 {
		fmt.Fprintln(w, "_No policy results found._")
	} else {
		tw := newTable(w, table.Row{"Severity", "Target", "Policy", "Status", "Details", "Source"})
		for _, severity := range policy.Severities {
			for _, f := range r.Findings.Group(severity) {
				tw.AppendRow(table.Row{f.Severity, orDash(f.Target), f.Policy, f.Status, orDash(f.Details), f.Source})
			}
		}
		tw.RenderMarkdown()
	}

	if len(r.Reconciliation) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "## Backup retention")
		fmt.Fprintln(w)
		tw := newTable(w, table.Row{"Datastore", "Namespace", "Expected", "Job", "Actual", "Status", "Notes"})
		for _, rec := range r.Reconciliation {
			tw.AppendRow(table.Row{
				rec.Datastore,
				orDash(rec.Namespace),
				orDash(rec.ExpectedRetention),
				orDash(rec.Job),
				orDash(rec.ActualRetention),
				rec.Status,
				orDash(rec.Message),
			})
		}
		tw.RenderMarkdown()
	}

	warningsMarkdown(w, r.Warnings)

	s := r.Summary
	fmt.Fprintf(w, "\n## Summary\n\n- Findings: %d (%d critical, %d warning, %d info, %d failing)\n- Backup expectations reconciled: %d/%d\n- Warnings: %d\n",
		s.Findings, s.Critical, s.Warning, s.Info, s.Failing, s.Reconciled, s.Expectations, s.Warnings)
	return nil
}

func summaryMarkdown(w io.Writer, s *ProfileSummary) error {
	fmt.Fprintf(w, "# Profile: %s\n\n", s.Profile)
	if s.Source != "" {
		fmt.Fprintf(w, "Source: `%s`\n\n", s.Source)
	}
	fmt.Fprintf(w, "- Components: %d\n- Tasks: %d in %d waves\n- Workflows: %d (%s)\n- Backups: %d\n",
		s.Components, s.Tasks, len(s.Waves), s.Workflows, joinOrDash(s.Loops, ", "), s.Backups)
	fmt.Fprintf(w, "\n## Order\n\n%s\n", joinOrDash(s.Order, " -> "))
	return nil
}

func warningsMarkdown(w io.Writer, warnings []engine.Warning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintf(w, "\n## Warnings\n\n")
	for _, warn := range warnings {
		fmt.Fprintf(w, "- **%s** `%s`: %s\n", warn.Kind, warn.Subject, warn.Message)
	}
}
