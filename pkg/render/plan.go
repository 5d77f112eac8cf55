package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ralf-homelab/ralf/pkg/engine"
)

// Plan renders a dry-run plan.
func Plan(w io.Writer, plan *engine.Plan, format Format) error {
	switch format {
	case FormatText:
	case FormatMarkdown:
		return planMarkdown(w, plan)
	default:
		return structured(w, plan, format)
	}

	mode := "dry-run"
	if !plan.DryRun {
		mode = "simulation"
	}
	fmt.Fprintf(w, "Installation plan for profile %q (%s)\n", plan.Profile, mode)
	if plan.Description != "" {
		fmt.Fprintln(w, plan.Description)
	}
	fmt.Fprintf(w, "Fingerprint: %s\n\n", plan.Fingerprint)

	if len(plan.Steps) == 0 {
		fmt.Fprintln(w, "No tasks to plan.")
		return nil
	}

	tw := newTable(w, table.Row{"#", "Task", "Component", "Action", "Wave", "Depends on", "Outcome", "Reason"})
	for _, s := range plan.Steps {
		tw.AppendRow(table.Row{
			s.Index,
			s.Task,
			s.Component,
			s.Action,
			s.Wave + 1,
			joinOrDash(s.DependsOn, ", "),
			s.Outcome,
			s.Reason,
		})
	}
	tw.Render()

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Execution waves:")
	for i, wave := range plan.Waves {
		fmt.Fprintf(w, "  %d. %s\n", i+1, strings.Join(wave, ", "))
	}

	sum := plan.Summary
	fmt.Fprintf(w, "\nSummary: %d tasks, %d to create, %d to update, %d already satisfied, %d failing preconditions\n",
		sum.Total, sum.ToCreate, sum.ToUpdate, sum.AlreadySatisfied, sum.FailedPrecondition)

	return nil
}
