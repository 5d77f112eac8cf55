package render

import (
	"fmt"
	"io"

	"github.com/ralf-homelab/ralf/pkg/engine"
	"github.com/ralf-homelab/ralf/pkg/workflows"
)

// Workflows renders a workflow query result.
func Workflows(w io.Writer, result *workflows.Result, format Format) error {
	switch format {
	case FormatText:
	case FormatMarkdown:
		return workflowsMarkdown(w, result)
	default:
		return structured(w, result, format)
	}

	fmt.Fprintf(w, "Workflows for profile %q (%s)\n", result.Profile, result.Filter.String())

	if len(result.Workflows) == 0 {
		fmt.Fprintln(w, "No matching workflows.")
	}
	for _, m := range result.Workflows {
		fmt.Fprintf(w, "\n- %s [%s]\n", m.Loop, m.Runtime)
		if m.Description != "" {
			fmt.Fprintf(w, "    description: %s\n", m.Description)
		}
		fmt.Fprintf(w, "    template:    %s\n", orDash(m.Template))
		fmt.Fprintf(w, "    trigger:     %s\n", m.Schedule)
		fmt.Fprintf(w, "    phases:      %s\n", joinOrDash(m.Phases, " -> "))
		fmt.Fprintf(w, "    inputs:      %s\n", joinOrDash(m.Inputs, ", "))
		fmt.Fprintf(w, "    outputs:     %s\n", joinOrDash(m.Outputs, ", "))
	}

	writeWarnings(w, result.Warnings)
	return nil
}

func writeWarnings(w io.Writer, warnings []engine.Warning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintf(w, "\nWarnings (%d):\n", len(warnings))
	for _, warn := range warnings {
		fmt.Fprintf(w, "  - %s [%s]: %s\n", warn.Kind, warn.Subject, warn.Message)
	}
}
