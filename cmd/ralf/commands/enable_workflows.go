package commands

import (
	"github.com/spf13/cobra"

	"github.com/ralf-homelab/ralf/pkg/render"
	"github.com/ralf-homelab/ralf/pkg/telemetry"
	"github.com/ralf-homelab/ralf/pkg/workflows"
)

func (a *app) newEnableWorkflowsCommand() *cobra.Command {
	var (
		runtime    string
		loops      []string
		jsonOutput bool
		output     string
	)

	cmd := &cobra.Command{
		Use:   "enable-workflows <profile>",
		Short: "List the workflows to enable for a profile",
		Long: `List the profile's workflows with their phases, inputs, outputs and
resolved triggers, ready to hand to an external orchestrator.

Filters match exactly. A filter that matches nothing is not an error: the
result is empty and carries a NoMatchingWorkflowWarning.`,
		Example: `  # Every workflow of the profile
  ralf enable-workflows homelab.yaml

  # Only the main and backup loops running on n8n
  ralf enable-workflows homelab.yaml --runtime n8n --loop main --loop backup`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(jsonOutput, output)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			profile, _, err := loadAndBuild(ctx, args[0])
			if err != nil {
				return err
			}

			filter := workflows.Filter{Runtime: runtime, Loops: loops}
			op := telemetry.StartOperation(ctx, telemetry.StageWorkflowsQuery, telemetry.AttrProfile.String(profile.Name))
			result := workflows.Query(profile, filter)
			op.Span.SetAttributes(telemetry.AttrWarnings.Int(len(result.Warnings)))
			op.Logger.Debugf("Matched %d workflows (%s)", len(result.Workflows), filter.String())
			op.End(nil)

			a.tel.Metrics.ObserveWorkflows(len(result.Workflows))
			return render.Workflows(cmd.OutOrStdout(), result, format)
		},
	}

	cmd.Flags().StringVar(&runtime, "runtime", "", "only workflows for this runtime")
	cmd.Flags().StringArrayVar(&loops, "loop", nil, "only this loop (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format (text, markdown, json, yaml)")

	return cmd
}
