package commands

import (
	"github.com/spf13/cobra"

	"github.com/ralf-homelab/ralf/pkg/render"
	"github.com/ralf-homelab/ralf/pkg/workflows"
)

func (a *app) newValidateCommand() *cobra.Command {
	var (
		jsonOutput bool
		output     string
	)

	cmd := &cobra.Command{
		Use:   "validate <profile>",
		Short: "Validate a profile and its task graph",
		Long: `Validate a profile document without planning it.

This command checks:
  - Document syntax (YAML, JSON or CUE)
  - Schema conformance, including cron expressions, time zones and retentions
  - Task dependencies (unknown references and cycles)`,
		Example: `  ralf validate homelab.yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(jsonOutput, output)
			if err != nil {
				return err
			}

			profile, graph, err := loadAndBuild(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			summary := render.Summarize(profile, graph, workflows.Loops(profile))
			return render.Summary(cmd.OutOrStdout(), summary, format)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format (text, markdown, json, yaml)")

	return cmd
}
