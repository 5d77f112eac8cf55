package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ralf-homelab/ralf/pkg/config"
	"github.com/ralf-homelab/ralf/pkg/engine"
	"github.com/ralf-homelab/ralf/pkg/render"
	"github.com/ralf-homelab/ralf/pkg/telemetry"
)

func (a *app) newPlanCommand() *cobra.Command {
	var (
		dryRun     bool
		jsonOutput bool
		output     string
		dotFile    string
	)

	cmd := &cobra.Command{
		Use:   "plan <profile>",
		Short: "Simulate the installation plan of a profile",
		Long: `Build the task graph of a profile and simulate a dry run.

The plan:
  - Orders every task after its dependencies (ties broken by declaration order)
  - Groups tasks into execution waves
  - Classifies each task as would-create, would-update, would-skip or
    would-fail-precondition without touching any host`,
		Example: `  # Show the plan as a table
  ralf plan homelab.yaml

  # Machine readable plan plus a Graphviz rendering of the task graph
  ralf plan homelab.yaml --json --dot plan.dot`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !dryRun {
				return newUsageError("--dry-run=false is not supported: ralf only simulates plans")
			}
			format, err := outputFormat(jsonOutput, output)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			profile, graph, err := loadAndBuild(ctx, args[0])
			if err != nil {
				return err
			}

			op := telemetry.StartOperation(ctx, telemetry.StagePlanSimulate, telemetry.AttrProfile.String(profile.Name))
			planner := engine.NewDryRunPlanner(config.NewStarlarkEvaluator(a.tel.Settings.PreconditionMaxSteps))
			plan, err := planner.Plan(op.Ctx, profile, graph)
			op.End(err)
			if err != nil {
				return err
			}

			if dotFile != "" {
				if err := os.WriteFile(dotFile, []byte(graph.ToDOT()), 0o644); err != nil {
					return fmt.Errorf("failed to write DOT graph: %w", err)
				}
				op.Logger.Debugf("Wrote task graph to %s", dotFile)
			}

			outcomes := make(map[string]int)
			for _, step := range plan.Steps {
				outcomes[string(step.Outcome)]++
			}
			a.tel.Metrics.ObservePlan(outcomes, len(plan.Waves))

			return render.Plan(cmd.OutOrStdout(), plan, format)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", true, "simulate without executing (the only supported mode)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format (text, markdown, json, yaml)")
	cmd.Flags().StringVar(&dotFile, "dot", "", "write the task graph in DOT format to a file")

	return cmd
}
