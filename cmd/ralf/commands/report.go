package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ralf-homelab/ralf/pkg/engine"
	"github.com/ralf-homelab/ralf/pkg/policy"
	"github.com/ralf-homelab/ralf/pkg/render"
	"github.com/ralf-homelab/ralf/pkg/report"
	"github.com/ralf-homelab/ralf/pkg/telemetry"
)

type reportOptions struct {
	resultsDir      string
	jsonOutput      bool
	output          string
	evaluateProfile bool
	policies        []string
	watch           bool
}

func (a *app) newReportCommand() *cobra.Command {
	opts := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "report <profile>",
		Short: "Consolidate policy results and reconcile backups",
		Long: `Read the policy results directory of a profile and build one report.

The report:
  - Groups policy findings by severity (critical, warning, info)
  - Reconciles discovered backup jobs against the profile's backup expectations
  - Lists every unreadable artifact as a warning instead of failing

The results directory defaults to policy_results next to the profile. An
explicit --results-dir that cannot be read exits with code 3.`,
		Example: `  # Report over the default results directory
  ralf report homelab.yaml

  # Also evaluate the built-in and custom policies against the profile
  ralf report homelab.yaml --evaluate-profile --policy ./policies

  # Re-render whenever results or policies change
  ralf report homelab.yaml --results-dir /var/lib/ralf/results --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(opts.jsonOutput, opts.output)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			run := func(ctx context.Context) error {
				rep, err := a.buildReport(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return render.Report(cmd.OutOrStdout(), rep, format)
			}

			if !opts.watch {
				return run(ctx)
			}
			return a.watchReport(ctx, args[0], opts, run)
		},
	}

	cmd.Flags().StringVar(&opts.resultsDir, "results-dir", "", "policy results directory (default: <profile dir>/policy_results)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output format (text, markdown, json, yaml)")
	cmd.Flags().BoolVar(&opts.evaluateProfile, "evaluate-profile", false, "evaluate the built-in policies against the profile")
	cmd.Flags().StringArrayVar(&opts.policies, "policy", nil, "custom policy file or directory, implies --evaluate-profile (repeatable)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "re-render the report whenever results, policies or the profile change")

	return cmd
}

// buildReport runs the whole pipeline for one snapshot. The profile is reloaded
// every time so a watch picks up profile edits.
func (a *app) buildReport(ctx context.Context, path string, opts *reportOptions) (*report.Report, error) {
	profile, _, err := loadAndBuild(ctx, path)
	if err != nil {
		return nil, err
	}

	evaluator, loadWarnings, err := a.policyEngine(ctx, opts)
	if err != nil {
		return nil, err
	}

	agg, err := report.NewAggregator(report.Options{
		Logger:        a.tel.Logger.Zerolog(),
		ResultsSubdir: a.tel.Settings.ResultsSubdir,
		Policies:      evaluator,
	})
	if err != nil {
		return nil, err
	}
	dir := agg.ResultsDir(profile, opts.resultsDir)

	op := telemetry.StartOperation(ctx, telemetry.StageReportAggregate,
		telemetry.AttrProfile.String(profile.Name),
		telemetry.AttrResultsDir.String(dir))
	rep, err := agg.Aggregate(op.Ctx, profile, opts.resultsDir)
	if err == nil && len(loadWarnings) > 0 {
		rep.Warnings = append(rep.Warnings, loadWarnings...)
		engine.SortWarnings(rep.Warnings)
		rep.Summary.Warnings = len(rep.Warnings)
	}
	if err == nil {
		op.Span.SetAttributes(telemetry.AttrWarnings.Int(len(rep.Warnings)))
	}
	op.End(err)
	if err != nil {
		return nil, err
	}

	a.observeReport(rep)
	return rep, nil
}

// policyEngine returns the profile evaluator, or nil when evaluation is off.
// Custom policies that fail to load become warnings; the built-ins still run.
func (a *app) policyEngine(ctx context.Context, opts *reportOptions) (report.ProfileEvaluator, []engine.Warning, error) {
	if !opts.evaluateProfile && len(opts.policies) == 0 {
		return nil, nil, nil
	}

	logger := a.tel.Logger.NewComponentLogger("policy")
	pe, err := policy.NewEngine(logger.Zerolog())
	if err != nil {
		return nil, nil, engine.NewInternalError("failed to compile built-in policies", err)
	}
	evaluator := &tracedEvaluator{engine: pe}
	if len(opts.policies) == 0 {
		return evaluator, nil, nil
	}

	if err := pe.LoadPolicies(ctx, opts.policies); err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		logger.WithError(err).Warn("Custom policies not loaded")
		return evaluator, []engine.Warning{{
			Kind:    engine.WarningPolicyEvaluation,
			Subject: "custom policies",
			Message: err.Error(),
		}}, nil
	}
	return evaluator, nil, nil
}

// tracedEvaluator runs profile evaluation inside its own stage span.
type tracedEvaluator struct {
	engine *policy.Engine
}

func (t *tracedEvaluator) EvaluateProfile(ctx context.Context, profile *engine.Profile) (*policy.Result, error) {
	op := telemetry.StartOperation(ctx, telemetry.StagePolicyEvaluate, telemetry.AttrProfile.String(profile.Name))
	result, err := t.engine.EvaluateProfile(op.Ctx, profile)
	if err == nil {
		op.Span.SetAttributes(telemetry.AttrPolicies.Int(len(result.Evaluated)))
	}
	op.End(err)
	return result, err
}

func (a *app) observeReport(rep *report.Report) {
	findings := make(map[string]int, len(policy.Severities))
	for _, severity := range policy.Severities {
		findings[string(severity)] = len(rep.Findings.Group(severity))
	}
	warnings := make(map[string]int)
	for _, w := range rep.Warnings {
		warnings[string(w.Kind)]++
	}
	a.tel.Metrics.ObserveReport(telemetry.ReportObservation{
		Findings:     findings,
		Failing:      rep.Summary.Failing,
		Warnings:     warnings,
		Expectations: rep.Summary.Expectations,
		Reconciled:   rep.Summary.Reconciled,
	})
}

// watchReport re-renders the report on every change to the profile, the results
// directory or the custom policies, and serves metrics while it runs. A failing
// first run ends the watch with its error.
func (a *app) watchReport(ctx context.Context, path string, opts *reportOptions, run func(context.Context) error) error {
	profile, _, err := loadAndBuild(ctx, path)
	if err != nil {
		return err
	}
	agg, err := report.NewAggregator(report.Options{Logger: a.tel.Logger.Zerolog(), ResultsSubdir: a.tel.Settings.ResultsSubdir})
	if err != nil {
		return err
	}

	paths := append([]string{path, agg.ResultsDir(profile, opts.resultsDir)}, opts.policies...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metricsErr := make(chan error, 1)
	go func() {
		metricsErr <- a.tel.Metrics.Serve(ctx)
	}()

	watcher := report.NewWatcher(a.tel.Logger.Zerolog(), report.DefaultDebounce)
	watchErr := watcher.Watch(ctx, paths, func(ctx context.Context) error {
		err := run(ctx)
		if err == nil {
			err = a.tel.Metrics.WriteTextfile()
		}
		return err
	})

	cancel()
	if err := <-metricsErr; err != nil {
		a.tel.Logger.WithError(err).Warn("Metrics endpoint stopped")
	}
	return watchErr
}
