package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"

	"github.com/ralf-homelab/ralf/pkg/engine"
	"github.com/ralf-homelab/ralf/pkg/telemetry"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// app holds the state of one invocation.
type app struct {
	info       BuildInfo
	v          *viper.Viper
	configPath string

	tel     *telemetry.Telemetry
	command string
	timer   *telemetry.Timer
	span    trace.Span
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, info BuildInfo, args []string, stdout, stderr io.Writer) int {
	a := &app{info: info, v: telemetry.NewViper()}

	rootCmd := a.newRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	a.finish(err)
	if err != nil {
		fmt.Fprintln(stderr, formatError(err))
	}
	return engine.ExitCode(err)
}

// formatError prints classified errors as "<Kind>: <message>".
func formatError(err error) string {
	var classified *engine.Error
	if errors.As(err, &classified) {
		return classified.Error()
	}
	return "Error: " + err.Error()
}

func (a *app) newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ralf",
		Short: "RALF - homelab installation planner",
		Long: `RALF plans homelab installations from a declarative profile.

A profile lists components with their installation tasks, the automation
workflows to enable and the backups the lab is expected to keep. RALF never
executes anything itself:
  - plan orders the tasks and simulates a dry run
  - enable-workflows lists the workflows to hand to an orchestrator
  - report consolidates policy results and reconciles backup retention
  - validate checks a profile and its task graph`,
		Version:           fmt.Sprintf("%s (commit: %s, built: %s)", a.info.Version, a.info.Commit, a.info.BuildDate),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file path (YAML)")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", "", "log format (console, json)")
	flags.String("trace-exporter", "", "trace exporter (none, stdout, otlp)")
	flags.String("metrics-textfile", "", "write metrics to a node_exporter textfile")
	_ = a.v.BindPFlag(telemetry.KeyLogLevel, flags.Lookup("log-level"))
	_ = a.v.BindPFlag(telemetry.KeyLogFormat, flags.Lookup("log-format"))
	_ = a.v.BindPFlag(telemetry.KeyTracingExporter, flags.Lookup("trace-exporter"))
	_ = a.v.BindPFlag(telemetry.KeyMetricsTextfile, flags.Lookup("metrics-textfile"))

	rootCmd.AddCommand(a.newPlanCommand())
	rootCmd.AddCommand(a.newEnableWorkflowsCommand())
	rootCmd.AddCommand(a.newReportCommand())
	rootCmd.AddCommand(a.newValidateCommand())

	return rootCmd
}

// setup loads settings and attaches telemetry to the command context.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	settings, err := telemetry.LoadSettings(a.v, a.configPath)
	if err != nil {
		return err
	}
	settings.ServiceVersion = a.info.Version

	tel, err := telemetry.New(settings, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.tel = tel
	a.command = cmd.Name()
	a.timer = telemetry.NewTimer()
	ctx, span := tel.Tracer.StartStage(tel.WithContext(cmd.Context()), "ralf "+a.command,
		telemetry.AttrCommand.String(a.command))
	a.span = span
	cmd.SetContext(ctx)

	tel.Logger.NewComponentLogger("cli").
		WithField("command", a.command).
		Debugf("Starting ralf %s", a.info.Version)
	return nil
}

// finish records the run and flushes telemetry.
func (a *app) finish(err error) {
	if a.tel == nil {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
		if kind := engine.KindOf(err); kind != "" {
			status = string(kind)
		}
	}
	a.tel.Metrics.ObserveRun(a.command, status, a.timer.Duration())
	telemetry.EndSpan(a.span, err)

	ctx, cancel := context.WithTimeout(context.Background(), a.tel.Settings.Tracing.ExportTimeout)
	defer cancel()
	if err := a.tel.Shutdown(ctx); err != nil {
		a.tel.Logger.WithError(err).Warn("Failed to flush telemetry")
	}
}
