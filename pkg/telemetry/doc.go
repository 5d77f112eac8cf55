// Package telemetry provides the observability plumbing shared by every ralf command.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry) and metrics
// (Prometheus) behind one Telemetry value built from Settings. Settings come from a
// per-invocation viper instance: an optional YAML config file, RALF_* environment
// variables and command flags, in increasing precedence.
//
// # Usage
//
//	v := telemetry.NewViper()
//	settings, err := telemetry.LoadSettings(v, configFile)
//	if err != nil {
//	    return err
//	}
//	tel, err := telemetry.New(settings, os.Stderr)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//	ctx = tel.WithContext(ctx)
//
// Each pipeline stage runs inside an operation:
//
//	op := telemetry.StartOperation(ctx, telemetry.StageGraphBuild,
//	    telemetry.AttrProfile.String(profile.Name))
//	graph, err := engine.BuildTaskGraph(profile)
//	op.End(err)
//
// # Outputs
//
// Logs and stdout traces are diagnostics and never go to stdout when a writer is
// given, so rendered command output stays machine readable. Metrics are written to
// a node_exporter textfile on Shutdown when metrics.textfile is set, and served
// over HTTP while a report watch is running when metrics.listen is set.
package telemetry
