package commands

import (
	"context"
	"fmt"

	"github.com/ralf-homelab/ralf/pkg/config"
	"github.com/ralf-homelab/ralf/pkg/engine"
	"github.com/ralf-homelab/ralf/pkg/render"
	"github.com/ralf-homelab/ralf/pkg/telemetry"
)

// usageError reports invalid flag combinations. It exits with the validation code.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func newUsageError(format string, args ...interface{}) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// outputFormat resolves --json and --output into a render format.
func outputFormat(jsonFlag bool, output string) (render.Format, error) {
	if jsonFlag {
		if output != "" && output != string(render.FormatJSON) {
			return "", newUsageError("--json conflicts with --output %s", output)
		}
		return render.FormatJSON, nil
	}
	format, err := render.ParseFormat(output)
	if err != nil {
		return "", newUsageError("%v", err)
	}
	return format, nil
}

// loadProfile loads and validates the profile document.
func loadProfile(ctx context.Context, path string) (*engine.Profile, error) {
	op := telemetry.StartOperation(ctx, telemetry.StageProfileLoad, telemetry.AttrSource.String(path))
	profile, err := config.LoadProfile(op.Ctx, path)
	if err != nil {
		op.Span.SetAttributes(telemetry.AttrErrorKind.String(string(engine.KindOf(err))))
	} else {
		op.Logger.WithProfile(profile.Name).Debugf("Loaded %d components", len(profile.Components))
	}
	op.End(err)
	return profile, err
}

// buildGraph orders the profile's tasks. Every command runs it, so a profile with
// a broken dependency graph is rejected everywhere.
func buildGraph(ctx context.Context, profile *engine.Profile) (*engine.TaskGraph, error) {
	op := telemetry.StartOperation(ctx, telemetry.StageGraphBuild, telemetry.AttrProfile.String(profile.Name))
	graph, err := engine.BuildTaskGraph(profile)
	if err != nil {
		op.Span.SetAttributes(telemetry.AttrErrorKind.String(string(engine.KindOf(err))))
	} else {
		op.Span.SetAttributes(telemetry.AttrTasks.Int(graph.Len()))
	}
	op.End(err)
	return graph, err
}

// loadAndBuild runs the shared load and graph stages.
func loadAndBuild(ctx context.Context, path string) (*engine.Profile, *engine.TaskGraph, error) {
	profile, err := loadProfile(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	graph, err := buildGraph(ctx, profile)
	if err != nil {
		return nil, nil, err
	}
	return profile, graph, nil
}
