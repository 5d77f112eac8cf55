package report

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ralf-homelab/ralf/pkg/engine"
	"github.com/ralf-homelab/ralf/pkg/policy"
)

// DefaultResultsSubdir is the results directory looked up next to the profile.
const DefaultResultsSubdir = "policy_results"

// ProfileEvaluator evaluates policies over a profile. *policy.Engine implements it.
type ProfileEvaluator interface {
	EvaluateProfile(ctx context.Context, profile *engine.Profile) (*policy.Result, error)
}

// Options configures an Aggregator.
type Options struct {
	// Logger receives debug output.
	Logger zerolog.Logger

	// ResultsSubdir is the default results directory name under the profile's
	// directory. Empty means DefaultResultsSubdir.
	ResultsSubdir string

	// Policies, when set, is evaluated over the profile and its denials are
	// merged with the artifact findings.
	Policies ProfileEvaluator
}

// FindingGroups holds findings grouped by severity, each sorted by target, then
// policy, then source.
type FindingGroups struct {
	Critical []policy.Finding `json:"critical"`
	Warning  []policy.Finding `json:"warning"`
	Info     []policy.Finding `json:"info"`
}

// Group returns the findings of one severity.
func (g *FindingGroups) Group(severity policy.Severity) []policy.Finding {
	switch severity {
	case policy.SeverityCritical:
		return g.Critical
	case policy.SeverityWarning:
		return g.Warning
	default:
		return g.Info
	}
}

func (g *FindingGroups) add(f policy.Finding) {
	switch f.Severity {
	case policy.SeverityCritical:
		g.Critical = append(g.Critical, f)
	case policy.SeverityWarning:
		g.Warning = append(g.Warning, f)
	default:
		g.Info = append(g.Info, f)
	}
}

func (g *FindingGroups) sort() {
	for _, group := range [][]policy.Finding{g.Critical, g.Warning, g.Info} {
		sort.SliceStable(group, func(i, j int) bool {
			a, b := group[i], group[j]
			if a.Target != b.Target {
				return a.Target < b.Target
			}
			if a.Policy != b.Policy {
				return a.Policy < b.Policy
			}
			return a.Source < b.Source
		})
	}
}

// Summary tallies a report.
type Summary struct {
	Findings     int `json:"findings"`
	Critical     int `json:"critical"`
	Warning      int `json:"warning"`
	Info         int `json:"info"`
	Failing      int `json:"failing"`
	BackupJobs   int `json:"backup_jobs"`
	Expectations int `json:"expectations"`
	Reconciled   int `json:"reconciled"`
	Warnings     int `json:"warnings"`
}

// Report is a consolidated snapshot of a results directory merged with the
// profile's backup expectations.
type Report struct {
	Profile        string           `json:"profile"`
	Description    string           `json:"description,omitempty"`
	ResultsDir     string           `json:"results_dir"`
	Findings       FindingGroups    `json:"findings"`
	BackupJobs     []BackupJob      `json:"backup_jobs"`
	Reconciliation []Reconciliation `json:"reconciliation"`
	Warnings       []engine.Warning `json:"warnings"`
	Summary        Summary          `json:"summary"`
}

// Aggregator builds reports. It keeps no state between calls; every Aggregate
// reads the results directory afresh.
type Aggregator struct {
	opts   Options
	reader *ArtifactReader
	logger zerolog.Logger
}

// NewAggregator creates an aggregator.
func NewAggregator(opts Options) (*Aggregator, error) {
	reader, err := NewArtifactReader()
	if err != nil {
		return nil, engine.NewInternalError("failed to prepare artifact schemas", err)
	}
	if opts.ResultsSubdir == "" {
		opts.ResultsSubdir = DefaultResultsSubdir
	}
	return &Aggregator{
		opts:   opts,
		reader: reader,
		logger: opts.Logger.With().Str("component", "report-aggregator").Logger(),
	}, nil
}

// ResultsDir resolves the directory to read. An explicit directory is returned
// as is; otherwise the configured subdirectory next to the profile source.
func (a *Aggregator) ResultsDir(profile *engine.Profile, explicit string) string {
	if explicit != "" {
		return explicit
	}
	base := "."
	if profile.Source != "" {
		base = filepath.Dir(profile.Source)
	}
	return filepath.Join(base, a.opts.ResultsSubdir)
}

// Aggregate reads resultsDir (or the default directory when empty) and builds a
// report. An explicit directory that is missing, not a directory or unreadable
// is a ResultsDirectoryError; a missing default directory yields an empty
// snapshot with a warning. Bad artifacts become warnings.
func (a *Aggregator) Aggregate(ctx context.Context, profile *engine.Profile, resultsDir string) (*Report, error) {
	explicit := resultsDir != ""
	dir := a.ResultsDir(profile, resultsDir)

	report := &Report{
		Profile:        profile.Name,
		Description:    profile.Description,
		ResultsDir:     dir,
		BackupJobs:     make([]BackupJob, 0),
		Reconciliation: make([]Reconciliation, 0),
		Warnings:       make([]engine.Warning, 0),
	}

	artifacts, warnings, err := a.readDirectory(ctx, dir, explicit)
	if err != nil {
		return nil, err
	}
	report.Warnings = append(report.Warnings, warnings...)

	for _, art := range artifacts {
		switch art.Kind {
		case ArtifactBackupJob:
			report.BackupJobs = append(report.BackupJobs, *art.BackupJob)
		default:
			report.Findings.add(*art.Finding)
		}
	}

	if a.opts.Policies != nil {
		result, err := a.opts.Policies.EvaluateProfile(ctx, profile)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			report.Warnings = append(report.Warnings, engine.Warning{
				Kind:    engine.WarningPolicyEvaluation,
				Subject: profile.Name,
				Message: fmt.Sprintf("profile policies could not be evaluated: %v", err),
			})
		} else {
			for _, f := range result.Findings {
				report.Findings.add(f)
			}
			report.Warnings = append(report.Warnings, result.Warnings()...)
		}
	}

	reconciliation, reconcileWarnings := Reconcile(profile.Backups, report.BackupJobs)
	report.Reconciliation = append(report.Reconciliation, reconciliation...)
	report.Warnings = append(report.Warnings, reconcileWarnings...)

	report.Findings.sort()
	engine.SortWarnings(report.Warnings)
	report.Summary = summarize(report)

	a.logger.Debug().
		Str("profile", profile.Name).
		Str("results_dir", dir).
		Int("findings", report.Summary.Findings).
		Int("backup_jobs", report.Summary.BackupJobs).
		Int("warnings", report.Summary.Warnings).
		Msg("Report aggregated")

	return report, nil
}

// readDirectory decodes every *.json file of dir in lexical order.
func (a *Aggregator) readDirectory(ctx context.Context, dir string, explicit bool) ([]*Artifact, []engine.Warning, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil, []engine.Warning{{
				Kind:    engine.WarningResultsDirMissing,
				Subject: dir,
				Message: fmt.Sprintf("results directory %s does not exist; no artifacts read", dir),
			}}, nil
		}
		return nil, nil, engine.NewResultsDirectoryError(dir, err)
	}
	if !info.IsDir() {
		return nil, nil, engine.NewResultsDirectoryError(dir, fmt.Errorf("not a directory"))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, engine.NewResultsDirectoryError(dir, err)
	}

	var artifacts []*Artifact
	var warnings []engine.Warning
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		art, err := a.reader.ReadFile(path)
		if err != nil {
			a.logger.Debug().Err(err).Str("path", path).Msg("Skipping malformed artifact")
			warnings = append(warnings, engine.Warning{
				Kind:    engine.WarningArtifactParse,
				Subject: entry.Name(),
				Message: fmt.Sprintf("%s: %v", path, err),
			})
			continue
		}
		artifacts = append(artifacts, art)
	}

	return artifacts, warnings, nil
}

func summarize(r *Report) Summary {
	s := Summary{
		Critical:     len(r.Findings.Critical),
		Warning:      len(r.Findings.Warning),
		Info:         len(r.Findings.Info),
		BackupJobs:   len(r.BackupJobs),
		Expectations: len(r.Reconciliation),
		Warnings:     len(r.Warnings),
	}
	s.Findings = s.Critical + s.Warning + s.Info

	for _, severity := range policy.Severities {
		for _, f := range r.Findings.Group(severity) {
			if f.Status == policy.StatusFail {
				s.Failing++
			}
		}
	}
	for _, rec := range r.Reconciliation {
		if rec.Status == ReconcileOK {
			s.Reconciled++
		}
	}

	return s
}
