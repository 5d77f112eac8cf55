package telemetry

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configuration keys shared by the config file, RALF_* environment variables and flags.
const (
	KeyLogLevel          = "log.level"
	KeyLogFormat         = "log.format"
	KeyLogOutput         = "log.output"
	KeyTracingExporter   = "tracing.exporter"
	KeyTracingEndpoint   = "tracing.endpoint"
	KeyTracingInsecure   = "tracing.insecure"
	KeyTracingSampling   = "tracing.sampling_rate"
	KeyMetricsTextfile   = "metrics.textfile"
	KeyMetricsNamespace  = "metrics.namespace"
	KeyMetricsListen     = "metrics.listen"
	KeyResultsSubdir     = "report.results_subdir"
	KeyPreconditionSteps = "precondition.max_steps"
)

// EnvPrefix is the prefix of environment variables that override settings.
const EnvPrefix = "RALF"

// Settings contains the process-wide settings of a ralf invocation.
type Settings struct {
	// ServiceName identifies the process in traces.
	ServiceName string

	// ServiceVersion is the build version.
	ServiceVersion string

	// Logging contains logging configuration.
	Logging LoggingConfig

	// Tracing contains tracing configuration.
	Tracing TracingConfig

	// Metrics contains metrics configuration.
	Metrics MetricsConfig

	// ResultsSubdir is the directory name, relative to the profile, holding policy results.
	ResultsSubdir string

	// PreconditionMaxSteps bounds Starlark precondition evaluation.
	PreconditionMaxSteps uint64
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	Level string

	// Format specifies the log format (console, json).
	Format string

	// Output is stderr, stdout or a file path.
	Output string
}

// TracingConfig configures tracing.
type TracingConfig struct {
	// Exporter is one of none, stdout or otlp.
	Exporter string

	// Endpoint is the OTLP gRPC collector address.
	Endpoint string

	// Insecure disables TLS for the OTLP connection.
	Insecure bool

	// SamplingRate is the trace sampling rate (0.0 to 1.0).
	SamplingRate float64

	// ExportTimeout bounds span export on shutdown.
	ExportTimeout time.Duration
}

// MetricsConfig configures metrics collection.
type MetricsConfig struct {
	// Textfile is the node_exporter textfile path. Empty disables metric output.
	Textfile string

	// Namespace is the metrics namespace prefix.
	Namespace string

	// Listen is the HTTP address serving /metrics while report --watch runs. Empty disables it.
	Listen string
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() *Settings {
	return &Settings{
		ServiceName:    "ralf",
		ServiceVersion: "dev",
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
			Output: "stderr",
		},
		Tracing: TracingConfig{
			Exporter:      "none",
			Endpoint:      "localhost:4317",
			Insecure:      true,
			SamplingRate:  1.0,
			ExportTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Namespace: "ralf",
		},
		ResultsSubdir:        "policy_results",
		PreconditionMaxSteps: 100000,
	}
}

// NewViper returns a viper instance with defaults and RALF_* environment binding.
// Each invocation gets its own instance; nothing is registered globally.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers the default value of every settings key.
func SetDefaults(v *viper.Viper) {
	d := DefaultSettings()
	v.SetDefault(KeyLogLevel, d.Logging.Level)
	v.SetDefault(KeyLogFormat, d.Logging.Format)
	v.SetDefault(KeyLogOutput, d.Logging.Output)
	v.SetDefault(KeyTracingExporter, d.Tracing.Exporter)
	v.SetDefault(KeyTracingEndpoint, d.Tracing.Endpoint)
	v.SetDefault(KeyTracingInsecure, d.Tracing.Insecure)
	v.SetDefault(KeyTracingSampling, d.Tracing.SamplingRate)
	v.SetDefault(KeyMetricsTextfile, d.Metrics.Textfile)
	v.SetDefault(KeyMetricsNamespace, d.Metrics.Namespace)
	v.SetDefault(KeyMetricsListen, d.Metrics.Listen)
	v.SetDefault(KeyResultsSubdir, d.ResultsSubdir)
	v.SetDefault(KeyPreconditionSteps, d.PreconditionMaxSteps)
}

// LoadSettings reads an optional YAML config file into v and returns the validated settings.
func LoadSettings(v *viper.Viper, configFile string) (*Settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	s := DefaultSettings()
	s.Logging.Level = strings.ToLower(v.GetString(KeyLogLevel))
	s.Logging.Format = strings.ToLower(v.GetString(KeyLogFormat))
	s.Logging.Output = v.GetString(KeyLogOutput)
	s.Tracing.Exporter = strings.ToLower(v.GetString(KeyTracingExporter))
	s.Tracing.Endpoint = v.GetString(KeyTracingEndpoint)
	s.Tracing.Insecure = v.GetBool(KeyTracingInsecure)
	s.Tracing.SamplingRate = v.GetFloat64(KeyTracingSampling)
	s.Metrics.Textfile = v.GetString(KeyMetricsTextfile)
	s.Metrics.Namespace = v.GetString(KeyMetricsNamespace)
	s.Metrics.Listen = v.GetString(KeyMetricsListen)
	s.ResultsSubdir = v.GetString(KeyResultsSubdir)

	steps := v.GetInt64(KeyPreconditionSteps)
	if steps <= 0 {
		return nil, fmt.Errorf("%s must be positive, got: %d", KeyPreconditionSteps, steps)
	}
	s.PreconditionMaxSteps = uint64(steps)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks if the settings are valid.
func (s *Settings) Validate() error {
	if s.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true,
	}
	if !validLevels[s.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", s.Logging.Level)
	}

	if s.Logging.Format != "console" && s.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", s.Logging.Format)
	}

	switch s.Tracing.Exporter {
	case "none", "stdout":
	case "otlp":
		if s.Tracing.Endpoint == "" {
			return fmt.Errorf("%s is required when the otlp exporter is selected", KeyTracingEndpoint)
		}
	default:
		return fmt.Errorf("invalid trace exporter: %s (must be none, stdout or otlp)", s.Tracing.Exporter)
	}

	if s.Tracing.SamplingRate < 0 || s.Tracing.SamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0 and 1, got: %f", s.Tracing.SamplingRate)
	}

	sub := s.ResultsSubdir
	if sub == "" || sub == "." || sub == ".." || filepath.Base(sub) != sub {
		return fmt.Errorf("%s must be a single directory name, got: %q", KeyResultsSubdir, sub)
	}

	if s.PreconditionMaxSteps == 0 {
		return fmt.Errorf("%s must be positive", KeyPreconditionSteps)
	}

	return nil
}
