package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors describing the last invocation.
type Metrics struct {
	config MetricsConfig

	runDuration *prometheus.HistogramVec
	lastRun     *prometheus.GaugeVec

	planTasks *prometheus.GaugeVec
	planWaves prometheus.Gauge

	reportFindings     *prometheus.GaugeVec
	reportFailing      prometheus.Gauge
	reportWarnings     *prometheus.GaugeVec
	backupExpectations prometheus.Gauge
	backupReconciled   prometheus.Gauge

	workflowsMatched prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of a command invocation in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"command", "status"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time of the last command invocation",
			},
			[]string{"command"},
		),
		planTasks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "plan_tasks",
				Help:      "Planned tasks by simulated outcome",
			},
			[]string{"outcome"},
		),
		planWaves: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "plan_waves",
				Help:      "Number of execution waves in the plan",
			},
		),
		reportFindings: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "report_findings",
				Help:      "Policy findings by severity",
			},
			[]string{"severity"},
		),
		reportFailing: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "report_failing_findings",
				Help:      "Policy findings with a fail status",
			},
		),
		reportWarnings: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "report_warnings",
				Help:      "Report warnings by kind",
			},
			[]string{"kind"},
		),
		backupExpectations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "backup_expectations",
				Help:      "Backup expectations declared by the profile",
			},
		),
		backupReconciled: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "backup_expectations_reconciled",
				Help:      "Backup expectations matched by a conforming job",
			},
		),
		workflowsMatched: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "workflows_matched",
				Help:      "Workflows matched by the last query",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.runDuration, m.lastRun,
		m.planTasks, m.planWaves,
		m.reportFindings, m.reportFailing, m.reportWarnings,
		m.backupExpectations, m.backupReconciled,
		m.workflowsMatched,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ObserveRun records the duration and outcome of a command.
func (m *Metrics) ObserveRun(command, status string, duration time.Duration) {
	m.runDuration.WithLabelValues(command, status).Observe(duration.Seconds())
	m.lastRun.WithLabelValues(command).SetToCurrentTime()
}

// ObservePlan records task counts per outcome and the wave count.
func (m *Metrics) ObservePlan(outcomes map[string]int, waves int) {
	m.planTasks.Reset()
	for outcome, n := range outcomes {
		m.planTasks.WithLabelValues(outcome).Set(float64(n))
	}
	m.planWaves.Set(float64(waves))
}

// ReportObservation is the metric view of an aggregated report.
type ReportObservation struct {
	Findings     map[string]int
	Failing      int
	Warnings     map[string]int
	Expectations int
	Reconciled   int
}

// ObserveReport records finding, warning and backup reconciliation counts.
func (m *Metrics) ObserveReport(obs ReportObservation) {
	m.reportFindings.Reset()
	for severity, n := range obs.Findings {
		m.reportFindings.WithLabelValues(severity).Set(float64(n))
	}
	m.reportFailing.Set(float64(obs.Failing))

	m.reportWarnings.Reset()
	for kind, n := range obs.Warnings {
		m.reportWarnings.WithLabelValues(kind).Set(float64(n))
	}

	m.backupExpectations.Set(float64(obs.Expectations))
	m.backupReconciled.Set(float64(obs.Reconciled))
}

// ObserveWorkflows records how many workflows a query matched.
func (m *Metrics) ObserveWorkflows(matched int) {
	m.workflowsMatched.Set(float64(matched))
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the metrics in the node_exporter textfile format.
// It does nothing when no textfile is configured.
func (m *Metrics) WriteTextfile() error {
	if m.config.Textfile == "" {
		return nil
	}
	return prometheus.WriteToTextfile(m.config.Textfile, m.registry)
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on the configured listen address until ctx is done.
// It returns immediately when no address is configured.
func (m *Metrics) Serve(ctx context.Context) error {
	if m.config.Listen == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              m.config.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
