package telemetry

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LoggingConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.NewComponentLogger("planner").WithProfile("homelab").Info("planned")
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, `"component":"planner"`)
	assert.Contains(t, out, `"profile":"homelab"`)
	assert.Contains(t, out, `"message":"planned"`)
	assert.NotContains(t, out, "hidden")
}

func TestLogger_Context(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	ctx := logger.WithContext(context.Background())
	FromContext(ctx).Debug("from context")
	assert.Contains(t, buf.String(), "from context")

	FromContext(context.Background()).Error("dropped")
	assert.NotContains(t, buf.String(), "dropped")
}

func TestStartOperation_StdoutExporter(t *testing.T) {
	var diag bytes.Buffer
	s := DefaultSettings()
	s.Tracing.Exporter = "stdout"
	s.Logging.Level = "debug"
	s.Logging.Format = "json"

	tel, err := New(s, &diag)
	require.NoError(t, err)

	ctx := tel.WithContext(context.Background())
	op := StartOperation(ctx, StageReportAggregate, AttrProfile.String("homelab"))
	op.End(errors.New("boom"))
	require.NoError(t, tel.Shutdown(context.Background()))

	out := diag.String()
	assert.Contains(t, out, `"stage":"report.aggregate"`)
	assert.Contains(t, out, "stage failed")
	assert.Contains(t, out, `"Name": "report.aggregate"`)
	assert.Contains(t, out, "boom")
}

func TestStartOperation_WithoutTelemetry(t *testing.T) {
	op := StartOperation(context.Background(), StageGraphBuild)
	assert.False(t, op.Span.SpanContext().IsValid())
	op.End(nil)
}

func TestMetrics_Observations(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Namespace: "ralf"})
	require.NoError(t, err)

	m.ObservePlan(map[string]int{"create": 2, "skip": 1}, 3)
	m.ObservePlan(map[string]int{"create": 1}, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.planTasks.WithLabelValues("create")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.planTasks), "stale outcomes are reset")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.planWaves))

	m.ObserveReport(ReportObservation{
		Findings:     map[string]int{"critical": 1},
		Failing:      1,
		Warnings:     map[string]int{"ResultArtifactParseError": 1},
		Expectations: 2,
		Reconciled:   1,
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reportFindings.WithLabelValues("critical")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.backupExpectations))

	m.ObserveWorkflows(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.workflowsMatched))

	m.ObserveRun("plan", "ok", 20*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ralf.prom")
	m, err := NewMetrics(MetricsConfig{Namespace: "ralf", Textfile: path})
	require.NoError(t, err)

	m.ObserveWorkflows(2)
	require.NoError(t, m.WriteTextfile())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ralf_workflows_matched 2")
}

func TestMetrics_NoTextfile(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Namespace: "ralf"})
	require.NoError(t, err)
	assert.NoError(t, m.WriteTextfile())
}

func TestMetrics_Handler(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Namespace: "ralf"})
	require.NoError(t, err)
	m.ObservePlan(map[string]int{"create": 1}, 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), `ralf_plan_tasks{outcome="create"} 1`))
}

func TestMetrics_ServeDisabled(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Namespace: "ralf"})
	require.NoError(t, err)
	assert.NoError(t, m.Serve(context.Background()))
}
