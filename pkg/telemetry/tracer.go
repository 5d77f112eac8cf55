package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Pipeline stage span names.
const (
	StageProfileLoad     = "profile.load"
	StageGraphBuild      = "graph.build"
	StagePlanSimulate    = "plan.simulate"
	StageWorkflowsQuery  = "workflows.query"
	StageReportAggregate = "report.aggregate"
	StagePolicyEvaluate  = "policy.evaluate"
)

// Common attribute keys for ralf spans.
var (
	AttrProfile    = attribute.Key("ralf.profile")
	AttrSource     = attribute.Key("ralf.source")
	AttrCommand    = attribute.Key("ralf.command")
	AttrTasks      = attribute.Key("ralf.tasks")
	AttrPolicies   = attribute.Key("ralf.policies")
	AttrWarnings   = attribute.Key("ralf.warnings")
	AttrResultsDir = attribute.Key("ralf.results_dir")
	AttrErrorKind  = attribute.Key("error.kind")
)

// Tracer wraps the OpenTelemetry tracer.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	config   TracingConfig
}

// NewTracer creates a tracer. The stdout exporter writes to w, or stderr when w is nil,
// so traces never mix with rendered command output.
func NewTracer(cfg TracingConfig, serviceName, serviceVersion string, w io.Writer) (*Tracer, error) {
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "otlp":
		exporter, err = createOTLPExporter(cfg, serviceName, serviceVersion)
	case "stdout":
		if w == nil {
			w = os.Stderr
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	case "none", "":
		// Spans are created but never exported.
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	}
	if exporter != nil {
		batch := []sdktrace.BatchSpanProcessorOption{}
		if cfg.ExportTimeout > 0 {
			batch = append(batch, sdktrace.WithExportTimeout(cfg.ExportTimeout))
		}
		opts = append(opts, sdktrace.WithBatcher(exporter, batch...))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(serviceName),
		config:   cfg,
	}, nil
}

// createOTLPExporter creates an OTLP gRPC exporter.
func createOTLPExporter(cfg TracingConfig, serviceName, serviceVersion string) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent(serviceName + "/" + serviceVersion)),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}
	return otlptracegrpc.New(context.Background(), opts...)
}

// StartStage starts a span for a pipeline stage.
func (t *Tracer) StartStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, stage, trace.WithAttributes(attrs...))
}

// RecordError records an error on the span.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordSuccess marks the span as successful.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// EndSpan records the outcome of err on span and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		RecordError(span, err)
	} else {
		RecordSuccess(span)
	}
	span.End()
}

// Shutdown flushes pending spans and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// TraceID returns the trace ID of the current span in the context.
func TraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return ""
	}
	return span.SpanContext().TraceID().String()
}
