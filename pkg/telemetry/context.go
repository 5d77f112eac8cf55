package telemetry

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles the logger, tracer and metrics of one invocation.
type Telemetry struct {
	Logger   *Logger
	Tracer   *Tracer
	Metrics  *Metrics
	Settings *Settings
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// New creates telemetry from validated settings. Logs and stdout traces go to
// diag, or to the configured outputs when diag is nil.
func New(s *Settings, diag io.Writer) (*Telemetry, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(s.Logging, diag)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(s.Tracing, s.ServiceName, s.ServiceVersion, diag)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(s.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:   logger,
		Tracer:   tracer,
		Metrics:  metrics,
		Settings: s,
	}, nil
}

// WithContext adds the telemetry instance and its logger to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Logger.WithContext(ctx)
}

// FromTelemetryContext retrieves the telemetry instance from the context, or nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown flushes spans and writes the metrics textfile.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	metricsErr := t.Metrics.WriteTextfile()
	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}
	return metricsErr
}

// Timer measures elapsed time.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// InstrumentedContext carries the span and logger of one pipeline stage.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins a pipeline stage with a span and a stage logger.
// Without telemetry in ctx the span is a no-op and the logger discards.
func StartOperation(ctx context.Context, stage string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:    ctx,
			Span:   trace.SpanFromContext(context.Background()),
			Logger: FromContext(ctx),
			Timer:  NewTimer(),
		}
	}

	spanCtx, span := tel.Tracer.StartStage(ctx, stage, attrs...)
	logger := tel.Logger.WithField("stage", stage)
	if span.SpanContext().IsValid() {
		logger = logger.WithField("trace_id", span.SpanContext().TraceID().String())
	}

	return &InstrumentedContext{
		Ctx:    logger.WithContext(spanCtx),
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End finishes the stage, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	if err != nil {
		ic.Logger.WithError(err).Debugf("stage failed after %s", ic.Timer.Duration())
	} else {
		ic.Logger.Debugf("stage completed in %s", ic.Timer.Duration())
	}
	EndSpan(ic.Span, err)
}
