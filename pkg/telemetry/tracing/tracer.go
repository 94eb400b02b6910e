package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"ledgerline/policyforge/pkg/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
)

// InstrumentationName names the tracer handed out by Tracer.Start.
const InstrumentationName = "policyforge"

// Exporter names accepted in telemetry.tracing.exporter.
const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
)

// Tracer wraps the OpenTelemetry tracer provider. Components that call
// otel.Tracer directly (the manager, the enhancement worker) pick up the
// provider because New installs it globally.
type Tracer struct {
	config   *config.TracingConfig
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	enabled  bool
}

// Options adjusts New.
type Options struct {
	// Version is reported as service.version.
	Version string

	// Exporter replaces the configured exporter. Tests pass an in-memory one.
	Exporter sdktrace.SpanExporter

	// Writer receives spans for the stdout exporter (defaults to os.Stdout).
	Writer io.Writer
}

// New creates a Tracer. When tracing is disabled a noop tracer is returned
// and the global provider is left alone.
//
// The tracer must be shut down to flush spans:
//
//	defer tracer.Shutdown(context.Background())
func New(cfg *config.TracingConfig, opts Options) (*Tracer, error) {
	if cfg == nil {
		return nil, errors.New("tracing config is nil")
	}

	t := &Tracer{
		config:  cfg,
		enabled: cfg.Enabled,
	}

	if !cfg.Enabled {
		t.tracer = noop.NewTracerProvider().Tracer(InstrumentationName)
		return t, nil
	}

	sampler, err := createSampler(cfg.Sampler, cfg.SampleRatio)
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler: %w", err)
	}

	exporter := opts.Exporter
	if exporter == nil {
		exporter, err = createExporter(cfg, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create exporter: %w", err)
		}
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = config.DefaultTracingServiceName
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	t.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(t.provider)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	t.tracer = t.provider.Tracer(InstrumentationName)
	return t, nil
}

// Start creates a span that is a child of any span in ctx.
//
//	ctx, span := tracer.Start(ctx, "policy.publish")
//	defer span.End()
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// ForceFlush exports every finished span now.
func (t *Tracer) ForceFlush(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.ForceFlush(ctx)
}

// Shutdown flushes any pending spans and shuts down the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if !t.enabled || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// Enabled returns whether tracing is enabled.
func (t *Tracer) Enabled() bool {
	return t.enabled
}

func createExporter(cfg *config.TracingConfig, opts Options) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterOTLP, "":
		return createOTLPExporter(cfg, opts.Version)
	case ExporterStdout:
		w := opts.Writer
		if w == nil {
			w = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(w))
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", cfg.Exporter)
	}
}

// createOTLPExporter creates an OTLP gRPC exporter. The connection is made
// lazily, so an unreachable collector does not fail startup.
func createOTLPExporter(cfg *config.TracingConfig, version string) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent(userAgent(version))),
	}
	if cfg.OTLP.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if cfg.OTLP.Timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.OTLP.Timeout))
	}

	exporter, err := otlptracegrpc.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return exporter, nil
}

// SpanFromContext returns the current span from the context.
// If no span exists, a noop span is returned.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// TraceID returns the trace ID from the context as a string, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// SpanID returns the span ID from the context as a string, or "".
func SpanID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.SpanID().String()
}

// IsSampled returns whether the current trace is sampled.
func IsSampled(ctx context.Context) bool {
	return trace.SpanContextFromContext(ctx).IsSampled()
}

// SetError records err on the span and marks it failed. A nil err sets the
// status to OK.
func SetError(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func userAgent(version string) string {
	if version == "" {
		version = "dev"
	}
	return InstrumentationName + "/" + version
}
