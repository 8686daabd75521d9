package tracing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"baton/internal/config"
)

// Span attribute keys.
const (
	HandoffIDKey     = "baton.handoff.id"
	PipelineIDKey    = "baton.pipeline.id"
	SourceStageKey   = "baton.handoff.source"
	TargetStageKey   = "baton.handoff.target"
	PayloadBytesKey  = "baton.handoff.payload_bytes"
	RequestIDKey     = "baton.request.id"
	CorrelationIDKey = "baton.correlation.id"
)

// Provider wraps a tracer and the SDK provider that backs it, if any.
type Provider struct {
	sdk    *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Setup builds a provider from configuration. Disabled tracing yields a no-op tracer.
func Setup(ctx context.Context, cfg config.Tracing) (*Provider, error) {
	if !cfg.Enabled {
		return Noop(), nil
	}

	var opts []otlptracehttp.Option
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		if strings.Contains(endpoint, "://") {
			opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
		} else {
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		}
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}
	return newProvider(cfg.ServiceName, sdktrace.WithBatcher(exporter))
}

// NewWithExporter builds a provider that hands spans synchronously to exporter.
func NewWithExporter(serviceName string, exporter sdktrace.SpanExporter) (*Provider, error) {
	return newProvider(serviceName, sdktrace.WithSyncer(exporter))
}

// Noop returns a provider whose spans are discarded.
func Noop() *Provider {
	return &Provider{tracer: noop.NewTracerProvider().Tracer("baton")}
}

func newProvider(serviceName string, export sdktrace.TracerProviderOption) (*Provider, error) {
	if strings.TrimSpace(serviceName) == "" {
		serviceName = "baton"
	}
	r, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		export,
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}))
	return &Provider{sdk: tp, tracer: tp.Tracer(serviceName)}, nil
}

// Tracer returns the tracer handoff code starts spans from.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer("baton")
	}
	return p.tracer
}

// Shutdown flushes and stops the SDK provider. It is a no-op for Noop providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}

// StartSpan starts a span carrying attrs.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// SetError records err on span and marks the span failed.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(attrs...))
}
