package tracing_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"baton/internal/config"
	"baton/internal/tracing"
)

func TestSetupDisabledReturnsNoop(t *testing.T) {
	provider, err := tracing.Setup(context.Background(), config.Tracing{Enabled: false})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	_, span := tracing.StartSpan(context.Background(), provider.Tracer(), "noop")
	span.End()
	if span.SpanContext().IsValid() {
		t.Fatal("expected no-op span")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestSpansReachExporter(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider, err := tracing.NewWithExporter("baton-test", exporter)
	if err != nil {
		t.Fatalf("NewWithExporter: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	_, span := tracing.StartSpan(context.Background(), provider.Tracer(), "handoff content->design",
		attribute.String(tracing.HandoffIDKey, "h1"))
	tracing.SetError(span, errors.New("content_context.generated_content is required"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	got := spans[0]
	if got.Name != "handoff content->design" {
		t.Fatalf("unexpected span name %q", got.Name)
	}
	if got.Status.Code != codes.Error {
		t.Fatalf("expected error status, got %v", got.Status)
	}
	found := false
	for _, kv := range got.Attributes {
		if kv.Key == tracing.HandoffIDKey && kv.Value.AsString() == "h1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("handoff id attribute missing: %v", got.Attributes)
	}
}

func TestNilProviderTracer(t *testing.T) {
	var provider *tracing.Provider
	if provider.Tracer() == nil {
		t.Fatal("expected fallback tracer")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
}
