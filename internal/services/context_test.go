package services_test

import (
	"context"
	"testing"

	"baton/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "content")
	ctx = services.WithRequestID(ctx, "req-123")
	ctx = services.WithPipelineID(ctx, "camp-7")
	ctx = services.WithCorrelationID(ctx, "corr-9")

	if stage, ok := services.StageFromContext(ctx); !ok || stage != "content" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
	if pid, ok := services.PipelineIDFromContext(ctx); !ok || pid != "camp-7" {
		t.Fatalf("unexpected pipeline id: %v %v", pid, ok)
	}
	if cid, ok := services.CorrelationIDFromContext(ctx); !ok || cid != "corr-9" {
		t.Fatalf("unexpected correlation id: %v %v", cid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithRequestID(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("expected no request id value")
	}
}
