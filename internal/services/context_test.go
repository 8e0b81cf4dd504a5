package services_test

import (
	"context"
	"testing"

	"podcompanion/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, 42)
	ctx = services.WithJobKind(ctx, "index_channel")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if kind, ok := services.JobKindFromContext(ctx); !ok || kind != "index_channel" {
		t.Fatalf("unexpected job kind: %v %v", kind, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankKindPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobKind(ctx, "")
	if _, ok := services.JobKindFromContext(ctx); ok {
		t.Fatal("expected no job kind for blank value")
	}
	if _, ok := services.JobIDFromContext(ctx); ok {
		t.Fatal("expected no job id on bare context")
	}
}
