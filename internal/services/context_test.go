package services_test

import (
	"context"
	"testing"

	"vigil/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-1")
	ctx = services.WithIdentifier(ctx, "uuid:1234")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-1" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if identifier, ok := services.IdentifierFromContext(ctx); !ok || identifier != "uuid:1234" {
		t.Fatalf("unexpected identifier: %v %v", identifier, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithIdentifier(ctx, "")
	ctx = services.WithRunID(ctx, "")
	if _, ok := services.IdentifierFromContext(ctx); ok {
		t.Fatal("expected no identifier value")
	}
	if _, ok := services.RunIDFromContext(ctx); ok {
		t.Fatal("expected no run id value")
	}
}
