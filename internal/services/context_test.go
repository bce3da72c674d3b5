package services_test

import (
	"context"
	"testing"

	"folio/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, 42)
	ctx = services.WithJob(ctx, "import")
	ctx = services.WithStep(ctx, "ready")
	ctx = services.WithComicID(ctx, 7)
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if job, ok := services.JobFromContext(ctx); !ok || job != "import" {
		t.Fatalf("unexpected job: %v %v", job, ok)
	}
	if step, ok := services.StepFromContext(ctx); !ok || step != "ready" {
		t.Fatalf("unexpected step: %v %v", step, ok)
	}
	if id, ok := services.ComicIDFromContext(ctx); !ok || id != 7 {
		t.Fatalf("unexpected comic id: %v %v", id, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStep(ctx, "")
	ctx = services.WithJob(ctx, "")
	if _, ok := services.StepFromContext(ctx); ok {
		t.Fatal("expected no step value")
	}
	if _, ok := services.JobFromContext(ctx); ok {
		t.Fatal("expected no job value")
	}
}
