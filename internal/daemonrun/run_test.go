package daemonrun

import (
	"context"
	"os"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"vigil/internal/config"
	"vigil/internal/testsupport"
)

func TestBuildWiresManifestCatalog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.WriteFile(cfg.Catalog.ManifestPath, []byte("objects: []\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	d, err := Build(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	status, err := d.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running {
		t.Fatal("built daemon must not be running before Start")
	}
	if status.LedgerPath != cfg.LedgerPath() {
		t.Fatalf("ledger path = %q, want %q", status.LedgerPath, cfg.LedgerPath())
	}
}

func TestBuildFailsOnUnknownCatalogDriver(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Catalog.Driver = "oracle"

	_, err := Build(context.Background(), cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "open catalog") {
		t.Fatalf("expected catalog error, got %v", err)
	}
}

func TestBuildRejectsBadSchedule(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.WriteFile(cfg.Catalog.ManifestPath, []byte("objects: []\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	cfg.Schedule.Enabled = true
	cfg.Schedule.AlwaysActive = false
	cfg.Schedule.Activate = "not a cron line"

	_, err := Build(context.Background(), cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "schedule.activate") {
		t.Fatalf("expected schedule error, got %v", err)
	}
}

func TestBuildRequiresConfig(t *testing.T) {
	var cfg *config.Config
	if _, err := Build(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestBuildInstallsConfiguredTracerProvider(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	cfg := testsupport.NewConfig(t)
	if err := os.WriteFile(cfg.Catalog.ManifestPath, []byte("objects: []\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	cfg.Tracing.OTLPEndpoint = "127.0.0.1:4317"
	cfg.Tracing.Insecure = true

	d, err := Build(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("expected an SDK tracer provider, got %T", otel.GetTracerProvider())
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
