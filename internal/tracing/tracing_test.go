package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"vigil/internal/config"
)

func TestNewWithoutEndpointIsNoop(t *testing.T) {
	p, err := New(context.Background(), config.Tracing{ServiceName: "vigil"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if p.Enabled() {
		t.Fatal("expected tracing disabled without an endpoint")
	}
	_, span := p.Tracer("vigil/test").Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Fatal("noop provider must not produce recordable spans")
	}
	span.End()
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestNewWithEndpointEnablesExport(t *testing.T) {
	p, err := New(context.Background(), config.Tracing{
		OTLPEndpoint: "127.0.0.1:4317",
		Insecure:     true,
		SampleRatio:  1,
		ServiceName:  "vigil",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !p.Enabled() {
		t.Fatal("expected tracing enabled with an endpoint")
	}
	// Nothing was recorded, so shutdown has nothing to send to the collector.
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestProviderExportsSpansWithServiceName(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	p, err := newProvider(config.Tracing{SampleRatio: 1, ServiceName: "vigil-test"}, sdktrace.NewSimpleSpanProcessor(exporter))
	if err != nil {
		t.Fatalf("newProvider failed: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	_, span := p.Tracer("vigil/test").Start(context.Background(), "sweep.step")
	span.SetAttributes(attribute.String("vigil.identifier", "A"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "sweep.step" {
		t.Fatalf("unexpected spans %#v", spans)
	}
	var service string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == semconv.ServiceNameKey {
			service = kv.Value.AsString()
		}
	}
	if service != "vigil-test" {
		t.Fatalf("expected service name vigil-test, got %q", service)
	}
}

func TestZeroSampleRatioDropsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	p, err := newProvider(config.Tracing{SampleRatio: 0, ServiceName: "vigil"}, sdktrace.NewSimpleSpanProcessor(exporter))
	if err != nil {
		t.Fatalf("newProvider failed: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	_, span := p.Tracer("vigil/test").Start(context.Background(), "sweep.step")
	span.End()
	if spans := exporter.GetSpans(); len(spans) != 0 {
		t.Fatalf("expected no sampled spans, got %d", len(spans))
	}
}
