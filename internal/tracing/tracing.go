package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"vigil/internal/config"
)

const shutdownTimeout = 5 * time.Second

// Provider owns the process tracer provider and flushes it on Close.
type Provider struct {
	provider trace.TracerProvider
	shutdown func(context.Context) error
	enabled  bool
}

// New builds the provider described by cfg. An empty endpoint yields a no-op
// provider.
func New(ctx context.Context, cfg config.Tracing) (*Provider, error) {
	if cfg.OTLPEndpoint == "" {
		return &Provider{
			provider: nooptrace.NewTracerProvider(),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	return newProvider(cfg, sdktrace.NewBatchSpanProcessor(exporter))
}

func newProvider(cfg config.Tracing, processor sdktrace.SpanProcessor) (*Provider, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)
	return &Provider{provider: tp, shutdown: tp.Shutdown, enabled: true}, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// Install makes p the global tracer provider.
func (p *Provider) Install() {
	otel.SetTracerProvider(p.provider)
}

// Tracer returns a named tracer from the provider.
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.provider.Tracer(name)
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p.enabled
}

// Close flushes pending spans, giving up after a few seconds.
func (p *Provider) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := p.shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}
