// Package tracing installs the OpenTelemetry tracer provider for the daemon.
// Sweep steps are exported over OTLP gRPC when an endpoint is configured;
// otherwise a no-op provider keeps span creation free.
package tracing
