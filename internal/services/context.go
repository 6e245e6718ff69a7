package services

import "context"

type contextKey string

const (
	runIDKey      contextKey = "run_id"
	identifierKey contextKey = "identifier"
	requestIDKey  contextKey = "request_id"
)

// WithRunID annotates context with the sweep run (continuation) identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the sweep run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithIdentifier annotates context with the object under verification.
func WithIdentifier(ctx context.Context, identifier string) context.Context {
	if identifier == "" {
		return ctx
	}
	return context.WithValue(ctx, identifierKey, identifier)
}

// IdentifierFromContext returns the object identifier if present.
func IdentifierFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(identifierKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
