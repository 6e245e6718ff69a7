package logging

import (
	"context"
	"log/slog"

	"vigil/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldIdentifier is the standardized key for the object under verification.
	FieldIdentifier = "identifier"
	// FieldRunID is the standardized key for a sweep continuation run.
	FieldRunID = "run_id"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering (e.g. object_corrupted).
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for warnings and errors.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries the services marker name of a failure.
	FieldErrorKind = "error_kind"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if identifier, ok := services.IdentifierFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldIdentifier, identifier))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
