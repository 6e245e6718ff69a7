package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalService = errors.New("external service error")
	ErrValidation      = errors.New("validation error")
	ErrConfiguration   = errors.New("configuration error")
	ErrNotFound        = errors.New("not found")
	ErrTimeout         = errors.New("timeout")
	ErrTransient       = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorKind names the marker carried by err for structured logs and API
// responses. Unmarked errors report "unknown".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrExternalService):
		return "external_service"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "unknown"
	}
}

// ErrorHint returns a short operator-facing next step for err.
func ErrorHint(err error) string {
	switch ErrorKind(err) {
	case "validation":
		return "inspect the catalog entry and archive for this object"
	case "configuration":
		return "check vigil config and credentials"
	case "not_found":
		return "confirm the object still exists in the catalog"
	case "timeout", "external_service", "transient":
		return "check content store availability; the sweep retries on the next start"
	default:
		return "check logs for details"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{component, operation, message} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
