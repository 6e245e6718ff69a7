// Package logging assembles structured slog loggers and formatting helpers used
// across vigil.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so sweep code automatically tags
// log lines with run IDs, object identifiers, and correlation IDs. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
