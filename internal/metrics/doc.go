// Package metrics exposes sweep progress as Prometheus metrics. All methods
// are safe on a nil receiver so callers can run without metrics.
package metrics
