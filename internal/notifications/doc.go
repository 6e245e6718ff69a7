// Package notifications delivers sweep events via pluggable sinks.
//
// ntfy receives human-readable alerts; Kafka receives JSON records keyed by
// object identifier for downstream alerting pipelines. Both honour the
// per-event switches in the [notifications] config section. When nothing is
// configured the service degrades to a no-op so callers never branch on it.
package notifications
