// Package services defines shared utilities consumed by the sweep engine and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp sweep run IDs, object identifiers, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures carry a kind
//     and an operator hint into logs, notifications, and the control API.
//
// Clients for external systems live in subpackages (see contentstore).
package services
