// Package api defines wire-format types and the HTTP client for the daemon
// control surface.
//
// # Key Types
//
// DaemonStatus: running state, lock and ledger paths, sweep state, ledger
// summary, and the next scheduled firings.
//
// SweepStatus: controller flags plus a derived state (inactive, idle,
// running, paused) and the outcome of the last continuation.
//
// LedgerRecord/LedgerResponse: the verification records of the live sweep.
//
// ActionResponse: the reply to activate, deactivate, start, stop and
// object-available commands.
//
// # Converters
//
// FromSweepStatus, FromSummary and FromRecords translate sweep and ledger
// values into DTOs. Timestamps use RFC3339 with milliseconds in UTC and are
// omitted when zero.
//
// # Client
//
// Client is used by the CLI. Transport failures wrap ErrDaemonUnavailable so
// callers can tell "daemon not running" apart from a rejected command.
//
// DTOs use camelCase JSON tags.
package api
