// Package daemon coordinates the long-running vigil process.
//
// It owns the flock-based single-instance lock, the cron schedules, and the
// HTTP control API (chi router, optional bearer token) that the CLI and the
// content store's readiness callbacks talk to. Routes:
//
//	GET  /api/status
//	GET  /api/ledger
//	POST /api/sweep/{activate,deactivate,start,stop}
//	POST /api/objects/{identifier}/available
//	POST /api/notifications/test
//	GET  /metrics
//
// Keep orchestration logic here: sweep semantics live in internal/sweep while
// the daemon focuses on startup, shutdown, and exposing the controller.
package daemon
