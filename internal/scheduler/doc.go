// Package scheduler toggles the sweep on cron schedules.
//
// activate and deactivate bound the verification window; retry periodically
// calls Start so paused or failed sweeps resume while the window is open.
// always_active skips the window entirely.
package scheduler
