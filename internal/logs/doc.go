// Package logs reads the daemon's log file for `vigil logs`.
//
// Last returns the trailing lines of the file and Follow polls for new ones.
// Both accept a Filter so a single sweep run or object can be isolated from
// the structured log output.
package logs
