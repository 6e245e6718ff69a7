// Package preflight provides readiness checks for the filesystem paths and
// external services vigil depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs every failure as a warning.
//     It starts anyway; the sweep reports concrete errors per step.
//   - The CLI "vigil preflight" command prints each result.
package preflight
