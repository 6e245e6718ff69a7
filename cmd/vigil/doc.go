// Command vigil runs the integrity verification daemon and drives it over
// its control API.
//
// `vigil daemon` runs in the foreground (systemd or a container supervisor is
// expected to keep it alive). The other commands talk to a running daemon at
// paths.api_bind, except `check` and `config`, which work offline.
package main
