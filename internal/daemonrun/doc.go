// Package daemonrun turns a loaded configuration into a running daemon
// process: logger, pid file, concurrent backend opening, sweep wiring and
// signal-driven shutdown.
package daemonrun
