package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Exit codes: 1 for command errors, 2 when a check found corruption or
// preflight failed, so scripts can tell a bad object from a broken setup.
const (
	exitError   = 1
	exitFinding = 2
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errors.Is(err, errObjectCorrupted) || errors.Is(err, errPreflightFailed) {
		return exitFinding
	}
	return exitError
}
