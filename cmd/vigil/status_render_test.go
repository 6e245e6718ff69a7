package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"vigil/internal/api"
)

func TestRenderStatusLinePlain(t *testing.T) {
	got := renderStatusLine("State", statusWarn, "paused", false)
	if got != "  State:           [WARN] paused" {
		t.Fatalf("unexpected line %q", got)
	}
	colored := renderStatusLine("State", statusError, "", true)
	if !strings.HasPrefix(colored, ansiRed) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected red line, got %q", colored)
	}
}

func TestSweepLinesFlagFailureAndWait(t *testing.T) {
	lines := sweepLines(api.SweepStatus{
		Active:     true,
		State:      api.StatePaused,
		WaitingFor: "obj-9",
		LastRun:    &api.LastRun{Outcome: "failed", Error: "content store returned 500"},
	})
	var sawWait, sawError bool
	for _, line := range lines {
		if line.label == "Waiting for" && strings.Contains(line.message, "obj-9") {
			sawWait = true
		}
		if line.label == "Last error" && line.kind == statusError {
			sawError = true
		}
	}
	if !sawWait || !sawError {
		t.Fatalf("missing lines: %+v", lines)
	}
}

func TestLedgerRowsResults(t *testing.T) {
	ok, bad := true, false
	rows := ledgerRows([]api.LedgerRecord{
		{Seq: 1, Identifier: "a", Correct: &ok, VerifiedOn: "2026-01-01T00:00:00.000Z"},
		{Seq: 2, Identifier: "b", Correct: &bad, VerifiedOn: "2026-01-01T00:00:00.000Z"},
		{Seq: 3, Identifier: "c"},
	})
	want := []string{"ok", "CORRUPTED", "pending"}
	for i, row := range rows {
		if row[4] != want[i] {
			t.Fatalf("row %d result = %q, want %q", i, row[4], want[i])
		}
	}
	if rows[2][3] != "-" {
		t.Fatalf("pending row verified column = %q", rows[2][3])
	}
}

func TestNextRunLinePicksEarliest(t *testing.T) {
	line, ok := nextRunLine([]string{"2099-01-02T00:00:00Z", "2099-01-01T00:00:00Z", "garbage"})
	if !ok || line.label != "Next schedule" {
		t.Fatalf("unexpected line %+v", line)
	}
	if _, ok := nextRunLine(nil); ok {
		t.Fatal("expected no line for empty schedule")
	}
}

func TestExitCodeSeparatesFindings(t *testing.T) {
	if got := exitCode(errObjectCorrupted); got != exitFinding {
		t.Fatalf("corrupted exit = %d", got)
	}
	if got := exitCode(fmt.Errorf("wrap: %w", errPreflightFailed)); got != exitFinding {
		t.Fatalf("preflight exit = %d", got)
	}
	if got := exitCode(errors.New("boom")); got != exitError {
		t.Fatalf("generic exit = %d", got)
	}
}

func TestTableSpecFooter(t *testing.T) {
	out := tableSpec{
		Headers: []string{"A", "B"},
		Rows:    [][]string{{"1"}},
		Footer:  "1 records: 0 verified",
	}.render()
	if !strings.Contains(out, "1 records: 0 verified") {
		t.Fatalf("footer missing: %q", out)
	}
}
