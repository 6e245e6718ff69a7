package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vigil/internal/logs"
)

func TestLastReturnsTrailingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vigil.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	lines, offset, err := logs.Last(path, 2, logs.Filter{})
	if err != nil {
		t.Fatalf("Last returned error: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 6 {
		t.Fatalf("expected offset 6, got %d", offset)
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := logs.Last(filepath.Join(t.TempDir(), "absent.log"), 10, logs.Filter{})
	if err != nil {
		t.Fatalf("Last returned error: %v", err)
	}
	if len(lines) != 0 || offset != 0 {
		t.Fatalf("expected nothing, got %#v at %d", lines, offset)
	}
}

func TestLastSkipsPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vigil.log")
	if err := os.WriteFile(path, []byte("done\npart"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	lines, offset, err := logs.Last(path, 5, logs.Filter{})
	if err != nil {
		t.Fatalf("Last returned error: %v", err)
	}
	if len(lines) != 1 || lines[0] != "done" || offset != 5 {
		t.Fatalf("unexpected result %#v at %d", lines, offset)
	}
}

func TestFilterMatch(t *testing.T) {
	jsonLine := `{"time":"2026-01-01T00:00:00Z","level":"WARN","msg":"object corrupted","run_id":"r1","identifier":"obj-7"}`
	consoleLine := `2026-01-01 00:00:00 INFO [sweep] – object verified`

	tests := []struct {
		name   string
		filter logs.Filter
		line   string
		want   bool
	}{
		{"empty matches json", logs.Filter{}, jsonLine, true},
		{"run id json", logs.Filter{RunID: "r1"}, jsonLine, true},
		{"run id json miss", logs.Filter{RunID: "r2"}, jsonLine, false},
		{"identifier and level json", logs.Filter{Identifier: "obj-7", Level: "warn"}, jsonLine, true},
		{"empty matches console", logs.Filter{}, consoleLine, true},
		{"filtered console dropped", logs.Filter{Level: "info"}, consoleLine, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Match(tc.line); got != tc.want {
				t.Fatalf("Match = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vigil.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	_, offset, err := logs.Last(path, 1, logs.Filter{})
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, logs.Filter{}, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "later" {
		t.Fatalf("unexpected follow lines: %#v", got)
	}
}
