package logs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	maxLineBytes   = 1024 * 1024
	followInterval = 250 * time.Millisecond
)

// Filter selects daemon log lines by structured field. Empty fields match
// everything. Only JSON log lines (logging.format = "json") carry fields, so a
// non-empty filter drops console output.
type Filter struct {
	RunID      string
	Identifier string
	Level      string
}

func (f Filter) empty() bool {
	return f.RunID == "" && f.Identifier == "" && f.Level == ""
}

// Match reports whether line passes the filter.
func (f Filter) Match(line string) bool {
	if f.empty() {
		return true
	}
	if !strings.HasPrefix(strings.TrimSpace(line), "{") {
		return false
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return false
	}
	return fieldEquals(fields, "run_id", f.RunID) &&
		fieldEquals(fields, "identifier", f.Identifier) &&
		fieldEquals(fields, "level", f.Level)
}

func fieldEquals(fields map[string]any, key, want string) bool {
	if want == "" {
		return true
	}
	got, ok := fields[key].(string)
	return ok && strings.EqualFold(got, want)
}

// Last returns up to limit trailing lines of path that pass filter, plus the
// file size at the time of reading so a follower can continue from there. A
// missing file yields no lines and offset zero.
func Last(path string, limit int, filter Filter) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	if limit <= 0 {
		return nil, info.Size(), nil
	}

	ring := make([]string, limit)
	count, idx := 0, 0
	offset, err := scanLines(file, func(line string) {
		if !filter.Match(line) {
			return
		}
		ring[idx] = line
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return nil, 0, err
	}

	lines := make([]string, count)
	if count == limit {
		for i := range count {
			lines[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, offset, nil
}

// Follow polls path from offset and hands every new line that passes filter
// to emit until ctx ends. A file that shrinks (rotation or truncation) is
// re-read from the start.
func Follow(ctx context.Context, path string, offset int64, filter Filter, emit func(string)) error {
	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()

	for {
		next, err := readFrom(path, offset, func(line string) {
			if filter.Match(line) {
				emit(line)
			}
		})
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, fn func(string)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	consumed, err := scanLines(file, fn)
	if err != nil {
		return offset, err
	}
	return offset + consumed, nil
}

// scanLines feeds complete lines to fn and returns the number of bytes
// consumed. A trailing partial line is left for the next read.
func scanLines(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			consumed += int64(len(line))
			if len(line) <= maxLineBytes {
				fn(strings.TrimRight(line, "\r\n"))
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		return consumed, fmt.Errorf("read log file: %w", err)
	}
}
