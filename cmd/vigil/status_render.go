package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"vigil/internal/api"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 16
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// relativeTime renders an API timestamp as "3 minutes ago". Unparseable or
// empty values fall back to the raw text.
func relativeTime(value string) string {
	if value == "" {
		return "-"
	}
	parsed, err := api.ParseTime(value)
	if err != nil {
		return value
	}
	return humanize.Time(parsed)
}

type statusLine struct {
	label   string
	kind    statusKind
	message string
}

func sweepLines(status api.SweepStatus) []statusLine {
	var lines []statusLine
	switch status.State {
	case api.StateRunning:
		msg := "running"
		if status.RunID != "" {
			msg = fmt.Sprintf("running (run %s, started %s)", shortID(status.RunID), relativeTime(status.StartedAt))
		}
		lines = append(lines, statusLine{"State", statusOK, msg})
	case api.StatePaused:
		lines = append(lines, statusLine{"State", statusWarn, "paused"})
	case api.StateIdle:
		lines = append(lines, statusLine{"State", statusInfo, "active, idle"})
	default:
		lines = append(lines, statusLine{"State", statusInfo, "inactive"})
	}
	if status.WaitingFor != "" {
		lines = append(lines, statusLine{"Waiting for", statusWarn, status.WaitingFor + " (content store preparing)"})
	}
	if last := status.LastRun; last != nil {
		kind := statusOK
		switch {
		case last.Outcome == "failed":
			kind = statusError
		case last.Corrupted > 0:
			kind = statusWarn
		}
		msg := fmt.Sprintf("%s: %d processed, %d corrupted, %s", last.Outcome, last.Processed, last.Corrupted, relativeTime(last.EndedAt))
		if last.Cancelled {
			msg += " (cancelled)"
		}
		lines = append(lines, statusLine{"Last run", kind, msg})
		if last.Error != "" {
			lines = append(lines, statusLine{"Last error", statusError, last.Error})
		}
	}
	return lines
}

func ledgerLines(summary api.LedgerSummary) []statusLine {
	if summary.Total == 0 {
		return []statusLine{{"Records", statusInfo, "no sweep in progress"}}
	}
	kind := statusInfo
	if summary.Corrupted > 0 {
		kind = statusWarn
	}
	lines := []statusLine{{
		"Records", kind,
		fmt.Sprintf("%d total, %d verified, %d corrupted, %d pending",
			summary.Total, summary.Verified, summary.Corrupted, summary.Pending),
	}}
	lines = append(lines, statusLine{"Sweep began", statusInfo, relativeTime(summary.FirstAdded)})
	if summary.LastVerified != "" {
		lines = append(lines, statusLine{"Last verified", statusInfo, relativeTime(summary.LastVerified)})
	}
	return lines
}

func nextRunLine(nextRuns []string) (statusLine, bool) {
	var earliest time.Time
	for _, value := range nextRuns {
		parsed, err := api.ParseTime(value)
		if err != nil || parsed.IsZero() {
			continue
		}
		if earliest.IsZero() || parsed.Before(earliest) {
			earliest = parsed
		}
	}
	if earliest.IsZero() {
		return statusLine{}, false
	}
	return statusLine{"Next schedule", statusInfo, humanize.Time(earliest)}, true
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
