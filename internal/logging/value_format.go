package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const logTimestampLayout = "2006-01-02 15:04:05"

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.In(time.Local).Format(logTimestampLayout)
}

// attrString renders a value without quoting, for header fields.
func attrString(v slog.Value) string {
	v = v.Resolve()
	if v.Kind() == slog.KindString {
		return v.String()
	}
	if v.Kind() == slog.KindAny {
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	}
	return formatValue(v)
}

func formatValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		d := v.Duration()
		if d > time.Second {
			d = d.Round(time.Millisecond)
		}
		return d.String()
	case slog.KindTime:
		return formatTimestamp(v.Time())
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return quoteIfNeeded(err.Error())
		}
		return quoteIfNeeded(fmt.Sprint(v.Any()))
	default:
		return quoteIfNeeded(v.String())
	}
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
