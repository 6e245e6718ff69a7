package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// prettyHandler renders one header line per record followed by indented
// attributes. Component, identifier, and run attributes are lifted into the
// header.
type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	kvs := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	flattenAttrs(&kvs, h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, h.groups, attr)
		return true
	})
	kvs = dedupeKVsByKey(kvs)

	var component, identifier, runID string
	body := make([]kv, 0, len(kvs))
	for _, item := range kvs {
		switch item.key {
		case FieldComponent:
			component = attrString(item.value)
		case FieldIdentifier:
			identifier = attrString(item.value)
		case FieldRunID:
			runID = attrString(item.value)
		default:
			body = append(body, item)
		}
	}

	var buf bytes.Buffer
	buf.Grow(192 + len(body)*32)
	buf.WriteString(formatTimestamp(timestamp))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(record.Level))
	if component != "" {
		buf.WriteString(" [")
		buf.WriteString(component)
		buf.WriteByte(']')
	}
	if subject := composeSubject(identifier, runID); subject != "" {
		buf.WriteByte(' ')
		buf.WriteString(subject)
	}
	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}
	buf.WriteString(" – ")
	buf.WriteString(message)
	if h.addSource {
		if src := record.Source(); src != nil {
			buf.WriteString(" [")
			buf.WriteString(filepath.Base(src.File))
			buf.WriteByte(':')
			buf.WriteString(strconv.Itoa(src.Line))
			buf.WriteByte(']')
		}
	}
	buf.WriteByte('\n')
	for _, item := range body {
		buf.WriteString("    - ")
		buf.WriteString(item.key)
		buf.WriteString(": ")
		buf.WriteString(formatValue(item.value))
		buf.WriteByte('\n')
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func composeSubject(identifier, runID string) string {
	identifier = strings.TrimSpace(identifier)
	runID = strings.TrimSpace(runID)
	if len(runID) > 8 {
		runID = runID[:8]
	}
	switch {
	case identifier != "" && runID != "":
		return "Object " + identifier + " (run " + runID + ")"
	case identifier != "":
		return "Object " + identifier
	case runID != "":
		return "Run " + runID
	default:
		return ""
	}
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *prettyHandler) clone() *prettyHandler {
	return &prettyHandler{
		mu:        h.mu,
		writer:    h.writer,
		level:     h.level,
		addSource: h.addSource,
		attrs:     append([]slog.Attr(nil), h.attrs...),
		groups:    append([]string(nil), h.groups...),
	}
}

type kv struct {
	key   string
	value slog.Value
}

// dedupeKVsByKey keeps the first position of each key and the last value.
func dedupeKVsByKey(attrs []kv) []kv {
	if len(attrs) < 2 {
		return attrs
	}
	positions := make(map[string]int, len(attrs))
	deduped := make([]kv, 0, len(attrs))
	for _, attr := range attrs {
		if attr.key == "" {
			continue
		}
		if pos, ok := positions[attr.key]; ok {
			deduped[pos].value = attr.value
			continue
		}
		positions[attr.key] = len(deduped)
		deduped = append(deduped, attr)
	}
	return deduped
}

func flattenAttrs(dst *[]kv, prefix []string, attrs []slog.Attr) {
	for _, attr := range attrs {
		flattenAttr(dst, prefix, attr)
	}
}

func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		next := prefix
		if attr.Key != "" {
			next = append(append([]string(nil), prefix...), attr.Key)
		}
		flattenAttrs(dst, next, attr.Value.Group())
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(append(append([]string(nil), prefix...), key), ".")
	}
	*dst = append(*dst, kv{key: key, value: attr.Value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
