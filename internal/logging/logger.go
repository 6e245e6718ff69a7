package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vigil/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	writer, err := openWriters(defaultSlice(opts.OutputPaths, []string{"stdout"}))
	if err != nil {
		return nil, err
	}

	addSource := opts.Development || level <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = newJSONHandler(writer, levelVar, addSource)
	case "console":
		handler = newPrettyHandler(writer, levelVar, addSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	return slog.New(handler), nil
}

// NewFromConfig creates a logger writing to stdout and <log_dir>/vigil.log.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}

	outputPaths := []string{"stdout"}
	if cfg.Paths.LogDir != "" {
		if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		outputPaths = append(outputPaths, filepath.Join(cfg.Paths.LogDir, "vigil.log"))
	}

	return New(Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputPaths,
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "fatal":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaultSlice(value []string, fallback []string) []string {
	if len(value) == 0 {
		value = fallback
	}
	cp := make([]string, len(value))
	copy(cp, value)
	return cp
}

func openWriters(paths []string) (io.Writer, error) {
	seen := map[string]struct{}{}
	var writers []io.Writer

	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}

		switch trimmed {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if dir := filepath.Dir(trimmed); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("ensure log directory %s: %w", dir, err)
				}
			}
			file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", trimmed, err)
			}
			writers = append(writers, file)
		}
	}

	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}

func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: addSource,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				if attr.Value.Kind() == slog.KindTime {
					attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
				}
			case slog.LevelKey:
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return attr
		},
	})
}
