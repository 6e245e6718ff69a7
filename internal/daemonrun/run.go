package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"vigil/internal/catalog"
	"vigil/internal/config"
	"vigil/internal/daemon"
	"vigil/internal/integrity"
	"vigil/internal/ledger"
	"vigil/internal/logging"
	"vigil/internal/metrics"
	"vigil/internal/notifications"
	"vigil/internal/preflight"
	"vigil/internal/scheduler"
	"vigil/internal/services/contentstore"
	"vigil/internal/sweep"
	"vigil/internal/tracing"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the vigil daemon and blocks until SIGINT/SIGTERM or cmdCtx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", cfg.LogPath()},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logConfigSnapshot(logger, cfg)
	pidPath := filepath.Join(cfg.Paths.StateDir, "vigil.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	runPreflight(signalCtx, logger, cfg)

	d, err := Build(signalCtx, cfg, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "daemon wiring failed", "daemon_build_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check catalog, remote, and ledger configuration"),
		)
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stop the other instance or free paths.api_bind"),
			logging.String(logging.FieldImpact, "no verification runs"),
		)
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("vigil daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// runPreflight logs failed readiness checks. The daemon still starts; each
// sweep step reports its own failure.
func runPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	results := preflight.RunAll(ctx, cfg)
	for _, r := range preflight.Failed(results) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldImpact, "sweep steps depending on this check will fail"),
			logging.String(logging.FieldErrorHint, "run `vigil preflight` for details"),
		)
	}
	logger.Info("preflight complete",
		logging.Int("checks", len(results)),
		logging.Int("failed", len(preflight.Failed(results))),
		logging.String(logging.FieldEventType, "preflight_complete"),
	)
}

type backends struct {
	ledger  *ledger.Store
	catalog catalog.Catalog
	fetcher *contentstore.Client
	tracing *tracing.Provider
}

func (b *backends) close() {
	if b.tracing != nil {
		_ = b.tracing.Close()
	}
	if b.catalog != nil {
		_ = b.catalog.Close()
	}
	if b.ledger != nil {
		_ = b.ledger.Close()
	}
}

// openBackends opens the ledger, the catalog, the content store client and the
// trace exporter concurrently. Whatever opened is closed again when any of
// them fails.
func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		store, err := ledger.Open(cfg)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		b.ledger = store
		return nil
	})
	g.Go(func() error {
		cat, err := catalog.Open(gctx, cfg.Catalog)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		b.catalog = cat
		return nil
	})
	g.Go(func() error {
		client, err := contentstore.NewConfigured(cfg.Remote)
		if err != nil {
			return fmt.Errorf("configure content store: %w", err)
		}
		b.fetcher = client
		return nil
	})
	g.Go(func() error {
		provider, err := tracing.New(ctx, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		b.tracing = provider
		return nil
	})
	if err := g.Wait(); err != nil {
		b.close()
		return nil, err
	}
	return b, nil
}

// Build wires the sweep services into a daemon. The returned daemon owns the
// ledger, the catalog, the notifier and the tracer provider, which Build also
// installs as the global provider.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	b, err := openBackends(ctx, cfg)
	if err != nil {
		return nil, err
	}

	b.tracing.Install()
	m := metrics.New()
	notifier := notifications.NewService(cfg, logger)
	engine, err := sweep.NewEngine(sweep.Dependencies{
		Ledger:   b.ledger,
		Catalog:  b.catalog,
		Fetcher:  b.fetcher,
		Checker:  integrity.NewChecker(b.catalog, logger),
		Notifier: notifier,
		Metrics:  m,
		Logger:   logger,
		Tracer:   b.tracing.Tracer(sweep.TracerName),
		WorkDir:  cfg.Paths.WorkDir,
	})
	if err != nil {
		b.close()
		_ = notifications.Close(notifier)
		return nil, err
	}
	controller := sweep.NewController(engine, logger, m)
	sched, err := scheduler.New(cfg.Schedule, controller, logger)
	if err != nil {
		b.close()
		_ = notifications.Close(notifier)
		return nil, err
	}
	d, err := daemon.New(cfg, logger, daemon.Components{
		Ledger:     b.ledger,
		Controller: controller,
		Scheduler:  sched,
		Metrics:    m,
		Notifier:   notifier,
		Catalog:    b.catalog,
		Tracing:    b.tracing,
	})
	if err != nil {
		b.close()
		_ = notifications.Close(notifier)
		return nil, err
	}
	return d, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("remote_base_url", cfg.Remote.BaseURL),
		logging.Bool("remote_token_present", strings.TrimSpace(cfg.Remote.Token) != ""),
		logging.Bool("remote_client_cert", strings.TrimSpace(cfg.Remote.ClientCert) != ""),
		logging.String("catalog_driver", cfg.Catalog.Driver),
		logging.Bool("schedule_enabled", cfg.Schedule.Enabled),
		logging.Bool("always_active", cfg.Schedule.AlwaysActive),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("kafka_enabled", len(cfg.Notifications.KafkaBrokers) > 0),
		logging.Bool("tracing_enabled", cfg.Tracing.OTLPEndpoint != ""),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_present", strings.TrimSpace(cfg.Paths.APIToken) != ""),
	)
}
