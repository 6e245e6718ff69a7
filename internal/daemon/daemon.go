package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"vigil/internal/config"
	"vigil/internal/ledger"
	"vigil/internal/logging"
	"vigil/internal/metrics"
	"vigil/internal/notifications"
	"vigil/internal/scheduler"
	"vigil/internal/sweep"
)

// shutdownTimeout bounds how long Stop waits for the running continuation.
const shutdownTimeout = 30 * time.Second

// Components are the long-lived services the daemon coordinates. Scheduler,
// Metrics, Notifier, Catalog and Tracing are optional. Close releases the
// ledger, the notifier, the catalog and the tracer provider, in that order.
type Components struct {
	Ledger     *ledger.Store
	Controller *sweep.Controller
	Scheduler  *scheduler.Scheduler
	Metrics    *metrics.Metrics
	Notifier   notifications.Service
	Catalog    io.Closer
	Tracing    io.Closer
}

// Daemon coordinates the sweep services and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *ledger.Store
	controller *sweep.Controller
	scheduler  *scheduler.Scheduler
	metrics    *metrics.Metrics
	notifier   notifications.Service
	catalog    io.Closer
	tracing    io.Closer

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Sweep        sweep.Status
	Ledger       ledger.Summary
	LedgerPath   string
	LockFilePath string
	NextRuns     []time.Time
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, c Components) (*Daemon, error) {
	if cfg == nil || c.Ledger == nil || c.Controller == nil {
		return nil, errors.New("daemon requires config, ledger, and sweep controller")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := c.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil, nil)
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      c.Ledger,
		controller: c.Controller,
		scheduler:  c.Scheduler,
		metrics:    c.Metrics,
		notifier:   notifier,
		catalog:    c.Catalog,
		tracing:    c.Tracing,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, opens the control API and starts the
// schedules.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another vigil daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("configure api server: %w", err)
	}
	if err := srv.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.api = srv
	d.cancel = cancel

	if d.scheduler != nil {
		d.scheduler.Start()
	}

	d.running.Store(true)
	d.logger.Info("vigil daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.APIAddress()),
		logging.String(logging.FieldEventType, "daemon_started"))
	return nil
}

// Stop halts the schedules, cancels the sweep, closes the API and releases the
// daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.scheduler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := d.scheduler.Stop(ctx); err != nil {
			d.logger.Warn("scheduler did not stop cleanly", logging.Error(err))
		}
		cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	if err := d.controller.Shutdown(ctx); err != nil {
		logging.WarnWithContext(d.logger, "sweep did not stop before timeout", "sweep_shutdown_timeout",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the step in flight is rolled back and retried on next start"),
		)
	}
	cancel()

	d.api.stop()
	d.api = nil
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("vigil daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if err := notifications.Close(d.notifier); err != nil {
		errs = append(errs, err)
	}
	if d.catalog != nil {
		errs = append(errs, d.catalog.Close())
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	if d.tracing != nil {
		errs = append(errs, d.tracing.Close())
	}
	return errors.Join(errs...)
}

// Running reports whether Start succeeded and Stop has not yet run.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddress returns the address the control API listens on, or "" when
// the API is disabled or the daemon is stopped.
func (d *Daemon) APIAddress() string {
	if d.api == nil || d.api.listener == nil {
		return ""
	}
	return d.api.listener.Addr().String()
}

// Activate permits sweeping and starts a continuation.
func (d *Daemon) Activate() bool {
	return d.controller.Activate()
}

// Deactivate forbids sweeping and cancels the running continuation.
func (d *Daemon) Deactivate() {
	d.controller.Deactivate()
}

// StartSweep launches a continuation when active and idle.
func (d *Daemon) StartSweep() bool {
	_, started := d.controller.Start()
	return started
}

// StopSweep requests cooperative cancellation of the running continuation.
func (d *Daemon) StopSweep() bool {
	return d.controller.Stop()
}

// ObjectAvailable resumes a sweep parked on identifier.
func (d *Daemon) ObjectAvailable(identifier string) bool {
	return d.controller.NotifyObjectAvailable(strings.TrimSpace(identifier))
}

// SweepStatus returns the controller view.
func (d *Daemon) SweepStatus() sweep.Status {
	return d.controller.Status()
}

// Ledger returns the records of the live sweep and their summary.
func (d *Daemon) Ledger(ctx context.Context) ([]*ledger.Record, ledger.Summary, error) {
	records, err := d.store.List(ctx)
	if err != nil {
		return nil, ledger.Summary{}, err
	}
	summary, err := d.store.Summary(ctx)
	if err != nil {
		return nil, ledger.Summary{}, err
	}
	return records, summary, nil
}

// ErrSweepRunning reports a ledger reset refused because a continuation is
// running.
var ErrSweepRunning = errors.New("sweep continuation running; stop it first")

// ResetLedger abandons the live sweep. Every record is removed and the
// waiting slot cleared, so the next continuation starts from the first
// catalog identifier.
func (d *Daemon) ResetLedger(ctx context.Context) (int64, error) {
	if d.controller.Status().Running {
		return 0, ErrSweepRunning
	}
	removed, err := d.store.Clear(ctx)
	if err != nil {
		return 0, err
	}
	d.controller.ClearWait()
	logging.WithContext(ctx, d.logger).Info("ledger reset",
		logging.Int64("removed", removed),
		logging.String(logging.FieldEventType, "ledger_reset"),
	)
	return removed, nil
}

// TestNotification publishes a test event through the configured sinks.
func (d *Daemon) TestNotification(ctx context.Context) error {
	return d.notifier.Publish(ctx, notifications.EventTest, nil)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Sweep:        d.controller.Status(),
		LedgerPath:   d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if d.scheduler != nil {
		status.NextRuns = d.scheduler.Entries()
	}
	summary, err := d.store.Summary(ctx)
	if err != nil {
		return status, fmt.Errorf("ledger summary: %w", err)
	}
	status.Ledger = summary
	return status, nil
}
