package sweep

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vigil/internal/logging"
	"vigil/internal/metrics"
)

// Status is a point-in-time view of the controller.
type Status struct {
	Active     bool       `json:"active"`
	Running    bool       `json:"running"`
	WaitingFor string     `json:"waiting_for,omitempty"`
	RunID      string     `json:"run_id,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	LastRun    *LastRun   `json:"last_run,omitempty"`
}

// LastRun summarizes the most recent completed continuation.
type LastRun struct {
	RunID     string    `json:"run_id"`
	Outcome   string    `json:"outcome"`
	Steps     int       `json:"steps"`
	Processed int       `json:"processed"`
	Corrupted int       `json:"corrupted"`
	Cancelled bool      `json:"cancelled"`
	Error     string    `json:"error,omitempty"`
	EndedAt   time.Time `json:"ended_at"`
}

// Controller governs activation and guarantees at most one continuation.
// Every public method runs under one mutex.
type Controller struct {
	engine  *Engine
	logger  *slog.Logger
	metrics *metrics.Metrics

	root   context.Context
	cancel context.CancelFunc

	lastRun atomic.Pointer[LastRun]

	mu     sync.Mutex
	active bool
	handle *Handle
}

// NewController constructs an inactive controller around engine.
func NewController(engine *Engine, logger *slog.Logger, m *metrics.Metrics) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	root, cancel := context.WithCancel(context.Background())
	return &Controller{
		engine:  engine,
		logger:  logging.NewComponentLogger(logger, "controller"),
		metrics: m,
		root:    root,
		cancel:  cancel,
	}
}

// Activate allows continuations and tries to start one. It reports whether a
// continuation was launched.
func (c *Controller) Activate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		c.logger.Info("sweep activated", logging.String(logging.FieldEventType, "sweep_activated"))
	}
	c.active = true
	_, started := c.startLocked()
	c.syncMetricsLocked()
	return started
}

// Deactivate forbids new continuations and cancels the running one.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		c.logger.Info("sweep deactivated", logging.String(logging.FieldEventType, "sweep_deactivated"))
	}
	c.active = false
	c.stopLocked()
	c.syncMetricsLocked()
}

// Start launches a continuation when active and none is running. It returns
// the running handle, and whether it is a new one.
func (c *Controller) Start() (*Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, started := c.startLocked()
	c.syncMetricsLocked()
	return h, started
}

// Stop requests cooperative cancellation of the running continuation.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

// NotifyObjectAvailable resumes the sweep when it is parked on identifier.
// A notification that arrives while identifier is being fetched makes that
// step fetch again should the store still answer 202. Notifications for other
// identifiers, or while inactive, are ignored.
func (c *Controller) NotifyObjectAvailable(identifier string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		c.logger.Debug("readiness notification ignored; sweep inactive",
			logging.String(logging.FieldIdentifier, identifier))
		return false
	}
	switch c.engine.slot.take(identifier) {
	case takeInFlight:
		c.logger.Info("object ready while being fetched",
			logging.String(logging.FieldIdentifier, identifier),
			logging.String(logging.FieldEventType, "sweep_ready_in_flight"))
		return true
	case takeNone:
		c.logger.Debug("readiness notification ignored; not waiting for object",
			logging.String(logging.FieldIdentifier, identifier),
			logging.String("waiting_for", c.engine.slot.peek()))
		return false
	}
	// The parked continuation is on its way out; let it finish so the new one
	// does not overlap it.
	if c.handle != nil {
		<-c.handle.Done()
	}
	c.logger.Info("object ready; resuming sweep",
		logging.String(logging.FieldIdentifier, identifier),
		logging.String(logging.FieldEventType, "sweep_resumed"))
	_, started := c.launchLocked()
	c.syncMetricsLocked()
	return started
}

// IsWaitingFor reports whether the sweep is parked on, or fetching,
// identifier. A parked slot is cleared.
func (c *Controller) IsWaitingFor(identifier string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	matched := c.engine.slot.take(identifier) != takeNone
	c.syncMetricsLocked()
	return matched
}

// ClearWait empties the waiting slot.
func (c *Controller) ClearWait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine.slot.clear()
	c.syncMetricsLocked()
}

// Status returns the controller state without blocking on an in-flight fetch.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := Status{
		Active:     c.active,
		WaitingFor: c.engine.slot.peek(),
	}
	if c.handle != nil && !c.handle.Finished() {
		status.Running = true
		status.RunID = c.handle.RunID()
		started := c.handle.StartedAt()
		status.StartedAt = &started
	}
	if last := c.lastRun.Load(); last != nil {
		run := *last
		status.LastRun = &run
	}
	return status
}

// Wait blocks until the current continuation, if any, returns.
func (c *Controller) Wait(ctx context.Context) (RunSummary, error) {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()
	if h == nil {
		return RunSummary{}, nil
	}
	return h.Wait(ctx)
}

// Shutdown deactivates the controller, aborts in-flight work, and waits for
// the continuation to return.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.Deactivate()
	c.cancel()
	_, err := c.Wait(ctx)
	return err
}

func (c *Controller) startLocked() (*Handle, bool) {
	if !c.active {
		return nil, false
	}
	if c.handle != nil && !c.handle.Finished() {
		return c.handle, false
	}
	if stale := c.engine.slot.clear(); stale != "" {
		logging.WarnWithContext(c.logger, "processing started while waiting for an object", "sweep_started_while_waiting",
			logging.String(logging.FieldIdentifier, stale),
			logging.String(logging.FieldErrorHint, "a later readiness notification for this object will be ignored"),
			logging.String(logging.FieldImpact, "the sweep refetches the object instead of waiting"),
		)
	}
	return c.launchLocked()
}

func (c *Controller) launchLocked() (*Handle, bool) {
	if c.root.Err() != nil {
		return nil, false
	}
	h := newHandle(uuid.NewString(), time.Now())
	c.handle = h
	go c.run(h)
	return h, true
}

func (c *Controller) run(h *Handle) {
	summary := c.engine.ProcessAll(c.root, h)
	last := &LastRun{
		RunID:     summary.RunID,
		Outcome:   summary.Last.String(),
		Steps:     summary.Steps,
		Processed: summary.Processed,
		Corrupted: summary.Corrupted,
		Cancelled: summary.Cancelled,
		EndedAt:   summary.EndedAt,
	}
	if summary.Err != nil {
		last.Error = summary.Err.Error()
	}
	c.lastRun.Store(last)
	h.complete(summary)

	// NotifyObjectAvailable waits on h.Done while holding c.mu.
	c.mu.Lock()
	c.syncMetricsLocked()
	c.mu.Unlock()
}

func (c *Controller) stopLocked() bool {
	if c.handle == nil || c.handle.Finished() {
		return false
	}
	if !c.handle.Cancelled() {
		c.handle.Cancel()
		c.logger.Info("sweep stop requested",
			logging.String(logging.FieldRunID, c.handle.RunID()),
			logging.String(logging.FieldEventType, "sweep_stop_requested"))
	}
	return true
}

func (c *Controller) syncMetricsLocked() {
	running := c.handle != nil && !c.handle.Finished()
	c.metrics.SetState(c.active, running, c.engine.slot.peek() != "")
}
