package sweep

import (
	"context"
	"sync/atomic"
	"time"
)

// RunSummary reports what one continuation did.
type RunSummary struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Steps     int           `json:"steps"`
	Processed int           `json:"processed"`
	Corrupted int           `json:"corrupted"`
	Last      Outcome       `json:"-"`
	Cancelled bool          `json:"cancelled"`
	Err       error         `json:"-"`
	Duration  time.Duration `json:"-"`
}

// Handle is the join-able reference to a running continuation. Cancellation
// is cooperative and observed between steps.
type Handle struct {
	runID     string
	startedAt time.Time
	cancelled atomic.Bool
	done      chan struct{}
	summary   RunSummary
}

// NewHandle creates a handle for a continuation about to start. Controllers
// create their own; this is for driving Engine.ProcessAll directly.
func NewHandle(runID string) *Handle {
	return newHandle(runID, time.Now())
}

func newHandle(runID string, startedAt time.Time) *Handle {
	return &Handle{runID: runID, startedAt: startedAt, done: make(chan struct{})}
}

// RunID identifies the continuation in logs and status output.
func (h *Handle) RunID() string { return h.runID }

// StartedAt reports when the continuation launched.
func (h *Handle) StartedAt() time.Time { return h.startedAt }

// Cancel asks the continuation to stop before its next step.
func (h *Handle) Cancel() { h.cancelled.Store(true) }

// Cancelled reports whether Cancel was called.
func (h *Handle) Cancelled() bool { return h.cancelled.Load() }

// Done is closed once the continuation has returned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Finished reports whether the continuation has returned.
func (h *Handle) Finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the continuation returns or ctx ends.
func (h *Handle) Wait(ctx context.Context) (RunSummary, error) {
	select {
	case <-h.done:
		return h.summary, nil
	case <-ctx.Done():
		return RunSummary{}, ctx.Err()
	}
}

func (h *Handle) complete(summary RunSummary) {
	h.summary = summary
	close(h.done)
}
