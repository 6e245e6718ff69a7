package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"vigil/internal/config"
	"vigil/internal/logging"
	"vigil/internal/sweep"
)

// windowLookback bounds the search for the latest activate/deactivate firing
// when deciding whether boot falls inside an activation window.
const windowLookback = 8 * 24 * time.Hour

// Target is the controller surface the schedules drive.
type Target interface {
	Activate() bool
	Deactivate()
	Start() (*sweep.Handle, bool)
}

// Scheduler fires activation, deactivation, and retry jobs.
type Scheduler struct {
	cfg    config.Schedule
	target Target
	logger *slog.Logger
	cron   *cron.Cron
	now    func() time.Time

	activate   cron.Schedule
	deactivate cron.Schedule
}

// New parses the configured expressions and registers the jobs.
func New(cfg config.Schedule, target Target, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "scheduler")
	s := &Scheduler{
		cfg:    cfg,
		target: target,
		logger: logger,
		cron:   cron.New(cron.WithLogger(cronLogger{logger: logger})),
		now:    time.Now,
	}
	if !cfg.Enabled {
		return s, nil
	}

	if !cfg.AlwaysActive {
		var err error
		if s.activate, err = s.add("activate", cfg.Activate, s.onActivate); err != nil {
			return nil, err
		}
		if strings.TrimSpace(cfg.Deactivate) != "" {
			if s.deactivate, err = s.add("deactivate", cfg.Deactivate, s.onDeactivate); err != nil {
				return nil, err
			}
		}
	}
	if strings.TrimSpace(cfg.Retry) != "" {
		if _, err := s.add("retry", cfg.Retry, s.onRetry); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(name, spec string, fn func()) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(strings.TrimSpace(spec))
	if err != nil {
		return nil, fmt.Errorf("schedule.%s: %w", name, err)
	}
	s.cron.Schedule(schedule, cron.FuncJob(fn))
	return schedule, nil
}

// Start activates the sweep when boot falls inside a window, then runs the
// cron loop in the background.
func (s *Scheduler) Start() {
	if !s.cfg.Enabled {
		s.logger.Info("verification schedule disabled",
			logging.String(logging.FieldEventType, "schedule_disabled"))
		return
	}
	switch {
	case s.cfg.AlwaysActive:
		s.logger.Info("sweep always active", logging.String(logging.FieldEventType, "schedule_always_active"))
		s.target.Activate()
	case s.inWindow(s.now()):
		s.logger.Info("inside activation window at startup",
			logging.String(logging.FieldEventType, "schedule_window_open"))
		s.target.Activate()
	}
	s.cron.Start()
}

// Stop halts the cron loop and waits for running jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries reports the next firing time of every registered job.
func (s *Scheduler) Entries() []time.Time {
	entries := s.cron.Entries()
	out := make([]time.Time, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Next)
	}
	return out
}

func (s *Scheduler) onActivate() {
	started := s.target.Activate()
	s.logger.Info("scheduled activation",
		logging.String(logging.FieldEventType, "schedule_activate"),
		logging.Bool("started", started))
}

func (s *Scheduler) onDeactivate() {
	s.target.Deactivate()
	s.logger.Info("scheduled deactivation",
		logging.String(logging.FieldEventType, "schedule_deactivate"))
}

func (s *Scheduler) onRetry() {
	if _, started := s.target.Start(); started {
		s.logger.Info("retry schedule started a continuation",
			logging.String(logging.FieldEventType, "schedule_retry"))
	}
}

// inWindow reports whether the latest activation firing before now is more
// recent than the latest deactivation firing.
func (s *Scheduler) inWindow(now time.Time) bool {
	if s.activate == nil {
		return false
	}
	lastActivate := lastFiring(s.activate, now)
	if lastActivate.IsZero() {
		return false
	}
	if s.deactivate == nil {
		return true
	}
	lastDeactivate := lastFiring(s.deactivate, now)
	return lastActivate.After(lastDeactivate)
}

func lastFiring(schedule cron.Schedule, now time.Time) time.Time {
	var last time.Time
	for t := schedule.Next(now.Add(-windowLookback)); !t.IsZero() && !t.After(now); t = schedule.Next(t) {
		last = t
	}
	return last
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{logging.Error(err)}, keysAndValues...)
	l.logger.Error("cron: "+msg, args...)
}
