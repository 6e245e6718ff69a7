package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vigil/internal/catalog"
	"vigil/internal/integrity"
	"vigil/internal/ledger"
	"vigil/internal/logging"
	"vigil/internal/metrics"
	"vigil/internal/notifications"
	"vigil/internal/services"
	"vigil/internal/services/contentstore"
)

// TracerName names the tracer that records one span per sweep step.
const TracerName = "vigil/sweep"

// Checker decides whether a downloaded archive is corrupted.
type Checker interface {
	Check(ctx context.Context, identifier, archivePath string) (integrity.Report, error)
}

// Dependencies wires an Engine to its collaborators. Notifier, Metrics,
// Logger and Tracer are optional.
type Dependencies struct {
	Ledger   *ledger.Store
	Catalog  catalog.IdentifierCatalog
	Fetcher  contentstore.Fetcher
	Checker  Checker
	Notifier notifications.Service
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Tracer   trace.Tracer
	WorkDir  string
}

// Engine runs sweep steps. Each step is one ledger transaction.
type Engine struct {
	ledger   *ledger.Store
	catalog  catalog.IdentifierCatalog
	fetcher  contentstore.Fetcher
	checker  Checker
	notifier notifications.Service
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	workDir  string
	slot     *waitSlot
	now      func() time.Time
}

// NewEngine validates deps and constructs an Engine.
func NewEngine(deps Dependencies) (*Engine, error) {
	switch {
	case deps.Ledger == nil:
		return nil, errors.New("sweep engine: ledger is required")
	case deps.Catalog == nil:
		return nil, errors.New("sweep engine: identifier catalog is required")
	case deps.Fetcher == nil:
		return nil, errors.New("sweep engine: content fetcher is required")
	case deps.Checker == nil:
		return nil, errors.New("sweep engine: checker is required")
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil, nil)
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	workDir := strings.TrimSpace(deps.WorkDir)
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &Engine{
		ledger:   deps.Ledger,
		catalog:  deps.Catalog,
		fetcher:  deps.Fetcher,
		checker:  deps.Checker,
		notifier: notifier,
		metrics:  deps.Metrics,
		logger:   logging.NewComponentLogger(logger, "sweep"),
		tracer:   tracer,
		workDir:  workDir,
		slot:     &waitSlot{},
		now:      time.Now,
	}, nil
}

// WaitingFor returns the identifier the sweep is parked on, if any.
func (e *Engine) WaitingFor() string {
	return e.slot.peek()
}

// ProcessOne advances the sweep by one object. Every ledger write of the step
// commits together, and nothing is committed when the step fails. A paused
// step keeps a newly created record so the cursor survives restarts.
func (e *Engine) ProcessOne(ctx context.Context) StepResult {
	ctx, span := e.tracer.Start(ctx, "sweep.step")
	defer span.End()

	var result StepResult
	err := e.ledger.WithTx(ctx, func(tx *ledger.Tx) error {
		identifier, ok, err := e.nextIdentifier(ctx, tx)
		if err != nil {
			return err
		}
		if !ok {
			result.Outcome = OutcomeFinished
			return nil
		}
		result.Identifier = identifier
		span.SetAttributes(attribute.String("vigil.identifier", identifier))
		stepCtx := services.WithIdentifier(ctx, identifier)

		fetchStart := e.now()
		resp, err := e.fetch(stepCtx, identifier)
		if err != nil {
			return err
		}
		if resp.Status == contentstore.StatusPreparing {
			logging.WithContext(stepCtx, e.logger).Info("object being prepared; sweep paused",
				logging.String(logging.FieldEventType, "sweep_paused"),
			)
			result.Outcome = OutcomePaused
			return nil
		}

		corrupted, err := e.verify(stepCtx, identifier, resp, fetchStart)
		if err != nil {
			return err
		}
		if err := tx.MarkVerified(ctx, identifier, !corrupted); err != nil {
			return err
		}
		result.Outcome = OutcomeProcessed
		result.Corrupted = corrupted
		return nil
	})
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("vigil.outcome", result.Outcome.String()))
	e.metrics.IncrementStep(result.Outcome.String())
	return result
}

// nextIdentifier returns the unfinished cursor record or, when the cursor is
// verified, inserts the next catalog identifier.
func (e *Engine) nextIdentifier(ctx context.Context, tx *ledger.Tx) (string, bool, error) {
	last, err := tx.Last(ctx)
	if err != nil {
		return "", false, services.Wrap(services.ErrTransient, "sweep", "read cursor", "", err)
	}
	if last != nil && !last.Verified() {
		return last.Identifier, true, nil
	}

	previous := ""
	if last != nil {
		previous = last.Identifier
	}
	next, ok, err := e.catalog.FindNextActiveIdentifier(ctx, previous)
	if err != nil {
		return "", false, services.Wrap(services.ErrExternalService, "sweep", "next identifier", previous, err)
	}
	if !ok {
		return "", false, nil
	}
	record, err := tx.Insert(ctx, next)
	if err != nil {
		return "", false, services.Wrap(services.ErrTransient, "sweep", "advance cursor", next, err)
	}
	return record.Identifier, true, nil
}

// fetch issues the request with the identifier marked in flight and parks on
// 202. A 202 that raced a readiness notification for the same identifier is
// fetched again instead of parking.
func (e *Engine) fetch(ctx context.Context, identifier string) (*contentstore.Response, error) {
	for {
		e.slot.begin(identifier)
		resp, err := e.fetcher.Fetch(ctx, identifier)
		preparing := err == nil && resp != nil && resp.Status == contentstore.StatusPreparing
		refetch := e.slot.end(identifier, preparing)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, services.Wrap(services.ErrExternalService, "sweep", "fetch", identifier+": empty response", nil)
		}
		if !refetch {
			return resp, nil
		}
		logging.WithContext(ctx, e.logger).Debug("object became ready during fetch; fetching again")
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

func (e *Engine) verify(ctx context.Context, identifier string, resp *contentstore.Response, fetchStart time.Time) (bool, error) {
	path, size, err := resp.SaveTemp(e.workDir, "integrity-*.zip")
	if err != nil {
		return false, services.Wrap(services.ErrExternalService, "sweep", "download", identifier, err)
	}
	logger := logging.WithContext(ctx, e.logger)
	defer removeTemp(logger, path)
	e.metrics.ObserveFetch(e.now().Sub(fetchStart))

	checkStart := e.now()
	report, err := e.checker.Check(ctx, identifier, path)
	e.metrics.ObserveCheck(e.now().Sub(checkStart))
	if err != nil {
		return false, err
	}
	e.metrics.IncrementVerdict(report.Corrupted)

	if !report.Corrupted {
		logger.Debug("object verified",
			logging.Int64("archive_bytes", size),
			logging.Int("files_checked", report.Checked),
		)
		return false, nil
	}

	logger.Warn("object corrupted",
		logging.String("path", report.Path),
		logging.String("reason", string(report.Reason)),
		logging.String(logging.FieldEventType, "object_corrupted"),
		logging.String(logging.FieldErrorHint, "restore the object from a replica"),
		logging.String(logging.FieldImpact, "archived content no longer matches its catalog digests"),
	)
	payload := notifications.Payload{
		"identifier": identifier,
		"path":       report.Path,
		"reason":     string(report.Reason),
	}
	if err := e.notifier.Publish(ctx, notifications.EventObjectCorrupted, payload); err != nil {
		logging.WarnWithContext(logger, "corruption notification failed", "notify_corruption_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notification sink configuration"),
			logging.String(logging.FieldImpact, "operators were not alerted about this object"),
		)
	}
	return true, nil
}

func removeTemp(logger *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(logger, "could not delete temporary archive", "temp_cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the file from work_dir manually"),
			logging.String(logging.FieldImpact, "disk space is not reclaimed"),
		)
	}
}

// ProcessAll repeats ProcessOne until the sweep pauses, finishes, fails, or h
// is cancelled. A finished sweep is finalized before returning.
func (e *Engine) ProcessAll(ctx context.Context, h *Handle) RunSummary {
	summary := RunSummary{RunID: h.RunID(), StartedAt: h.StartedAt()}
	ctx = services.WithRunID(ctx, h.RunID())
	logger := logging.WithContext(ctx, e.logger)

	logger.Info("sweep continuation started", logging.String(logging.FieldEventType, "sweep_run_started"))

	for {
		if h.Cancelled() || ctx.Err() != nil {
			summary.Cancelled = true
			break
		}
		result := e.ProcessOne(ctx)
		summary.Steps++
		summary.Last = result.Outcome
		if result.Outcome == OutcomeProcessed {
			summary.Processed++
			if result.Corrupted {
				summary.Corrupted++
			}
			continue
		}
		switch result.Outcome {
		case OutcomeFinished:
			if err := e.Finish(ctx); err != nil {
				summary.Err = err
			}
		case OutcomeFailed:
			summary.Err = result.Err
			e.reportFailure(ctx, logger, result)
		}
		break
	}

	summary.EndedAt = e.now()
	summary.Duration = summary.EndedAt.Sub(summary.StartedAt)
	logger.Info("sweep continuation ended",
		logging.String(logging.FieldEventType, "sweep_run_ended"),
		logging.String("last_outcome", summary.Last.String()),
		logging.Int("steps", summary.Steps),
		logging.Int("processed", summary.Processed),
		logging.Int("corrupted", summary.Corrupted),
		logging.Bool("cancelled", summary.Cancelled),
		logging.Duration("duration", summary.Duration),
	)
	return summary
}

func (e *Engine) reportFailure(ctx context.Context, logger *slog.Logger, result StepResult) {
	logging.ErrorWithContext(logger, "sweep step failed; continuation stopped", "sweep_step_failed",
		logging.String(logging.FieldIdentifier, result.Identifier),
		logging.Error(result.Err),
		logging.String(logging.FieldErrorKind, services.ErrorKind(result.Err)),
		logging.String(logging.FieldErrorHint, services.ErrorHint(result.Err)),
		logging.String(logging.FieldImpact, "the object is retried when the sweep next starts"),
	)
	payload := notifications.Payload{
		"identifier": result.Identifier,
		"error":      result.Err,
	}
	if err := e.notifier.Publish(ctx, notifications.EventSweepFailed, payload); err != nil {
		logger.Debug("failure notification not delivered", logging.Error(err))
	}
}

// Finish summarizes the completed sweep, clears the ledger, and announces it.
func (e *Engine) Finish(ctx context.Context) error {
	logger := logging.WithContext(ctx, e.logger)
	summary, err := e.ledger.Finish(ctx)
	if err != nil {
		logging.ErrorWithContext(logger, "sweep finalization failed", "sweep_finish_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ledger database access"),
		)
		return fmt.Errorf("finish sweep: %w", err)
	}
	e.metrics.IncrementSweepsCompleted()

	var span time.Duration
	if !summary.FirstAdded.IsZero() && !summary.LastVerified.IsZero() {
		span = summary.LastVerified.Sub(summary.FirstAdded)
	}
	logger.Info("integrity sweep finished",
		logging.String(logging.FieldEventType, "sweep_finished"),
		logging.Int("total", summary.Total),
		logging.Int("corrupted", summary.Corrupted),
		logging.Time("first_added", summary.FirstAdded),
		logging.Time("last_verified", summary.LastVerified),
	)
	payload := notifications.Payload{
		"total":     summary.Total,
		"corrupted": summary.Corrupted,
		"duration":  span,
	}
	if err := e.notifier.Publish(ctx, notifications.EventSweepCompleted, payload); err != nil {
		logging.WarnWithContext(logger, "sweep completion notification failed", "notify_sweep_completed_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notification sink configuration"),
		)
	}
	return nil
}
