package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vigil/internal/api"
	"vigil/internal/config"
	"vigil/internal/logging"
	"vigil/internal/services"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)
	r.Use(authMiddleware(token))

	r.Get("/api/status", s.handleStatus)
	r.Get("/api/ledger", s.handleLedger)
	r.Post("/api/ledger/reset", s.handleLedgerReset)
	r.Route("/api/sweep", func(r chi.Router) {
		r.Post("/activate", s.handleActivate)
		r.Post("/deactivate", s.handleDeactivate)
		r.Post("/start", s.handleStart)
		r.Post("/stop", s.handleStop)
	})
	r.Post("/api/objects/{identifier}/available", s.handleObjectAvailable)
	r.Post("/api/notifications/test", s.handleTestNotification)
	if m := s.daemon.metrics; m != nil {
		r.Handle("/metrics", m.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// requestLog carries chi's request ID into the context as the correlation ID
// and logs each request at debug level.
func (s *apiServer) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := middleware.GetReqID(ctx); id != "" {
			ctx = services.WithRequestID(ctx, id)
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.WithContext(ctx, s.log()).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		LedgerPath:   status.LedgerPath,
		LockFilePath: status.LockFilePath,
		Sweep:        api.FromSweepStatus(status.Sweep),
		Ledger:       api.FromSummary(status.Ledger),
	}
	for _, next := range status.NextRuns {
		if next.IsZero() {
			continue
		}
		payload.NextRuns = append(payload.NextRuns, next.UTC().Format(time.RFC3339))
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleLedger(w http.ResponseWriter, r *http.Request) {
	records, summary, err := s.daemon.Ledger(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.LedgerResponse{
		Records: api.FromRecords(records),
		Summary: api.FromSummary(summary),
	})
}

func (s *apiServer) handleLedgerReset(w http.ResponseWriter, r *http.Request) {
	removed, err := s.daemon.ResetLedger(r.Context())
	if errors.Is(err, ErrSweepRunning) {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeAction(w, "ledger_reset", removed > 0, fmt.Sprintf("removed %d records", removed))
}

func (s *apiServer) handleActivate(w http.ResponseWriter, _ *http.Request) {
	started := s.daemon.Activate()
	message := "sweep active"
	if started {
		message = "sweep active; continuation started"
	}
	s.writeAction(w, "activate", started, message)
}

func (s *apiServer) handleDeactivate(w http.ResponseWriter, _ *http.Request) {
	wasActive := s.daemon.SweepStatus().Active
	s.daemon.Deactivate()
	s.writeAction(w, "deactivate", wasActive, "sweep inactive")
}

func (s *apiServer) handleStart(w http.ResponseWriter, _ *http.Request) {
	started := s.daemon.StartSweep()
	message := "continuation started"
	if !started {
		if s.daemon.SweepStatus().Active {
			message = "continuation already running"
		} else {
			message = "sweep inactive; activate it first"
		}
	}
	s.writeAction(w, "start", started, message)
}

func (s *apiServer) handleStop(w http.ResponseWriter, _ *http.Request) {
	stopped := s.daemon.StopSweep()
	message := "stop requested"
	if !stopped {
		message = "no continuation running"
	}
	s.writeAction(w, "stop", stopped, message)
}

func (s *apiServer) handleObjectAvailable(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "identifier")
	identifier, err := url.PathUnescape(raw)
	if err != nil || strings.TrimSpace(identifier) == "" {
		s.writeError(w, http.StatusBadRequest, "invalid identifier")
		return
	}
	resumed := s.daemon.ObjectAvailable(identifier)
	message := "sweep resumed"
	if !resumed {
		message = "sweep not waiting for this object"
	}
	s.writeAction(w, "object_available", resumed, message)
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.TestNotification(r.Context()); err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeAction(w, "test_notification", true, "test notification sent")
}

func (s *apiServer) writeAction(w http.ResponseWriter, action string, changed bool, message string) {
	s.writeJSON(w, http.StatusOK, api.ActionResponse{
		Action:  action,
		Changed: changed,
		Message: message,
		Sweep:   api.FromSweepStatus(s.daemon.SweepStatus()),
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
