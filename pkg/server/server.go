// Package server exposes the current measurement and the log over HTTP.
package server

import (
	"context"
	_ "embed"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/itohio/gardenmeter/pkg/logstore"
	"github.com/itohio/gardenmeter/pkg/measurement"
)

//go:embed dashboard.html
var dashboard []byte

const (
	notFoundPage = "Seite nicht gefunden"
	notFoundFile = "Datei nicht gefunden"

	defaultHistoryLimit = 100
	maxHistoryLimit     = 10000
)

// LogSource is the persisted log. Implemented by *logstore.Store.
type LogSource interface {
	Export() (io.ReadCloser, int64, error)
	ListEntries() ([]logstore.Entry, error)
}

// History returns recent measurements, newest first. Implemented by *logstore.SQLMirror.
type History interface {
	Recent(ctx context.Context, limit int) ([]measurement.Measurement, error)
}

// Health describes the running daemon.
type Health struct {
	Status           string `json:"status"`
	Phase            string `json:"phase"`
	Cycles           uint64 `json:"cycles"`
	TimeSynchronized bool   `json:"timeSynchronized"`
	Timestamp        string `json:"timestamp"`
}

// Server is the HTTP front of the daemon. It only reads shared state.
type Server struct {
	state    *measurement.State
	log      LogSource
	history  History
	health   func() Health
	fileName string
	logger   *slog.Logger
}

// Option configures optional endpoints.
type Option func(*Server)

// WithHistory enables /api/history.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithHealth sets the provider of /health details.
func WithHealth(f func() Health) Option {
	return func(s *Server) { s.health = f }
}

// WithFileName sets the attachment name of /download.
func WithFileName(name string) Option {
	return func(s *Server) { s.fileName = name }
}

// New creates a Server over state and the log.
func New(state *measurement.State, log LogSource, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		state:    state,
		log:      log,
		fileName: logstore.DefaultFileName,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the router of all endpoints.
func (s *Server) Routes() http.Handler {
	mux := chi.NewRouter()

	mux.Get("/", s.handleDashboard)
	mux.Get("/api/data", s.handleData)
	mux.Get("/api/history", s.handleHistory)
	mux.Get("/download", s.handleDownload)
	mux.Get("/health", s.handleHealth)

	mux.NotFound(s.handleNotFound)
	mux.MethodNotAllowed(s.handleNotFound)

	return mux
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		IdleTimeout:       30 * time.Second,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Web server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down web server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Graceful shutdown failed, forcing close", "error", err)
			_ = srv.Close()
		}
		return <-errCh

	case err := <-errCh:
		return err
	}
}
