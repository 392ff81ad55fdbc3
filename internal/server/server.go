package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sundayezeilo/shorttag/internal/config"
	"github.com/sundayezeilo/shorttag/internal/httpx"
	"github.com/sundayezeilo/shorttag/internal/shortener"
)

// healthTimeout bounds the backend ping done by the health check.
const healthTimeout = 2 * time.Second

// Pinger reports whether the tag directory is reachable.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// Server represents the HTTP server with all dependencies.
type Server struct {
	config  *config.Config
	logger  *slog.Logger
	handler *shortener.Handler
	backend Pinger
	server  *http.Server
}

// New creates a new Server instance. backend may be nil, in which case the
// health check only reports that the process is up.
func New(cfg *config.Config, logger *slog.Logger, handler *shortener.Handler, backend Pinger) *Server {
	return &Server{
		config:  cfg,
		logger:  logger,
		handler: handler,
		backend: backend,
	}
}

// Handler returns the routed, middleware-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.applyMiddleware(s.setupRoutes())
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting http server",
			"addr", s.server.Addr,
			"env", s.config.App.Environment,
			"domain", s.config.Server.Domain,
		)
		serverErrors <- s.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		s.logger.Info("context canceled, stopping server")
		return s.stop()

	case sig := <-shutdown:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.stop()
	}
}

func (s *Server) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		if closeErr := s.server.Close(); closeErr != nil {
			return fmt.Errorf("failed to close server: %w", closeErr)
		}
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}

// setupRoutes configures all HTTP routes. Tags are single path segments, so
// the health check lives under /x/ where no tag can reach it.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /x/health", s.healthCheckHandler)

	mux.HandleFunc("GET /{$}", s.handler.Index)
	mux.HandleFunc("POST /shorten", s.handler.Shorten)
	mux.HandleFunc("GET /{tag}", s.handler.Resolve)

	return mux
}

// applyMiddleware wraps the handler with middleware in the correct order.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	return httpx.Chain(
		httpx.Recovery(s.logger),
		httpx.RequestID,
		httpx.Logger(s.logger, httpx.LoggerConfig{
			LogRemoteAddr: s.config.App.LogRemoteAddr,
			TrustProxy:    s.config.Server.TrustProxy,
		}),
		httpx.CORS(s.config.Server.AllowedOrigins),
	)(handler)
}

func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.backend.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "directory health check failed",
			"backend", s.backend.Name(),
			"error", err,
		)
		httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":    "unavailable",
			"directory": s.backend.Name(),
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"directory": s.backend.Name(),
	})
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded, forcing close")
			return s.server.Close()
		}
		return err
	}

	return nil
}
