// Package server assembles the reference remote: the mutation endpoint,
// entity reads, the cross-tab relay and metrics behind auth and rate
// limiting.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/config"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/server/handlers"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/server/jwt"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/server/middleware"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/server/storage/sqlite"
)

const (
	shutdownTimeout = 10 * time.Second
	limiterIdle     = 10 * time.Minute
)

// Server is the HTTP server and everything it owns.
type Server struct {
	logger  *slog.Logger
	store   *sqlite.Storage
	tokens  *jwt.Service
	hub     *handlers.TabHub
	limiter *middleware.RateLimiter
	handler http.Handler
	cfg     config.Server
}

// New opens the database and builds the routes.
func New(ctx context.Context, logger *slog.Logger, cfg config.Server, version string) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	validator, err := handlers.NewPayloadValidator()
	if err != nil {
		store.Close()
		return nil, err
	}

	s := &Server{
		logger: logger,
		cfg:    cfg,
		store:  store,
		tokens: jwt.NewService(cfg.JWTSecret, cfg.TokenTTL),
		hub:    handlers.NewTabHub(logger.With("component", "tabs")),
	}

	auth := middleware.AuthMiddleware(logger, s.tokens)
	protect := func(h http.HandlerFunc) http.Handler { return auth(h) }
	if cfg.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit, max(cfg.RateBurst, 1), limiterIdle, logger)
		protect = func(h http.HandlerFunc) http.Handler { return auth(s.limiter.Middleware(h)) }
	}

	mutations := handlers.NewMutationHandler(logger.With("component", "mutations"), store, validator)
	entities := handlers.NewEntityHandler(logger, store)
	health := handlers.NewHealthHandler(logger, store, version)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", health.Health)
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	mux.Handle("POST /api/v1/mutations", protect(mutations.Apply))
	mux.Handle("GET /api/v1/entities/{key}", protect(entities.Get))
	mux.Handle("GET /api/v1/tabs/ws", protect(s.hub.Serve))

	s.handler = middleware.LoggingMiddleware(logger, "/api/v1/health", "/metrics")(
		middleware.RecoveryMiddleware(logger)(mux),
	)
	return s, nil
}

// Handler returns the root handler with every middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// Tokens returns the token service, used to issue client tokens.
func (s *Server) Tokens() *jwt.Service { return s.tokens }

// Run listens on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln. When ctx is done it stops accepting,
// closes tab connections and waits for in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	// Websocket соединения перехвачены и Shutdown их не ждёт
	srv.RegisterOnShutdown(s.hub.CloseAll)

	s.logger.Info("Server listening", "addr", ln.Addr().String())

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Server shutting down")
	case err := <-serveErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	s.logger.Info("Server stopped")
	return nil
}

// Close releases the database and background workers.
func (s *Server) Close() error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return s.store.Close()
}
