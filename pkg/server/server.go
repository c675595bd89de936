package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/proxy/handlers"
	"mercator-hq/relay/pkg/proxy/middleware"
	"mercator-hq/relay/pkg/telemetry/health"
	"mercator-hq/relay/pkg/telemetry/metrics"
	"mercator-hq/relay/pkg/telemetry/tracing"
)

// Route patterns served by the relay.
const (
	RouteChatCompletions = "POST /v1/chat/completions"
	RouteCancel          = "POST /v1/requests/{id}/cancel"
	RouteHealth          = "GET /health"
	RouteReady           = "GET /ready"
	RouteVersion         = "GET /version"
)

// ErrAlreadyRunning is returned by Start on a server that is already serving.
var ErrAlreadyRunning = errors.New("server is already running")

// Options carries the server's collaborators.
type Options struct {
	// Forwarder serves chat completions and cancellations. Required.
	Forwarder handlers.Forwarder

	// Metrics records HTTP metrics and serves the metrics endpoint when
	// metrics are enabled. Nil disables both.
	Metrics *metrics.Collector

	// Health serves /health and /ready. A checker without checks is
	// created if nil.
	Health *health.Checker

	Logger *slog.Logger

	Version   string
	Commit    string
	BuildTime string
}

// Server is the relay's inbound HTTP server.
type Server struct {
	config       *config.Config
	opts         Options
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         net.Addr
}

// New creates a server for cfg.
func New(cfg *config.Config, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Health == nil {
		opts.Health = health.New(0)
	}

	return &Server{
		config: cfg,
		opts:   opts,
		logger: opts.Logger,
	}
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.ListenAddress())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener. The listener is closed when
// Serve returns.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		ln.Close()
		return ErrAlreadyRunning
	}
	s.isRunning = true
	s.addr = ln.Addr()
	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    s.config.Server.ReadTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("relay listening", "address", ln.Addr().String())

		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.setStopped()
		return err
	}
}

// Shutdown stops accepting connections and waits up to ShutdownTimeout for
// in-flight requests, including open streams, to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		httpServer := s.httpServer
		s.mu.RUnlock()
		if httpServer == nil {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			httpServer.Close()
		}

		s.setStopped()
		s.logger.Info("relay stopped")
	})

	return shutdownErr
}

func (s *Server) setStopped() {
	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the listener address once serving, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	authorize := middleware.ClientKeyMiddleware(s.config.Auth.ClientAPIKey)

	s.handle(mux, RouteChatCompletions, authorize(
		handlers.NewChatHandler(s.opts.Forwarder, s.config.Server.MaxBodyBytes, s.logger),
	))
	s.handle(mux, RouteCancel, authorize(
		handlers.NewCancelHandler(s.opts.Forwarder, s.logger),
	))
	s.handle(mux, RouteHealth, s.opts.Health.LivenessHandler())
	s.handle(mux, RouteReady, s.opts.Health.ReadinessHandler())
	s.handle(mux, RouteVersion, health.VersionHandler(s.opts.Version, s.opts.Commit, s.opts.BuildTime))

	if s.opts.Metrics != nil && s.config.Telemetry.Metrics.Enabled {
		s.handle(mux, "GET "+s.config.Telemetry.Metrics.Path, s.opts.Metrics.Handler())
	}

	var handler http.Handler = mux
	handler = middleware.LoggingMiddleware(s.logger)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = tracing.HTTPMiddleware(handler)
	handler = middleware.RecoveryMiddleware(s.logger)(handler)

	return handler
}

// handle registers h under pattern, labelling its HTTP metrics with the
// pattern.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.Handler) {
	var recorder middleware.HTTPRecorder
	if s.opts.Metrics != nil {
		recorder = s.opts.Metrics
	}
	mux.Handle(pattern, middleware.MetricsMiddleware(recorder, pattern)(h))
}
