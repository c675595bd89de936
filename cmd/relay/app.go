package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/forwarder"
	"mercator-hq/relay/pkg/server"
	"mercator-hq/relay/pkg/telemetry/health"
	"mercator-hq/relay/pkg/telemetry/logging"
	"mercator-hq/relay/pkg/telemetry/metrics"
	"mercator-hq/relay/pkg/telemetry/tracing"
	"mercator-hq/relay/pkg/upstream"

	"golang.org/x/sync/errgroup"
)

// app is a fully wired relay process.
type app struct {
	cfg        *config.Config
	configPath string
	pinLevel   bool

	logger    *logging.Logger
	collector *metrics.Collector
	tracer    *tracing.Tracer
	client    *upstream.Client
	forwarder *forwarder.Forwarder
	server    *server.Server
}

// appOptions tune newApp.
type appOptions struct {
	// ConfigPath enables the config watcher when non-empty.
	ConfigPath string

	// Console receives console log output. Nil means stderr.
	Console io.Writer

	// PinLevel keeps the log level across config reloads, for --log-level.
	PinLevel bool
}

// newApp builds every component from cfg: logging, metrics, tracing, the
// upstream client, the forwarder, health checks and the HTTP server.
func newApp(cfg *config.Config, opts appOptions) (*app, error) {
	logger, err := logging.New(&cfg.Telemetry.Logging, opts.Console)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	a := &app{
		cfg:        cfg,
		configPath: opts.ConfigPath,
		pinLevel:   opts.PinLevel,
		logger:     logger,
	}

	a.collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	a.tracer, err = tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	a.client, err = upstream.New(upstreamConfig(cfg.Upstream))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}

	a.forwarder = forwarder.New(forwarder.ClientUpstream(a.client), forwarder.Options{
		Policy:  retryPolicy(cfg.Retry),
		Logger:  logger.Slog(),
		Metrics: a.collector,
		Tracer:  a.tracer,
	})

	checker := health.New(cfg.Upstream.ConnectTimeout)
	checker.RegisterCheck("upstream", health.UpstreamCheck(cfg.Upstream.BaseURL))
	checker.ReportInFlight(a.forwarder.Registry().Len)

	a.server = server.New(cfg, server.Options{
		Forwarder: a.forwarder,
		Metrics:   a.collector,
		Health:    checker,
		Logger:    logger.Slog(),
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
	})

	return a, nil
}

// run serves until ctx is cancelled or a component fails, then releases
// every resource.
func (a *app) run(ctx context.Context) error {
	defer a.close()

	log := a.logger.Slog()
	log.Info("starting relay",
		"version", Version,
		"listen", a.cfg.Server.ListenAddress(),
		"upstream", a.cfg.Upstream.BaseURL,
		"max_retries", a.cfg.Retry.MaxRetries,
		"metrics", a.cfg.Telemetry.Metrics.Enabled,
		"tracing", a.tracer.Enabled(),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.server.Start(gctx)
	})

	if a.configPath != "" {
		watcher := config.NewWatcher(a.configPath, log, a.reload)
		g.Go(func() error {
			return watcher.Watch(gctx)
		})
	}

	g.Go(func() error {
		return a.logger.RunRotation(gctx, a.cfg.Telemetry.Logging.RotateSchedule)
	})

	return g.Wait()
}

// reload applies the settings that can change while running.
func (a *app) reload(cfg *config.Config) {
	if !a.pinLevel {
		a.logger.SetLevel(cfg.Telemetry.Logging.Level)
	}
	a.forwarder.SetPolicy(retryPolicy(cfg.Retry))

	a.logger.Slog().Info("runtime settings updated",
		"log_level", a.logger.Level().String(),
		"max_retries", cfg.Retry.MaxRetries,
	)
}

func (a *app) close() {
	log := a.logger.Slog()

	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}
	if a.client != nil {
		_ = a.client.Close()
	}
	_ = a.logger.Close()
}

// Slog returns the app's logger.
func (a *app) Slog() *slog.Logger {
	return a.logger.Slog()
}

func upstreamConfig(cfg config.UpstreamConfig) upstream.Config {
	return upstream.Config{
		BaseURL:        cfg.BaseURL,
		APIKey:         cfg.APIKey,
		APIVersion:     cfg.APIVersion,
		Headers:        cfg.Headers,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		PoolTimeout:    cfg.PoolTimeout,
		RequestTimeout: cfg.RequestTimeout,
		MaxConnections: cfg.MaxConnections,
		MaxKeepalive:   cfg.MaxKeepalive,
		UserAgent:      "relay/" + Version,
	}
}

func retryPolicy(cfg config.RetryConfig) forwarder.Policy {
	return forwarder.Policy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseDelay,
		MaxDelay:   cfg.MaxDelay,
	}
}
