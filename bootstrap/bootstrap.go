// Package bootstrap wires all dependencies and starts the application:
// configuration, logging, the dispatch service with its manifest watchers,
// metrics, and the HTTP server with graceful shutdown.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/artpar/intake/adapters/clock"
	apihttp "github.com/artpar/intake/adapters/http"
	"github.com/artpar/intake/adapters/idgen"
	"github.com/artpar/intake/adapters/metrics"
	"github.com/artpar/intake/app"
	"github.com/artpar/intake/config"
	"github.com/rs/zerolog"
)

// App represents the running application. Config and Logger are fixed at
// construction; config-file reloads surface through applyConfig, which
// only touches state that is safe to change while serving.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Service    *app.DispatchService
	Router     http.Handler
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	holder *config.Holder

	mu      sync.Mutex
	lastCfg *config.Config // last config seen by applyConfig
}

// Options tune how the application is assembled.
type Options struct {
	// Version is reported by /version and the OpenAPI document.
	Version string

	// Handlers are business handlers registered by name before the first
	// definition load, so manifest routes can reference them. The built-in
	// echo handler is always available.
	Handlers map[string]app.Handler
}

// New builds the application from an already-loaded config.
func New(cfg *config.Config) (*App, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions builds the application from an already-loaded config.
func NewWithOptions(cfg *config.Config, opts Options) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: NewLogger(cfg.Logging),
	}

	if err := a.init(opts); err != nil {
		return nil, err
	}
	return a, nil
}

// NewWithHotReload builds the application with config-file hot reload.
// Manifest watching is governed separately by definitions.watch.
func NewWithHotReload(path string) (*App, error) {
	return NewWithHotReloadOptions(path, Options{})
}

// NewWithHotReloadOptions builds the application with config-file hot reload.
func NewWithHotReloadOptions(path string, opts Options) (*App, error) {
	bootLogger := NewLogger(config.LoggingConfig{Level: "info", Format: "json"})

	holder, err := config.NewHolder(path, bootLogger)
	if err != nil {
		return nil, err
	}

	cfg := holder.Get()

	a := &App{
		Config: cfg,
		Logger: NewLogger(cfg.Logging),
		holder: holder,
	}

	if err := a.init(opts); err != nil {
		holder.Stop()
		return nil, err
	}

	holder.OnChange(a.applyConfig)
	if err := holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config watch unavailable, continuing without it")
	}
	holder.WatchSignals()

	return a, nil
}

// init builds everything downstream of a.Config and a.Logger.
func (a *App) init(opts Options) error {
	cfg := a.Config
	a.lastCfg = cfg

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}

	a.Service = app.NewDispatchService(app.Deps{
		Clock:  clock.Real{},
		IDGen:  idgen.UUID{},
		Logger: a.Logger,
	}, app.Config{
		RoutesFile: cfg.Definitions.RoutesFile,
		SchemaDir:  cfg.Definitions.SchemaDir,
		Doc: app.DocInfo{
			Title:     cfg.OpenAPI.Title,
			Version:   cfg.OpenAPI.Version,
			ServerURL: cfg.OpenAPI.ServerURL,
		},
	})

	if a.Metrics != nil {
		WireMetrics(a.Service, a.Metrics, clock.Real{})
	}

	// Handlers must exist before the first load: snapshots resolve route
	// handler references at build time.
	for name, h := range opts.Handlers {
		if err := a.Service.RegisterHandler(name, h); err != nil {
			return fmt.Errorf("register handler: %w", err)
		}
	}

	// The first load must succeed; later reloads keep the active snapshot
	// on failure.
	if err := a.Service.Reload(); err != nil {
		return fmt.Errorf("load definitions: %w", err)
	}

	if cfg.Definitions.Watch {
		if err := a.Service.WatchManifests(); err != nil {
			a.Logger.Warn().Err(err).Msg("manifest watch unavailable, continuing without it")
		}
		a.Service.WatchSignals()
	}

	dispatch := apihttp.NewDispatchHandlerWithMetrics(a.Service, a.Logger, a.Metrics)
	dispatch.SetMaxBodyBytes(cfg.Server.MaxBodyBytes)

	health := apihttp.NewHealthHandler(a.Service)

	var limiter *apihttp.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = apihttp.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, a.Metrics)
	}

	a.Router = apihttp.NewRouterWithConfig(dispatch, health, a.Logger, apihttp.RouterConfig{
		Metrics:        a.Metrics,
		EnableDocs:     cfg.OpenAPI.Enabled,
		RateLimiter:    limiter,
		RequestTimeout: cfg.Server.RequestTimeout,
		Version:        version,
	})

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return nil
}

// applyConfig reacts to a config-file reload. It runs on the holder's
// watch goroutine, so it must not touch state the serving goroutines
// read unsynchronized: the log level goes through zerolog's atomic
// global level, everything else is logged as needing a restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.mu.Lock()
	old := a.lastCfg
	a.lastCfg = cfg
	a.mu.Unlock()

	if old.Logging.Level != cfg.Logging.Level {
		if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
			a.Logger.Info().Str("level", cfg.Logging.Level).Msg("log level applied")
		}
	}
	if old.Logging.Format != cfg.Logging.Format {
		a.Logger.Warn().Msg("logging format changed, restart required to apply")
	}

	if old.Server != cfg.Server || old.Definitions != cfg.Definitions {
		a.Logger.Warn().Msg("server or definitions config changed, restart required to apply")
	}
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Int("routes", a.Service.Snapshot().Table.Len()).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop manifest and signal watchers
	if a.Service != nil {
		a.Service.Stop()
	}

	// Stop config watcher
	if a.holder != nil {
		a.holder.Stop()
	}

	// Shutdown HTTP server
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// NewLogger builds a zerolog logger from the logging config. The level is
// applied through zerolog's global level, which is atomic, so applyConfig
// can change it while the app serves.
func NewLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
