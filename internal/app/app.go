// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the examprep server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"examprep/config"
	"examprep/internal/cache"
	"examprep/internal/connectivity"
	"examprep/internal/core"
	"examprep/internal/httpclient"
	"examprep/internal/observability"
	"examprep/internal/offline"
	"examprep/internal/questions"
	"examprep/internal/server"
	"examprep/internal/storage"
)

// App represents the main application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config  *config.Config
	cache   *cache.Result
	monitor *connectivity.Monitor
	notices *connectivity.Notices
	offline *offline.Controller
	server  *server.Server

	stopBackground context.CancelFunc
	background     sync.WaitGroup

	shutdownMu sync.Mutex
	shutdown   bool
}

// Config holds the configuration options for creating an App.
type Config struct {
	// AppConfig holds the loaded application configuration produced by config.Load.
	AppConfig *config.LoadResult

	// Source replaces the configured question source when set.
	Source core.QuestionSource
}

// New creates a new App with all dependencies initialized and its background
// loops running. The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("app config is required")
	}
	if cfg.AppConfig.Config == nil {
		return nil, fmt.Errorf("app config contains nil Config")
	}
	appCfg := cfg.AppConfig.Config

	bodySizeLimit, err := config.ParseBodySizeLimit(appCfg.Server.BodySizeLimit)
	if err != nil {
		return nil, err
	}

	source := cfg.Source
	if source == nil {
		source, err = buildSource(appCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize question source: %w", err)
		}
	}

	cacheResult, err := cache.New(ctx, cacheConfig(appCfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize question cache: %w", err)
	}

	app := &App{
		config: appCfg,
		cache:  cacheResult,
	}

	store := questions.NewStore(cacheResult.KV, questions.Config{
		MaxPerSubject: appCfg.Cache.MaxPerSubject,
		MaxAge:        appCfg.Cache.MaxAge,
		Compress:      appCfg.Cache.Compress,
	})

	// Initial connectivity comes from one probe when an address is configured.
	online := appCfg.Connectivity.StartOnline
	var prober *connectivity.Prober
	if appCfg.Connectivity.ProbeAddress != "" {
		prober = connectivity.NewProber(connectivity.ProberConfig{
			Address:  appCfg.Connectivity.ProbeAddress,
			Timeout:  appCfg.Connectivity.ProbeTimeout,
			Interval: appCfg.Connectivity.ProbeInterval,
		})
		online = prober.Probe(ctx)
	}

	app.monitor = connectivity.NewMonitor(online)
	observability.SetOnline(online)
	app.monitor.Subscribe(func(online bool) {
		observability.SetOnline(online)
		slog.Info("connectivity changed", "online", online)
	})
	app.notices = connectivity.NewNotices(app.monitor, connectivity.WithNoticeHandler(func(n connectivity.Notice) {
		slog.Info("connectivity notice", "kind", n.Kind, "message", n.Message, "expires_at", n.ExpiresAt)
	}))

	app.offline = offline.NewController(app.monitor, source, store)
	app.offline.RefreshStats(ctx)

	bgCtx, cancel := context.WithCancel(context.Background())
	app.stopBackground = cancel
	app.runBackground(func() {
		questions.RunPurgeLoop(bgCtx, app.offline, appCfg.Cache.PurgeInterval)
	})
	if prober != nil {
		app.runBackground(func() { prober.Watch(bgCtx, app.monitor) })
	}

	app.logStartupInfo(online)

	app.server = server.New(app.offline, app.monitor, app.notices, &server.Config{
		MasterKey:       appCfg.Server.MasterKey,
		MetricsEnabled:  appCfg.Metrics.Enabled,
		MetricsEndpoint: appCfg.Metrics.Endpoint,
		BodySizeLimit:   bodySizeLimit,
	})

	return app, nil
}

func (a *App) runBackground(fn func()) {
	a.background.Add(1)
	go func() {
		defer a.background.Done()
		fn()
	}()
}

// Offline returns the offline controller.
func (a *App) Offline() *offline.Controller {
	return a.offline
}

// Monitor returns the connectivity monitor.
func (a *App) Monitor() *connectivity.Monitor {
	return a.monitor
}

// Handler returns the HTTP handler without starting a listener.
func (a *App) Handler() http.Handler {
	return a.server
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully tears down app components in dependency order.
// Order:
// 1. HTTP server shutdown, honoring the passed context timeout/cancellation.
// 2. Background loops (purge, connectivity probing) are stopped and awaited.
// 3. Notices stop listening to the monitor.
// 4. The cache backend and its storage connection are closed.
//
// Shutdown is idempotent and safe for repeated calls; after the first call, subsequent calls are no-ops.
// It attempts every close step, aggregates failures, and returns a joined error if any step fails.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error

	// 1. Shutdown HTTP server first (stop accepting new requests)
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	// 2. Stop background loops
	if a.stopBackground != nil {
		a.stopBackground()
		done := make(chan struct{})
		go func() {
			a.background.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("background loops: %w", ctx.Err()))
		}
	}

	// 3. Detach notices
	if a.notices != nil {
		a.notices.Close()
	}

	// 4. Close the cache
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			slog.Error("cache close error", "error", err)
			errs = append(errs, fmt.Errorf("cache close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo(online bool) {
	cfg := a.config

	// Security warnings
	if cfg.Server.MasterKey == "" {
		slog.Warn("SECURITY WARNING: EXAMPREP_MASTER_KEY not set - server running in UNSAFE MODE",
			"security_risk", "unauthenticated access allowed",
			"recommendation", "set EXAMPREP_MASTER_KEY environment variable to secure this server")
	} else {
		slog.Info("authentication enabled", "mode", "master_key")
	}

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	slog.Info("question cache configured",
		"backend", cfg.Cache.Backend,
		"max_per_subject", cfg.Cache.MaxPerSubject,
		"max_age", cfg.Cache.MaxAge,
		"purge_interval", cfg.Cache.PurgeInterval,
		"compress", cfg.Cache.Compress,
	)
	slog.Info("question source configured", "type", cfg.Source.Type)

	if cfg.Connectivity.ProbeAddress != "" {
		slog.Info("connectivity probing enabled",
			"address", cfg.Connectivity.ProbeAddress,
			"interval", cfg.Connectivity.ProbeInterval,
			"online", online,
		)
	} else {
		slog.Info("connectivity probing disabled", "online", online)
	}
}

func cacheConfig(cfg *config.Config) cache.Config {
	return cache.Config{
		Backend:  cfg.Cache.Backend,
		LocalDir: cfg.Cache.Local.Dir,
		Redis: cache.RedisConfig{
			URL:    cfg.Cache.Redis.URL,
			Prefix: cfg.Cache.Redis.Prefix,
			TTL:    cfg.Cache.Redis.TTL,
		},
		Storage: storage.Config{
			SQLite: storage.SQLiteConfig{
				Path: cfg.Storage.SQLite.Path,
			},
			PostgreSQL: storage.PostgreSQLConfig{
				URL:      cfg.Storage.PostgreSQL.URL,
				MaxConns: cfg.Storage.PostgreSQL.MaxConns,
			},
			MongoDB: storage.MongoDBConfig{
				URL:      cfg.Storage.MongoDB.URL,
				Database: cfg.Storage.MongoDB.Database,
			},
		},
	}
}

func buildSource(cfg *config.Config) (core.QuestionSource, error) {
	switch cfg.Source.Type {
	case "file":
		return questions.NewFileSource(cfg.Source.File), nil
	case "http", "":
		clientCfg := httpclient.DefaultConfig()
		if cfg.HTTP.Timeout > 0 {
			clientCfg.Timeout = time.Duration(cfg.HTTP.Timeout) * time.Second
		}
		if cfg.HTTP.ResponseHeaderTimeout > 0 {
			clientCfg.ResponseHeaderTimeout = time.Duration(cfg.HTTP.ResponseHeaderTimeout) * time.Second
		}
		return questions.NewHTTPSource(questions.HTTPSourceConfig{
			URL:         cfg.Source.URL,
			ResultsPath: cfg.Source.ResultsPath,
			Headers:     cfg.Source.Headers,
			Client:      httpclient.NewHTTPClient(&clientCfg),
		})
	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Source.Type)
	}
}
