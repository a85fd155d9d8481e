package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"orthrus/api"
	"orthrus/config"
	"orthrus/metrics"
	"orthrus/storage"

	"go.uber.org/zap"
)

// App represents the Orthrus daemon with all its components.
type App struct {
	// Configuration
	Settings *config.Settings
	Logger   *zap.Logger
	Sugar    *zap.SugaredLogger

	// Configuration document
	Reader   *config.Reader
	Provider *config.Provider

	// Components
	Registry   *storage.Registry
	Components *Components

	// Services
	APIServer *api.Server
	Watcher   *config.Watcher

	// Lifecycle
	serviceWg *sync.WaitGroup
}

// NewApp creates a new daemon instance and initializes all components.
func NewApp() (*App, error) {
	app := &App{
		serviceWg: &sync.WaitGroup{},
	}

	// Initialize logger
	logger, sugar, err := InitLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger
	app.Sugar = sugar

	sugar.Info("Orthrus detection engine starting...")

	// Load settings
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	app.Settings = settings

	sugar.Infow("Startup mode",
		"mode", string(settings.StartupMode),
		"description", func() string {
			if settings.IsGracefulMode() {
				return "will continue with degraded functionality on non-critical errors"
			}
			return "will fail fast on any initialization error"
		}())

	// Read the configuration document
	app.Reader = config.NewReader()
	app.Reader.SchemaPath = settings.SchemaPath()

	cfg, err := app.loadDocument()
	if err != nil {
		if !settings.IsGracefulMode() {
			return nil, err
		}
		sugar.Warnw("Starting without an active configuration",
			"document", settings.DocumentPath(),
			"kind", config.FailureKind(err),
			"error", err)
		cfg = nil
	}

	// Re-initialize the logger when the document selects another profile
	if cfg != nil && cfg.Logger != "" && cfg.Logger != LoggerConsole {
		logger, sugar, err := LoggerForProfile(cfg.Logger)
		if err != nil {
			if !settings.IsGracefulMode() {
				return nil, fmt.Errorf("failed to resolve logger: %w", err)
			}
			app.Sugar.Warnw("Unknown logger profile, keeping console output",
				"configured", cfg.Logger)
		} else {
			app.Logger = logger
			app.Sugar = sugar
		}
	}

	// Initialize the store registry
	app.Registry = storage.NewRegistry(storage.Backends{
		SQLitePath:    settings.SQLite.Path,
		RedisAddr:     settings.Redis.Addr,
		RedisPassword: settings.Redis.Password,
		RedisDB:       settings.Redis.DB,
		RedisPoolSize: settings.Redis.PoolSize,
	}, app.Sugar)

	// Resolve components against the active configuration. Without one the
	// engine runs store-only until a reload delivers a valid document.
	active := cfg
	if active == nil {
		active = &config.ServerConfig{}
	}
	components, err := BuildComponents(active, settings, app.Registry, app.Sugar)
	if err != nil {
		return nil, err
	}
	app.Components = components

	// Publish the configuration and keep the analyzer in step with reloads
	app.Provider = config.NewProvider(cfg)
	app.Provider.OnChange(func(_, current *config.ServerConfig) {
		if current == nil {
			return
		}
		components.Analyzer.Reload(current)
		metrics.DetectionPoints.Set(float64(len(current.DetectionPoints)))
	})

	if cfg != nil {
		metrics.DetectionPoints.Set(float64(len(cfg.DetectionPoints)))
		app.Sugar.Infow("Configuration loaded",
			"document", settings.DocumentPath(),
			"detection_points", len(cfg.DetectionPoints),
			"correlation_sets", len(cfg.CorrelationSets))
	}

	return app, nil
}

// Start starts the document watcher and the API server.
func (a *App) Start(ctx context.Context) error {
	if a.Settings.Watch.Enabled {
		if err := a.startWatcher(ctx); err != nil {
			return err
		}
	}

	if a.Settings.API.Enabled {
		a.startAPIServer()
	}

	return nil
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown() {
	a.Sugar.Info("Shutting down...")

	// Phase 1 - Stop the configuration watcher
	if a.Watcher != nil {
		a.Sugar.Info("Phase 1: Stopping configuration watcher...")
		if err := a.Watcher.Stop(); err != nil {
			a.Sugar.Errorw("Failed to stop configuration watcher", "error", err)
		}
	}

	// Phase 2 - Stop the API server
	if a.APIServer != nil {
		a.Sugar.Info("Phase 2: Stopping API server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.APIServer.Stop(ctx); err != nil {
			a.Sugar.Errorw("Failed to stop API server", "error", err)
		}
	}

	// Phase 3 - Wait for service goroutines
	a.Sugar.Info("Phase 3: Waiting for service goroutines to complete...")
	done := make(chan struct{})
	go func() {
		a.serviceWg.Wait()
		close(done)
	}()
	select {
	case <-done:
		a.Sugar.Info("All service goroutines stopped successfully")
	case <-time.After(10 * time.Second):
		a.Sugar.Warn("Service goroutine shutdown timed out")
	}

	// Phase 4 - Close storage connections
	a.Sugar.Info("Phase 4: Closing storage connections...")
	if a.Registry != nil {
		if err := a.Registry.Close(); err != nil {
			a.Sugar.Errorw("Failed to close storage connections", "error", err)
		}
	}

	a.Sugar.Info("Shutdown complete")
	a.Logger.Sync()
}

// loadDocument reads and validates the configuration document named by the
// settings.
func (a *App) loadDocument() (*config.ServerConfig, error) {
	cfg, err := a.Reader.ReadFile(a.Settings.DocumentPath())
	if err != nil {
		metrics.ParseFailures.WithLabelValues(config.FailureKind(err)).Inc()
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		metrics.ParseFailures.WithLabelValues(config.FailureKind(err)).Inc()
		return nil, err
	}
	return cfg, nil
}

// reloadDocument re-reads the document after a watcher change. A failing
// parse keeps the last good configuration active.
func (a *App) reloadDocument() error {
	cfg, err := a.loadDocument()
	if err != nil {
		metrics.ConfigReloads.WithLabelValues("failure").Inc()
		a.Sugar.Warnw("Keeping last good configuration",
			"kind", config.FailureKind(err),
			"error", err)
		return err
	}

	a.Provider.Swap(cfg)
	metrics.ConfigReloads.WithLabelValues("success").Inc()
	a.Sugar.Infow("Configuration reloaded",
		"detection_points", len(cfg.DetectionPoints))
	return nil
}

// startService runs fn on the service wait group with panic recovery.
func (a *App) startService(name string, fn func()) {
	a.serviceWg.Add(1)
	go func() {
		defer a.serviceWg.Done()
		defer func() {
			if r := recover(); r != nil {
				a.Sugar.Errorw(fmt.Sprintf("%s panicked", name), "panic", r)
			}
		}()
		fn()
	}()
}

// startWatcher launches the configuration document watcher.
func (a *App) startWatcher(ctx context.Context) error {
	watcher, err := config.NewWatcher(a.Settings.DocumentPath(), a.Settings.Watch.Debounce, a.Sugar)
	if err != nil {
		return fmt.Errorf("failed to create configuration watcher: %w", err)
	}
	a.Watcher = watcher

	a.startService("Configuration watcher", func() {
		if err := watcher.Watch(ctx, a.reloadDocument); err != nil {
			a.Sugar.Errorf("Configuration watcher error: %v", err)
		}
	})

	return nil
}

// startAPIServer creates and starts the introspection API server.
func (a *App) startAPIServer() {
	a.APIServer = api.NewServer(a.Provider, a.Sugar)

	a.startService("API server", func() {
		addr := a.Settings.APIAddr()
		a.Sugar.Infof("API server started on %s", addr)

		if err := a.APIServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Sugar.Errorf("API server error: %v", err)
		}
	})
}
