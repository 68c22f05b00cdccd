package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cosconsole/internal/config"
	"github.com/cosconsole/internal/metrics"
	"github.com/cosconsole/internal/service"
	"github.com/cosconsole/internal/storage"
	"github.com/cosconsole/internal/store"
)

type App struct {
	config   *config.Config
	logger   *slog.Logger
	settings *store.SettingsStore
	console  *service.Console
	library  *storage.Library
	closers  []func()
}

func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, closeLog := newLogger(cfg)
	metrics.Register()

	settings, closeStore, err := store.Open(ctx, store.Source{
		File:        cfg.SettingsFile,
		SQLitePath:  cfg.SQLitePath,
		PostgresURL: cfg.DatabaseURL,
	})
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("open settings store: %w", err)
	}

	app := newApp(cfg, logger, settings, storage.NewCOS)
	app.closers = append(app.closers, closeLog, closeStore)

	if !app.console.Status(ctx).IsInitialized {
		logger.Warn("console is not initialized; complete setup via POST /api/setup/initialize")
	}
	return app, nil
}

func newApp(cfg *config.Config, logger *slog.Logger, settings *store.SettingsStore, providers storage.Factory) *App {
	return &App{
		config:   cfg,
		logger:   logger,
		settings: settings,
		console:  service.New(settings, cfg.TokenTTL),
		library:  storage.NewLibrary(settings, providers),
	}
}

func (app *App) Start(ctx context.Context) error {
	// Create an errgroup derived from the parent context
	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", app.config.Port),
		Handler:           app.routes(),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		ErrorLog:          slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
	}

	g.Go(func() error {
		app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env, "settings", app.settings.Location())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("server failed", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done() // Wait for OS signal or the listener to fail

		app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	app.logger.Info("stopped server")
	return nil
}

// newLogger builds the process logger: text in development, JSON otherwise,
// optionally teed into a rotated file.
func newLogger(cfg *config.Config) (*slog.Logger, func()) {
	logLevel := slog.LevelInfo

	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	closeFn := func() {}
	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
		closeFn = func() { _ = rotator.Close() }
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	var h slog.Handler = slog.NewTextHandler(out, opts)
	if !cfg.IsDevelopment() {
		h = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger, closeFn
}
