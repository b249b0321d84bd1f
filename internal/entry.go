// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/fairlie/keel/internal/api"
	"github.com/fairlie/keel/internal/jobservice"
	"github.com/fairlie/keel/internal/jobstore"
	"github.com/fairlie/keel/internal/sse"
	"github.com/fairlie/keel/internal/workspace"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		// Structured JSON logger by default.
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("workspaces_root", cfg.Workspaces.Root),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize per-job workspaces.
	ws, err := workspace.NewFS(cfg.Workspaces.Root)
	if err != nil {
		return fmt.Errorf("init workspaces: %w", err)
	}

	// Initialize SQLite job store.
	store, err := jobstore.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init job store: %w", err)
	}
	defer store.Close()

	// Jobs caught mid-flight by the previous shutdown cannot resume;
	// fail them up front so the API reports honest statuses.
	if n, err := store.RecoverInterrupted(); err != nil {
		logger.Warn("job recovery failed", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("failed interrupted jobs from previous run", slog.Int("count", n))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)

	// Pipeline service and its worker pool.
	svc := jobservice.NewService(store, ws, broker, cfg.Scanner.WalkerConfig(), logger)
	runner := jobservice.NewRunner(svc, cfg.Jobs.Workers, cfg.Jobs.QueueSize, logger)

	// Build API router; the broker serves GET /api/events inside the auth group.
	apiRouter := api.NewRouter(svc, runner, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// Workers get their own context so a signal can stop them; gCtx only
	// cancels when a goroutine fails.
	runCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	g, gCtx := errgroup.WithContext(ctx)

	// Start job workers.
	g.Go(func() error {
		return runner.Run(runCtx)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		stopWorkers()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
