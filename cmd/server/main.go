package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/garnizeh/skillswap/api"
	dbfs "github.com/garnizeh/skillswap/db"
	"github.com/garnizeh/skillswap/internal/config"
	"github.com/garnizeh/skillswap/internal/db"
	"github.com/garnizeh/skillswap/internal/jobs"
	"github.com/garnizeh/skillswap/internal/rating"
	"github.com/garnizeh/skillswap/internal/repository/sqlite"
	"github.com/spf13/pflag"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	flagSet := pflag.NewFlagSet("skillswap", pflag.ExitOnError)
	configPath := flagSet.String("config", "", "Path to config YAML file")
	addr := flagSet.String("addr", "", "Listen address (overrides config)")
	dbPath := flagSet.String("db", "", "SQLite database path (overrides config)")
	_ = flagSet.Parse(os.Args[1:])

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	api.SetLogger(logger)

	logger.Info("starting skillswap server", "version", version, "build_time", buildTime)

	ctx := context.Background()

	// Open database connection
	conn, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		logger.Error("failed to open DB", "err", err)
		os.Exit(1)
	}
	if err := db.Migrate(ctx, conn, dbfs.Migrations); err != nil {
		logger.Error("failed to migrate DB", "err", err)
		os.Exit(1)
	}

	handler, err := api.SetupRoutes(cfg, version, buildTime, conn)
	if err != nil {
		logger.Error("failed to set up routes", "err", err)
		os.Exit(1)
	}

	// Background jobs
	repo := sqlite.New(conn, logger)
	pool := jobs.NewWorkerPool(jobs.NewRepository(conn), map[string]jobs.Handler{
		rating.JobType: rating.Handler(repo, logger),
	}, logger.With("component", "jobs"), cfg.Workers.Count)
	workerCtx, stopWorkers := context.WithCancel(ctx)
	pool.Start(workerCtx)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed to start", "err", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
	}

	stopWorkers()
	pool.Stop()

	// Close database connection
	if err := conn.Close(); err != nil {
		logger.Error("error closing DB", "err", err)
	}

	logger.Info("server exited")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
