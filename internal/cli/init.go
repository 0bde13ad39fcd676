// Package cli provides the initialization shared by cmd/mahjong and
// cmd/mahjong-worker.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"mahjong/internal/config"
	"mahjong/internal/log"
	"mahjong/internal/storage"
)

// level is shared by every logger built here so LOG_LEVEL can be applied
// after the configuration is loaded.
var level = new(slog.LevelVar)

// SetupLogger initializes structured logging at info level and sets it as
// the default logger. LOG_FORMAT=json switches to the JSON handler.
func SetupLogger() *slog.Logger {
	level.Set(slog.LevelInfo)
	logger := log.New(log.Config{
		Level:  level,
		Format: log.ParseFormat(os.Getenv("LOG_FORMAT")),
		Output: os.Stdout,
	})
	log.SetDefault(logger)
	return logger.Logger
}

// Level returns the level currently applied to loggers from SetupLogger.
func Level() slog.Level {
	return level.Level()
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration, validates it and applies
// LOG_LEVEL. It exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.SlogLevel())
	return cfg
}

// InitSQLite opens the SQLite record repository or exits the process.
func InitSQLite(logger *slog.Logger, dbPath, collection string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath, collection)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-finished:
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
