package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"mahjong/internal/amqp"
	"mahjong/internal/app"
	"mahjong/internal/auth"
	"mahjong/internal/backend"
	"mahjong/internal/cache"
	"mahjong/internal/cli"
	apphttp "mahjong/internal/http"
	"mahjong/internal/log"
	"mahjong/internal/records"
	"mahjong/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	appLogger := log.New(log.Config{Handler: logger.Handler(), Component: log.ComponentApp})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	// Change events are optional; without them the worker relies on its sweep.
	var publisher services.ChangePublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without change events", "error", err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	store := services.NewRecordService(res.Store, publisher, bcfg.Collection)
	adapter := records.NewAdapter(store, records.WithLogger(appLogger.WithComponent(log.ComponentRecords)))
	tracker := app.NewTracker(adapter, app.WithTrackerLogger(appLogger))

	provider := auth.NewProvider(cfg.AuthToken, cfg.AuthSecret, cfg.AuthAllowAnonymous)
	session, err := provider.EstablishSession(ctx)
	if err != nil {
		logger.Error("Sign-in failed", "error", err)
	}

	caches := cache.NewManager()
	caches.Register(tracker.Memo())

	srv := apphttp.NewServer(tracker, adapter, apphttp.Options{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             appLogger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := tracker.Run(gctx, session)
		if errors.Is(err, app.ErrNoSession) {
			// Keep serving; the dashboard shows the not-loaded state.
			logger.Warn("No session, records will not load")
			return nil
		}
		return err
	})

	g.Go(func() error {
		caches.Run(gctx, 10*time.Minute)
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting mahjong server", "port", cfg.Port, "backend", cfg.DataBackend, "collection", bcfg.Collection)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped gracefully")
}
