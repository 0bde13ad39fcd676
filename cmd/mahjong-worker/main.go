package main

import (
	"context"
	"errors"
	"os"
	"time"

	"mahjong/internal/amqp"
	"mahjong/internal/backend"
	"mahjong/internal/backup"
	"mahjong/internal/cli"
	gsheet "mahjong/internal/sheets/google"
	"mahjong/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting mahjong-worker", "backend", cfg.DataBackend)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	})

	scheduler, err := worker.NewScheduler()
	if err != nil {
		logger.Error("Failed to create scheduler", "error", err)
		os.Exit(1)
	}

	var syncWorker *worker.SyncWorker
	if cfg.GoogleSpreadsheetID != "" {
		sheetsClient, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

		syncWorker = worker.NewSyncWorker(res.Store, res.Tracker, sheetsClient, cfg.SyncBatchSize)

		// Catch up on anything written while the worker was down.
		if err := syncWorker.StartupSyncCheck(ctx); err != nil {
			logger.Error("Failed startup sync check", "error", err)
		}

		if err := scheduler.Add(ctx, worker.Job{
			Name:     "sheets-sweep",
			Interval: cfg.SyncInterval,
			Run:      syncWorker.ProcessPendingChanges,
		}); err != nil {
			logger.Error("Failed to schedule sync sweep", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	if cfg.BackupS3Bucket != "" {
		s3Client, err := backup.NewS3Client(ctx, cfg.AWSRegion)
		if err != nil {
			logger.Error("Failed to initialize S3 client", "error", err)
			os.Exit(1)
		}
		uploader := backup.NewUploader(s3Client, cfg.BackupS3Bucket, cfg.BackupS3Prefix, res.Store, bcfg.Collection)
		if err := scheduler.Add(ctx, worker.Job{
			Name:     "s3-backup",
			Interval: cfg.BackupInterval,
			Run: func(ctx context.Context) error {
				key, err := uploader.Run(ctx)
				if err == nil {
					logger.Info("Backup uploaded", "bucket", cfg.BackupS3Bucket, "key", key)
				}
				return err
			},
		}); err != nil {
			logger.Error("Failed to schedule backup", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("Backups disabled - no BACKUP_S3_BUCKET provided")
	}

	if syncWorker != nil && amqpClient != nil {
		go func() {
			if err := amqpClient.ConsumeRecordChanges(ctx, syncWorker.HandleChange); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	}

	go func() {
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("Scheduler stopped with error", "error", err)
		}
	}()

	logger.Info("Worker running", "jobs", scheduler.Jobs(), "consuming", syncWorker != nil && amqpClient != nil)
	cli.WaitForShutdown(ctx, done)
}
