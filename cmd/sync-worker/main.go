package main

import (
	"context"
	"errors"
	"os"
	"time"

	"duetrack/internal/amqp"
	"duetrack/internal/cli"
	"duetrack/internal/log"
	"duetrack/internal/sheets"
	gsheet "duetrack/internal/sheets/google"
	"duetrack/internal/sheets/memory"
	"duetrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting sync-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the sync worker")
		os.Exit(1)
	}
	if cfg.DataBackend == "memory" {
		logger.Warn("Memory backend is private to this process; the worker will only see its own data")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	store, closeStore := cli.InitStore(ctx, logger, cfg)
	defer closeStore()

	var mirror sheets.BillMirror
	if cfg.GoogleSpreadsheetID != "" {
		if err := cfg.ValidateSheets(); err != nil {
			logger.Error("Sheets configuration validation failed", log.FieldError, err)
			os.Exit(1)
		}
		client, err := gsheet.New(ctx, gsheet.ConfigFrom(cfg))
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		if err := client.EnsureHeaders(ctx); err != nil {
			logger.Error("Failed to prepare sheet headers", log.FieldError, err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		mirror = memory.New()
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, mirroring into memory only")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPReminderQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(store, mirror, cfg.SyncConcurrency, logger)

	// The periodic resync also runs once at startup to catch events missed
	// while the worker was down.
	go syncWorker.RunPeriodicResync(ctx, cfg.SyncInterval)
	go func() {
		err := amqpClient.ConsumeBillEventsWithRetry(ctx, cfg.SyncBatchSize, syncWorker.HandleBillEvent)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Sync worker stopped")
}
