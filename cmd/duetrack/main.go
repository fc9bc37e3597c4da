package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"duetrack/internal/amqp"
	"duetrack/internal/cache"
	"duetrack/internal/cli"
	apphttp "duetrack/internal/http"
	"duetrack/internal/log"
	"duetrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	loc := cli.Location(cfg)

	store, closeStore := cli.InitStore(context.Background(), logger, cfg)

	// Without a broker the API still works; the mirror just does not follow.
	var publisher services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPReminderQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without sync", log.FieldError, err)
		} else {
			amqpClient = client
			publisher = client
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	statuses := services.NewStatusCache(cfg.StatusCacheSize, cfg.StatusCacheTTL)
	cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	cacheManager.Register(statuses)
	cacheManager.StartCleanup(cfg.StatusCacheTTL)

	deps := apphttp.Deps{
		Bills:     services.NewBillService(store, publisher, loc, logger),
		Dashboard: services.NewDashboardService(store, statuses, loc, logger),
		Reminders: services.NewReminderProcessor(store, store, nil, cli.ReminderSettings(cfg), loc, logger),
		Ready:     store.Ping,
	}
	srv := apphttp.NewServer(":"+cfg.Port, deps, loc, logger, apphttp.Options{})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if err := closeStore(); err != nil {
			logger.Error("Failed to close store", log.FieldError, err)
		}
	})

	logger.Info("Starting duetrack server",
		"port", cfg.Port, "backend", cfg.DataBackend, "time_zone", loc.String(), "amqp_enabled", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
