package main

import (
	"time"

	"duetrack/internal/amqp"
	"duetrack/internal/cli"
	"duetrack/internal/log"
	"duetrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentReminders)
	logger.Info("Starting reminder-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	loc := cli.Location(cfg)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	store, closeStore := cli.InitStore(ctx, logger, cfg)
	defer closeStore()

	var publisher services.ReminderPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPReminderQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, reminders will only be logged", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
		}
	}

	settings := cli.ReminderSettings(cfg)
	processor := services.NewReminderProcessor(store, store, publisher, settings, loc, logger)
	logger.Info("Reminder schedule",
		"days_before", settings.DaysBefore,
		"at", time.Date(0, 1, 1, settings.Hour, settings.Minute, 0, 0, loc).Format("15:04"),
		"interval", cfg.ReminderInterval,
		"publisher", publisher != nil)

	go processor.Run(ctx, cfg.ReminderInterval)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Reminder worker stopped")
}
