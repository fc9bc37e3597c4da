package services

import (
	"context"

	"duetrack/internal/amqp"
)

// EventPublisher announces changes to bills and payments.
type EventPublisher interface {
	PublishBillEvent(ctx context.Context, msg *amqp.BillEventMessage) error
}

// ReminderPublisher delivers due reminders.
type ReminderPublisher interface {
	PublishReminder(ctx context.Context, msg *amqp.ReminderMessage) error
}

var (
	_ EventPublisher    = (*amqp.Client)(nil)
	_ ReminderPublisher = (*amqp.Client)(nil)
)
