package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"duetrack/internal/amqp"
	"duetrack/internal/core"
	"duetrack/internal/log"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testLogger() *log.Logger {
	return log.New(log.Config{Output: &bytes.Buffer{}})
}

// recorder captures published messages and can be told to fail.
type recorder struct {
	mu        sync.Mutex
	events    []*amqp.BillEventMessage
	reminders []*amqp.ReminderMessage
	fail      bool
}

func (r *recorder) PublishBillEvent(_ context.Context, msg *amqp.BillEventMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("broker unavailable")
	}
	r.events = append(r.events, msg)
	return nil
}

func (r *recorder) PublishReminder(_ context.Context, msg *amqp.ReminderMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("broker unavailable")
	}
	r.reminders = append(r.reminders, msg)
	return nil
}

func (r *recorder) types() []amqp.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]amqp.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func monthlyBill(name string, cents int64, start time.Time) core.Bill {
	return core.Bill{
		Name:      name,
		Amount:    core.Money{Cents: cents},
		Category:  core.Utilities,
		Frequency: core.Monthly,
		StartDate: start,
		IsActive:  true,
	}
}
