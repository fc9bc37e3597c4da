package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"duetrack/internal/amqp"
	"duetrack/internal/core"
	"duetrack/internal/log"
	"duetrack/internal/recurrence"
	"duetrack/internal/storage"
)

// ReminderSettings controls when notifications fire.
type ReminderSettings struct {
	DaysBefore []int
	Hour       int
	Minute     int
	// Grace is how late a reminder may still be dispatched.
	Grace time.Duration
}

func DefaultReminderSettings() ReminderSettings {
	return ReminderSettings{
		DaysBefore: []int{1, 3, 7},
		Hour:       9,
		Grace:      6 * time.Hour,
	}
}

// ReminderSchedule lists every reminder of the bill's next due date: one per
// offset in DaysBefore plus the overdue alert the day after. Inactive bills
// have none.
func ReminderSchedule(b core.Bill, now time.Time, s ReminderSettings) []core.Reminder {
	if !b.IsActive {
		return nil
	}
	today := recurrence.StartOfDay(now)
	due := recurrence.NextDueDate(b, today)
	at := func(offset int) time.Time {
		return time.Date(due.Year(), due.Month(), due.Day()+offset, s.Hour, s.Minute, 0, 0, now.Location())
	}

	out := make([]core.Reminder, 0, len(s.DaysBefore)+1)
	for _, days := range s.DaysBefore {
		unit := "days"
		if days == 1 {
			unit = "day"
		}
		out = append(out, core.Reminder{
			ID:         b.ID + "-reminder-" + strconv.Itoa(days),
			BillID:     b.ID,
			Kind:       core.ReminderBefore,
			DaysBefore: days,
			DueDate:    due,
			TriggerAt:  at(-days),
			Title:      "Bill reminder: " + b.Name,
			Body:       fmt.Sprintf("%s is due in %d %s", b.Amount, days, unit),
		})
	}
	out = append(out, core.Reminder{
		ID:        b.ID + "-overdue",
		BillID:    b.ID,
		Kind:      core.ReminderOverdue,
		DueDate:   due,
		TriggerAt: at(1),
		Title:     "Overdue bill: " + b.Name,
		Body:      fmt.Sprintf("%s was due yesterday and is now overdue", b.Amount),
	})

	sort.SliceStable(out, func(i, j int) bool { return out[i].TriggerAt.Before(out[j].TriggerAt) })
	return out
}

// PlanReminders returns the reminders still ahead of now.
func PlanReminders(b core.Bill, now time.Time, s ReminderSettings) []core.Reminder {
	var out []core.Reminder
	for _, r := range ReminderSchedule(b, now, s) {
		if r.TriggerAt.After(now) {
			out = append(out, r)
		}
	}
	return out
}

// DueReminders returns the reminders whose trigger time has passed no more
// than Grace ago.
func DueReminders(b core.Bill, now time.Time, s ReminderSettings) []core.Reminder {
	var out []core.Reminder
	for _, r := range ReminderSchedule(b, now, s) {
		if !r.TriggerAt.After(now) && now.Sub(r.TriggerAt) <= s.Grace {
			out = append(out, r)
		}
	}
	return out
}

// ReminderProcessor dispatches due reminders and records them so restarts
// never send one twice.
type ReminderProcessor struct {
	store     storage.BillStore
	sent      storage.ReminderLog
	publisher ReminderPublisher
	settings  ReminderSettings
	loc       *time.Location
	now       func() time.Time
	logger    *log.Logger
}

// NewReminderProcessor wires the processor. Without a publisher reminders
// are only logged.
func NewReminderProcessor(store storage.BillStore, sent storage.ReminderLog, publisher ReminderPublisher, settings ReminderSettings, loc *time.Location, logger *log.Logger) *ReminderProcessor {
	if loc == nil {
		loc = time.Local
	}
	return &ReminderProcessor{
		store:     store,
		sent:      sent,
		publisher: publisher,
		settings:  settings,
		loc:       loc,
		now:       time.Now,
		logger:    logger.WithComponent(log.ComponentReminders),
	}
}

// Upcoming lists the planned reminders of all active bills by trigger time.
func (p *ReminderProcessor) Upcoming(ctx context.Context) ([]core.Reminder, error) {
	bills, err := p.store.ListBills(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	now := p.now().In(p.loc)
	var out []core.Reminder
	for _, b := range bills {
		out = append(out, PlanReminders(b, now, p.settings)...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TriggerAt.Before(out[j].TriggerAt) })
	return out, nil
}

// ProcessDue dispatches every due reminder not yet in the log and returns
// how many were sent. Failures of single reminders are logged and retried
// on the next run while still within the grace window.
func (p *ReminderProcessor) ProcessDue(ctx context.Context) (int, error) {
	bills, err := p.store.ListBills(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("list bills: %w", err)
	}
	now := p.now().In(p.loc)

	sent := 0
	for _, b := range bills {
		for _, r := range DueReminders(b, now, p.settings) {
			if ctx.Err() != nil {
				return sent, ctx.Err()
			}
			ok, err := p.dispatch(ctx, r, now)
			if err != nil {
				p.logger.ErrorContext(ctx, "Failed to dispatch reminder",
					log.FieldReminderID, r.ID,
					log.FieldBillID, r.BillID,
					log.FieldError, err)
			}
			if ok {
				sent++
			}
		}
	}

	if sent > 0 {
		p.logger.InfoContext(ctx, "Reminders dispatched", "sent", sent, "bills", len(bills))
	}
	return sent, nil
}

func (p *ReminderProcessor) dispatch(ctx context.Context, r core.Reminder, now time.Time) (bool, error) {
	key := r.DedupKey()
	already, err := p.sent.WasSent(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check reminder log: %w", err)
	}
	if already {
		return false, nil
	}

	if p.publisher != nil {
		msg := &amqp.ReminderMessage{
			ReminderID: r.ID,
			BillID:     r.BillID,
			Kind:       string(r.Kind),
			Title:      r.Title,
			Body:       r.Body,
			DueDate:    r.DueDate.Format(time.DateOnly),
			TriggerAt:  r.TriggerAt,
			Timestamp:  now,
		}
		if err := p.publisher.PublishReminder(ctx, msg); err != nil {
			return false, fmt.Errorf("publish reminder: %w", err)
		}
	} else {
		p.logger.InfoContext(ctx, r.Title, log.FieldReminderID, r.ID, "body", r.Body)
	}

	if err := p.sent.MarkSent(ctx, r, now); err != nil {
		return true, fmt.Errorf("record reminder: %w", err)
	}
	return true, nil
}

// Run processes due reminders on every tick until ctx is done.
func (p *ReminderProcessor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.ProcessDue(ctx); err != nil && ctx.Err() == nil {
			p.logger.ErrorContext(ctx, "Reminder run failed", log.FieldError, err)
		}
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "Reminder processor stopped")
			return
		case <-ticker.C:
		}
	}
}
