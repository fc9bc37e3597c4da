package services

import (
	"context"
	"testing"
	"time"

	"duetrack/internal/core"
	"duetrack/internal/storage/memory"
)

func reminderBill() core.Bill {
	b := monthlyBill("Internet", 3999, d(2024, 2, 15))
	b.ID = "net"
	return b
}

func at(day, hour int) time.Time {
	return time.Date(2024, 2, day, hour, 0, 0, 0, time.UTC)
}

func TestReminderSchedule(t *testing.T) {
	got := ReminderSchedule(reminderBill(), at(10, 8), DefaultReminderSettings())

	want := []struct {
		id      string
		trigger time.Time
	}{
		{"net-reminder-7", time.Date(2024, 2, 8, 9, 0, 0, 0, time.UTC)},
		{"net-reminder-3", time.Date(2024, 2, 12, 9, 0, 0, 0, time.UTC)},
		{"net-reminder-1", time.Date(2024, 2, 14, 9, 0, 0, 0, time.UTC)},
		{"net-overdue", time.Date(2024, 2, 16, 9, 0, 0, 0, time.UTC)},
	}
	if len(got) != len(want) {
		t.Fatalf("ReminderSchedule() returned %d reminders, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].ID != w.id || !got[i].TriggerAt.Equal(w.trigger) {
			t.Errorf("reminder %d = %s at %v, want %s at %v", i, got[i].ID, got[i].TriggerAt, w.id, w.trigger)
		}
		if !got[i].DueDate.Equal(d(2024, 2, 15)) {
			t.Errorf("reminder %d due %v", i, got[i].DueDate)
		}
	}
	if got[1].Title != "Bill reminder: Internet" || got[1].Body != "39.99 is due in 3 days" {
		t.Errorf("reminder text = %q / %q", got[1].Title, got[1].Body)
	}
	if got[2].Body != "39.99 is due in 1 day" {
		t.Errorf("singular body = %q", got[2].Body)
	}
	if got[3].Kind != core.ReminderOverdue || got[3].Title != "Overdue bill: Internet" {
		t.Errorf("overdue reminder = %+v", got[3])
	}

	inactive := reminderBill()
	inactive.IsActive = false
	if r := ReminderSchedule(inactive, at(10, 8), DefaultReminderSettings()); r != nil {
		t.Errorf("inactive bill has reminders: %+v", r)
	}
}

func TestPlanAndDueReminders(t *testing.T) {
	s := DefaultReminderSettings()

	planned := PlanReminders(reminderBill(), at(10, 8), s)
	if len(planned) != 3 || planned[0].ID != "net-reminder-3" {
		t.Errorf("PlanReminders() = %+v", planned)
	}

	tests := []struct {
		name string
		now  time.Time
		want []string
	}{
		{"within grace", at(12, 10), []string{"net-reminder-3"}},
		{"exactly on trigger", at(12, 9), []string{"net-reminder-3"}},
		{"past grace", at(12, 16), nil},
		{"before trigger", at(12, 8), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DueReminders(reminderBill(), tt.now, s)
			if len(got) != len(tt.want) {
				t.Fatalf("DueReminders() = %+v, want %v", got, tt.want)
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("DueReminders()[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func newReminderProcessor(t *testing.T, pub ReminderPublisher) *ReminderProcessor {
	t.Helper()
	store := memory.New()
	if err := store.CreateBill(context.Background(), reminderBill()); err != nil {
		t.Fatal(err)
	}
	p := NewReminderProcessor(store, store, pub, DefaultReminderSettings(), time.UTC, testLogger())
	p.now = fixedClock(at(12, 10))
	return p
}

func TestReminderProcessor_ProcessDue(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	p := newReminderProcessor(t, rec)

	sent, err := p.ProcessDue(ctx)
	if err != nil || sent != 1 {
		t.Fatalf("ProcessDue() = %d, %v; want 1", sent, err)
	}
	if len(rec.reminders) != 1 || rec.reminders[0].ReminderID != "net-reminder-3" || rec.reminders[0].DueDate != "2024-02-15" {
		t.Errorf("published %+v", rec.reminders)
	}

	sent, err = p.ProcessDue(ctx)
	if err != nil || sent != 0 {
		t.Errorf("second ProcessDue() = %d, %v; want nothing resent", sent, err)
	}
}

func TestReminderProcessor_RetriesFailedPublish(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{fail: true}
	p := newReminderProcessor(t, rec)

	if sent, err := p.ProcessDue(ctx); err != nil || sent != 0 {
		t.Fatalf("ProcessDue() with failing broker = %d, %v", sent, err)
	}
	rec.fail = false
	if sent, _ := p.ProcessDue(ctx); sent != 1 {
		t.Errorf("retry sent %d reminders, want 1", sent)
	}
}

func TestReminderProcessor_WithoutPublisher(t *testing.T) {
	p := newReminderProcessor(t, nil)
	if sent, err := p.ProcessDue(context.Background()); err != nil || sent != 1 {
		t.Errorf("ProcessDue() = %d, %v; want the reminder logged", sent, err)
	}
}

func TestReminderProcessor_Upcoming(t *testing.T) {
	p := newReminderProcessor(t, nil)
	got, err := p.Upcoming(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "net-reminder-1" || got[1].ID != "net-overdue" {
		t.Errorf("Upcoming() = %+v", got)
	}
}
