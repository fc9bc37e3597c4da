package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"duetrack/internal/core"
	"duetrack/internal/storage/memory"
)

// seedDashboard stores three bills seen on 2024-01-20: rent is paid, the
// gym membership is overdue and the phone bill is due in five days.
func seedDashboard(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	rent := monthlyBill("Rent", 5000, d(2024, 1, 15))
	rent.ID, rent.Category = "rent", core.Rent
	gym := core.Bill{
		ID: "gym", Name: "Gym", Amount: core.Money{Cents: 1000}, Category: core.Subscriptions,
		Frequency: core.Weekly, StartDate: d(2024, 1, 1), IsActive: true,
	}
	phone := monthlyBill("Phone", 3000, d(2024, 1, 25))
	phone.ID = "phone"
	paused := monthlyBill("Paused", 9900, d(2024, 1, 1))
	paused.ID, paused.IsActive = "paused", false

	for _, b := range []core.Bill{rent, gym, phone, paused} {
		if err := store.CreateBill(ctx, b); err != nil {
			t.Fatal(err)
		}
	}
	err := store.AddPayment(ctx, core.Payment{
		ID: "p1", BillID: "rent", Amount: core.Money{Cents: 5000}, DatePaid: d(2024, 1, 15), IsPaid: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func newDashboard(t *testing.T) *DashboardService {
	t.Helper()
	svc := NewDashboardService(seedDashboard(t), NewStatusCache(100, time.Minute), time.UTC, testLogger())
	svc.now = fixedClock(time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC))
	return svc
}

func TestDashboard_BillsWithStatus(t *testing.T) {
	svc := newDashboard(t)
	views, err := svc.BillsWithStatus(context.Background(), false)
	if err != nil {
		t.Fatalf("BillsWithStatus() error = %v", err)
	}

	want := []struct {
		id     string
		status core.Status
		due    time.Time
		days   int
	}{
		{"gym", core.StatusOverdue, d(2024, 1, 1), -19},
		{"phone", core.StatusUpcoming, d(2024, 1, 25), 5},
		{"rent", core.StatusPaid, d(2024, 2, 15), 26},
	}
	if len(views) != len(want) {
		t.Fatalf("got %d views, want %d", len(views), len(want))
	}
	for i, w := range want {
		v := views[i]
		if v.ID != w.id || v.Status != w.status || !v.NextDueDate.Equal(w.due) || v.DaysUntilDue != w.days {
			t.Errorf("views[%d] = %s %s %s %d, want %+v", i, v.ID, v.Status, v.NextDueDate.Format(time.DateOnly), v.DaysUntilDue, w)
		}
	}

	all, _ := svc.BillsWithStatus(context.Background(), true)
	if len(all) != 4 {
		t.Errorf("includeInactive returned %d bills, want 4", len(all))
	}
}

func TestDashboard_Summary(t *testing.T) {
	svc := newDashboard(t)
	s, err := svc.Summary(context.Background(), 2024, 1)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	// Gym occurs five times in January 2024.
	if s.ExpectedOutflow.Cents != 13000 {
		t.Errorf("ExpectedOutflow = %s, want 130.00", s.ExpectedOutflow)
	}
	if s.PaidTotal.Cents != 5000 {
		t.Errorf("PaidTotal = %s, want 50.00", s.PaidTotal)
	}
	if s.OverdueAmount.Cents != 1000 {
		t.Errorf("OverdueAmount = %s, want 10.00", s.OverdueAmount)
	}
	if s.StatusCounts[core.StatusPaid] != 1 || s.StatusCounts[core.StatusOverdue] != 1 || s.StatusCounts[core.StatusUpcoming] != 1 {
		t.Errorf("StatusCounts = %v", s.StatusCounts)
	}

	if _, err := svc.Summary(context.Background(), 2024, 13); err == nil {
		t.Error("Summary() accepted month 13")
	}
}

func TestDashboard_CalendarQueries(t *testing.T) {
	ctx := context.Background()
	svc := newDashboard(t)

	on, err := svc.OccurrencesOn(ctx, d(2024, 1, 25))
	if err != nil || len(on) != 1 || on[0].BillID != "phone" {
		t.Errorf("OccurrencesOn() = %+v, %v", on, err)
	}

	week, err := svc.DueWithin(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(week) != 2 || week[0].BillID != "gym" || !week[0].Date.Equal(d(2024, 1, 22)) || week[1].BillID != "phone" {
		t.Errorf("DueWithin(7) = %+v", week)
	}

	overdue, err := svc.ByStatus(ctx, core.StatusOverdue)
	if err != nil || len(overdue) != 1 || overdue[0].ID != "gym" {
		t.Errorf("ByStatus(overdue) = %+v, %v", overdue, err)
	}
}

func TestDashboard_Widget(t *testing.T) {
	w, err := newDashboard(t).Widget(context.Background())
	if err != nil {
		t.Fatalf("Widget() error = %v", err)
	}
	if w.NextBill == nil || w.NextBill.BillID != "gym" || !w.NextBill.IsOverdue || w.NextBill.DueDate != "2024-01-01" {
		t.Errorf("NextBill = %+v", w.NextBill)
	}
	if len(w.ThisWeek) != 2 {
		t.Fatalf("ThisWeek = %+v", w.ThisWeek)
	}
	if got := w.ThisWeek[0]; got.BillID != "gym" || got.DueDate != "2024-01-22" || got.Amount != "10.00" || got.IsPaid {
		t.Errorf("ThisWeek[0] = %+v", got)
	}
	if got := w.ThisWeek[1]; got.BillID != "phone" || got.IsOverdue || got.Category != "Utilities" {
		t.Errorf("ThisWeek[1] = %+v", got)
	}
}

func TestBuildWidget_Empty(t *testing.T) {
	w := BuildWidget(nil, d(2024, 1, 20), NewStatusCache(10, time.Minute))
	if w.NextBill != nil || w.ThisWeek == nil || len(w.ThisWeek) != 0 {
		t.Errorf("BuildWidget(nil) = %+v", w)
	}
}

func TestBuildWidget_CapsWeek(t *testing.T) {
	var bills []core.Bill
	for i, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		b := monthlyBill(name, 100, d(2024, 1, 21+i%3))
		b.ID = name
		bills = append(bills, b)
	}
	w := BuildWidget(bills, d(2024, 1, 20), NewStatusCache(10, time.Minute))
	if len(w.ThisWeek) != WeekSnapshotLimit {
		t.Errorf("ThisWeek has %d entries, want %d", len(w.ThisWeek), WeekSnapshotLimit)
	}
}

func TestDashboard_CalendarFeed(t *testing.T) {
	feed, err := newDashboard(t).CalendarFeed(context.Background())
	if err != nil {
		t.Fatalf("CalendarFeed() error = %v", err)
	}
	out := string(feed)
	for _, want := range []string{"BEGIN:VCALENDAR", "SUMMARY:Rent", "SUMMARY:Phone"} {
		if !strings.Contains(out, want) {
			t.Errorf("feed missing %q", want)
		}
	}
	if strings.Contains(out, "SUMMARY:Paused") {
		t.Error("feed contains an inactive bill")
	}
}

func TestStatusCache_KeyedOnVersionAndDay(t *testing.T) {
	c := NewStatusCache(10, time.Minute)
	b := monthlyBill("Rent", 5000, d(2024, 1, 15))
	b.ID, b.Version = "rent", 1

	first := c.Resolve(b, d(2024, 1, 20))
	c.Resolve(b, d(2024, 1, 20))
	if hits, misses := c.Stats(); hits != 1 || misses != 1 {
		t.Errorf("Stats() = %d hits, %d misses; want 1, 1", hits, misses)
	}
	if first.Status != core.StatusOverdue {
		t.Errorf("Resolve() = %+v, want overdue", first)
	}

	b.Version = 2
	b.Payments = []core.Payment{{ID: "p", BillID: "rent", Amount: b.Amount, DatePaid: d(2024, 1, 16), IsPaid: true}}
	if got := c.Resolve(b, d(2024, 1, 20)); got.Status != core.StatusPaid {
		t.Errorf("Resolve() after payment = %+v, want paid", got)
	}
	if _, misses := c.Stats(); misses != 2 {
		t.Errorf("new version should miss, misses = %d", misses)
	}
}
