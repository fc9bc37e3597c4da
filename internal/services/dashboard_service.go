package services

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"duetrack/internal/calendar"
	"duetrack/internal/core"
	"duetrack/internal/log"
	"duetrack/internal/recurrence"
	"duetrack/internal/storage"

	"golang.org/x/sync/errgroup"
)

// BillView is a bill with its status resolved for today.
type BillView struct {
	core.Bill
	BillStatus
}

// DashboardService answers the read-side queries: statuses, month
// summaries, calendar views and widget snapshots.
type DashboardService struct {
	store    storage.BillStore
	statuses *StatusCache
	loc      *time.Location
	now      func() time.Time
	logger   *log.Logger
}

func NewDashboardService(store storage.BillStore, statuses *StatusCache, loc *time.Location, logger *log.Logger) *DashboardService {
	if loc == nil {
		loc = time.Local
	}
	return &DashboardService{
		store:    store,
		statuses: statuses,
		loc:      loc,
		now:      time.Now,
		logger:   logger.WithComponent(log.ComponentDashboard),
	}
}

func (d *DashboardService) Today() time.Time {
	return recurrence.StartOfDay(d.now().In(d.loc))
}

func (d *DashboardService) activeBills(ctx context.Context) ([]core.Bill, error) {
	bills, err := d.store.ListBills(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return bills, nil
}

// BillsWithStatus resolves every bill's status concurrently; results keep
// the store's order.
func (d *DashboardService) BillsWithStatus(ctx context.Context, includeInactive bool) ([]BillView, error) {
	bills, err := d.store.ListBills(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	today := d.Today()

	views := make([]BillView, len(bills))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, b := range bills {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			views[i] = BillView{Bill: b, BillStatus: d.statuses.Resolve(b, today)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

func (d *DashboardService) Bill(ctx context.Context, id string) (BillView, error) {
	b, err := d.store.GetBill(ctx, id)
	if err != nil {
		return BillView{}, fmt.Errorf("get bill: %w", err)
	}
	return BillView{Bill: b, BillStatus: d.statuses.Resolve(b, d.Today())}, nil
}

// Summary builds the month summary for year and month (1-12).
func (d *DashboardService) Summary(ctx context.Context, year, month int) (core.MonthSummary, error) {
	if month < 1 || month > 12 {
		return core.MonthSummary{}, fmt.Errorf("invalid month: %d", month)
	}
	bills, err := d.activeBills(ctx)
	if err != nil {
		return core.MonthSummary{}, err
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, d.loc)
	summary := recurrence.Summarize(bills, start, d.Today())

	d.logger.DebugContext(ctx, "Month summary computed",
		log.FieldYear, year,
		log.FieldMonth, month,
		"bills", len(bills),
		"expected_cents", summary.ExpectedOutflow.Cents)
	return summary, nil
}

func (d *DashboardService) OccurrencesOn(ctx context.Context, day time.Time) ([]core.DueItem, error) {
	bills, err := d.activeBills(ctx)
	if err != nil {
		return nil, err
	}
	return recurrence.OccurrencesOn(bills, recurrence.StartOfDay(day.In(d.loc))), nil
}

func (d *DashboardService) DueWithin(ctx context.Context, days int) ([]core.DueItem, error) {
	bills, err := d.activeBills(ctx)
	if err != nil {
		return nil, err
	}
	return recurrence.DueWithin(bills, d.Today(), days), nil
}

func (d *DashboardService) ByStatus(ctx context.Context, status core.Status) ([]core.Bill, error) {
	bills, err := d.activeBills(ctx)
	if err != nil {
		return nil, err
	}
	return recurrence.ByStatus(bills, status, d.Today()), nil
}

func (d *DashboardService) Widget(ctx context.Context) (WidgetData, error) {
	bills, err := d.activeBills(ctx)
	if err != nil {
		return WidgetData{}, err
	}
	return BuildWidget(bills, d.Today(), d.statuses), nil
}

// CalendarFeed renders the iCalendar subscription feed.
func (d *DashboardService) CalendarFeed(ctx context.Context) ([]byte, error) {
	bills, err := d.activeBills(ctx)
	if err != nil {
		return nil, err
	}
	feed, err := calendar.Feed(bills, d.Today(), d.now())
	if err != nil {
		return nil, fmt.Errorf("render calendar: %w", err)
	}
	return feed, nil
}
