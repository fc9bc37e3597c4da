package recurrence

import (
	"sort"
	"time"

	"duetrack/internal/core"
)

func active(bills []core.Bill) []core.Bill {
	out := make([]core.Bill, 0, len(bills))
	for _, b := range bills {
		if b.IsActive {
			out = append(out, b)
		}
	}
	return out
}

// MonthOccurrences returns the bill's occurrences within month.
func MonthOccurrences(bill core.Bill, month time.Time) []time.Time {
	anchor := anchorOf(bill, month)
	return InMonth(anchor, ruleOf(bill, anchor), month)
}

// MonthlyOutflow sums amount × occurrences-in-month over active bills.
func MonthlyOutflow(bills []core.Bill, month time.Time) core.Money {
	var total core.Money
	for _, b := range active(bills) {
		total = total.Add(b.Amount.Times(len(MonthOccurrences(b, month))))
	}
	return total
}

// OutflowByCategory splits MonthlyOutflow per category, largest first.
func OutflowByCategory(bills []core.Bill, month time.Time) []core.CategoryAmount {
	sums := make(map[core.Category]int64)
	for _, b := range active(bills) {
		if n := len(MonthOccurrences(b, month)); n > 0 {
			sums[b.Category] += b.Amount.Times(n).Cents
		}
	}
	out := make([]core.CategoryAmount, 0, len(sums))
	for name, cents := range sums {
		out = append(out, core.CategoryAmount{Name: name, Amount: core.Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents == out[j].Amount.Cents {
			return out[i].Name < out[j].Name
		}
		return out[i].Amount.Cents > out[j].Amount.Cents
	})
	return out
}

// MonthlyPaid sums the paid payments dated within month, across all bills.
func MonthlyPaid(bills []core.Bill, month time.Time) core.Money {
	start, end := StartOfMonth(month), EndOfMonth(month)
	var total core.Money
	for _, b := range bills {
		for _, p := range b.Payments {
			if p.IsPaid && !p.DatePaid.Before(start) && !p.DatePaid.After(end) {
				total = total.Add(p.Amount)
			}
		}
	}
	return total
}

func dueItem(b core.Bill, date time.Time) core.DueItem {
	anchor := anchorOf(b, date)
	return core.DueItem{
		BillID:   b.ID,
		Name:     b.Name,
		Amount:   b.Amount,
		Category: b.Category,
		Date:     date,
		IsPaid:   IsOccurrencePaid(date, ruleOf(b, anchor), b.Payments),
	}
}

// OccurrencesOn returns the active bills that have an occurrence on day.
func OccurrencesOn(bills []core.Bill, day time.Time) []core.DueItem {
	var out []core.DueItem
	for _, b := range active(bills) {
		for _, occ := range MonthOccurrences(b, day) {
			if SameDay(occ, day) {
				out = append(out, dueItem(b, occ))
				break
			}
		}
	}
	return out
}

// DueWithin returns, per active bill, the first occurrence whose day lies
// in [today, today+days], sorted by date then name. Month lists are
// searched from today's month through the month containing the window end.
func DueWithin(bills []core.Bill, today time.Time, days int) []core.DueItem {
	if days < 0 {
		return nil
	}
	from := StartOfDay(today)
	to := from.AddDate(0, 0, days)
	months := monthsBetween(from, to) + 1

	var out []core.DueItem
	for _, b := range active(bills) {
	search:
		for i := 0; i < months; i++ {
			month := StartOfMonth(from).AddDate(0, i, 0)
			for _, occ := range MonthOccurrences(b, month) {
				day := StartOfDay(occ)
				if day.Before(from) {
					continue
				}
				if day.After(to) {
					break search
				}
				out = append(out, dueItem(b, occ))
				break search
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].Name < out[j].Name
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// ByStatus returns the active bills whose status on today equals status.
func ByStatus(bills []core.Bill, status core.Status, today time.Time) []core.Bill {
	var out []core.Bill
	for _, b := range active(bills) {
		if ResolveStatus(b, today) == status {
			out = append(out, b)
		}
	}
	return out
}

// OverdueAmount sums the amounts of active overdue bills.
func OverdueAmount(bills []core.Bill, today time.Time) core.Money {
	var total core.Money
	for _, b := range ByStatus(bills, core.StatusOverdue, today) {
		total = total.Add(b.Amount)
	}
	return total
}

// UpcomingWithin returns active, not overdue bills whose next due date is
// 0 to days calendar days after today, ordered by due date.
func UpcomingWithin(bills []core.Bill, today time.Time, days int) []core.Bill {
	type entry struct {
		bill core.Bill
		due  time.Time
	}
	var entries []entry
	for _, b := range active(bills) {
		due := NextDueDate(b, today)
		if d := DaysBetween(today, due); d >= 0 && d <= days {
			entries = append(entries, entry{bill: b, due: due})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].due.Before(entries[j].due) })
	out := make([]core.Bill, len(entries))
	for i, e := range entries {
		out[i] = e.bill
	}
	return out
}

// Summarize builds the dashboard summary of month as seen on today.
func Summarize(bills []core.Bill, month, today time.Time) core.MonthSummary {
	counts := map[core.Status]int{
		core.StatusPaid:     0,
		core.StatusOverdue:  0,
		core.StatusUpcoming: 0,
		core.StatusFuture:   0,
	}
	var overdue core.Money
	for _, b := range active(bills) {
		s := ResolveStatus(b, today)
		counts[s]++
		if s == core.StatusOverdue {
			overdue = overdue.Add(b.Amount)
		}
	}
	return core.MonthSummary{
		Year:            month.Year(),
		Month:           int(month.Month()),
		ExpectedOutflow: MonthlyOutflow(bills, month),
		PaidTotal:       MonthlyPaid(bills, month),
		OverdueAmount:   overdue,
		StatusCounts:    counts,
		ByCategory:      OutflowByCategory(bills, month),
	}
}
