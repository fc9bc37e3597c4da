package recurrence

import (
	"time"

	"duetrack/internal/core"
)

// anchorOf returns the first occurrence of a bill. Bills without a start
// date start today.
func anchorOf(bill core.Bill, today time.Time) time.Time {
	if bill.StartDate.IsZero() {
		return today
	}
	return bill.StartDate
}

func ruleOf(bill core.Bill, anchor time.Time) core.Rule {
	return withAnchor(bill.Rule(), anchor)
}

// NextDueDate returns the earliest unpaid occurrence of the bill, which may
// lie before today. If every occurrence within the walk bound is paid it
// returns the last visited occurrence, or today when that is in the past.
func NextDueDate(bill core.Bill, today time.Time) time.Time {
	anchor := anchorOf(bill, today)
	rule := ruleOf(bill, anchor)
	limit := walkLimit(anchor, rule, today)

	candidate := anchor
	for i := 0; i < limit; i++ {
		if !IsOccurrencePaid(candidate, rule, bill.Payments) {
			return candidate
		}
		next := Next(candidate, rule)
		if !next.After(candidate) {
			break
		}
		candidate = next
	}
	if candidate.Before(today) {
		return today
	}
	return candidate
}

// ResolveStatus classifies the bill relative to today:
//
//   - overdue when any occurrence before today is unpaid;
//   - paid when the current period (latest occurrence on or before today)
//     is covered;
//   - upcoming when the first unpaid occurrence from the current period
//     on is 0 to 7 days away;
//   - future otherwise.
func ResolveStatus(bill core.Bill, today time.Time) core.Status {
	anchor := anchorOf(bill, today)
	rule := ruleOf(bill, anchor)
	limit := walkLimit(anchor, rule, today)

	current := anchor
	occ := anchor
	for i := 0; i < limit && occ.Before(today); i++ {
		if !IsOccurrencePaid(occ, rule, bill.Payments) {
			return core.StatusOverdue
		}
		current = occ
		next := Next(occ, rule)
		if !next.After(occ) {
			break
		}
		occ = next
	}
	if occ.Equal(today) {
		current = occ
	}

	if IsOccurrencePaid(current, rule, bill.Payments) {
		return core.StatusPaid
	}

	days := DaysBetween(today, firstUnpaidFrom(current, rule, bill.Payments))
	if days >= 0 && days <= UpcomingWindowDays {
		return core.StatusUpcoming
	}
	return core.StatusFuture
}

func firstUnpaidFrom(start time.Time, rule core.Rule, payments []core.Payment) time.Time {
	occ := start
	for i := 0; i < MaxWalk; i++ {
		if !IsOccurrencePaid(occ, rule, payments) {
			return occ
		}
		next := Next(occ, rule)
		if !next.After(occ) {
			break
		}
		occ = next
	}
	return occ
}

// DaysUntilDue returns the calendar days from today to the bill's next due
// date; negative values mean the bill is overdue by that many days.
func DaysUntilDue(bill core.Bill, today time.Time) int {
	return DaysBetween(today, NextDueDate(bill, today))
}
