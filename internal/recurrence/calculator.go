// Package recurrence computes the occurrences a bill generates, which of
// them are covered by payments, and the bill's status on a given day.
//
// Every function is pure and total. Malformed rules fall back to monthly,
// every walk is bounded, and callers never receive an error: degraded
// inputs produce the best available answer (the last valid occurrence,
// today, or an empty slice).
package recurrence

import (
	"time"

	"duetrack/internal/core"
)

const (
	// MaxWalk bounds how many periods a walk may take past its reference
	// date. Walks that start before the reference first skip the periods
	// in between, so long histories do not consume this budget.
	MaxWalk = 1000

	// MaxPerMonth bounds the occurrences returned for one month.
	MaxPerMonth = 100

	// UpcomingWindowDays is the inclusive horizon of the upcoming status.
	UpcomingWindowDays = 7
)

// Next returns the occurrence that follows date under rule. Callers must
// still guard against a result that did not advance.
func Next(date time.Time, rule core.Rule) time.Time {
	return StepperFor(rule).Skip(date, 1, rule.AnchorDay)
}

// withAnchor fills a missing anchor day from the first occurrence.
func withAnchor(rule core.Rule, anchor time.Time) core.Rule {
	if rule.AnchorDay == 0 {
		rule.AnchorDay = anchor.Day()
	}
	return rule
}

// seek returns the latest occurrence reachable from anchor by whole
// periods that is still strictly before ref, or anchor itself when no
// such skip is possible.
func seek(anchor time.Time, rule core.Rule, ref time.Time) time.Time {
	s := StepperFor(rule)
	n := s.Periods(anchor, ref) - 1
	if n <= 0 {
		return anchor
	}
	return s.Skip(anchor, n, rule.AnchorDay)
}

// walkLimit is the number of steps needed to go from anchor to ref plus
// MaxWalk periods of margin.
func walkLimit(anchor time.Time, rule core.Rule, ref time.Time) int {
	return StepperFor(rule).Periods(anchor, ref) + MaxWalk
}

// FirstOnOrAfter returns the first occurrence of the schedule starting at
// anchor that is not before ref. If anchor is already on or after ref it is
// returned unchanged. When the walk cannot advance or hits MaxWalk, the last
// valid occurrence is returned.
func FirstOnOrAfter(anchor time.Time, rule core.Rule, ref time.Time) time.Time {
	if !anchor.Before(ref) {
		return anchor
	}
	rule = withAnchor(rule, anchor)
	current := seek(anchor, rule, ref)
	for i := 0; i < MaxWalk && current.Before(ref); i++ {
		next := Next(current, rule)
		if !next.After(current) {
			break
		}
		current = next
	}
	return current
}

// InMonth returns the occurrences that fall inside the calendar month of
// month, in order and capped at MaxPerMonth. It is empty when anchor lies
// after the month.
func InMonth(anchor time.Time, rule core.Rule, month time.Time) []time.Time {
	start := StartOfMonth(month)
	return Between(anchor, rule, start, EndOfMonth(month), MaxPerMonth)
}

// Between returns up to limit occurrences within the closed range [from, to].
func Between(anchor time.Time, rule core.Rule, from, to time.Time, limit int) []time.Time {
	if anchor.After(to) || to.Before(from) || limit <= 0 {
		return nil
	}
	rule = withAnchor(rule, anchor)
	current := FirstOnOrAfter(anchor, rule, from)

	var out []time.Time
	for !current.After(to) && len(out) < limit {
		if current.Before(from) {
			// The walk gave up before reaching the range.
			break
		}
		out = append(out, current)
		next := Next(current, rule)
		if !next.After(current) {
			break
		}
		current = next
	}
	return out
}
