package recurrence

import (
	"time"

	"duetrack/internal/core"
)

// Stepper advances occurrences for one kind of period. Each rule resolves
// to exactly one Stepper; day-based rules use pure day arithmetic and
// month-based rules use calendar months with anchor-day clamping.
type Stepper interface {
	// Skip advances date by n periods (n >= 0).
	Skip(date time.Time, n int, anchorDay int) time.Time
	// Periods returns how many whole periods fit between from and to,
	// or zero when to is not after from.
	Periods(from, to time.Time) int
}

// DayStepper steps a fixed number of days.
type DayStepper struct {
	Days int
}

func (s DayStepper) Skip(date time.Time, n int, _ int) time.Time {
	return date.AddDate(0, 0, s.Days*n)
}

func (s DayStepper) Periods(from, to time.Time) int {
	d := DaysBetween(from, to)
	if d <= 0 || s.Days <= 0 {
		return 0
	}
	return d / s.Days
}

// MonthStepper steps a fixed number of calendar months.
type MonthStepper struct {
	Months int
}

func (s MonthStepper) Skip(date time.Time, n int, anchorDay int) time.Time {
	return addMonths(date, s.Months*n, anchorDay)
}

func (s MonthStepper) Periods(from, to time.Time) int {
	m := monthsBetween(from, to)
	if m <= 0 || s.Months <= 0 {
		return 0
	}
	return m / s.Months
}

var monthly = MonthStepper{Months: 1}

// steppers maps the fixed frequencies to their period. Custom rules are
// resolved separately from interval and unit.
var steppers = map[core.Frequency]Stepper{
	core.Weekly:    DayStepper{Days: 7},
	core.Biweekly:  DayStepper{Days: 14},
	core.Monthly:   monthly,
	core.Quarterly: MonthStepper{Months: 3},
	core.Annual:    MonthStepper{Months: 12},
}

// StepperFor resolves the stepper of a rule. A custom rule without a
// positive interval or a known unit, and any unknown frequency, falls back
// to monthly.
func StepperFor(rule core.Rule) Stepper {
	if rule.Frequency == core.Custom {
		if rule.Interval <= 0 {
			return monthly
		}
		switch rule.Unit {
		case core.Days:
			return DayStepper{Days: rule.Interval}
		case core.Weeks:
			return DayStepper{Days: 7 * rule.Interval}
		case core.Months:
			return MonthStepper{Months: rule.Interval}
		case core.Years:
			return MonthStepper{Months: 12 * rule.Interval}
		}
		return monthly
	}
	if s, ok := steppers[rule.Frequency]; ok {
		return s
	}
	return monthly
}
