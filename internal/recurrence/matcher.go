package recurrence

import (
	"time"

	"duetrack/internal/core"
)

// IsOccurrencePaid reports whether a paid payment falls in the closed
// interval [occurrence, Next(occurrence)]. Both ends are inclusive: a
// payment stamped on the following due date still covers this occurrence.
func IsOccurrencePaid(occurrence time.Time, rule core.Rule, payments []core.Payment) bool {
	if len(payments) == 0 {
		return false
	}
	end := Next(occurrence, rule)
	for _, p := range payments {
		if !p.IsPaid {
			continue
		}
		if !p.DatePaid.Before(occurrence) && !p.DatePaid.After(end) {
			return true
		}
	}
	return false
}

// CoveringPayments returns the paid payments that cover occurrence.
func CoveringPayments(occurrence time.Time, rule core.Rule, payments []core.Payment) []core.Payment {
	end := Next(occurrence, rule)
	var out []core.Payment
	for _, p := range payments {
		if p.IsPaid && !p.DatePaid.Before(occurrence) && !p.DatePaid.After(end) {
			out = append(out, p)
		}
	}
	return out
}
