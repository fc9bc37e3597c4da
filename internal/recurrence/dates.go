package recurrence

import "time"

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfMonth returns midnight of the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// EndOfMonth returns the last instant of t's month.
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DaysBetween returns the number of calendar days from `from` to `to`,
// ignoring the time of day. It is negative when to is before from and is
// not affected by DST transitions.
func DaysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// addMonths moves date by n calendar months. When date sits on the
// (clamped) anchor day, the target day is re-derived from anchorDay so a
// day-31 schedule returns to the 31st after a short month. The result is
// clamped to the last day of the target month.
func addMonths(date time.Time, n int, anchorDay int) time.Time {
	y, m, d := date.Date()
	loc := date.Location()
	day := d
	if anchorDay > 0 && d == min(anchorDay, daysIn(y, m, loc)) {
		day = anchorDay
	}

	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, loc)
	if last := daysIn(first.Year(), first.Month(), loc); day > last {
		day = last
	}
	hh, mm, ss := date.Clock()
	return time.Date(first.Year(), first.Month(), day, hh, mm, ss, date.Nanosecond(), loc)
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}
