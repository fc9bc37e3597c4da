// Package calendar renders bill occurrences as an iCalendar (RFC 5545) feed
// that calendar apps can subscribe to.
package calendar

import (
	"bytes"
	"fmt"
	"io"
	"time"

	ics "github.com/arran4/golang-ical"

	"duetrack/internal/core"
	"duetrack/internal/recurrence"
)

const (
	ProdID = "-//duetrack//bills//EN"
	Name   = "DueTrack Bills"

	// MaxEventsPerBill caps one bill's events; a daily bill over a year stays under it.
	MaxEventsPerBill = 400

	uidDomain = "duetrack"
)

// Event is one all-day occurrence of a bill.
type Event struct {
	UID      string
	BillID   string
	Summary  string
	Notes    string
	Category core.Category
	Date     time.Time
}

// Events lists, for each active bill, the occurrences from its next due
// date through one year after today.
func Events(bills []core.Bill, today time.Time) []Event {
	today = recurrence.StartOfDay(today)
	horizon := today.AddDate(1, 0, 0)

	var out []Event
	for _, b := range bills {
		if !b.IsActive {
			continue
		}
		anchor := b.StartDate
		if anchor.IsZero() {
			anchor = today
		}
		from := recurrence.NextDueDate(b, today)
		for _, occ := range recurrence.Between(anchor, b.Rule(), from, horizon, MaxEventsPerBill) {
			out = append(out, Event{
				UID:      fmt.Sprintf("%s-%s@%s", b.ID, occ.Format("20060102"), uidDomain),
				BillID:   b.ID,
				Summary:  b.Name,
				Notes:    b.Amount.String(),
				Category: b.Category,
				Date:     occ,
			})
		}
	}
	return out
}

// Render writes events as a VCALENDAR document. stamp is used as DTSTAMP.
func Render(w io.Writer, events []Event, stamp time.Time) error {
	cal := ics.NewCalendar()
	cal.SetProductId(ProdID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ics.MethodPublish)
	cal.SetXWRCalName(Name)

	for _, e := range events {
		ev := cal.AddEvent(e.UID)
		ev.SetDtStampTime(stamp)
		ev.SetAllDayStartAt(e.Date)
		ev.SetAllDayEndAt(e.Date.AddDate(0, 0, 1))
		ev.SetSummary(e.Summary)
		if e.Notes != "" {
			ev.SetDescription(e.Notes)
		}
		if e.Category != "" {
			ev.SetProperty(ics.ComponentPropertyCategories, string(e.Category))
		}
		ev.SetProperty(ics.ComponentPropertyTransp, "TRANSPARENT")
	}
	if err := cal.SerializeTo(w); err != nil {
		return fmt.Errorf("serialize calendar: %w", err)
	}
	return nil
}

// Feed renders the calendar of bills as seen on today.
func Feed(bills []core.Bill, today, stamp time.Time) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, Events(bills, today), stamp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
