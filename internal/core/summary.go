package core

import "time"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   Category
	Amount Money
}

// DueItem is a single occurrence of a bill on a given day.
type DueItem struct {
	BillID   string
	Name     string
	Amount   Money
	Category Category
	Date     time.Time
	IsPaid   bool
}

// MonthSummary is the dashboard view of one calendar month.
type MonthSummary struct {
	Year  int
	Month int // 1-12

	ExpectedOutflow Money
	PaidTotal       Money
	OverdueAmount   Money

	StatusCounts map[Status]int
	ByCategory   []CategoryAmount
}

// ReminderKind distinguishes pre-due reminders from the overdue alert.
type ReminderKind string

const (
	ReminderBefore  ReminderKind = "reminder"
	ReminderOverdue ReminderKind = "overdue"
)

// Reminder is a planned notification for a bill's next due date.
type Reminder struct {
	ID         string
	BillID     string
	Kind       ReminderKind
	DaysBefore int
	DueDate    time.Time
	TriggerAt  time.Time
	Title      string
	Body       string
}

// DedupKey identifies one reminder for one due date.
func (r Reminder) DedupKey() string {
	return r.ID + "@" + r.DueDate.Format("2006-01-02")
}
