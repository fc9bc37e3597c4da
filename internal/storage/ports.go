// Package storage persists bills, their payments and the reminder log.
package storage

import (
	"context"
	"errors"
	"time"

	"duetrack/internal/core"
)

// ErrNotFound is returned when a bill or payment does not exist.
var ErrNotFound = errors.New("not found")

// BillStore persists bills and their payments. Every mutation of a bill or
// of its payments increases the bill's Version.
type BillStore interface {
	CreateBill(ctx context.Context, b core.Bill) error
	// UpdateBill overwrites the editable fields and returns the stored bill.
	UpdateBill(ctx context.Context, b core.Bill) (core.Bill, error)
	// DeleteBill removes the bill together with its payments.
	DeleteBill(ctx context.Context, id string) error
	// GetBill returns the bill with its payments ordered by date.
	GetBill(ctx context.Context, id string) (core.Bill, error)
	ListBills(ctx context.Context, includeInactive bool) ([]core.Bill, error)

	AddPayment(ctx context.Context, p core.Payment) error
	DeletePayments(ctx context.Context, billID string, paymentIDs []string) error
	GetPayment(ctx context.Context, id string) (core.Payment, error)
}

// ReminderLog records which reminders were already dispatched.
type ReminderLog interface {
	WasSent(ctx context.Context, key string) (bool, error)
	MarkSent(ctx context.Context, r core.Reminder, sentAt time.Time) error
}

// Store is the full persistence surface of a backend.
type Store interface {
	BillStore
	ReminderLog
	Ping(ctx context.Context) error
	Close() error
}
