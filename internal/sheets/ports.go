package sheets

import (
	"context"

	"duetrack/internal/core"
)

// Ports for the cloud mirror.
type (
	// BillMirror keeps an external copy of bills and payments. Every method
	// is idempotent: upserting twice or deleting a missing row is not an error.
	BillMirror interface {
		UpsertBill(ctx context.Context, b core.Bill) error
		DeleteBill(ctx context.Context, billID string) error
		UpsertPayment(ctx context.Context, p core.Payment) error
		DeletePayment(ctx context.Context, paymentID string) error
	}
)
