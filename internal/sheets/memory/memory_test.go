package memory

import (
	"context"
	"testing"

	"duetrack/internal/core"
)

func TestMirror(t *testing.T) {
	ctx := context.Background()
	m := New()

	_ = m.UpsertBill(ctx, core.Bill{ID: "b1", Name: "Rent", Version: 1})
	_ = m.UpsertBill(ctx, core.Bill{ID: "b2", Name: "Power", Version: 1})
	_ = m.UpsertBill(ctx, core.Bill{ID: "b1", Name: "Rent", Version: 2})
	_ = m.UpsertPayment(ctx, core.Payment{ID: "p1", BillID: "b1"})
	_ = m.UpsertPayment(ctx, core.Payment{ID: "p2", BillID: "b2"})

	bills := m.BillRows()
	if len(bills) != 2 || bills[0][0] != "b1" || bills[0][11] != "2" {
		t.Fatalf("bill rows = %v", bills)
	}

	if err := m.DeleteBill(ctx, "b1"); err != nil {
		t.Fatal(err)
	}
	if bills := m.BillRows(); len(bills) != 1 || bills[0][0] != "b2" {
		t.Errorf("bill rows after delete = %v", bills)
	}
	if payments := m.PaymentRows(); len(payments) != 1 || payments[0][0] != "p2" {
		t.Errorf("payment rows after delete = %v", payments)
	}

	if err := m.DeletePayment(ctx, "missing"); err != nil {
		t.Errorf("deleting a missing payment must be a no-op, got %v", err)
	}
}
