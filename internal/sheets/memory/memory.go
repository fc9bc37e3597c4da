package memory

import (
	"context"
	"slices"
	"sync"

	"duetrack/internal/core"
	ports "duetrack/internal/sheets"
)

// Mirror keeps mirrored rows in process, in insertion order. It backs the
// sync worker when no spreadsheet is configured and serves as a test double.
type Mirror struct {
	mu       sync.Mutex
	bills    [][]string
	payments [][]string
}

var _ ports.BillMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{}
}

func (m *Mirror) UpsertBill(_ context.Context, b core.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bills = upsert(m.bills, ports.BillRow(b))
	return nil
}

func (m *Mirror) DeleteBill(_ context.Context, billID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bills = remove(m.bills, 0, billID)
	m.payments = remove(m.payments, ports.PaymentBillColumn, billID)
	return nil
}

func (m *Mirror) UpsertPayment(_ context.Context, p core.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = upsert(m.payments, ports.PaymentRow(p))
	return nil
}

func (m *Mirror) DeletePayment(_ context.Context, paymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = remove(m.payments, 0, paymentID)
	return nil
}

// BillRows returns a copy of the mirrored bill rows.
func (m *Mirror) BillRows() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.bills)
}

// PaymentRows returns a copy of the mirrored payment rows.
func (m *Mirror) PaymentRows() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.payments)
}

func upsert(rows [][]string, row []string) [][]string {
	i := slices.IndexFunc(rows, func(r []string) bool { return r[0] == row[0] })
	if i >= 0 {
		rows[i] = row
		return rows
	}
	return append(rows, row)
}

func remove(rows [][]string, col int, value string) [][]string {
	return slices.DeleteFunc(rows, func(r []string) bool { return r[col] == value })
}
