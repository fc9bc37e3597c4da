package storage

import (
	"context"
	"database/sql"
	"strings"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the SQL statements of the repository.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// BillRow mirrors the bills table. Timestamps are RFC 3339 text.
type BillRow struct {
	ID             string
	Name           string
	AmountCents    int64
	Category       string
	IsAutoPay      bool
	IsActive       bool
	StartDate      string
	Notes          string
	Frequency      string
	CustomInterval int64
	CustomUnit     string
	Version        int64
	CreatedAt      string
	UpdatedAt      string
}

// PaymentRow mirrors the payments table.
type PaymentRow struct {
	ID          string
	BillID      string
	AmountCents int64
	DatePaid    string
	IsPaid      bool
	Notes       string
}

const billColumns = `id, name, amount_cents, category, is_auto_pay, is_active, start_date, notes,
	frequency, custom_interval, custom_unit, version, created_at, updated_at`

const createBill = `INSERT INTO bills (` + billColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateBill(ctx context.Context, r BillRow) error {
	_, err := q.db.ExecContext(ctx, createBill,
		r.ID, r.Name, r.AmountCents, r.Category, r.IsAutoPay, r.IsActive, r.StartDate, r.Notes,
		r.Frequency, r.CustomInterval, r.CustomUnit, r.Version, r.CreatedAt, r.UpdatedAt)
	return err
}

const updateBill = `UPDATE bills SET
	name = ?, amount_cents = ?, category = ?, is_auto_pay = ?, is_active = ?, start_date = ?,
	notes = ?, frequency = ?, custom_interval = ?, custom_unit = ?,
	version = version + 1, updated_at = ?
WHERE id = ?`

func (q *Queries) UpdateBill(ctx context.Context, r BillRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateBill,
		r.Name, r.AmountCents, r.Category, r.IsAutoPay, r.IsActive, r.StartDate,
		r.Notes, r.Frequency, r.CustomInterval, r.CustomUnit, r.UpdatedAt, r.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const touchBill = `UPDATE bills SET version = version + 1, updated_at = ? WHERE id = ?`

func (q *Queries) TouchBill(ctx context.Context, id, updatedAt string) (int64, error) {
	res, err := q.db.ExecContext(ctx, touchBill, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteBill = `DELETE FROM bills WHERE id = ?`

func (q *Queries) DeleteBill(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteBill, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getBill = `SELECT ` + billColumns + ` FROM bills WHERE id = ?`

func (q *Queries) GetBill(ctx context.Context, id string) (BillRow, error) {
	return scanBill(q.db.QueryRowContext(ctx, getBill, id))
}

const listBills = `SELECT ` + billColumns + ` FROM bills
WHERE (? OR is_active = 1)
ORDER BY name COLLATE NOCASE, id`

func (q *Queries) ListBills(ctx context.Context, includeInactive bool) ([]BillRow, error) {
	rows, err := q.db.QueryContext(ctx, listBills, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BillRow
	for rows.Next() {
		r, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBill(s rowScanner) (BillRow, error) {
	var r BillRow
	err := s.Scan(&r.ID, &r.Name, &r.AmountCents, &r.Category, &r.IsAutoPay, &r.IsActive,
		&r.StartDate, &r.Notes, &r.Frequency, &r.CustomInterval, &r.CustomUnit, &r.Version,
		&r.CreatedAt, &r.UpdatedAt)
	return r, err
}

const paymentColumns = `id, bill_id, amount_cents, date_paid, is_paid, notes`

const createPayment = `INSERT INTO payments (` + paymentColumns + `) VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreatePayment(ctx context.Context, r PaymentRow) error {
	_, err := q.db.ExecContext(ctx, createPayment, r.ID, r.BillID, r.AmountCents, r.DatePaid, r.IsPaid, r.Notes)
	return err
}

const getPayment = `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`

func (q *Queries) GetPayment(ctx context.Context, id string) (PaymentRow, error) {
	return scanPayment(q.db.QueryRowContext(ctx, getPayment, id))
}

const listPaymentsByBill = `SELECT ` + paymentColumns + ` FROM payments WHERE bill_id = ? ORDER BY date_paid, id`

func (q *Queries) ListPaymentsByBill(ctx context.Context, billID string) ([]PaymentRow, error) {
	return q.listPayments(ctx, listPaymentsByBill, billID)
}

const listAllPayments = `SELECT ` + paymentColumns + ` FROM payments ORDER BY bill_id, date_paid, id`

func (q *Queries) ListAllPayments(ctx context.Context) ([]PaymentRow, error) {
	return q.listPayments(ctx, listAllPayments)
}

func (q *Queries) listPayments(ctx context.Context, query string, args ...interface{}) ([]PaymentRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PaymentRow
	for rows.Next() {
		r, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanPayment(s rowScanner) (PaymentRow, error) {
	var r PaymentRow
	err := s.Scan(&r.ID, &r.BillID, &r.AmountCents, &r.DatePaid, &r.IsPaid, &r.Notes)
	return r, err
}

// DeletePayments removes the given payments of a bill and returns how many
// rows were deleted.
func (q *Queries) DeletePayments(ctx context.Context, billID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, billID)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `DELETE FROM payments WHERE bill_id = ? AND id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deletePaymentsByBill = `DELETE FROM payments WHERE bill_id = ?`

func (q *Queries) DeletePaymentsByBill(ctx context.Context, billID string) error {
	_, err := q.db.ExecContext(ctx, deletePaymentsByBill, billID)
	return err
}

const reminderSent = `SELECT EXISTS(SELECT 1 FROM reminder_log WHERE dedup_key = ?)`

func (q *Queries) ReminderSent(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, reminderSent, key).Scan(&exists)
	return exists, err
}

const insertReminder = `INSERT OR IGNORE INTO reminder_log (dedup_key, bill_id, kind, due_date, sent_at)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) InsertReminder(ctx context.Context, key, billID, kind, dueDate, sentAt string) error {
	_, err := q.db.ExecContext(ctx, insertReminder, key, billID, kind, dueDate, sentAt)
	return err
}
