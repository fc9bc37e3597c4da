package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"duetrack/internal/core"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	loc     *time.Location
	now     func() time.Time
}

// NewSQLiteRepository opens (and migrates) the database at dbPath. Stored
// timestamps are returned in loc so day arithmetic happens in the user's
// time zone.
func NewSQLiteRepository(dbPath string, loc *time.Location) (*SQLiteRepository, error) {
	if loc == nil {
		loc = time.Local
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		loc:     loc,
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateBill(ctx context.Context, b core.Bill) error {
	now := r.now()
	if b.Version == 0 {
		b.Version = 1
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	if err := r.queries.CreateBill(ctx, toBillRow(b)); err != nil {
		return fmt.Errorf("create bill: %w", err)
	}
	slog.InfoContext(ctx, "Bill saved to SQLite",
		"bill_id", b.ID,
		"name", b.Name,
		"amount_cents", b.Amount.Cents,
		"frequency", b.Frequency)
	return nil
}

func (r *SQLiteRepository) UpdateBill(ctx context.Context, b core.Bill) (core.Bill, error) {
	b.UpdatedAt = r.now()
	n, err := r.queries.UpdateBill(ctx, toBillRow(b))
	if err != nil {
		return core.Bill{}, fmt.Errorf("update bill: %w", err)
	}
	if n == 0 {
		return core.Bill{}, fmt.Errorf("update bill %s: %w", b.ID, ErrNotFound)
	}
	return r.GetBill(ctx, b.ID)
}

func (r *SQLiteRepository) DeleteBill(ctx context.Context, id string) error {
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.DeletePaymentsByBill(ctx, id); err != nil {
			return fmt.Errorf("delete payments: %w", err)
		}
		n, err := q.DeleteBill(ctx, id)
		if err != nil {
			return fmt.Errorf("delete bill: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("delete bill %s: %w", id, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Bill deleted", "bill_id", id)
	return nil
}

func (r *SQLiteRepository) GetBill(ctx context.Context, id string) (core.Bill, error) {
	row, err := r.queries.GetBill(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Bill{}, fmt.Errorf("bill %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Bill{}, fmt.Errorf("get bill: %w", err)
	}
	payments, err := r.queries.ListPaymentsByBill(ctx, id)
	if err != nil {
		return core.Bill{}, fmt.Errorf("list payments: %w", err)
	}

	b, err := r.fromBillRow(row)
	if err != nil {
		return core.Bill{}, err
	}
	for _, p := range payments {
		pay, err := r.fromPaymentRow(p)
		if err != nil {
			return core.Bill{}, err
		}
		b.Payments = append(b.Payments, pay)
	}
	return b, nil
}

func (r *SQLiteRepository) ListBills(ctx context.Context, includeInactive bool) ([]core.Bill, error) {
	rows, err := r.queries.ListBills(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	payments, err := r.queries.ListAllPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	byBill := make(map[string][]core.Payment)
	for _, p := range payments {
		pay, err := r.fromPaymentRow(p)
		if err != nil {
			return nil, err
		}
		byBill[p.BillID] = append(byBill[p.BillID], pay)
	}

	bills := make([]core.Bill, 0, len(rows))
	for _, row := range rows {
		b, err := r.fromBillRow(row)
		if err != nil {
			return nil, err
		}
		b.Payments = byBill[b.ID]
		bills = append(bills, b)
	}
	return bills, nil
}

func (r *SQLiteRepository) AddPayment(ctx context.Context, p core.Payment) error {
	err := r.inTx(ctx, func(q *Queries) error {
		n, err := q.TouchBill(ctx, p.BillID, r.now().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("touch bill: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("bill %s: %w", p.BillID, ErrNotFound)
		}
		if err := q.CreatePayment(ctx, toPaymentRow(p)); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Payment recorded",
		"bill_id", p.BillID,
		"payment_id", p.ID,
		"amount_cents", p.Amount.Cents,
		"date_paid", p.DatePaid.Format(time.DateOnly))
	return nil
}

func (r *SQLiteRepository) DeletePayments(ctx context.Context, billID string, paymentIDs []string) error {
	if len(paymentIDs) == 0 {
		return nil
	}
	return r.inTx(ctx, func(q *Queries) error {
		n, err := q.DeletePayments(ctx, billID, paymentIDs)
		if err != nil {
			return fmt.Errorf("delete payments: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("payments of bill %s: %w", billID, ErrNotFound)
		}
		if _, err := q.TouchBill(ctx, billID, r.now().Format(timeLayout)); err != nil {
			return fmt.Errorf("touch bill: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) GetPayment(ctx context.Context, id string) (core.Payment, error) {
	row, err := r.queries.GetPayment(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Payment{}, fmt.Errorf("payment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return r.fromPaymentRow(row)
}

func (r *SQLiteRepository) WasSent(ctx context.Context, key string) (bool, error) {
	sent, err := r.queries.ReminderSent(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check reminder log: %w", err)
	}
	return sent, nil
}

func (r *SQLiteRepository) MarkSent(ctx context.Context, rem core.Reminder, sentAt time.Time) error {
	err := r.queries.InsertReminder(ctx, rem.DedupKey(), rem.BillID, string(rem.Kind),
		rem.DueDate.Format(time.DateOnly), sentAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert reminder log: %w", err)
	}
	return nil
}

func toBillRow(b core.Bill) BillRow {
	return BillRow{
		ID:             b.ID,
		Name:           b.Name,
		AmountCents:    b.Amount.Cents,
		Category:       string(b.Category),
		IsAutoPay:      b.IsAutoPay,
		IsActive:       b.IsActive,
		StartDate:      b.StartDate.Format(timeLayout),
		Notes:          b.Notes,
		Frequency:      string(b.Frequency),
		CustomInterval: int64(b.CustomInterval),
		CustomUnit:     string(b.CustomUnit),
		Version:        b.Version,
		CreatedAt:      b.CreatedAt.Format(timeLayout),
		UpdatedAt:      b.UpdatedAt.Format(timeLayout),
	}
}

func toPaymentRow(p core.Payment) PaymentRow {
	return PaymentRow{
		ID:          p.ID,
		BillID:      p.BillID,
		AmountCents: p.Amount.Cents,
		DatePaid:    p.DatePaid.Format(timeLayout),
		IsPaid:      p.IsPaid,
		Notes:       p.Notes,
	}
}

func (r *SQLiteRepository) parseTime(field, s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return t.In(r.loc), nil
}

func (r *SQLiteRepository) fromBillRow(row BillRow) (core.Bill, error) {
	start, err := r.parseTime("start_date", row.StartDate)
	if err != nil {
		return core.Bill{}, err
	}
	created, err := r.parseTime("created_at", row.CreatedAt)
	if err != nil {
		return core.Bill{}, err
	}
	updated, err := r.parseTime("updated_at", row.UpdatedAt)
	if err != nil {
		return core.Bill{}, err
	}
	return core.Bill{
		ID:             row.ID,
		Name:           row.Name,
		Amount:         core.Money{Cents: row.AmountCents},
		Category:       core.Category(row.Category),
		IsAutoPay:      row.IsAutoPay,
		IsActive:       row.IsActive,
		StartDate:      start,
		Notes:          row.Notes,
		Frequency:      core.Frequency(row.Frequency),
		CustomInterval: int(row.CustomInterval),
		CustomUnit:     core.Unit(row.CustomUnit),
		Version:        row.Version,
		CreatedAt:      created,
		UpdatedAt:      updated,
	}, nil
}

func (r *SQLiteRepository) fromPaymentRow(row PaymentRow) (core.Payment, error) {
	paid, err := r.parseTime("date_paid", row.DatePaid)
	if err != nil {
		return core.Payment{}, err
	}
	return core.Payment{
		ID:       row.ID,
		BillID:   row.BillID,
		Amount:   core.Money{Cents: row.AmountCents},
		DatePaid: paid,
		IsPaid:   row.IsPaid,
		Notes:    row.Notes,
	}, nil
}

var _ Store = (*SQLiteRepository)(nil)
