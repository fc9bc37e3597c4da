package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"duetrack/internal/amqp"
	"duetrack/internal/core"
	"duetrack/internal/log"
	"duetrack/internal/recurrence"
	"duetrack/internal/storage"

	"github.com/google/uuid"
)

// BillService orchestrates bill changes across the store and the event bus.
// The store is the source of truth: a failed publish is logged and the
// periodic resync of the mirror catches up.
type BillService struct {
	store     storage.BillStore
	publisher EventPublisher
	loc       *time.Location
	now       func() time.Time
	logger    *log.Logger
}

// NewBillService wires the service. publisher may be nil when no broker is
// configured.
func NewBillService(store storage.BillStore, publisher EventPublisher, loc *time.Location, logger *log.Logger) *BillService {
	if loc == nil {
		loc = time.Local
	}
	return &BillService{
		store:     store,
		publisher: publisher,
		loc:       loc,
		now:       time.Now,
		logger:    logger.WithComponent(log.ComponentBills),
	}
}

// Today returns the start of the current day in the service zone.
func (s *BillService) Today() time.Time {
	return recurrence.StartOfDay(s.now().In(s.loc))
}

func (s *BillService) normalize(b core.Bill) core.Bill {
	b.Name = strings.TrimSpace(b.Name)
	b.Notes = strings.TrimSpace(b.Notes)
	if b.Category == "" {
		b.Category = core.Other
	}
	if b.Frequency == "" {
		b.Frequency = core.Monthly
	}
	if b.Frequency != core.Custom {
		b.CustomInterval = 0
		b.CustomUnit = ""
	}
	if !b.StartDate.IsZero() {
		b.StartDate = recurrence.StartOfDay(b.StartDate.In(s.loc))
	}
	return b
}

// Create validates and stores a new bill with a fresh id.
func (s *BillService) Create(ctx context.Context, b core.Bill) (core.Bill, error) {
	b = s.normalize(b)
	b.ID = uuid.NewString()
	b.Payments = nil
	if err := b.Validate(); err != nil {
		return core.Bill{}, fmt.Errorf("validate bill: %w", err)
	}
	if err := s.store.CreateBill(ctx, b); err != nil {
		return core.Bill{}, fmt.Errorf("create bill: %w", err)
	}
	created, err := s.store.GetBill(ctx, b.ID)
	if err != nil {
		return core.Bill{}, fmt.Errorf("reload bill: %w", err)
	}

	s.logger.InfoContext(ctx, "Bill created",
		log.NewFields().WithOperation(log.OpCreate).
			WithBill(created.ID, created.Name, created.Amount.Cents, string(created.Frequency)).ToSlice()...)
	s.publish(ctx, amqp.BillUpserted, created.ID, "", created.Version)
	return created, nil
}

// Update overwrites the editable fields of an existing bill.
func (s *BillService) Update(ctx context.Context, b core.Bill) (core.Bill, error) {
	b = s.normalize(b)
	if err := b.Validate(); err != nil {
		return core.Bill{}, fmt.Errorf("validate bill: %w", err)
	}
	updated, err := s.store.UpdateBill(ctx, b)
	if err != nil {
		return core.Bill{}, fmt.Errorf("update bill: %w", err)
	}

	s.logger.InfoContext(ctx, "Bill updated",
		log.NewFields().WithOperation(log.OpUpdate).
			WithBill(updated.ID, updated.Name, updated.Amount.Cents, string(updated.Frequency)).ToSlice()...)
	s.publish(ctx, amqp.BillUpserted, updated.ID, "", updated.Version)
	return updated, nil
}

// Delete removes the bill and its payments.
func (s *BillService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteBill(ctx, id); err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}
	s.logger.InfoContext(ctx, "Bill deleted", log.FieldOperation, log.OpDelete, log.FieldBillID, id)
	s.publish(ctx, amqp.BillDeleted, id, "", 0)
	return nil
}

func (s *BillService) Get(ctx context.Context, id string) (core.Bill, error) {
	b, err := s.store.GetBill(ctx, id)
	if err != nil {
		return core.Bill{}, fmt.Errorf("get bill: %w", err)
	}
	return b, nil
}

func (s *BillService) List(ctx context.Context, includeInactive bool) ([]core.Bill, error) {
	bills, err := s.store.ListBills(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return bills, nil
}

// MarkPaid records a payment for the bill's next due date. The payment is
// dated now when that covers the due date, otherwise it is backdated (or
// forward dated) to the due date itself.
func (s *BillService) MarkPaid(ctx context.Context, billID string, amount *core.Money, notes string) (core.Payment, error) {
	b, err := s.Get(ctx, billID)
	if err != nil {
		return core.Payment{}, err
	}
	now := s.now().In(s.loc)
	due := recurrence.NextDueDate(b, recurrence.StartOfDay(now))

	paidAt := now
	probe := []core.Payment{{DatePaid: now, IsPaid: true}}
	if !recurrence.IsOccurrencePaid(due, b.Rule(), probe) {
		paidAt = due
	}
	return s.addPayment(ctx, b, paidAt, amount, notes)
}

// MarkOccurrencePaid records a payment dated on the given occurrence. It is
// idempotent: an occurrence already covered returns the covering payment.
func (s *BillService) MarkOccurrencePaid(ctx context.Context, billID string, occurrence time.Time, amount *core.Money, notes string) (core.Payment, error) {
	if occurrence.IsZero() {
		return core.Payment{}, fmt.Errorf("mark occurrence paid: %w", core.ErrZeroDate)
	}
	b, err := s.Get(ctx, billID)
	if err != nil {
		return core.Payment{}, err
	}
	occurrence = recurrence.StartOfDay(occurrence.In(s.loc))
	if covering := recurrence.CoveringPayments(occurrence, b.Rule(), b.Payments); len(covering) > 0 {
		return covering[0], nil
	}
	return s.addPayment(ctx, b, occurrence, amount, notes)
}

func (s *BillService) addPayment(ctx context.Context, b core.Bill, paidAt time.Time, amount *core.Money, notes string) (core.Payment, error) {
	p := core.Payment{
		ID:       uuid.NewString(),
		BillID:   b.ID,
		Amount:   b.Amount,
		DatePaid: paidAt,
		IsPaid:   true,
		Notes:    strings.TrimSpace(notes),
	}
	if amount != nil {
		p.Amount = *amount
	}
	if err := p.Validate(); err != nil {
		return core.Payment{}, fmt.Errorf("validate payment: %w", err)
	}
	if err := s.store.AddPayment(ctx, p); err != nil {
		return core.Payment{}, fmt.Errorf("add payment: %w", err)
	}

	s.logger.InfoContext(ctx, "Payment recorded",
		log.NewFields().WithOperation(log.OpPay).WithPayment(b.ID, p.ID, p.Amount.Cents).ToSlice()...)
	s.publish(ctx, amqp.PaymentUpserted, b.ID, p.ID, b.Version+1)
	return p, nil
}

// UnmarkOccurrence deletes every payment covering the occurrence and
// returns how many were removed. Nothing to remove is not an error.
func (s *BillService) UnmarkOccurrence(ctx context.Context, billID string, occurrence time.Time) (int, error) {
	if occurrence.IsZero() {
		return 0, fmt.Errorf("unmark occurrence: %w", core.ErrZeroDate)
	}
	b, err := s.Get(ctx, billID)
	if err != nil {
		return 0, err
	}
	occurrence = recurrence.StartOfDay(occurrence.In(s.loc))
	covering := recurrence.CoveringPayments(occurrence, b.Rule(), b.Payments)
	if len(covering) == 0 {
		return 0, nil
	}

	ids := make([]string, len(covering))
	for i, p := range covering {
		ids[i] = p.ID
	}
	if err := s.store.DeletePayments(ctx, billID, ids); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("delete payments: %w", err)
	}

	s.logger.InfoContext(ctx, "Occurrence unmarked",
		log.FieldOperation, log.OpUnpay,
		log.FieldBillID, billID,
		"occurrence", occurrence.Format(time.DateOnly),
		"removed", len(ids))
	for _, id := range ids {
		s.publish(ctx, amqp.PaymentDeleted, billID, id, b.Version+1)
	}
	return len(ids), nil
}

func (s *BillService) publish(ctx context.Context, t amqp.EventType, billID, paymentID string, version int64) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No event publisher, skipping bill event", "type", t, log.FieldBillID, billID)
		return
	}
	msg := amqp.NewBillEventMessage(t, billID, paymentID, version)
	if err := s.publisher.PublishBillEvent(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish bill event",
			"type", t,
			log.FieldBillID, billID,
			log.FieldPaymentID, paymentID,
			log.FieldError, err)
	}
}
