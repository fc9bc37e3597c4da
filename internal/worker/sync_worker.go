package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"duetrack/internal/amqp"
	"duetrack/internal/core"
	"duetrack/internal/log"
	"duetrack/internal/sheets"
	"duetrack/internal/storage"

	"golang.org/x/sync/errgroup"
)

// SyncWorker mirrors bills and payments from the store to the cloud mirror.
// Events only carry ids; the current record is always reloaded so replays
// and out-of-order deliveries converge on the stored state.
type SyncWorker struct {
	store       storage.BillStore
	mirror      sheets.BillMirror
	concurrency int
	logger      *log.Logger
}

func NewSyncWorker(store storage.BillStore, mirror sheets.BillMirror, concurrency int, logger *log.Logger) *SyncWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SyncWorker{
		store:       store,
		mirror:      mirror,
		concurrency: concurrency,
		logger:      logger.WithComponent(log.ComponentWorker),
	}
}

// HandleBillEvent applies one bill event to the mirror. A returned error
// makes the consumer requeue the message.
func (w *SyncWorker) HandleBillEvent(ctx context.Context, msg *amqp.BillEventMessage) error {
	w.logger.InfoContext(ctx, "Processing bill event",
		"type", msg.Type,
		log.FieldBillID, msg.BillID,
		log.FieldPaymentID, msg.PaymentID,
		"version", msg.Version)

	switch msg.Type {
	case amqp.BillUpserted:
		return w.mirrorBill(ctx, msg.BillID)

	case amqp.BillDeleted:
		if err := w.mirror.DeleteBill(ctx, msg.BillID); err != nil {
			return fmt.Errorf("delete mirrored bill: %w", err)
		}
		return nil

	case amqp.PaymentUpserted:
		p, err := w.store.GetPayment(ctx, msg.PaymentID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			// Removed before we got here; the delete event follows.
			if err := w.mirror.DeletePayment(ctx, msg.PaymentID); err != nil {
				return fmt.Errorf("delete mirrored payment: %w", err)
			}
		case err != nil:
			return fmt.Errorf("get payment: %w", err)
		default:
			if err := w.mirror.UpsertPayment(ctx, p); err != nil {
				return fmt.Errorf("mirror payment: %w", err)
			}
		}
		return w.mirrorBill(ctx, msg.BillID)

	case amqp.PaymentDeleted:
		if err := w.mirror.DeletePayment(ctx, msg.PaymentID); err != nil {
			return fmt.Errorf("delete mirrored payment: %w", err)
		}
		return w.mirrorBill(ctx, msg.BillID)
	}
	return fmt.Errorf("unknown event type %q: %w", msg.Type, amqp.ErrPermanent)
}

// mirrorBill upserts the bill row, or removes it when the bill no longer exists.
func (w *SyncWorker) mirrorBill(ctx context.Context, billID string) error {
	b, err := w.store.GetBill(ctx, billID)
	if errors.Is(err, storage.ErrNotFound) {
		if err := w.mirror.DeleteBill(ctx, billID); err != nil {
			return fmt.Errorf("delete mirrored bill: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("get bill: %w", err)
	}
	if err := w.mirror.UpsertBill(ctx, b); err != nil {
		return fmt.Errorf("mirror bill: %w", err)
	}
	return nil
}

// ResyncResult counts the outcome of a full resync.
type ResyncResult struct {
	Bills  int
	Failed int
}

// Resync mirrors every bill and its payments. It recovers from events lost
// while the worker was down. Per-bill failures are logged and counted; only
// listing the bills or cancellation aborts the run.
func (w *SyncWorker) Resync(ctx context.Context) (ResyncResult, error) {
	bills, err := w.store.ListBills(ctx, true)
	if err != nil {
		return ResyncResult{}, fmt.Errorf("list bills: %w", err)
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for _, b := range bills {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := w.mirrorFull(gctx, b); err != nil {
				failed.Add(1)
				w.logger.ErrorContext(gctx, "Failed to resync bill",
					log.NewFields().WithBill(b.ID, b.Name, b.Amount.Cents, string(b.Frequency)).WithError(err).ToSlice()...)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ResyncResult{}, err
	}

	res := ResyncResult{Bills: len(bills), Failed: int(failed.Load())}
	w.logger.InfoContext(ctx, "Resync completed", "bills", res.Bills, "failed", res.Failed)
	return res, nil
}

func (w *SyncWorker) mirrorFull(ctx context.Context, b core.Bill) error {
	if err := w.mirror.UpsertBill(ctx, b); err != nil {
		return fmt.Errorf("mirror bill: %w", err)
	}
	for _, p := range b.Payments {
		if err := w.mirror.UpsertPayment(ctx, p); err != nil {
			return fmt.Errorf("mirror payment %s: %w", p.ID, err)
		}
	}
	return nil
}

// RunPeriodicResync resyncs immediately and then on every tick until ctx is done.
func (w *SyncWorker) RunPeriodicResync(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.Resync(ctx); err != nil && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "Resync failed", log.FieldError, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
