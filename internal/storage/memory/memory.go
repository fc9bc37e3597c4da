// Package memory provides an in-process Store used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"duetrack/internal/core"
	"duetrack/internal/storage"
)

type Store struct {
	mu        sync.RWMutex
	bills     map[string]core.Bill
	payments  map[string]core.Payment
	reminders map[string]time.Time
	now       func() time.Time
}

func New() *Store {
	return &Store{
		bills:     make(map[string]core.Bill),
		payments:  make(map[string]core.Payment),
		reminders: make(map[string]time.Time),
		now:       time.Now,
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error              { return nil }

func (s *Store) CreateBill(_ context.Context, b core.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bills[b.ID]; exists {
		return fmt.Errorf("bill %s already exists", b.ID)
	}
	now := s.now()
	if b.Version == 0 {
		b.Version = 1
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	b.Payments = nil
	s.bills[b.ID] = b
	return nil
}

func (s *Store) UpdateBill(ctx context.Context, b core.Bill) (core.Bill, error) {
	s.mu.Lock()
	cur, ok := s.bills[b.ID]
	if !ok {
		s.mu.Unlock()
		return core.Bill{}, fmt.Errorf("update bill %s: %w", b.ID, storage.ErrNotFound)
	}
	b.CreatedAt = cur.CreatedAt
	b.Version = cur.Version + 1
	b.UpdatedAt = s.now()
	b.Payments = nil
	s.bills[b.ID] = b
	s.mu.Unlock()
	return s.GetBill(ctx, b.ID)
}

func (s *Store) DeleteBill(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bills[id]; !ok {
		return fmt.Errorf("delete bill %s: %w", id, storage.ErrNotFound)
	}
	delete(s.bills, id)
	for pid, p := range s.payments {
		if p.BillID == id {
			delete(s.payments, pid)
		}
	}
	return nil
}

func (s *Store) GetBill(_ context.Context, id string) (core.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bills[id]
	if !ok {
		return core.Bill{}, fmt.Errorf("bill %s: %w", id, storage.ErrNotFound)
	}
	b.Payments = s.paymentsOf(id)
	return b, nil
}

func (s *Store) ListBills(_ context.Context, includeInactive bool) ([]core.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Bill, 0, len(s.bills))
	for id, b := range s.bills {
		if !includeInactive && !b.IsActive {
			continue
		}
		b.Payments = s.paymentsOf(id)
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		ni, nj := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if ni == nj {
			return out[i].ID < out[j].ID
		}
		return ni < nj
	})
	return out, nil
}

// paymentsOf must be called with the lock held.
func (s *Store) paymentsOf(billID string) []core.Payment {
	var out []core.Payment
	for _, p := range s.payments {
		if p.BillID == billID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DatePaid.Equal(out[j].DatePaid) {
			return out[i].ID < out[j].ID
		}
		return out[i].DatePaid.Before(out[j].DatePaid)
	})
	return out
}

func (s *Store) touch(id string) {
	b := s.bills[id]
	b.Version++
	b.UpdatedAt = s.now()
	s.bills[id] = b
}

func (s *Store) AddPayment(_ context.Context, p core.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bills[p.BillID]; !ok {
		return fmt.Errorf("bill %s: %w", p.BillID, storage.ErrNotFound)
	}
	if _, exists := s.payments[p.ID]; exists {
		return fmt.Errorf("payment %s already exists", p.ID)
	}
	s.payments[p.ID] = p
	s.touch(p.BillID)
	return nil
}

func (s *Store) DeletePayments(_ context.Context, billID string, paymentIDs []string) error {
	if len(paymentIDs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, id := range paymentIDs {
		if p, ok := s.payments[id]; ok && p.BillID == billID {
			delete(s.payments, id)
			removed++
		}
	}
	if removed == 0 {
		return fmt.Errorf("payments of bill %s: %w", billID, storage.ErrNotFound)
	}
	s.touch(billID)
	return nil
}

func (s *Store) GetPayment(_ context.Context, id string) (core.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return core.Payment{}, fmt.Errorf("payment %s: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Store) WasSent(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.reminders[key]
	return ok, nil
}

func (s *Store) MarkSent(_ context.Context, r core.Reminder, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reminders[r.DedupKey()]; !ok {
		s.reminders[r.DedupKey()] = sentAt
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
