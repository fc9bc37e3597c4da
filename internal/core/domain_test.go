package core

import (
	"errors"
	"testing"
	"time"
)

func validBill() Bill {
	return Bill{
		ID:        "b1",
		Name:      "Electricity",
		Amount:    Money{Cents: 5000},
		Category:  Utilities,
		IsActive:  true,
		StartDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Frequency: Monthly,
	}
}

func TestBillValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Bill)
		wantErr error
	}{
		{name: "valid", mutate: func(*Bill) {}},
		{name: "empty name", mutate: func(b *Bill) { b.Name = "   " }, wantErr: ErrEmptyName},
		{name: "zero amount", mutate: func(b *Bill) { b.Amount = Money{} }, wantErr: ErrInvalidAmount},
		{name: "unknown category", mutate: func(b *Bill) { b.Category = "Food" }, wantErr: ErrInvalidCategory},
		{name: "zero start", mutate: func(b *Bill) { b.StartDate = time.Time{} }, wantErr: ErrZeroDate},
		{name: "unknown frequency", mutate: func(b *Bill) { b.Frequency = "hourly" }, wantErr: ErrInvalidFrequency},
		{name: "biweekly alias", mutate: func(b *Bill) { b.Frequency = "biweekly" }},
		{
			name:    "custom without interval",
			mutate:  func(b *Bill) { b.Frequency = Custom; b.CustomUnit = Days },
			wantErr: ErrInvalidCustomRule,
		},
		{
			name:    "custom without unit",
			mutate:  func(b *Bill) { b.Frequency = Custom; b.CustomInterval = 3 },
			wantErr: ErrInvalidCustomRule,
		},
		{
			name:   "custom complete",
			mutate: func(b *Bill) { b.Frequency = Custom; b.CustomInterval = 3; b.CustomUnit = Weeks },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBill()
			tt.mutate(&b)
			err := b.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected ok, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestBillRule(t *testing.T) {
	b := validBill()
	b.StartDate = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	r := b.Rule()
	if r.Frequency != Monthly || r.AnchorDay != 31 || r.Interval != 0 {
		t.Fatalf("unexpected rule: %+v", r)
	}

	b.Frequency = "biweekly"
	if r := b.Rule(); r.Frequency != Biweekly {
		t.Fatalf("alias not resolved: %+v", r)
	}

	b.Frequency = Custom
	b.CustomInterval = -2
	b.CustomUnit = "fortnights"
	r = b.Rule()
	if r.Frequency != Custom || r.Interval != 0 || r.Unit != "" {
		t.Fatalf("invalid custom parts must be dropped: %+v", r)
	}

	b.Frequency = "hourly"
	if r := b.Rule(); r.Frequency != "hourly" {
		t.Fatalf("unknown frequency must pass through: %+v", r)
	}
}

func TestBillTotalPaid(t *testing.T) {
	b := validBill()
	b.Payments = []Payment{
		{ID: "p1", Amount: Money{Cents: 5000}, IsPaid: true},
		{ID: "p2", Amount: Money{Cents: 2500}, IsPaid: true},
		{ID: "p3", Amount: Money{Cents: 9999}, IsPaid: false},
	}
	if got := b.TotalPaid(); got.Cents != 7500 {
		t.Fatalf("total paid: got %d", got.Cents)
	}
}

func TestPaymentValidate(t *testing.T) {
	p := Payment{BillID: "b1", Amount: Money{Cents: 100}, DatePaid: time.Now(), IsPaid: true}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	p.DatePaid = time.Time{}
	if err := p.Validate(); !errors.Is(err, ErrZeroDate) {
		t.Fatalf("expected ErrZeroDate, got %v", err)
	}
}

func TestCategories(t *testing.T) {
	for _, c := range []Category{Utilities, Subscriptions, Loans, Insurance, Rent, CreditCard, Other} {
		if !c.Valid() {
			t.Errorf("%q must be valid", c)
		}
	}
	if !CreditCard.Valid() || Category("credit card").Valid() {
		t.Fatalf("category matching must be exact")
	}
}
