package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Weekly    Frequency = "weekly"
	Biweekly  Frequency = "bi-weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Annual    Frequency = "annual"
	Custom    Frequency = "custom"
)

const (
	Days   Unit = "days"
	Weeks  Unit = "weeks"
	Months Unit = "months"
	Years  Unit = "years"
)

const (
	StatusPaid     Status = "paid"
	StatusOverdue  Status = "overdue"
	StatusUpcoming Status = "upcoming"
	StatusFuture   Status = "future"
)

const (
	Utilities     Category = "Utilities"
	Subscriptions Category = "Subscriptions"
	Loans         Category = "Loans"
	Insurance     Category = "Insurance"
	Rent          Category = "Rent"
	CreditCard    Category = "Credit Card"
	Other         Category = "Other"
)

// MaxNameLength bounds bill names and payment notes.
const MaxNameLength = 200

type (
	// Frequency names how often a bill recurs.
	Frequency string

	// Unit is the period unit of a custom rule.
	Unit string

	// Status is the payment state of a bill relative to a reference day.
	Status string

	Category string

	// Rule is the recurrence rule resolved from a bill. AnchorDay is the
	// day-of-month of the first occurrence; month-based steps return to it
	// after clamping in shorter months. Zero means "use the input day".
	Rule struct {
		Frequency Frequency
		Interval  int
		Unit      Unit
		AnchorDay int
	}

	Bill struct {
		ID        string
		Name      string
		Amount    Money
		Category  Category
		IsAutoPay bool
		IsActive  bool
		StartDate time.Time
		Notes     string

		Frequency      Frequency
		CustomInterval int
		CustomUnit     Unit

		// Version increases on every change to the bill or its payments.
		Version   int64
		CreatedAt time.Time
		UpdatedAt time.Time

		Payments []Payment
	}

	Payment struct {
		ID       string
		BillID   string
		Amount   Money
		DatePaid time.Time
		IsPaid   bool
		Notes    string
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyName         = errors.New("empty name")
	ErrNameTooLong       = errors.New("name too long (max 200 characters)")
	ErrInvalidFrequency  = errors.New("invalid frequency")
	ErrInvalidCustomRule = errors.New("custom frequency requires a positive interval and a unit")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrZeroDate          = errors.New("date cannot be zero")
)

// ParseFrequency maps a raw frequency name to a Frequency. "biweekly" is an
// alias of "bi-weekly". The boolean is false for unknown names.
func ParseFrequency(s string) (Frequency, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekly":
		return Weekly, true
	case "bi-weekly", "biweekly":
		return Biweekly, true
	case "monthly":
		return Monthly, true
	case "quarterly":
		return Quarterly, true
	case "annual", "annually", "yearly":
		return Annual, true
	case "custom":
		return Custom, true
	}
	return "", false
}

// ParseUnit maps a raw unit name to a Unit.
func ParseUnit(s string) (Unit, bool) {
	switch u := Unit(strings.ToLower(strings.TrimSpace(s))); u {
	case Days, Weeks, Months, Years:
		return u, true
	}
	return "", false
}

func (u Unit) Valid() bool {
	_, ok := ParseUnit(string(u))
	return ok
}

var categories = []Category{Utilities, Subscriptions, Loans, Insurance, Rent, CreditCard, Other}

func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// Rule resolves the recurrence rule of the bill. Unknown frequency names
// are passed through untouched; the recurrence engine treats them as monthly.
func (b Bill) Rule() Rule {
	freq, ok := ParseFrequency(string(b.Frequency))
	if !ok {
		freq = b.Frequency
	}
	r := Rule{Frequency: freq}
	if !b.StartDate.IsZero() {
		r.AnchorDay = b.StartDate.Day()
	}
	if freq == Custom {
		if b.CustomInterval > 0 {
			r.Interval = b.CustomInterval
		}
		if u, ok := ParseUnit(string(b.CustomUnit)); ok {
			r.Unit = u
		}
	}
	return r
}

// Validate checks the bill fields a user can edit.
func (b Bill) Validate() error {
	name := strings.TrimSpace(b.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if !b.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, b.Category)
	}
	if b.StartDate.IsZero() {
		return fmt.Errorf("start date: %w", ErrZeroDate)
	}
	freq, ok := ParseFrequency(string(b.Frequency))
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, b.Frequency)
	}
	if freq == Custom {
		if b.CustomInterval <= 0 || !b.CustomUnit.Valid() {
			return ErrInvalidCustomRule
		}
	}
	return nil
}

// TotalPaid sums the amounts of all payments marked paid.
func (b Bill) TotalPaid() Money {
	var total Money
	for _, p := range b.Payments {
		if p.IsPaid {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// Validate checks the amount and date of a payment.
func (p Payment) Validate() error {
	if strings.TrimSpace(p.BillID) == "" {
		return errors.New("payment without bill id")
	}
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	if p.DatePaid.IsZero() {
		return fmt.Errorf("date paid: %w", ErrZeroDate)
	}
	if len(p.Notes) > MaxNameLength {
		return errors.New("notes too long (max 200 characters)")
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
