package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"duetrack/internal/core"
)

const maxBodyBytes = 64 << 10

var (
	// errInvalidInput marks request values that parse but do not make sense.
	errInvalidInput = errors.New("invalid input")
	// errBadRequest marks bodies that are not the expected JSON.
	errBadRequest = errors.New("malformed request body")
)

// billRequest is the JSON body of bill create and update. Absent fields
// keep the value of the bill they are applied to.
type billRequest struct {
	Name           *string `json:"name"`
	Amount         *string `json:"amount"`
	Category       *string `json:"category"`
	Frequency      *string `json:"frequency"`
	CustomInterval *int    `json:"customInterval"`
	CustomUnit     *string `json:"customUnit"`
	StartDate      *string `json:"startDate"`
	IsAutoPay      *bool   `json:"isAutoPay"`
	IsActive       *bool   `json:"isActive"`
	Notes          *string `json:"notes"`
}

// apply copies the present fields onto b.
func (req billRequest) apply(b *core.Bill, loc *time.Location) error {
	if req.Name != nil {
		b.Name = sanitizeInput(*req.Name)
	}
	if req.Amount != nil {
		cents, err := core.ParseDecimalToCents(*req.Amount)
		if err != nil {
			return fmt.Errorf("amount %q: %w", *req.Amount, err)
		}
		b.Amount = core.Money{Cents: cents}
	}
	if req.Category != nil {
		b.Category = core.Category(strings.TrimSpace(*req.Category))
	}
	if req.Frequency != nil {
		f, ok := core.ParseFrequency(*req.Frequency)
		if !ok {
			return fmt.Errorf("%w: %q", core.ErrInvalidFrequency, *req.Frequency)
		}
		b.Frequency = f
	}
	if req.CustomInterval != nil {
		b.CustomInterval = *req.CustomInterval
	}
	if req.CustomUnit != nil {
		b.CustomUnit = core.Unit(strings.ToLower(strings.TrimSpace(*req.CustomUnit)))
	}
	if req.StartDate != nil {
		d, err := parseDate(*req.StartDate, loc)
		if err != nil {
			return err
		}
		b.StartDate = d
	}
	if req.IsAutoPay != nil {
		b.IsAutoPay = *req.IsAutoPay
	}
	if req.IsActive != nil {
		b.IsActive = *req.IsActive
	}
	if req.Notes != nil {
		b.Notes = sanitizeInput(*req.Notes)
		if len(b.Notes) > core.MaxNameLength {
			return fmt.Errorf("%w: notes too long (max %d characters)", errInvalidInput, core.MaxNameLength)
		}
	}
	return nil
}

// newBill returns the defaults a created bill starts from.
func newBill() core.Bill {
	return core.Bill{
		Category:  core.Other,
		Frequency: core.Monthly,
		IsActive:  true,
	}
}

// paymentRequest marks the next due date, or a given occurrence, as paid.
type paymentRequest struct {
	Occurrence string `json:"occurrence"`
	Amount     string `json:"amount"`
	Notes      string `json:"notes"`
}

type parsedPayment struct {
	occurrence time.Time
	amount     *core.Money
	notes      string
}

func (req paymentRequest) parse(loc *time.Location) (parsedPayment, error) {
	var out parsedPayment
	if s := strings.TrimSpace(req.Occurrence); s != "" {
		d, err := parseDate(s, loc)
		if err != nil {
			return out, err
		}
		out.occurrence = d
	}
	if s := strings.TrimSpace(req.Amount); s != "" {
		m, err := core.ParseMoney(s)
		if err != nil {
			return out, fmt.Errorf("amount %q: %w", s, err)
		}
		out.amount = &m
	}
	out.notes = sanitizeInput(req.Notes)
	if len(out.notes) > core.MaxNameLength {
		return out, fmt.Errorf("%w: notes too long (max %d characters)", errInvalidInput, core.MaxNameLength)
	}
	return out, nil
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return fmt.Errorf("decode request body: %w", err)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters, using
// today as the default. Unparseable values fall back to the default.
func ParseMonthParams(query url.Values, today time.Time) MonthParams {
	params := MonthParams{
		Year:  today.Year(),
		Month: int(today.Month()),
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			params.Year = y
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			params.Month = m
		}
	}
	return params
}

// parseDate parses a YYYY-MM-DD date as midnight in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", errInvalidInput, s)
	}
	return d, nil
}

// parseDays reads a day horizon in [0, maxDays], def when absent.
func parseDays(query url.Values, def, maxDays int) (int, error) {
	v := strings.TrimSpace(query.Get("days"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > maxDays {
		return 0, fmt.Errorf("%w: days must be between 0 and %d", errInvalidInput, maxDays)
	}
	return n, nil
}

// sanitizeInput trims the value and drops control characters.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
