package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"duetrack/internal/core"
	"duetrack/internal/log"
	"duetrack/internal/services"
	"duetrack/internal/storage"
)

type paymentResponse struct {
	ID       string `json:"id"`
	BillID   string `json:"billId"`
	Amount   string `json:"amount"`
	DatePaid string `json:"datePaid"`
	IsPaid   bool   `json:"isPaid"`
	Notes    string `json:"notes,omitempty"`
}

type billResponse struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Amount         string            `json:"amount"`
	Category       string            `json:"category"`
	Frequency      string            `json:"frequency"`
	CustomInterval int               `json:"customInterval,omitempty"`
	CustomUnit     string            `json:"customUnit,omitempty"`
	StartDate      string            `json:"startDate"`
	IsAutoPay      bool              `json:"isAutoPay"`
	IsActive       bool              `json:"isActive"`
	Notes          string            `json:"notes,omitempty"`
	Version        int64             `json:"version"`
	Status         string            `json:"status"`
	NextDueDate    string            `json:"nextDueDate"`
	DaysUntilDue   int               `json:"daysUntilDue"`
	TotalPaid      string            `json:"totalPaid"`
	Payments       []paymentResponse `json:"payments,omitempty"`
}

type categoryAmountResponse struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
}

type summaryResponse struct {
	Year            int                      `json:"year"`
	Month           int                      `json:"month"`
	ExpectedOutflow string                   `json:"expectedOutflow"`
	PaidTotal       string                   `json:"paidTotal"`
	OverdueAmount   string                   `json:"overdueAmount"`
	StatusCounts    map[core.Status]int      `json:"statusCounts"`
	ByCategory      []categoryAmountResponse `json:"byCategory"`
}

type dueItemResponse struct {
	BillID   string `json:"billId"`
	Name     string `json:"name"`
	Amount   string `json:"amount"`
	Category string `json:"category"`
	Date     string `json:"date"`
	IsPaid   bool   `json:"isPaid"`
}

type reminderResponse struct {
	ID         string `json:"id"`
	BillID     string `json:"billId"`
	Kind       string `json:"kind"`
	DaysBefore int    `json:"daysBefore,omitempty"`
	DueDate    string `json:"dueDate"`
	TriggerAt  string `json:"triggerAt"`
	Title      string `json:"title"`
	Body       string `json:"body"`
}

func toPaymentResponse(p core.Payment) paymentResponse {
	return paymentResponse{
		ID:       p.ID,
		BillID:   p.BillID,
		Amount:   p.Amount.String(),
		DatePaid: p.DatePaid.Format(time.DateOnly),
		IsPaid:   p.IsPaid,
		Notes:    p.Notes,
	}
}

// toBillResponse renders a bill view; payments are included on request.
func toBillResponse(v services.BillView, withPayments bool) billResponse {
	out := billResponse{
		ID:             v.ID,
		Name:           v.Name,
		Amount:         v.Amount.String(),
		Category:       string(v.Category),
		Frequency:      string(v.Frequency),
		CustomInterval: v.CustomInterval,
		CustomUnit:     string(v.CustomUnit),
		StartDate:      v.StartDate.Format(time.DateOnly),
		IsAutoPay:      v.IsAutoPay,
		IsActive:       v.IsActive,
		Notes:          v.Notes,
		Version:        v.Version,
		Status:         string(v.Status),
		NextDueDate:    v.NextDueDate.Format(time.DateOnly),
		DaysUntilDue:   v.DaysUntilDue,
		TotalPaid:      v.TotalPaid().String(),
	}
	if withPayments {
		out.Payments = make([]paymentResponse, len(v.Payments))
		for i, p := range v.Payments {
			out.Payments[i] = toPaymentResponse(p)
		}
	}
	return out
}

func toSummaryResponse(s core.MonthSummary) summaryResponse {
	out := summaryResponse{
		Year:            s.Year,
		Month:           s.Month,
		ExpectedOutflow: s.ExpectedOutflow.String(),
		PaidTotal:       s.PaidTotal.String(),
		OverdueAmount:   s.OverdueAmount.String(),
		StatusCounts:    s.StatusCounts,
		ByCategory:      make([]categoryAmountResponse, len(s.ByCategory)),
	}
	for i, c := range s.ByCategory {
		out.ByCategory[i] = categoryAmountResponse{Category: string(c.Name), Amount: c.Amount.String()}
	}
	return out
}

func toDueItemResponses(items []core.DueItem) []dueItemResponse {
	out := make([]dueItemResponse, len(items))
	for i, it := range items {
		out[i] = dueItemResponse{
			BillID:   it.BillID,
			Name:     it.Name,
			Amount:   it.Amount.String(),
			Category: string(it.Category),
			Date:     it.Date.Format(time.DateOnly),
			IsPaid:   it.IsPaid,
		}
	}
	return out
}

func toReminderResponses(rs []core.Reminder) []reminderResponse {
	out := make([]reminderResponse, len(rs))
	for i, r := range rs {
		out[i] = reminderResponse{
			ID:         r.ID,
			BillID:     r.BillID,
			Kind:       string(r.Kind),
			DaysBefore: r.DaysBefore,
			DueDate:    r.DueDate.Format(time.DateOnly),
			TriggerAt:  r.TriggerAt.Format(time.RFC3339),
			Title:      r.Title,
			Body:       r.Body,
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

var validationErrors = []error{
	errInvalidInput,
	core.ErrInvalidAmount,
	core.ErrEmptyName,
	core.ErrNameTooLong,
	core.ErrInvalidFrequency,
	core.ErrInvalidCustomRule,
	core.ErrInvalidCategory,
	core.ErrZeroDate,
}

// errorStatus maps an error to its HTTP status.
func errorStatus(err error) int {
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError logs server failures and answers with a JSON error body.
// Internal error details never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err, log.FieldPath, r.URL.Path)
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}
