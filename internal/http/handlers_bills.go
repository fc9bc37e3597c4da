package http

import (
	"fmt"
	"net/http"
	"strings"

	"duetrack/internal/core"
)

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeInactive := q.Get("all") == "1" || q.Get("all") == "true"

	var filter core.Status
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		filter = core.Status(strings.ToLower(v))
		switch filter {
		case core.StatusPaid, core.StatusOverdue, core.StatusUpcoming, core.StatusFuture:
		default:
			writeError(w, r, fmt.Errorf("%w: unknown status %q", errInvalidInput, v))
			return
		}
	}

	views, err := s.dashboard.BillsWithStatus(r.Context(), includeInactive)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]billResponse, 0, len(views))
	for _, v := range views {
		if filter != "" && v.Status != filter {
			continue
		}
		out = append(out, toBillResponse(v, false))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var req billRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b := newBill()
	if err := req.apply(&b, s.loc); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.bills.Create(r.Context(), b)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeBill(w, r, http.StatusCreated, created.ID)
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	s.writeBill(w, r, http.StatusOK, r.PathValue("id"))
}

func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	var req billRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.bills.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.apply(&b, s.loc); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.bills.Update(r.Context(), b); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeBill(w, r, http.StatusOK, b.ID)
}

func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	if err := s.bills.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMarkPaid pays the next due date, or the occurrence named in the body.
func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := req.parse(s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id := r.PathValue("id")
	var payment core.Payment
	if p.occurrence.IsZero() {
		payment, err = s.bills.MarkPaid(r.Context(), id, p.amount, p.notes)
	} else {
		payment, err = s.bills.MarkOccurrencePaid(r.Context(), id, p.occurrence, p.amount, p.notes)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResponse(payment))
}

func (s *Server) handleUnmarkOccurrence(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("occurrence")
	if strings.TrimSpace(raw) == "" {
		writeError(w, r, fmt.Errorf("%w: occurrence is required", errInvalidInput))
		return
	}
	occ, err := parseDate(raw, s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	removed, err := s.bills.UnmarkOccurrence(r.Context(), r.PathValue("id"), occ)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// writeBill answers with the stored bill, its payments and its status.
func (s *Server) writeBill(w http.ResponseWriter, r *http.Request, status int, id string) {
	view, err := s.dashboard.Bill(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, toBillResponse(view, true))
}

