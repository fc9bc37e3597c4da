package http

import (
	"fmt"
	"net/http"
	"strings"

	"duetrack/internal/log"
)

// maxUpcomingDays bounds the horizon of /api/upcoming.
const maxUpcomingDays = 366

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	params := ParseMonthParams(r.URL.Query(), s.dashboard.Today())
	if params.Month < 1 || params.Month > 12 {
		writeError(w, r, fmt.Errorf("%w: month must be between 1 and 12", errInvalidInput))
		return
	}
	summary, err := s.dashboard.Summary(r.Context(), params.Year, params.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResponse(summary))
}

func (s *Server) handleCalendarDay(w http.ResponseWriter, r *http.Request) {
	day := s.dashboard.Today()
	if v := strings.TrimSpace(r.URL.Query().Get("date")); v != "" {
		d, err := parseDate(v, s.loc)
		if err != nil {
			writeError(w, r, err)
			return
		}
		day = d
	}
	items, err := s.dashboard.OccurrencesOn(r.Context(), day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDueItemResponses(items))
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r.URL.Query(), 7, maxUpcomingDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.dashboard.DueWithin(r.Context(), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDueItemResponses(items))
}

func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	data, err := s.dashboard.Widget(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := s.reminders.Upcoming(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReminderResponses(reminders))
}

func (s *Server) handleCalendarFeed(w http.ResponseWriter, r *http.Request) {
	feed, err := s.dashboard.CalendarFeed(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="duetrack.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(feed); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to write calendar feed", log.FieldError, err)
	}
}
