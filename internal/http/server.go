// Package http serves the JSON API, the calendar feed and the health probes.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"duetrack/internal/log"
	"duetrack/internal/services"
)

// Deps are the services the handlers call.
type Deps struct {
	Bills     *services.BillService
	Dashboard *services.DashboardService
	Reminders *services.ReminderProcessor
	// Ready backs /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

// Options tune the server; zero values mean defaults.
type Options struct {
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	bills       *services.BillService
	dashboard   *services.DashboardService
	reminders   *services.ReminderProcessor
	ready       func(ctx context.Context) error
	loc         *time.Location
	logger      *log.Logger
	rateLimiter *rateLimiter
	metrics     *securityMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, loc *time.Location, logger *log.Logger, opts Options) *Server {
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		bills:       deps.Bills,
		dashboard:   deps.Dashboard,
		reminders:   deps.Reminders,
		ready:       deps.Ready,
		loc:         loc,
		logger:      logger.WithComponent(log.ComponentHTTP),
		rateLimiter: newRateLimiter(opts.RateLimitPerMinute),
		metrics:     &securityMetrics{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/bills", s.handleListBills)
	mux.HandleFunc("POST /api/bills", s.handleCreateBill)
	mux.HandleFunc("GET /api/bills/{id}", s.handleGetBill)
	mux.HandleFunc("PUT /api/bills/{id}", s.handleUpdateBill)
	mux.HandleFunc("DELETE /api/bills/{id}", s.handleDeleteBill)
	mux.HandleFunc("POST /api/bills/{id}/payments", s.handleMarkPaid)
	mux.HandleFunc("DELETE /api/bills/{id}/payments", s.handleUnmarkOccurrence)

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/calendar", s.handleCalendarDay)
	mux.HandleFunc("GET /api/upcoming", s.handleUpcoming)
	mux.HandleFunc("GET /api/widget", s.handleWidget)
	mux.HandleFunc("GET /calendar.ics", s.handleCalendarFeed)
	if s.reminders != nil {
		mux.HandleFunc("GET /api/reminders", s.handleReminders)
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           log.Middleware(s.logger)(s.withRequestContext(log.AccessLog(s.withSecurity(mux)))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// withRequestContext tags the request logger with a request id and the
// client address.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := generateRequestID()
		clientIP := extractClientIP(r)
		w.Header().Set("X-Request-ID", requestID)

		logger := log.FromContext(r.Context()).With(log.FieldRequestID, requestID, log.FieldClientIP, clientIP)
		ctx := context.WithValue(r.Context(), log.LoggerContextKey, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withSecurity applies security headers and rate limits mutating requests.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		clientIP := extractClientIP(r)
		applySecurityHeaders(w)

		if detectSuspiciousRequest(r, s.metrics) {
			log.FromContext(ctx).WarnContext(ctx, "Suspicious request",
				log.FieldMethod, r.Method, log.FieldPath, r.URL.Path, log.FieldUserAgent, r.UserAgent())
		}

		if r.Method != http.MethodGet && r.Method != http.MethodHead && !s.rateLimiter.allow(clientIP, s.metrics) {
			log.FromContext(ctx).WarnContext(ctx, "Rate limit exceeded", log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded, please try again later"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops background routines and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
