package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"medbook/internal/booking"
	"medbook/internal/calendar"
	"medbook/internal/config"
	"medbook/internal/domain"
	"medbook/internal/metrics"
	"medbook/internal/share"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Deps are the collaborators the HTTP surface drives.
type Deps struct {
	Store    *booking.Store
	Catalog  domain.Catalog
	Sessions domain.SessionStore
	Events   domain.EventPublisher
	Encoder  *calendar.Encoder
	Sharer   share.Sharer
}

// HTTPServer exposes the booking flow as a JSON API.
type HTTPServer struct {
	cfg     *config.Config
	deps    Deps
	server  *http.Server
	limiter *rateLimiter
	locks   *sessionLocks
	logger  *zerolog.Logger
}

func NewHTTPServer(cfg *config.Config, deps Deps, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{
		cfg:     cfg,
		deps:    deps,
		limiter: newRateLimiter(cfg.API.RateLimit),
		locks:   newSessionLocks(),
		logger:  logger,
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.HTTP.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)
	r.Use(s.limiter.Wrap)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/doctors", s.handleDoctors)
		r.Get("/doctors/{id}", s.handleDoctor)
		r.Post("/sessions", s.handleCreateSession)

		r.Route("/sessions/{sid}", func(r chi.Router) {
			r.Use(s.sessionMiddleware)

			r.Put("/last-appointment", s.handleLastAppointment)

			r.Post("/review", s.handleReview)
			r.Post("/review/patient", s.handleReviewPatient)
			r.Post("/review/continue", s.handleReviewContinue)
			r.Post("/review/calendar.ics", s.handleReviewCalendar)

			r.Get("/summary", s.handleSummary)
			r.Post("/summary", s.handleSummary)
			r.Post("/summary/pay", s.handleSummaryPay)
			r.Put("/summary/visit-type", s.handleSummaryVisitType)
			r.Get("/summary/calendar.ics", s.handleSummaryCalendar)
			r.Post("/summary/share", s.handleSummaryShare)
			r.Post("/summary/edit", s.handleSummaryEdit)
		})
	})
	return r
}

// Handler returns the routed handler, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports degraded rather than failing when the primary store is
// down: the in-memory fallback keeps serving.
func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	pinger, ok := s.deps.Sessions.(domain.Pinger)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := pinger.Ping(ctx); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.IncHTTP(route)
		s.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", recorder.status).
			Dur("dur", time.Since(start)).
			Msg("http")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
