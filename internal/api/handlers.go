package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"medbook/internal/booking"
	"medbook/internal/catalog"
	"medbook/internal/metrics"
	"medbook/internal/models"
	"medbook/internal/navigation"
	"medbook/internal/review"
	"medbook/internal/share"
	"medbook/internal/summary"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxBodyBytes = 64 << 10

type ctxKey int

const sessionKey ctxKey = iota

// sessionMiddleware validates the session ID and serializes the session's
// requests.
func (s *HTTPServer) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := strings.TrimSpace(chi.URLParam(r, "sid"))
		if _, err := uuid.Parse(sid); err != nil {
			writeError(w, http.StatusBadRequest, "invalid session id")
			return
		}
		unlock := s.locks.Lock(sid)
		defer unlock()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sid)))
	})
}

func sessionID(r *http.Request) string {
	sid, _ := r.Context().Value(sessionKey).(string)
	return sid
}

// decodeOptional decodes a JSON body into v. An empty body leaves v untouched
// and reports false.
func decodeOptional(r *http.Request, v any) (bool, error) {
	if r.Body == nil {
		return false, nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return false, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, err
	}
	return true, nil
}

// navigationBody reads an optional navigation payload.
func navigationBody(r *http.Request) (*models.Navigation, error) {
	var nav models.Navigation
	ok, err := decodeOptional(r, &nav)
	if err != nil || !ok || nav.IsEmpty() {
		return nil, err
	}
	return &nav, nil
}

type transitionResponse struct {
	Next    navigation.Destination `json:"next"`
	Payload *models.Navigation     `json:"payload,omitempty"`
}

func lastTransition(rec *navigation.Recorder) *transitionResponse {
	tr, ok := rec.Last()
	if !ok {
		return nil
	}
	return &transitionResponse{Next: tr.To, Payload: tr.Payload}
}

func (s *HTTPServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": uuid.NewString()})
}

func (s *HTTPServer) handleDoctors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"doctors": s.deps.Catalog.Doctors()})
}

func (s *HTTPServer) handleDoctor(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Catalog.DoctorByID(chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrDoctorNotFound) {
		writeError(w, http.StatusNotFound, "doctor not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *HTTPServer) handleLastAppointment(w http.ResponseWriter, r *http.Request) {
	var apt models.Appointment
	if ok, err := decodeOptional(r, &apt); err != nil || !ok {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	err := s.deps.Store.SaveLastAppointment(r.Context(), sessionID(r), &apt)
	switch {
	case errors.Is(err, booking.ErrInvalidAppointment):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.logger.Error().Err(err).Str("session_id", sessionID(r)).Msg("save last appointment")
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *HTTPServer) reviewController(r *http.Request, rec *navigation.Recorder) *review.Controller {
	return review.New(sessionID(r), review.Deps{
		Store:     s.deps.Store,
		Navigator: rec,
		Events:    s.deps.Events,
		Logger:    s.logger,
	})
}

func (s *HTTPServer) handleReview(w http.ResponseWriter, r *http.Request) {
	nav, err := navigationBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	c := s.reviewController(r, navigation.NewRecorder())
	writeJSON(w, http.StatusOK, c.Load(r.Context(), nav))
}

func (s *HTTPServer) handleReviewPatient(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Navigation *models.Navigation  `json:"navigation"`
		Patient    *review.PatientForm `json:"patient"`
	}
	if ok, err := decodeOptional(r, &body); err != nil || !ok || body.Patient == nil {
		writeError(w, http.StatusBadRequest, "patient is required")
		return
	}

	rec := navigation.NewRecorder()
	c := s.reviewController(r, rec)
	c.Load(r.Context(), body.Navigation)
	c.OpenIntake()

	_, err := c.SavePatient(r.Context(), *body.Patient)
	var verr *review.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": verr.Message, "field": verr.Field})
		return
	case err != nil:
		s.logger.Error().Err(err).Str("session_id", sessionID(r)).Msg("save patient")
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, lastTransition(rec))
}

func (s *HTTPServer) handleReviewContinue(w http.ResponseWriter, r *http.Request) {
	nav, err := navigationBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rec := navigation.NewRecorder()
	c := s.reviewController(r, rec)
	c.Load(r.Context(), nav)
	if err := c.Continue(r.Context()); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, lastTransition(rec))
}

func (s *HTTPServer) handleReviewCalendar(w http.ResponseWriter, r *http.Request) {
	nav, err := navigationBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	c := s.reviewController(r, navigation.NewRecorder())
	c.Load(r.Context(), nav)
	ev, err := c.CalendarEvent()
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	metrics.IncCalendarExport()
	s.deps.Encoder.Download(w, ev, "", s.logger)
}

// withSummary loads the summary page for the session and answers 404 with
// the redirect the client should perform when there is no booking.
func (s *HTTPServer) withSummary(w http.ResponseWriter, r *http.Request, nav *models.Navigation, rec *navigation.Recorder, fn func(c *summary.Controller, view summary.View)) {
	c := summary.New(sessionID(r), summary.Deps{
		Store:         s.deps.Store,
		Navigator:     rec,
		Events:        s.deps.Events,
		Share:         share.NewChain(s.deps.Sharer, &share.Buffer{}, s.logger),
		Logger:        s.logger,
		RedirectDelay: s.cfg.Session.RedirectDelay,
		Landing:       navigation.Destination(s.cfg.Session.Landing),
	})
	defer c.Close()

	view, ok := c.Load(r.Context(), nav)
	if !ok {
		resp := map[string]any{"error": view.Message}
		if to, delay, pending := c.PendingRedirect(); pending {
			resp["redirect"] = map[string]any{"to": to, "delay_ms": delay.Milliseconds()}
		}
		writeJSON(w, http.StatusNotFound, resp)
		return
	}
	fn(c, view)
}

func (s *HTTPServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	var nav *models.Navigation
	if r.Method == http.MethodPost {
		var err error
		if nav, err = navigationBody(r); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	s.withSummary(w, r, nav, navigation.NewRecorder(), func(c *summary.Controller, view summary.View) {
		writeJSON(w, http.StatusOK, view)
	})
}

func (s *HTTPServer) handleSummaryPay(w http.ResponseWriter, r *http.Request) {
	s.withSummary(w, r, nil, navigation.NewRecorder(), func(c *summary.Controller, _ summary.View) {
		msg, err := c.Pay(r.Context())
		if err != nil {
			s.logger.Error().Err(err).Str("session_id", sessionID(r)).Msg("pay")
			writeError(w, http.StatusServiceUnavailable, "session store unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": msg, "summary": c.View()})
	})
}

func (s *HTTPServer) handleSummaryVisitType(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VisitType string `json:"visitType"`
	}
	if ok, err := decodeOptional(r, &body); err != nil || !ok {
		writeError(w, http.StatusBadRequest, "visitType is required")
		return
	}
	s.withSummary(w, r, nil, navigation.NewRecorder(), func(c *summary.Controller, _ summary.View) {
		err := c.SetVisitType(r.Context(), body.VisitType)
		switch {
		case errors.Is(err, summary.ErrInvalidVisitType):
			writeError(w, http.StatusBadRequest, err.Error())
		case err != nil:
			s.logger.Error().Err(err).Str("session_id", sessionID(r)).Msg("set visit type")
			writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		default:
			writeJSON(w, http.StatusOK, c.View())
		}
	})
}

func (s *HTTPServer) handleSummaryCalendar(w http.ResponseWriter, r *http.Request) {
	s.withSummary(w, r, nil, navigation.NewRecorder(), func(c *summary.Controller, _ summary.View) {
		ev, filename, err := c.CalendarEvent()
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		metrics.IncCalendarExport()
		s.deps.Encoder.Download(w, ev, filename, s.logger)
	})
}

func (s *HTTPServer) handleSummaryShare(w http.ResponseWriter, r *http.Request) {
	s.withSummary(w, r, nil, navigation.NewRecorder(), func(c *summary.Controller, _ summary.View) {
		outcome, text, err := c.Share(r.Context())
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"outcome": outcome, "text": text})
	})
}

func (s *HTTPServer) handleSummaryEdit(w http.ResponseWriter, r *http.Request) {
	rec := navigation.NewRecorder()
	s.withSummary(w, r, nil, rec, func(c *summary.Controller, _ summary.View) {
		if err := c.Edit(); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, lastTransition(rec))
	})
}
