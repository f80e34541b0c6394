// Package booking keeps a session's booking payload alive across pages: it
// resolves the payload from navigation, the persisted copy or the fallback
// appointment, normalizes it and writes it back.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"medbook/internal/domain"
	"medbook/internal/metrics"
	"medbook/internal/models"
	"medbook/internal/slot"
	"medbook/internal/token"

	"github.com/rs/zerolog"
)

var (
	ErrNoBooking          = errors.New("no booking found")
	ErrInvalidAppointment = errors.New("invalid appointment")
)

// Source tells where a resolved payload came from.
type Source string

const (
	SourceNavigation Source = "navigation"
	SourcePersisted  Source = "persisted"
	SourceFallback   Source = "fallback"
	SourceAbsent     Source = "absent"
)

// Resolution is the outcome of Resolve. Payload is nil only for SourceAbsent.
type Resolution struct {
	Source  Source
	Payload *models.BookingPayload
}

func (r Resolution) Found() bool {
	return r.Payload != nil
}

type Store struct {
	sessions domain.SessionStore
	catalog  domain.Catalog
	tokens   *token.Generator
	slots    *slot.Resolver
	logger   *zerolog.Logger
}

func NewStore(sessions domain.SessionStore, catalog domain.Catalog, tokens *token.Generator, slots *slot.Resolver, logger *zerolog.Logger) *Store {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Store{
		sessions: sessions,
		catalog:  catalog,
		tokens:   tokens,
		slots:    slots,
		logger:   logger,
	}
}

// Slots exposes the resolver so page controllers share one clock and zone.
func (s *Store) Slots() *slot.Resolver {
	return s.slots
}

// Tokens exposes the token generator.
func (s *Store) Tokens() *token.Generator {
	return s.tokens
}

// Resolve finds the session's booking and persists the normalized result.
// A persisted payload that needed no normalization is not written again.
func (s *Store) Resolve(ctx context.Context, sessionID string, nav *models.Navigation) Resolution {
	res, dirty := s.peek(ctx, sessionID, nav)
	if res.Found() && dirty {
		if err := s.Save(ctx, sessionID, res.Payload); err != nil {
			s.logger.Error().Err(err).Str("session_id", sessionID).Str("source", string(res.Source)).Msg("failed to persist resolved booking")
		}
	}
	metrics.IncResolution(string(res.Source))
	return res
}

// Peek resolves like Resolve but never writes. The review page uses it to
// build a draft that is only persisted once the user commits.
func (s *Store) Peek(ctx context.Context, sessionID string, nav *models.Navigation) Resolution {
	res, _ := s.peek(ctx, sessionID, nav)
	return res
}

func (s *Store) peek(ctx context.Context, sessionID string, nav *models.Navigation) (Resolution, bool) {
	if p := s.fromNavigation(ctx, sessionID, nav); p != nil {
		p.Normalize()
		return Resolution{Source: SourceNavigation, Payload: p}, true
	}

	current, err := s.Current(ctx, sessionID)
	switch {
	case err == nil:
		changed := current.Normalize()
		return Resolution{Source: SourcePersisted, Payload: current}, changed
	case !errors.Is(err, ErrNoBooking):
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("current booking unreadable")
	}

	apt, err := s.LastAppointment(ctx, sessionID)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("last appointment unreadable")
	}
	if apt != nil {
		p := s.rebuild(apt)
		s.reuse(ctx, sessionID, p)
		s.tokens.Ensure(p)
		return Resolution{Source: SourceFallback, Payload: p}, true
	}

	return Resolution{Source: SourceAbsent}, false
}

// fromNavigation turns inbound navigation state into a payload. A full payload
// is taken as is; {appointment, doctor} is promoted. Either gets a token,
// reusing the persisted one when it describes the same appointment.
func (s *Store) fromNavigation(ctx context.Context, sessionID string, nav *models.Navigation) *models.BookingPayload {
	if nav.IsEmpty() {
		return nil
	}
	if nav.Booking != nil {
		p := nav.Booking.Clone()
		s.fillSchedule(p)
		if p.Token == "" {
			s.reuse(ctx, sessionID, p)
		}
		s.tokens.Ensure(p)
		return p
	}

	apt := models.Appointment{}
	if nav.Appointment != nil {
		apt = *nav.Appointment
	}
	doctor := s.doctorFor(apt.DoctorID, nav.Doctor)
	if apt.DoctorID == "" {
		apt.DoctorID = doctor.ID
	}
	if strings.TrimSpace(apt.Slot) == "" {
		apt.Slot = models.DefaultSlot
	}
	if strings.TrimSpace(apt.Start) == "" {
		apt.Start = models.FormatTime(s.slots.Now())
	}

	p := &models.BookingPayload{
		Appointment: &apt,
		Doctor:      doctor,
		Slot:        apt.Slot,
	}
	s.fillSchedule(p)
	s.reuse(ctx, sessionID, p)
	s.tokens.Ensure(p)
	return p
}

// reuse copies the token, and the patient when p has none, from the committed
// booking or review draft describing the same appointment.
func (s *Store) reuse(ctx context.Context, sessionID string, p *models.BookingPayload) {
	for _, prev := range s.previous(ctx, sessionID) {
		if prev.Token == "" || !sameAppointment(prev.Appointment, p.Appointment) {
			continue
		}
		p.Token = prev.Token
		if p.Patient == nil {
			p.Patient = prev.Patient
		}
		return
	}
}

// previous returns the committed booking and the review draft, whichever exist.
func (s *Store) previous(ctx context.Context, sessionID string) []*models.BookingPayload {
	var out []*models.BookingPayload
	if current, err := s.Current(ctx, sessionID); err == nil {
		out = append(out, current)
	}
	if draft, err := s.read(ctx, sessionID, models.KeyReviewDraft); err == nil && draft != nil {
		out = append(out, draft)
	}
	return out
}

// Default is the draft used when nothing else resolves: the catalog's default
// doctor, today and the default slot.
func (s *Store) Default(ctx context.Context, sessionID string) *models.BookingPayload {
	p := s.fromNavigation(ctx, sessionID, &models.Navigation{Appointment: &models.Appointment{}})
	p.Normalize()
	return p
}

// Reconstruct builds a best-effort payload from a fallback appointment with a
// fresh token.
func (s *Store) Reconstruct(apt *models.Appointment) *models.BookingPayload {
	p := s.rebuild(apt)
	p.Token = s.tokens.New()
	return p
}

func (s *Store) rebuild(apt *models.Appointment) *models.BookingPayload {
	a := *apt
	p := &models.BookingPayload{
		Appointment: &a,
		Doctor:      s.doctorFor(a.DoctorID, nil),
		Slot:        a.Slot,
		Start:       a.Start,
		End:         a.End,
	}
	if a.PatientID != "" {
		if patient, err := s.catalog.PatientByID(a.PatientID); err == nil {
			p.Patient = patient
		}
	}
	if p.Slot == "" {
		p.Slot = models.DefaultSlot
	}
	if p.End == "" {
		p.End = p.Start
	}
	p.Normalize()
	return p
}

// fillSchedule derives start and end from the appointment and slot when the
// payload does not carry them yet.
func (s *Store) fillSchedule(p *models.BookingPayload) {
	if p.Slot == "" && p.Appointment != nil {
		p.Slot = p.Appointment.Slot
	}
	if p.Start != "" && p.End != "" {
		return
	}
	ref := ""
	if p.Appointment != nil {
		ref = p.Appointment.Start
	}
	label := p.Slot
	if label == "" {
		label = models.DefaultSlot
	}
	start, end := s.slots.ResolveISO(ref, label)
	if p.Start == "" {
		p.Start = models.FormatTime(start)
	}
	if p.End == "" {
		p.End = models.FormatTime(end)
	}
}

// PatientFor returns the payload's patient, or the catalog patient its
// appointment names. Nil when neither is known.
func (s *Store) PatientFor(p *models.BookingPayload) *models.Patient {
	if p == nil {
		return nil
	}
	if p.Patient != nil {
		patient := *p.Patient
		return &patient
	}
	if p.Appointment != nil && p.Appointment.PatientID != "" {
		if patient, err := s.catalog.PatientByID(p.Appointment.PatientID); err == nil {
			return patient
		}
	}
	return nil
}

func (s *Store) doctorFor(id string, snapshot *models.Doctor) *models.Doctor {
	if snapshot != nil && snapshot.ID != "" {
		d := *snapshot
		return &d
	}
	if id != "" {
		if d, err := s.catalog.DoctorByID(id); err == nil {
			return d
		}
		s.logger.Debug().Str("doctor_id", id).Msg("doctor not in catalog, using default")
	}
	return s.catalog.DefaultDoctor()
}

func sameAppointment(a, b *models.Appointment) bool {
	if a == nil || b == nil {
		return false
	}
	return a.DoctorID == b.DoctorID && a.Start == b.Start && a.Slot == b.Slot
}

// Current reads the persisted booking. A missing or unparsable value is
// reported as ErrNoBooking.
func (s *Store) Current(ctx context.Context, sessionID string) (*models.BookingPayload, error) {
	p, err := s.read(ctx, sessionID, models.KeyCurrentBooking)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNoBooking
	}
	return p, nil
}

// Save rewrites the whole persisted booking.
func (s *Store) Save(ctx context.Context, sessionID string, p *models.BookingPayload) error {
	return s.write(ctx, sessionID, models.KeyCurrentBooking, p)
}

// SaveDraft keeps the uncommitted review draft. It is only consulted for token
// reuse, never resolved as a booking.
func (s *Store) SaveDraft(ctx context.Context, sessionID string, p *models.BookingPayload) error {
	return s.write(ctx, sessionID, models.KeyReviewDraft, p)
}

// Draft reads the review draft; nil when there is none.
func (s *Store) Draft(ctx context.Context, sessionID string) *models.BookingPayload {
	p, err := s.read(ctx, sessionID, models.KeyReviewDraft)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("review draft unreadable")
		return nil
	}
	return p
}

// ClearDraft drops the review draft once the booking it described is committed.
func (s *Store) ClearDraft(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID, models.KeyReviewDraft); err != nil {
		return fmt.Errorf("clear %s: %w", models.KeyReviewDraft, err)
	}
	return nil
}

func (s *Store) read(ctx context.Context, sessionID, key string) (*models.BookingPayload, error) {
	raw, err := s.sessions.Get(ctx, sessionID, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var p models.BookingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Str("key", key).Msg("discarding malformed booking")
		return nil, nil
	}
	return &p, nil
}

func (s *Store) write(ctx context.Context, sessionID, key string, p *models.BookingPayload) error {
	if p == nil {
		return ErrNoBooking
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode booking: %w", err)
	}
	if err := s.sessions.Set(ctx, sessionID, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Update applies mutate to a copy of p and persists it. The caller adopts the
// returned payload only when the write succeeded.
func (s *Store) Update(ctx context.Context, sessionID string, p *models.BookingPayload, mutate func(*models.BookingPayload)) (*models.BookingPayload, error) {
	if p == nil {
		return nil, ErrNoBooking
	}
	next := p.Clone()
	mutate(next)
	next.Normalize()
	if err := s.Save(ctx, sessionID, next); err != nil {
		return nil, err
	}
	return next, nil
}

// LastAppointment reads the fallback slot. Missing and malformed values both
// yield (nil, nil).
func (s *Store) LastAppointment(ctx context.Context, sessionID string) (*models.Appointment, error) {
	raw, err := s.sessions.Get(ctx, sessionID, models.KeyLastAppointment)
	if err != nil {
		return nil, fmt.Errorf("read last appointment: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var apt models.Appointment
	if err := json.Unmarshal(raw, &apt); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("discarding malformed last appointment")
		return nil, nil
	}
	if apt.DoctorID == "" && apt.Start == "" {
		return nil, nil
	}
	return &apt, nil
}

// SaveLastAppointment records the appointment used for later reconstruction.
func (s *Store) SaveLastAppointment(ctx context.Context, sessionID string, apt *models.Appointment) error {
	if apt == nil || strings.TrimSpace(apt.DoctorID) == "" {
		return fmt.Errorf("%w: doctorId is required", ErrInvalidAppointment)
	}
	if _, err := models.ParseTime(apt.Start); err != nil {
		return fmt.Errorf("%w: start must be an ISO timestamp", ErrInvalidAppointment)
	}
	raw, err := json.Marshal(apt)
	if err != nil {
		return fmt.Errorf("encode appointment: %w", err)
	}
	if err := s.sessions.Set(ctx, sessionID, models.KeyLastAppointment, raw); err != nil {
		return fmt.Errorf("write last appointment: %w", err)
	}
	return nil
}
