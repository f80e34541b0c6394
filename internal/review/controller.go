// Package review drives the appointment review page: it shows the proposed
// booking, collects optional patient details and commits the booking.
package review

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"medbook/internal/booking"
	"medbook/internal/calendar"
	"medbook/internal/domain"
	"medbook/internal/events"
	"medbook/internal/models"
	"medbook/internal/navigation"

	"github.com/rs/zerolog"
)

var ErrIntakeClosed = errors.New("patient intake is not open")

type State int

const (
	StateReviewing State = iota
	StatePatientIntakeOpen
)

func (s State) String() string {
	if s == StatePatientIntakeOpen {
		return "patient_intake_open"
	}
	return "reviewing"
}

// ValidationError names the first patient field that failed validation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// PatientForm is the raw intake input.
type PatientForm struct {
	Name     string `json:"name"`
	Age      string `json:"age"`
	Gender   string `json:"gender"`
	Mobile   string `json:"mobile"`
	Relation string `json:"relation"`
	Weight   string `json:"weight"`
	Problem  string `json:"problem"`
}

// Validate returns the cleaned patient snapshot.
func (f PatientForm) Validate() (*models.Patient, error) {
	p := &models.Patient{
		Name:    strings.TrimSpace(f.Name),
		Mobile:  strings.TrimSpace(f.Mobile),
		Age:     strings.TrimSpace(f.Age),
		Weight:  strings.TrimSpace(f.Weight),
		Problem: strings.TrimSpace(f.Problem),
	}
	if p.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "name is required"}
	}
	if p.Mobile == "" {
		return nil, &ValidationError{Field: "mobile", Message: "mobile is required"}
	}
	if p.Age != "" {
		age, err := strconv.Atoi(p.Age)
		if err != nil || age < 0 || age > 150 {
			return nil, &ValidationError{Field: "age", Message: "age must be a whole number between 0 and 150"}
		}
		p.Age = strconv.Itoa(age)
	}

	var ok bool
	if p.Gender, ok = pick(f.Gender, models.Genders); !ok {
		return nil, &ValidationError{Field: "gender", Message: "gender must be one of " + strings.Join(models.Genders, ", ")}
	}
	if p.Relation, ok = pick(f.Relation, models.Relations); !ok {
		return nil, &ValidationError{Field: "relation", Message: "relation must be one of " + strings.Join(models.Relations, ", ")}
	}
	return p, nil
}

// pick matches v case-insensitively against choices; blank means the first.
func pick(v string, choices []string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return choices[0], true
	}
	for _, c := range choices {
		if strings.EqualFold(v, c) {
			return c, true
		}
	}
	return "", false
}

type Deps struct {
	Store     *booking.Store
	Navigator domain.Navigator
	Events    domain.EventPublisher
	Logger    *zerolog.Logger
}

// View is what the review page renders.
type View struct {
	State       string          `json:"state"`
	Source      booking.Source  `json:"source"`
	Doctor      models.Doctor   `json:"doctor"`
	Specialty   string          `json:"specialty"`
	When        string          `json:"when"`
	Slot        string          `json:"slot"`
	Token       string          `json:"tkn"`
	StatusLabel string          `json:"statusLabel"`
	Patient     *models.Patient `json:"patient,omitempty"`
}

type Controller struct {
	sessionID string
	deps      Deps

	mu     sync.Mutex
	state  State
	source booking.Source
	draft  *models.BookingPayload
}

func New(sessionID string, deps Deps) *Controller {
	if deps.Logger == nil {
		nop := zerolog.Nop()
		deps.Logger = &nop
	}
	return &Controller{sessionID: sessionID, deps: deps}
}

// Load builds the draft from navigation, the session's booking, the fallback
// appointment, the previous draft or defaults, in that order. The committed booking is left
// untouched; the draft is kept aside so its token survives a reload.
func (c *Controller) Load(ctx context.Context, nav *models.Navigation) View {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := c.deps.Store.Peek(ctx, c.sessionID, nav)
	c.source = res.Source
	c.draft = res.Payload
	if c.draft == nil {
		c.draft = c.deps.Store.Draft(ctx, c.sessionID)
	}
	if c.draft == nil {
		c.draft = c.deps.Store.Default(ctx, c.sessionID)
	}
	c.draft.Normalize()
	if err := c.deps.Store.SaveDraft(ctx, c.sessionID, c.draft); err != nil {
		c.deps.Logger.Warn().Err(err).Str("session_id", c.sessionID).Msg("failed to keep review draft")
	}
	c.state = StateReviewing
	return c.view()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Draft returns a copy of the booking being reviewed.
func (c *Controller) Draft() *models.BookingPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.Clone()
}

func (c *Controller) OpenIntake() {
	c.mu.Lock()
	c.state = StatePatientIntakeOpen
	c.mu.Unlock()
}

// CancelIntake closes the form; nothing typed into it is kept.
func (c *Controller) CancelIntake() {
	c.mu.Lock()
	c.state = StateReviewing
	c.mu.Unlock()
}

// SavePatient commits the booking with the given patient and moves on to the
// summary. A second save replaces the earlier patient.
func (c *Controller) SavePatient(ctx context.Context, form PatientForm) (*models.BookingPayload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePatientIntakeOpen {
		return nil, ErrIntakeClosed
	}
	if c.draft == nil {
		return nil, booking.ErrNoBooking
	}
	patient, err := form.Validate()
	if err != nil {
		return nil, err
	}

	p := c.draft.Clone()
	p.Patient = patient
	c.deps.Store.Tokens().Ensure(p)
	p.Normalize()

	if err := c.deps.Store.Save(ctx, c.sessionID, p); err != nil {
		return nil, fmt.Errorf("commit booking: %w", err)
	}
	if err := c.deps.Store.ClearDraft(ctx, c.sessionID); err != nil {
		c.deps.Logger.Warn().Err(err).Str("session_id", c.sessionID).Msg("failed to clear review draft")
	}
	if c.deps.Events != nil {
		if err := c.deps.Events.PublishJSON(events.EventBookingCommitted, events.Snapshot(c.sessionID, p, "")); err != nil {
			c.deps.Logger.Warn().Err(err).Msg("failed to publish booking_committed")
		}
	}
	c.deps.Logger.Info().Str("session_id", c.sessionID).Str("tkn", p.Token).Msg("booking committed")

	c.draft = p
	c.state = StateReviewing
	c.navigate(navigation.Summary, &models.Navigation{Booking: p.Clone()})
	return p.Clone(), nil
}

// Continue skips intake and goes to payment with the appointment, doctor and
// token only.
func (c *Controller) Continue(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.draft == nil {
		return booking.ErrNoBooking
	}
	d := c.draft.Clone()
	c.navigate(navigation.Payment, &models.Navigation{Booking: &models.BookingPayload{
		Appointment: d.Appointment,
		Doctor:      d.Doctor,
		Token:       d.Token,
	}})
	return nil
}

// CalendarEvent is the review page's "add to calendar" entry.
func (c *Controller) CalendarEvent() (calendar.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.draft == nil {
		return calendar.Event{}, booking.ErrNoBooking
	}
	name := doctorName(c.draft)
	specialty := "General"
	if c.draft.Doctor != nil && c.draft.Doctor.Specialty != "" {
		specialty = models.TitleCaseSpecialty(c.draft.Doctor.Specialty)
	}
	start, _ := c.draft.StartTime()
	end, ok := c.draft.EndTime()
	if !ok || !end.After(start) {
		end = start.Add(models.DefaultSlotDuration)
	}
	return calendar.Event{
		Title:       name + " - Appointment",
		Description: fmt.Sprintf("Appointment %s with %s (%s). Type: In-person. Duration: 30m.", c.draft.Token, name, specialty),
		Start:       start,
		End:         end,
		Location:    "Hospital / Clinic",
	}, nil
}

func (c *Controller) navigate(dest navigation.Destination, nav *models.Navigation) {
	if c.deps.Navigator != nil {
		c.deps.Navigator.Navigate(dest, nav)
	}
}

func (c *Controller) view() View {
	p := c.draft
	v := View{
		State:       c.state.String(),
		Source:      c.source,
		Slot:        models.OrPlaceholder(p.Slot),
		Token:       p.Token,
		StatusLabel: p.Status.Label(),
		Specialty:   "General",
		When:        models.Placeholder,
	}
	if p.Doctor != nil {
		v.Doctor = *p.Doctor
		if p.Doctor.Specialty != "" {
			v.Specialty = models.TitleCaseSpecialty(p.Doctor.Specialty)
		}
	}
	if start, ok := p.StartTime(); ok {
		v.When = models.ReadableTime(start, c.deps.Store.Slots().Location())
	}
	if p.Patient != nil {
		patient := *p.Patient
		v.Patient = &patient
	}
	return v
}

func doctorName(p *models.BookingPayload) string {
	if p.Doctor != nil && p.Doctor.Name != "" {
		return p.Doctor.Name
	}
	return "Doctor"
}
