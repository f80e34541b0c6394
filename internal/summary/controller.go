// Package summary drives the appointment summary page: payment toggle, visit
// type, calendar export, sharing and the redirect away when there is nothing
// to show.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"medbook/internal/booking"
	"medbook/internal/calendar"
	"medbook/internal/domain"
	"medbook/internal/events"
	"medbook/internal/models"
	"medbook/internal/navigation"
	"medbook/internal/share"

	"github.com/rs/zerolog"
)

var ErrInvalidVisitType = errors.New("invalid visit type")

const (
	MessageNoBooking = "No booking found"
	MessagePaid      = "Payment successful (demo). Status updated to Confirmed."
)

type Deps struct {
	Store         *booking.Store
	Navigator     domain.Navigator
	Events        domain.EventPublisher
	Share         *share.Chain
	Logger        *zerolog.Logger
	RedirectDelay time.Duration
	Landing       navigation.Destination
}

// View is what the summary page renders. Missing display fields hold the
// placeholder.
type View struct {
	Found           bool                   `json:"found"`
	Message         string                 `json:"message,omitempty"`
	Source          booking.Source         `json:"source"`
	DoctorName      string                 `json:"doctorName,omitempty"`
	Specialty       string                 `json:"specialty,omitempty"`
	Qualification   string                 `json:"qualification,omitempty"`
	Image           string                 `json:"image,omitempty"`
	When            string                 `json:"when,omitempty"`
	Slot            string                 `json:"slot,omitempty"`
	Token           string                 `json:"tkn,omitempty"`
	StatusLabel     string                 `json:"statusLabel,omitempty"`
	PaymentLabel    string                 `json:"paymentLabel,omitempty"`
	PaymentTone     string                 `json:"paymentTone,omitempty"`
	VisitType       models.VisitType       `json:"visitType,omitempty"`
	VisitTypes      []models.VisitType     `json:"visitTypes,omitempty"`
	PatientName     string                 `json:"patientName,omitempty"`
	PatientAge      string                 `json:"patientAge,omitempty"`
	PatientGender   string                 `json:"patientGender,omitempty"`
	PatientMobile   string                 `json:"patientMobile,omitempty"`
	PatientRelation string                 `json:"patientRelation,omitempty"`
	PatientWeight   string                 `json:"patientWeight,omitempty"`
	PatientProblem  string                 `json:"patientProblem,omitempty"`
	Payload         *models.BookingPayload `json:"payload,omitempty"`
}

type Controller struct {
	sessionID string
	deps      Deps

	mu         sync.Mutex
	payload    *models.BookingPayload
	source     booking.Source
	timer      *time.Timer
	redirected bool
	closed     bool
}

func New(sessionID string, deps Deps) *Controller {
	if deps.Logger == nil {
		nop := zerolog.Nop()
		deps.Logger = &nop
	}
	if deps.RedirectDelay <= 0 {
		deps.RedirectDelay = models.DefaultRedirectDelay
	}
	if deps.Landing == "" {
		deps.Landing = navigation.Dashboard
	}
	return &Controller{sessionID: sessionID, deps: deps}
}

// Load resolves the booking. When there is none it schedules a single
// redirect to the landing page and reports false.
func (c *Controller) Load(ctx context.Context, nav *models.Navigation) (View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := c.deps.Store.Resolve(ctx, c.sessionID, nav)
	c.source = res.Source
	if !res.Found() {
		c.payload = nil
		c.scheduleRedirect()
		return View{Found: false, Message: MessageNoBooking, Source: res.Source}, false
	}

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.payload = res.Payload
	return c.view(), true
}

func (c *Controller) scheduleRedirect() {
	if c.closed || c.redirected || c.timer != nil {
		return
	}
	c.timer = time.AfterFunc(c.deps.RedirectDelay, c.redirect)
}

func (c *Controller) redirect() {
	c.mu.Lock()
	if c.closed || c.redirected {
		c.mu.Unlock()
		return
	}
	c.redirected = true
	c.timer = nil
	c.mu.Unlock()

	c.deps.Logger.Debug().Str("session_id", c.sessionID).Str("to", string(c.deps.Landing)).Msg("no booking, redirecting")
	if c.deps.Navigator != nil {
		c.deps.Navigator.Navigate(c.deps.Landing, nil)
	}
}

// PendingRedirect reports a scheduled redirect that has not fired yet.
func (c *Controller) PendingRedirect() (navigation.Destination, time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil || c.closed {
		return "", 0, false
	}
	return c.deps.Landing, c.deps.RedirectDelay, true
}

// Close tears the page down. A pending redirect never fires afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Payload returns a copy of the loaded booking, nil when absent.
func (c *Controller) Payload() *models.BookingPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload.Clone()
}

// View re-renders the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.payload == nil {
		return View{Found: false, Message: MessageNoBooking, Source: c.source}
	}
	return c.view()
}

// Pay marks the booking paid and confirmed.
func (c *Controller) Pay(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.deps.Store.Update(ctx, c.sessionID, c.payload, func(p *models.BookingPayload) {
		p.Payment = models.PaymentPaid
		p.Status = models.StatusConfirmed
	})
	if err != nil {
		return "", err
	}
	c.payload = next
	c.publish(events.EventBookingPaid)
	return MessagePaid, nil
}

// SetVisitType accepts any casing of a known visit type.
func (c *Controller) SetVisitType(ctx context.Context, value string) error {
	v, ok := models.ParseVisitType(value)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidVisitType, value)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.deps.Store.Update(ctx, c.sessionID, c.payload, func(p *models.BookingPayload) {
		p.VisitType = v
	})
	if err != nil {
		return err
	}
	c.payload = next
	c.publish(events.EventBookingVisitTypeChanged)
	return nil
}

// CalendarEvent returns the export entry and its download name.
func (c *Controller) CalendarEvent() (calendar.Event, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.payload == nil {
		return calendar.Event{}, "", booking.ErrNoBooking
	}
	p := c.payload
	start, ok := p.StartTime()
	if !ok {
		start = c.deps.Store.Slots().Now()
	}
	end, ok := p.EndTime()
	if !ok || !end.After(start) {
		end = start.Add(models.DefaultSlotDuration)
	}

	ev := calendar.Event{
		Title:       "Appointment with " + doctorName(p),
		Description: "Token " + p.Token,
		Start:       start,
		End:         end,
		Location:    "Clinic",
	}
	return ev, "appointment_" + strings.TrimPrefix(p.Token, "#") + ".ics", nil
}

func (c *Controller) ShareText() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.payload == nil {
		return "", booking.ErrNoBooking
	}
	return c.shareText(), nil
}

// Share hands the share text to the share chain. The text is returned so the
// caller can show or copy it whatever the outcome.
func (c *Controller) Share(ctx context.Context) (share.Outcome, string, error) {
	c.mu.Lock()
	if c.payload == nil {
		c.mu.Unlock()
		return share.OutcomeFailed, "", booking.ErrNoBooking
	}
	msg := share.Message{SessionID: c.sessionID, Text: c.shareText(), Booking: c.payload.Clone()}
	c.mu.Unlock()

	if c.deps.Share == nil {
		return share.OutcomeFailed, msg.Text, nil
	}
	return c.deps.Share.Share(ctx, msg), msg.Text, nil
}

// Edit goes back to review carrying the whole booking so its token survives.
func (c *Controller) Edit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.payload == nil {
		return booking.ErrNoBooking
	}
	if c.deps.Navigator != nil {
		c.deps.Navigator.Navigate(navigation.Review, &models.Navigation{Booking: c.payload.Clone()})
	}
	return nil
}

func (c *Controller) shareText() string {
	when := models.Placeholder
	if start, ok := c.payload.StartTime(); ok {
		when = models.ReadableTime(start, c.deps.Store.Slots().Location())
	}
	return share.Text(doctorName(c.payload), when, c.payload.Token)
}

func (c *Controller) publish(eventType string) {
	if c.deps.Events == nil {
		return
	}
	if err := c.deps.Events.PublishJSON(eventType, events.Snapshot(c.sessionID, c.payload, "")); err != nil {
		c.deps.Logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish booking event")
	}
}

func (c *Controller) view() View {
	p := c.payload
	v := View{
		Found:        true,
		Source:       c.source,
		DoctorName:   models.Placeholder,
		Specialty:    "General",
		When:         models.Placeholder,
		Slot:         models.OrPlaceholder(p.Slot),
		Token:        models.OrPlaceholder(p.Token),
		StatusLabel:  p.Status.Label(),
		PaymentLabel: p.Payment.Label(),
		PaymentTone:  p.Payment.Tone(),
		VisitType:    p.VisitType,
		VisitTypes:   models.VisitTypes,
		Payload:      p.Clone(),
	}
	if d := p.Doctor; d != nil {
		v.DoctorName = models.OrPlaceholder(d.Name)
		if d.Specialty != "" {
			v.Specialty = models.TitleCaseSpecialty(d.Specialty)
		}
		v.Qualification = models.OrPlaceholder(d.Qualification)
		v.Image = d.Image
	}
	if start, ok := p.StartTime(); ok {
		v.When = models.ReadableTime(start, c.deps.Store.Slots().Location())
	}
	patient := c.deps.Store.PatientFor(p)
	if patient == nil {
		patient = &models.Patient{}
	}
	v.PatientName = models.OrPlaceholder(patient.Name)
	v.PatientAge = models.OrPlaceholder(patient.Age)
	v.PatientGender = models.OrPlaceholder(patient.Gender)
	v.PatientMobile = models.OrPlaceholder(patient.Mobile)
	v.PatientRelation = models.OrPlaceholder(patient.Relation)
	v.PatientWeight = models.OrPlaceholder(patient.Weight)
	v.PatientProblem = models.OrPlaceholder(patient.Problem)
	return v
}

func doctorName(p *models.BookingPayload) string {
	if p.Doctor != nil && p.Doctor.Name != "" {
		return p.Doctor.Name
	}
	return "Doctor"
}
