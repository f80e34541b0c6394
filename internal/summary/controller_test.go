package summary

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"medbook/internal/booking"
	"medbook/internal/calendar"
	"medbook/internal/catalog"
	"medbook/internal/events"
	"medbook/internal/models"
	"medbook/internal/navigation"
	"medbook/internal/repository"
	"medbook/internal/share"
	"medbook/internal/slot"
	"medbook/internal/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *booking.Store
	recorder *navigation.Recorder
	bus      *events.EventBus
	clip     *share.Buffer

	mu     sync.Mutex
	events []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	resolver := slot.NewResolver(time.UTC).WithClock(func() time.Time { return fixedNow })
	f := &fixture{
		store:    booking.NewStore(repository.NewMemorySessionStore(0), catalog.Demo(), token.NewGenerator(rand.NewPCG(1, 2)), resolver, nil),
		recorder: navigation.NewRecorder(),
		bus:      events.NewEventBus(),
		clip:     &share.Buffer{},
	}
	f.bus.SubscribeAll(func(e *events.Event) error {
		f.mu.Lock()
		f.events = append(f.events, e.Type)
		f.mu.Unlock()
		return nil
	}, events.EventBookingPaid, events.EventBookingVisitTypeChanged, events.EventBookingShared)
	return f
}

func (f *fixture) controller(sid string, delay time.Duration) *Controller {
	return New(sid, Deps{
		Store:         f.store,
		Navigator:     f.recorder,
		Events:        f.bus,
		Share:         share.NewChain(nil, f.clip, nil),
		RedirectDelay: delay,
		Landing:       navigation.Dashboard,
	})
}

func (f *fixture) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func bookedNav() *models.Navigation {
	return &models.Navigation{Booking: &models.BookingPayload{
		Appointment: &models.Appointment{DoctorID: "d2", Start: "2024-01-10T09:00:00Z", Slot: "09:00 - 09:30"},
		Doctor:      &models.Doctor{ID: "d2", Name: "Dr. Vikram Mehta", Specialty: "cardiology", Qualification: "MBBS"},
		Patient:     &models.Patient{Name: "Jane", Mobile: "555"},
		Token:       "#TKN-1234",
		Slot:        "09:00 - 09:30",
		Start:       "2024-01-10T09:00:00.000Z",
		End:         "2024-01-10T09:30:00.000Z",
	}}
}

func TestLoadAbsentRedirectsOnce(t *testing.T) {
	f := newFixture(t)
	c := f.controller("s1", 20*time.Millisecond)
	defer c.Close()

	view, ok := c.Load(context.Background(), nil)
	assert.False(t, ok)
	assert.False(t, view.Found)
	assert.Equal(t, MessageNoBooking, view.Message)
	assert.Equal(t, booking.SourceAbsent, view.Source)

	dest, delay, pending := c.PendingRedirect()
	require.True(t, pending)
	assert.Equal(t, navigation.Dashboard, dest)
	assert.Equal(t, 20*time.Millisecond, delay)
	assert.Zero(t, f.recorder.Count(), "redirect waits for the delay")

	// a second load while the redirect is pending does not schedule another
	c.Load(context.Background(), nil)

	assert.Eventually(t, func() bool { return f.recorder.Count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, f.recorder.Count())

	tr, _ := f.recorder.Last()
	assert.Equal(t, navigation.Dashboard, tr.To)
	assert.Nil(t, tr.Payload)

	_, _, pending = c.PendingRedirect()
	assert.False(t, pending)
}

func TestCloseCancelsRedirect(t *testing.T) {
	f := newFixture(t)
	c := f.controller("s1", 20*time.Millisecond)

	_, ok := c.Load(context.Background(), nil)
	require.False(t, ok)
	c.Close()
	c.Close()

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, f.recorder.Count())
}

func TestLoadPresent(t *testing.T) {
	f := newFixture(t)
	c := f.controller("s1", time.Second)
	defer c.Close()

	view, ok := c.Load(context.Background(), bookedNav())
	require.True(t, ok)
	assert.Equal(t, booking.SourceNavigation, view.Source)
	assert.Equal(t, "Dr. Vikram Mehta", view.DoctorName)
	assert.Equal(t, "Cardiology", view.Specialty)
	assert.Equal(t, "Wed, Jan 10, 9:00 AM", view.When)
	assert.Equal(t, "#TKN-1234", view.Token)
	assert.Equal(t, "Upcoming", view.StatusLabel)
	assert.Equal(t, "Not paid", view.PaymentLabel)
	assert.Equal(t, models.ToneAttention, view.PaymentTone)
	assert.Equal(t, models.VisitFirst, view.VisitType)
	assert.Equal(t, "Jane", view.PatientName)

	_, _, pending := c.PendingRedirect()
	assert.False(t, pending)
}

func TestLoadPlaceholders(t *testing.T) {
	f := newFixture(t)
	c := f.controller("s1", time.Second)
	defer c.Close()

	view, ok := c.Load(context.Background(), &models.Navigation{Booking: &models.BookingPayload{Token: "#TKN-2222"}})
	require.True(t, ok)
	assert.Equal(t, models.Placeholder, view.DoctorName)
	assert.Equal(t, "General", view.Specialty)
	for name, got := range map[string]string{
		"name":     view.PatientName,
		"age":      view.PatientAge,
		"gender":   view.PatientGender,
		"mobile":   view.PatientMobile,
		"relation": view.PatientRelation,
		"weight":   view.PatientWeight,
		"problem":  view.PatientProblem,
	} {
		assert.Equal(t, models.Placeholder, got, name)
	}
}

func TestLoadPatientFromCatalog(t *testing.T) {
	f := newFixture(t)
	c := f.controller("s1", time.Second)
	defer c.Close()

	view, ok := c.Load(context.Background(), &models.Navigation{Booking: &models.BookingPayload{
		Token:       "#TKN-2323",
		Appointment: &models.Appointment{DoctorID: "d1", PatientID: "p2", Start: "2024-01-10T09:00:00Z"},
	}})
	require.True(t, ok)
	assert.Equal(t, "Meera Sharma", view.PatientName)
	assert.Equal(t, "8", view.PatientAge)
	assert.Equal(t, "Female", view.PatientGender)
	assert.Equal(t, "Daughter", view.PatientRelation)
	assert.Equal(t, "Recurring fever", view.PatientProblem)
	assert.Equal(t, models.Placeholder, view.PatientWeight)
	assert.Nil(t, view.Payload.Patient, "catalog lookup is display only")
}

func TestPaySurvivesReload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.controller("s1", time.Second)
	_, ok := c.Load(ctx, bookedNav())
	require.True(t, ok)

	msg, err := c.Pay(ctx)
	require.NoError(t, err)
	assert.Equal(t, MessagePaid, msg)

	view := c.View()
	assert.Equal(t, "Paid", view.PaymentLabel)
	assert.Equal(t, models.ToneSuccess, view.PaymentTone)
	assert.Equal(t, "Confirmed", view.StatusLabel)
	c.Close()

	// reload: fresh controller, no navigation state
	reloaded := f.controller("s1", time.Second)
	defer reloaded.Close()
	view, ok = reloaded.Load(ctx, nil)
	require.True(t, ok)
	assert.Equal(t, booking.SourcePersisted, view.Source)
	assert.Equal(t, models.PaymentPaid, view.Payload.Payment)
	assert.Equal(t, models.StatusConfirmed, view.Payload.Status)
	assert.Equal(t, "#TKN-1234", view.Token)

	assert.Contains(t, f.published(), events.EventBookingPaid)
}

func TestPayWithoutBooking(t *testing.T) {
	f := newFixture(t)
	c := f.controller("s1", time.Second)
	defer c.Close()

	_, err := c.Pay(context.Background())
	assert.ErrorIs(t, err, booking.ErrNoBooking)
}

func TestSetVisitType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.controller("s1", time.Second)
	defer c.Close()
	_, ok := c.Load(ctx, bookedNav())
	require.True(t, ok)

	require.NoError(t, c.SetVisitType(ctx, "follow-up"))
	assert.Equal(t, models.VisitFollowUp, c.Payload().VisitType)

	err := c.SetVisitType(ctx, "emergency")
	assert.ErrorIs(t, err, ErrInvalidVisitType)
	assert.Equal(t, models.VisitFollowUp, c.Payload().VisitType)

	persisted, err := f.store.Current(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.VisitFollowUp, persisted.VisitType)
	assert.Contains(t, f.published(), events.EventBookingVisitTypeChanged)
}

func TestCalendarEvent(t *testing.T) {
	f := newFixture(t)
	c := f.controller("s1", time.Second)
	defer c.Close()

	nav := bookedNav()
	nav.Booking.End = ""
	nav.Booking.Appointment.End = ""
	_, ok := c.Load(context.Background(), nav)
	require.True(t, ok)

	ev, filename, err := c.CalendarEvent()
	require.NoError(t, err)
	assert.Equal(t, "Appointment with Dr. Vikram Mehta", ev.Title)
	assert.Equal(t, "Token #TKN-1234", ev.Description)
	assert.Equal(t, "Clinic", ev.Location)
	assert.Equal(t, "appointment_TKN-1234.ics", filename)
	assert.Equal(t, "20240110T090000Z", calendar.FormatTime(ev.Start))
	assert.Equal(t, "20240110T093000Z", calendar.FormatTime(ev.End))
}

func TestShare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.controller("s1", time.Second)
	defer c.Close()
	_, ok := c.Load(ctx, bookedNav())
	require.True(t, ok)

	text, err := c.ShareText()
	require.NoError(t, err)
	assert.Equal(t, "Appointment with Dr. Vikram Mehta on Wed, Jan 10, 9:00 AM | Token: #TKN-1234", text)

	outcome, shared, err := c.Share(ctx)
	require.NoError(t, err)
	assert.Equal(t, share.OutcomeCopied, outcome)
	assert.Equal(t, text, shared)
	assert.Equal(t, text, f.clip.Text())
}

func TestShareThroughEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := New("s1", Deps{
		Store: f.store,
		Share: share.NewChain(share.NewEventSharer(f.bus), f.clip, nil),
	})
	defer c.Close()
	_, ok := c.Load(ctx, bookedNav())
	require.True(t, ok)

	var got events.BookingEventPayload
	f.bus.Subscribe(events.EventBookingShared, func(e *events.Event) error {
		return json.Unmarshal(e.Payload, &got)
	})

	outcome, _, err := c.Share(ctx)
	require.NoError(t, err)
	assert.Equal(t, share.OutcomeShared, outcome)
	assert.Equal(t, "#TKN-1234", got.Token)
	assert.Empty(t, f.clip.Text())
}

func TestEditCarriesToken(t *testing.T) {
	f := newFixture(t)
	c := f.controller("s1", time.Second)
	defer c.Close()
	_, ok := c.Load(context.Background(), bookedNav())
	require.True(t, ok)

	require.NoError(t, c.Edit())
	tr, ok := f.recorder.Last()
	require.True(t, ok)
	assert.Equal(t, navigation.Review, tr.To)
	require.NotNil(t, tr.Payload.Booking)
	assert.Equal(t, "#TKN-1234", tr.Payload.Booking.Token)
}
