package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnums(t *testing.T) {
	tests := []struct {
		in      string
		payment PaymentStatus
		status  BookingStatus
		visit   VisitType
	}{
		{in: "Paid", payment: PaymentPaid},
		{in: "NOT PAID", payment: PaymentNotPaid},
		{in: "Confirmed", status: StatusConfirmed},
		{in: " upcoming ", status: StatusUpcoming},
		{in: "follow-up", visit: VisitFollowUp},
		{in: "Follow_Up", visit: VisitFollowUp},
		{in: "REPORT", visit: VisitReport},
		{in: "first", visit: VisitFirst},
	}

	for _, tt := range tests {
		if tt.payment != "" {
			got, ok := ParsePaymentStatus(tt.in)
			assert.True(t, ok, tt.in)
			assert.Equal(t, tt.payment, got)
		}
		if tt.status != "" {
			got, ok := ParseBookingStatus(tt.in)
			assert.True(t, ok, tt.in)
			assert.Equal(t, tt.status, got)
		}
		if tt.visit != "" {
			got, ok := ParseVisitType(tt.in)
			assert.True(t, ok, tt.in)
			assert.Equal(t, tt.visit, got)
		}
	}

	_, ok := ParseVisitType("emergency")
	assert.False(t, ok)
	_, ok = ParsePaymentStatus("refunded")
	assert.False(t, ok)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Confirmed", StatusConfirmed.Label())
	assert.Equal(t, "Upcoming", StatusUpcoming.Label())
	assert.Equal(t, "Upcoming", BookingStatus("").Label())

	assert.Equal(t, "Paid", PaymentPaid.Label())
	assert.Equal(t, ToneSuccess, PaymentPaid.Tone())
	assert.Equal(t, "Not paid", PaymentNotPaid.Label())
	assert.Equal(t, ToneAttention, PaymentNotPaid.Tone())
}

func TestNormalize(t *testing.T) {
	p := &BookingPayload{Token: "#TKN-1234"}
	assert.True(t, p.Normalize())
	assert.Equal(t, PaymentNotPaid, p.Payment)
	assert.Equal(t, StatusUpcoming, p.Status)
	assert.Equal(t, VisitFirst, p.VisitType)

	before := *p
	assert.False(t, p.Normalize(), "second normalize must be a no-op")
	assert.Equal(t, before, *p)

	paid := &BookingPayload{Payment: PaymentPaid, Status: StatusConfirmed, VisitType: VisitReport}
	assert.False(t, paid.Normalize())
	assert.Equal(t, PaymentPaid, paid.Payment)
}

func TestPayloadJSONCanonicalizesEnums(t *testing.T) {
	raw := `{"tkn":"#TKN-1111","payment":"PAID","status":"Confirmed","visitType":"follow-up"}`
	var p BookingPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	assert.Equal(t, PaymentPaid, p.Payment)
	assert.Equal(t, StatusConfirmed, p.Status)
	assert.Equal(t, VisitFollowUp, p.VisitType)

	unknown := `{"payment":"refunded"}`
	var q BookingPayload
	require.NoError(t, json.Unmarshal([]byte(unknown), &q))
	assert.False(t, q.Payment.Valid())
	assert.True(t, q.Normalize())
	assert.Equal(t, PaymentNotPaid, q.Payment)
}

func TestClone(t *testing.T) {
	p := &BookingPayload{
		Appointment: &Appointment{DoctorID: "d1"},
		Doctor:      &Doctor{ID: "d1", Name: "Dr. A"},
		Patient:     &Patient{Name: "Jane"},
	}
	c := p.Clone()
	c.Doctor.Name = "changed"
	c.Patient.Name = "changed"
	c.Appointment.DoctorID = "changed"

	assert.Equal(t, "Dr. A", p.Doctor.Name)
	assert.Equal(t, "Jane", p.Patient.Name)
	assert.Equal(t, "d1", p.Appointment.DoctorID)
	assert.Nil(t, (*BookingPayload)(nil).Clone())
}

func TestNavigationShapes(t *testing.T) {
	t.Run("AppointmentAndDoctor", func(t *testing.T) {
		var nav Navigation
		raw := `{"appointment":{"doctorId":"d1","start":"2024-01-10T09:00:00Z","slot":"09:00 - 09:30"},"doctor":{"id":"d1","name":"Dr. A"}}`
		require.NoError(t, json.Unmarshal([]byte(raw), &nav))
		assert.Nil(t, nav.Booking)
		require.NotNil(t, nav.Appointment)
		assert.Equal(t, "d1", nav.Appointment.DoctorID)
		assert.Equal(t, "Dr. A", nav.Doctor.Name)
		assert.False(t, nav.IsEmpty())
	})

	t.Run("FullPayload", func(t *testing.T) {
		var nav Navigation
		raw := `{"tkn":"#TKN-4321","doctor":{"id":"d1","name":"Dr. A"},"payment":"paid"}`
		require.NoError(t, json.Unmarshal([]byte(raw), &nav))
		require.NotNil(t, nav.Booking)
		assert.Equal(t, "#TKN-4321", nav.Booking.Token)
		assert.Equal(t, PaymentPaid, nav.Booking.Payment)
	})

	t.Run("FullPayloadWithoutToken", func(t *testing.T) {
		var nav Navigation
		raw := `{"appointment":{"doctorId":"d2","start":"2024-01-10T10:00:00Z","slot":"10:00 - 10:30"},` +
			`"doctor":{"id":"d2","name":"Dr. B"},"patient":{"name":"Jane","mobile":"1"},` +
			`"payment":"paid","status":"confirmed","visitType":"Report"}`
		require.NoError(t, json.Unmarshal([]byte(raw), &nav))
		require.NotNil(t, nav.Booking)
		assert.Nil(t, nav.Appointment)
		require.NotNil(t, nav.Booking.Patient)
		assert.Equal(t, "Jane", nav.Booking.Patient.Name)
		assert.Equal(t, PaymentPaid, nav.Booking.Payment)
		assert.Equal(t, StatusConfirmed, nav.Booking.Status)
		assert.Equal(t, VisitReport, nav.Booking.VisitType)
		assert.Empty(t, nav.Booking.Token)
	})

	t.Run("MarshalRoundTrip", func(t *testing.T) {
		nav := Navigation{Booking: &BookingPayload{Token: "#TKN-1000", Slot: "10:00 - 10:30"}}
		data, err := json.Marshal(nav)
		require.NoError(t, err)

		var back Navigation
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, nav.Booking, back.Booking)
	})

	t.Run("Empty", func(t *testing.T) {
		var nav *Navigation
		assert.True(t, nav.IsEmpty())
		assert.True(t, (&Navigation{}).IsEmpty())
	})
}

func TestTimes(t *testing.T) {
	ts := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-01-10T09:00:00.000Z", FormatTime(ts))

	parsed, err := ParseTime("2024-01-10T09:00:00Z")
	require.NoError(t, err)
	assert.True(t, ts.Equal(parsed))

	p := &BookingPayload{Appointment: &Appointment{Start: "2024-01-10T09:00:00Z"}}
	start, ok := p.StartTime()
	assert.True(t, ok)
	assert.True(t, ts.Equal(start))
	_, ok = p.EndTime()
	assert.False(t, ok)
}

func TestDisplayHelpers(t *testing.T) {
	assert.Equal(t, "General Physician", TitleCaseSpecialty("general-physician"))
	assert.Equal(t, "", TitleCaseSpecialty(""))
	assert.Equal(t, Placeholder, OrPlaceholder("  "))
	assert.Equal(t, "x", OrPlaceholder("x"))

	ts := time.Date(2024, 1, 10, 9, 5, 0, 0, time.UTC)
	assert.Equal(t, "Wed, Jan 10, 9:05 AM", ReadableTime(ts, time.UTC))
	assert.Equal(t, "Émergency Care", TitleCaseSpecialty("émergency-care"))
}
