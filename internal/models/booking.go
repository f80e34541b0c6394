package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Doctor is the denormalized doctor snapshot embedded into a booking.
type Doctor struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	Specialty     string `json:"specialty,omitempty" yaml:"specialty"`
	Qualification string `json:"qualification,omitempty" yaml:"qualification"`
	Image         string `json:"image,omitempty" yaml:"image"`
}

// Patient is the snapshot captured by patient intake.
type Patient struct {
	ID       string `json:"id,omitempty" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Age      string `json:"age,omitempty" yaml:"age"`
	Gender   string `json:"gender,omitempty" yaml:"gender"`
	Mobile   string `json:"mobile" yaml:"mobile"`
	Relation string `json:"relation,omitempty" yaml:"relation"`
	Weight   string `json:"weight,omitempty" yaml:"weight"`
	Problem  string `json:"problem,omitempty" yaml:"problem"`
}

// Appointment is the raw scheduling fact. It is also the shape of the
// "last appointment" fallback record.
type Appointment struct {
	DoctorID  string `json:"doctorId"`
	PatientID string `json:"patientId,omitempty"`
	Start     string `json:"start"`
	End       string `json:"end,omitempty"`
	Slot      string `json:"slot,omitempty"`
}

// BookingPayload is the booking carried across the review and summary pages.
type BookingPayload struct {
	Appointment *Appointment  `json:"appointment,omitempty"`
	Doctor      *Doctor       `json:"doctor,omitempty"`
	Patient     *Patient      `json:"patient,omitempty"`
	Token       string        `json:"tkn,omitempty"`
	Payment     PaymentStatus `json:"payment,omitempty"`
	Status      BookingStatus `json:"status,omitempty"`
	VisitType   VisitType     `json:"visitType,omitempty"`
	Slot        string        `json:"slot,omitempty"`
	Start       string        `json:"start,omitempty"`
	End         string        `json:"end,omitempty"`
}

// Normalize fills unset enum fields with their defaults and reports whether
// anything changed.
func (p *BookingPayload) Normalize() bool {
	changed := false
	if !p.Payment.Valid() {
		p.Payment = PaymentNotPaid
		changed = true
	}
	if !p.Status.Valid() {
		p.Status = StatusUpcoming
		changed = true
	}
	if !p.VisitType.Valid() {
		p.VisitType = VisitFirst
		changed = true
	}
	return changed
}

// isFull reports whether p carries anything beyond {appointment, doctor}.
func (p *BookingPayload) isFull() bool {
	return strings.TrimSpace(p.Token) != "" || p.Patient != nil ||
		p.Payment != "" || p.Status != "" || p.VisitType != "" ||
		p.Slot != "" || p.Start != "" || p.End != ""
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (p *BookingPayload) Clone() *BookingPayload {
	if p == nil {
		return nil
	}
	out := *p
	if p.Appointment != nil {
		apt := *p.Appointment
		out.Appointment = &apt
	}
	if p.Doctor != nil {
		doc := *p.Doctor
		out.Doctor = &doc
	}
	if p.Patient != nil {
		pat := *p.Patient
		out.Patient = &pat
	}
	return &out
}

// StartTime returns the best known start instant: the resolved start, then the
// appointment start.
func (p *BookingPayload) StartTime() (time.Time, bool) {
	if t, err := ParseTime(p.Start); err == nil {
		return t, true
	}
	if p.Appointment != nil {
		if t, err := ParseTime(p.Appointment.Start); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// EndTime returns the resolved end, then the appointment end.
func (p *BookingPayload) EndTime() (time.Time, bool) {
	if t, err := ParseTime(p.End); err == nil {
		return t, true
	}
	if p.Appointment != nil {
		if t, err := ParseTime(p.Appointment.End); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Navigation is the optional state handed over by the page that navigated
// here. On the wire it is either {appointment, doctor} or a full
// BookingPayload; a token marks the latter.
type Navigation struct {
	Appointment *Appointment
	Doctor      *Doctor
	Booking     *BookingPayload
}

// IsEmpty reports whether the navigation carries nothing usable.
func (n *Navigation) IsEmpty() bool {
	if n == nil {
		return true
	}
	return n.Booking == nil && n.Appointment == nil && n.Doctor == nil
}

func (n Navigation) MarshalJSON() ([]byte, error) {
	if n.Booking != nil {
		return json.Marshal(n.Booking)
	}
	return json.Marshal(struct {
		Appointment *Appointment `json:"appointment,omitempty"`
		Doctor      *Doctor      `json:"doctor,omitempty"`
	}{n.Appointment, n.Doctor})
}

func (n *Navigation) UnmarshalJSON(data []byte) error {
	var raw BookingPayload
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = Navigation{}
	if raw.isFull() {
		n.Booking = &raw
		return nil
	}
	n.Appointment = raw.Appointment
	n.Doctor = raw.Doctor
	return nil
}

const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t as an ISO-8601 UTC timestamp with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// ParseTime accepts RFC 3339 timestamps with or without fractional seconds.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
}
