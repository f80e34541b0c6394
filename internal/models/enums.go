package models

import (
	"encoding/json"
	"strings"
)

// PaymentStatus is the demo-level payment state of a booking.
type PaymentStatus string

const (
	PaymentNotPaid PaymentStatus = "not paid"
	PaymentPaid    PaymentStatus = "paid"
)

// BookingStatus is the lifecycle status shown on the summary page.
type BookingStatus string

const (
	StatusUpcoming  BookingStatus = "upcoming"
	StatusConfirmed BookingStatus = "confirmed"
)

// VisitType classifies the visit.
type VisitType string

const (
	VisitFirst    VisitType = "First"
	VisitReport   VisitType = "Report"
	VisitFollowUp VisitType = "Follow-up"
)

// VisitTypes lists the selectable visit types in display order.
var VisitTypes = []VisitType{VisitFirst, VisitReport, VisitFollowUp}

// Badge tones used by the payment badge.
const (
	ToneSuccess   = "success"
	ToneAttention = "attention"
)

func canonicalKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", " ")
	return strings.ReplaceAll(s, "-", " ")
}

// ParsePaymentStatus maps any casing of a known value onto its canonical form.
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch canonicalKey(s) {
	case "not paid", "notpaid", "unpaid":
		return PaymentNotPaid, true
	case "paid":
		return PaymentPaid, true
	}
	return "", false
}

func (p PaymentStatus) Valid() bool {
	return p == PaymentNotPaid || p == PaymentPaid
}

// Label is the badge text.
func (p PaymentStatus) Label() string {
	if p == PaymentPaid {
		return "Paid"
	}
	return "Not paid"
}

// Tone is the badge style.
func (p PaymentStatus) Tone() string {
	if p == PaymentPaid {
		return ToneSuccess
	}
	return ToneAttention
}

func (p *PaymentStatus) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p, _ = ParsePaymentStatus(s)
	return nil
}

// ParseBookingStatus maps any casing of a known value onto its canonical form.
func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch canonicalKey(s) {
	case "upcoming":
		return StatusUpcoming, true
	case "confirmed":
		return StatusConfirmed, true
	}
	return "", false
}

func (s BookingStatus) Valid() bool {
	return s == StatusUpcoming || s == StatusConfirmed
}

func (s BookingStatus) Label() string {
	if s == StatusConfirmed {
		return "Confirmed"
	}
	return "Upcoming"
}

func (s *BookingStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s, _ = ParseBookingStatus(raw)
	return nil
}

// ParseVisitType maps any casing of a known value onto its canonical form.
func ParseVisitType(s string) (VisitType, bool) {
	switch canonicalKey(s) {
	case "first":
		return VisitFirst, true
	case "report":
		return VisitReport, true
	case "follow up", "followup":
		return VisitFollowUp, true
	}
	return "", false
}

func (v VisitType) Valid() bool {
	return v == VisitFirst || v == VisitReport || v == VisitFollowUp
}

func (v *VisitType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v, _ = ParseVisitType(raw)
	return nil
}
