package models

import "time"

const (
	// KeyCurrentBooking holds the latest full BookingPayload of a session.
	KeyCurrentBooking = "currentBooking"

	// KeyLastAppointment holds the fallback appointment of a session.
	KeyLastAppointment = "lastAppointment"

	// KeyReviewDraft holds the uncommitted review draft so its token survives
	// between review requests.
	KeyReviewDraft = "reviewDraft"
)

const (
	// DefaultSlot is used when neither navigation nor fallback carry a slot.
	DefaultSlot = "09:00 - 09:30"

	// DefaultSlotDuration is the window used when a slot cannot be resolved.
	DefaultSlotDuration = 30 * time.Minute

	// DefaultSessionTTL is the lifetime of a session's booking state.
	DefaultSessionTTL = 30 * time.Minute

	// DefaultRedirectDelay debounces the "no booking" redirect.
	DefaultRedirectDelay = 700 * time.Millisecond

	// Placeholder is shown for display fields that are still missing.
	Placeholder = "—"

	// TokenPrefix starts every display token.
	TokenPrefix = "#TKN-"
)

// Patient intake choices.
var (
	Genders   = []string{"Male", "Female", "Other"}
	Relations = []string{"Self", "Son", "Daughter", "Mother", "Father", "Other"}
)
