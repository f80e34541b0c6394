package events

import (
	"encoding/json"
	"sync"
	"time"

	"medbook/internal/models"
)

const (
	EventBookingCommitted        = "booking_committed"
	EventBookingPaid             = "booking_paid"
	EventBookingVisitTypeChanged = "booking_visit_type_changed"
	EventBookingShared           = "booking_shared"
)

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	SessionID  string `json:"session_id"`
	Token      string `json:"tkn"`
	DoctorID   string `json:"doctor_id,omitempty"`
	DoctorName string `json:"doctor_name,omitempty"`
	Payment    string `json:"payment"`
	Status     string `json:"status"`
	VisitType  string `json:"visit_type"`
	Start      string `json:"start,omitempty"`
	Text       string `json:"text,omitempty"`
}

// Snapshot builds the event payload for a booking; a nil booking yields only
// the session and text.
func Snapshot(sessionID string, p *models.BookingPayload, text string) BookingEventPayload {
	out := BookingEventPayload{SessionID: sessionID, Text: text}
	if p == nil {
		return out
	}
	out.Token = p.Token
	out.Payment = string(p.Payment)
	out.Status = string(p.Status)
	out.VisitType = string(p.VisitType)
	out.Start = p.Start
	if p.Doctor != nil {
		out.DoctorID = p.Doctor.ID
		out.DoctorName = p.Doctor.Name
	}
	return out
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers one handler for several event types.
func (b *EventBus) SubscribeAll(handler EventHandler, eventTypes ...string) {
	for _, t := range eventTypes {
		b.Subscribe(t, handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
