package events

import (
	"encoding/json"
	"testing"

	"medbook/internal/models"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe(EventBookingPaid, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	err := bus.PublishJSON(EventBookingPaid, BookingEventPayload{SessionID: "s1", Token: "#TKN-1234", Payment: "paid"})
	if err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}

	if received.Type != EventBookingPaid {
		t.Errorf("expected type %s, got %s", EventBookingPaid, received.Type)
	}
	if received.CreatedAt.IsZero() {
		t.Errorf("expected CreatedAt to be set")
	}

	var decoded BookingEventPayload
	if err := json.Unmarshal(received.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}

	if decoded.Token != "#TKN-1234" || decoded.Payment != "paid" {
		t.Errorf("unexpected payload: %+v", decoded)
	}
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus()
	seen := map[string]int{}

	bus.SubscribeAll(func(e *Event) error { seen[e.Type]++; return nil }, EventBookingCommitted, EventBookingShared)

	bus.Publish(&Event{Type: EventBookingCommitted})
	bus.Publish(&Event{Type: EventBookingShared})
	bus.Publish(&Event{Type: EventBookingPaid})

	if seen[EventBookingCommitted] != 1 || seen[EventBookingShared] != 1 || seen[EventBookingPaid] != 0 {
		t.Errorf("unexpected deliveries: %v", seen)
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	// Should not panic
	bus.Publish(&Event{Type: "unknown"})
	if err := bus.PublishJSON("unknown", nil); err != nil {
		t.Errorf("PublishJSON failed: %v", err)
	}

	var nilBus *EventBus
	if err := nilBus.PublishJSON(EventBookingPaid, nil); err != nil {
		t.Errorf("nil bus must be a no-op, got %v", err)
	}
}

func TestSnapshot(t *testing.T) {
	p := &models.BookingPayload{
		Doctor:    &models.Doctor{ID: "d1", Name: "Dr. A"},
		Token:     "#TKN-1234",
		Payment:   models.PaymentPaid,
		Status:    models.StatusConfirmed,
		VisitType: models.VisitReport,
		Start:     "2024-01-10T09:00:00Z",
	}
	got := Snapshot("s1", p, "hello")
	want := BookingEventPayload{
		SessionID: "s1", Token: "#TKN-1234", DoctorID: "d1", DoctorName: "Dr. A",
		Payment: "paid", Status: "confirmed", VisitType: "Report", Start: "2024-01-10T09:00:00Z", Text: "hello",
	}
	if got != want {
		t.Errorf("Snapshot() = %+v, want %+v", got, want)
	}

	empty := Snapshot("s2", nil, "")
	if empty.SessionID != "s2" || empty.Token != "" {
		t.Errorf("unexpected snapshot for nil booking: %+v", empty)
	}
}
