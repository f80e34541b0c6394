// Package share hands a booking summary to whatever share target is
// available, falling back to the clipboard.
package share

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"medbook/internal/domain"
	"medbook/internal/events"
	"medbook/internal/models"

	"github.com/rs/zerolog"
)

var ErrUnsupported = errors.New("share target unavailable")

// Message is what gets shared.
type Message struct {
	SessionID string
	Text      string
	Booking   *models.BookingPayload
}

type Sharer interface {
	Share(ctx context.Context, msg Message) error
}

type Clipboard interface {
	Copy(ctx context.Context, text string) error
}

// Outcome reports which target took the message.
type Outcome string

const (
	OutcomeShared Outcome = "shared"
	OutcomeCopied Outcome = "copied"
	OutcomeFailed Outcome = "failed"
)

// Text is the human-readable share line.
func Text(doctor, date, tkn string) string {
	return fmt.Sprintf("Appointment with %s on %s | Token: %s", doctor, date, tkn)
}

// Chain tries the share target first and the clipboard second. Failures are
// logged, never returned.
type Chain struct {
	primary   Sharer
	clipboard Clipboard
	logger    *zerolog.Logger
}

func NewChain(primary Sharer, clipboard Clipboard, logger *zerolog.Logger) *Chain {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Chain{primary: primary, clipboard: clipboard, logger: logger}
}

func (c *Chain) Share(ctx context.Context, msg Message) Outcome {
	if c.primary != nil {
		err := c.primary.Share(ctx, msg)
		if err == nil {
			return OutcomeShared
		}
		if !errors.Is(err, ErrUnsupported) {
			c.logger.Warn().Err(err).Str("session_id", msg.SessionID).Msg("share failed, trying clipboard")
		}
	}
	if c.clipboard != nil {
		err := c.clipboard.Copy(ctx, msg.Text)
		if err == nil {
			return OutcomeCopied
		}
		c.logger.Warn().Err(err).Str("session_id", msg.SessionID).Msg("clipboard copy failed")
	}
	return OutcomeFailed
}

// EventSharer publishes the message as a booking_shared event.
type EventSharer struct {
	publisher domain.EventPublisher
}

func NewEventSharer(publisher domain.EventPublisher) *EventSharer {
	return &EventSharer{publisher: publisher}
}

func (s *EventSharer) Share(ctx context.Context, msg Message) error {
	if s.publisher == nil {
		return ErrUnsupported
	}
	return s.publisher.PublishJSON(events.EventBookingShared, events.Snapshot(msg.SessionID, msg.Booking, msg.Text))
}

// Buffer is a clipboard that keeps the last copied text so a transport can
// return it to the client.
type Buffer struct {
	mu   sync.Mutex
	text string
}

func (b *Buffer) Copy(ctx context.Context, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = text
	return nil
}

func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}
