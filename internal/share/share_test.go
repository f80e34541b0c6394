package share

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"medbook/internal/events"
	"medbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSharer struct {
	mock.Mock
}

func (m *mockSharer) Share(ctx context.Context, msg Message) error {
	return m.Called(ctx, msg).Error(0)
}

type failingClipboard struct{}

func (failingClipboard) Copy(context.Context, string) error {
	return errors.New("permission denied")
}

func TestText(t *testing.T) {
	got := Text("Dr. A", "Wed, Jan 10, 9:00 AM", "#TKN-1234")
	assert.Equal(t, "Appointment with Dr. A on Wed, Jan 10, 9:00 AM | Token: #TKN-1234", got)
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	msg := Message{SessionID: "s1", Text: "hello"}

	t.Run("PrimaryShares", func(t *testing.T) {
		primary := new(mockSharer)
		primary.On("Share", ctx, msg).Return(nil).Once()
		clip := &Buffer{}

		assert.Equal(t, OutcomeShared, NewChain(primary, clip, nil).Share(ctx, msg))
		assert.Empty(t, clip.Text())
		primary.AssertExpectations(t)
	})

	t.Run("UnsupportedFallsBackToClipboard", func(t *testing.T) {
		primary := new(mockSharer)
		primary.On("Share", ctx, msg).Return(ErrUnsupported).Once()
		clip := &Buffer{}

		assert.Equal(t, OutcomeCopied, NewChain(primary, clip, nil).Share(ctx, msg))
		assert.Equal(t, "hello", clip.Text())
	})

	t.Run("PrimaryErrorFallsBackToClipboard", func(t *testing.T) {
		primary := new(mockSharer)
		primary.On("Share", ctx, msg).Return(errors.New("aborted")).Once()
		clip := &Buffer{}

		assert.Equal(t, OutcomeCopied, NewChain(primary, clip, nil).Share(ctx, msg))
	})

	t.Run("EverythingFails", func(t *testing.T) {
		primary := new(mockSharer)
		primary.On("Share", ctx, msg).Return(errors.New("aborted")).Once()

		assert.Equal(t, OutcomeFailed, NewChain(primary, failingClipboard{}, nil).Share(ctx, msg))
	})

	t.Run("NoTargets", func(t *testing.T) {
		assert.Equal(t, OutcomeFailed, NewChain(nil, nil, nil).Share(ctx, msg))
	})
}

func TestEventSharer(t *testing.T) {
	bus := events.NewEventBus()
	var got events.BookingEventPayload
	bus.Subscribe(events.EventBookingShared, func(e *events.Event) error {
		return json.Unmarshal(e.Payload, &got)
	})

	msg := Message{
		SessionID: "s1",
		Text:      "Appointment with Dr. A",
		Booking:   &models.BookingPayload{Token: "#TKN-1234", Doctor: &models.Doctor{ID: "d1", Name: "Dr. A"}},
	}
	require.NoError(t, NewEventSharer(bus).Share(context.Background(), msg))
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "#TKN-1234", got.Token)
	assert.Equal(t, "Appointment with Dr. A", got.Text)

	assert.ErrorIs(t, NewEventSharer(nil).Share(context.Background(), msg), ErrUnsupported)
}
