package navigation

import (
	"testing"

	"medbook/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	_, ok := r.Last()
	assert.False(t, ok)

	r.Navigate(Review, nil)
	nav := &models.Navigation{Booking: &models.BookingPayload{Token: "#TKN-1234"}}
	r.Navigate(Summary, nav)

	last, ok := r.Last()
	assert.True(t, ok)
	assert.Equal(t, Summary, last.To)
	assert.Same(t, nav, last.Payload)
	assert.Equal(t, 2, r.Count())
}

func TestFunc(t *testing.T) {
	var got Destination
	Func(func(dest Destination, _ *models.Navigation) { got = dest }).Navigate(Dashboard, nil)
	assert.Equal(t, Dashboard, got)
}
