// Package token mints the short display identifier of a booking.
package token

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"sync"
	"time"

	"medbook/internal/models"
)

const (
	minNumber = 1000
	maxNumber = 9999
)

var pattern = regexp.MustCompile(`^#TKN-\d{4}$`)

// Generator draws tokens uniformly from #TKN-1000 to #TKN-9999.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator uses src for randomness; nil seeds from the clock.
func NewGenerator(src rand.Source) *Generator {
	if src == nil {
		src = rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())
	}
	return &Generator{rnd: rand.New(src)}
}

// New mints a fresh token.
func (g *Generator) New() string {
	g.mu.Lock()
	n := minNumber + g.rnd.IntN(maxNumber-minNumber+1)
	g.mu.Unlock()
	return fmt.Sprintf("%s%d", models.TokenPrefix, n)
}

// Ensure assigns a token to p only when it has none and reports whether it
// did. An existing token is never replaced.
func (g *Generator) Ensure(p *models.BookingPayload) bool {
	if p == nil || p.Token != "" {
		return false
	}
	p.Token = g.New()
	return true
}

// Valid reports whether s has the token format.
func Valid(s string) bool {
	return pattern.MatchString(s)
}
