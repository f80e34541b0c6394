package repository

import (
	"math"
	"time"
)

// RetryPolicy spaces out recovery probes of a failed primary store.
type RetryPolicy struct {
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy probes after 5s, doubling up to recoveryInterval.
var DefaultRetryPolicy = RetryPolicy{
	InitialDelay:  5 * time.Second,
	MaxDelay:      recoveryInterval,
	BackoffFactor: 2,
}

// NextDelay returns delay for a given attempt (1-based) with clamping.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}

	delay := float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1))
	d := time.Duration(delay)
	if r.MaxDelay > 0 && (d > r.MaxDelay || delay > float64(math.MaxInt64)) {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}
	return d
}
