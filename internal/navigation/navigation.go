package navigation

import (
	"sync"

	"medbook/internal/models"
)

// Destination names a page the flow can move to.
type Destination string

const (
	Review    Destination = "/review"
	Summary   Destination = "/appointment/summary"
	Payment   Destination = "/payment"
	Dashboard Destination = "/dashboard"
)

// Transition is one recorded navigation.
type Transition struct {
	To      Destination        `json:"to"`
	Payload *models.Navigation `json:"payload,omitempty"`
}

// Recorder captures navigations so a transport can report them to the client.
type Recorder struct {
	mu          sync.Mutex
	transitions []Transition
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Navigate(dest Destination, nav *models.Navigation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, Transition{To: dest, Payload: nav})
}

// Last returns the most recent transition.
func (r *Recorder) Last() (Transition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.transitions) == 0 {
		return Transition{}, false
	}
	return r.transitions[len(r.transitions)-1], true
}

// Count returns how many navigations happened.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transitions)
}

// Func adapts a plain function to the navigator contract.
type Func func(dest Destination, nav *models.Navigation)

func (f Func) Navigate(dest Destination, nav *models.Navigation) {
	f(dest, nav)
}
