// Package slot turns "HH:MM - HH:MM" slot labels into concrete instants.
package slot

import (
	"regexp"
	"strconv"
	"time"

	"medbook/internal/models"
)

var labelPattern = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*-\s*(\d{1,2}):(\d{2})\s*$`)

// Range is a parsed slot label.
type Range struct {
	StartHour, StartMinute int
	EndHour, EndMinute     int
}

// ParseLabel parses "HH:MM - HH:MM". The end must be after the start.
func ParseLabel(label string) (Range, bool) {
	m := labelPattern.FindStringSubmatch(label)
	if m == nil {
		return Range{}, false
	}
	n := make([]int, 4)
	for i := range n {
		v, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Range{}, false
		}
		n[i] = v
	}
	r := Range{StartHour: n[0], StartMinute: n[1], EndHour: n[2], EndMinute: n[3]}
	if r.StartHour > 23 || r.EndHour > 23 || r.StartMinute > 59 || r.EndMinute > 59 {
		return Range{}, false
	}
	if r.EndHour*60+r.EndMinute <= r.StartHour*60+r.StartMinute {
		return Range{}, false
	}
	return r, true
}

// Resolver anchors slot labels to a calendar day in a fixed location. It never
// fails: unusable input yields a window starting now.
type Resolver struct {
	loc *time.Location
	now func() time.Time
}

// NewResolver returns a resolver for loc; nil means time.Local.
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{loc: loc, now: time.Now}
}

// WithClock replaces the clock used for the fail-soft window.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Location is the wall-clock zone labels are interpreted in.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Now returns the resolver's current instant.
func (r *Resolver) Now() time.Time {
	return r.now()
}

// Resolve anchors label to ref's calendar day.
func (r *Resolver) Resolve(ref time.Time, label string) (start, end time.Time) {
	rng, ok := ParseLabel(label)
	if !ok {
		return r.fallback()
	}
	y, m, d := ref.In(r.loc).Date()
	start = time.Date(y, m, d, rng.StartHour, rng.StartMinute, 0, 0, r.loc)
	end = time.Date(y, m, d, rng.EndHour, rng.EndMinute, 0, 0, r.loc)
	return start, end
}

// ResolveISO is Resolve for an ISO reference date; an unparsable reference
// means today.
func (r *Resolver) ResolveISO(refISO, label string) (start, end time.Time) {
	ref, err := models.ParseTime(refISO)
	if err != nil {
		ref = r.now()
	}
	return r.Resolve(ref, label)
}

func (r *Resolver) fallback() (time.Time, time.Time) {
	now := r.now()
	return now, now.Add(models.DefaultSlotDuration)
}
