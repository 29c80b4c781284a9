// Package schedule resolves calendar timestamps to instants and computes
// the daily query window.
package schedule

import (
	"fmt"
	"time"

	"github.com/beekhof/exchange-sync/internal/domain"
)

const (
	// LocalLayout is the naive local date-time format used by the calendar
	// API. Fractional seconds are accepted when parsing.
	LocalLayout = "2006-01-02T15:04:05"
)

// LoadZone loads an IANA zone by name.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		return nil, &domain.TimeError{Value: name, Err: fmt.Errorf("empty time zone name")}
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &domain.TimeError{Value: name, Err: err}
	}
	return loc, nil
}

// ResolveLocal interprets a naive date-time as civil time in the named zone.
// Local times skipped or repeated by a zone transition are rejected.
func ResolveLocal(dateTime, zone string) (time.Time, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return time.Time{}, err
	}

	civil, err := time.Parse(LocalLayout, dateTime)
	if err != nil {
		return time.Time{}, &domain.TimeError{Value: dateTime, Err: err}
	}

	candidates := instantsFor(civil, loc)
	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return time.Time{}, &domain.TimeError{Value: dateTime + " " + zone, Err: domain.ErrNonexistentLocalTime}
	default:
		return time.Time{}, &domain.TimeError{Value: dateTime + " " + zone, Err: domain.ErrAmbiguousLocalTime}
	}
}

// instantsFor returns every instant whose wall clock in loc equals the
// civil time, given as its UTC reading.
func instantsFor(civil time.Time, loc *time.Location) []time.Time {
	// Transitions are far more than a day apart, so the offsets in effect
	// a day either side cover every offset that can apply.
	var offsets []int
	for _, probe := range []time.Time{civil.Add(-24 * time.Hour), civil, civil.Add(24 * time.Hour)} {
		_, off := probe.In(loc).Zone()
		seen := false
		for _, o := range offsets {
			if o == off {
				seen = true
				break
			}
		}
		if !seen {
			offsets = append(offsets, off)
		}
	}

	var out []time.Time
	for _, off := range offsets {
		candidate := civil.Add(-time.Duration(off) * time.Second).In(loc)
		if _, got := candidate.Zone(); got != off {
			continue
		}
		if sameWallClock(candidate, civil) {
			out = append(out, candidate)
		}
	}
	return out
}

func sameWallClock(t, civil time.Time) bool {
	y1, m1, d1 := t.Date()
	y2, m2, d2 := civil.Date()
	return y1 == y2 && m1 == m2 && d1 == d2 &&
		t.Hour() == civil.Hour() && t.Minute() == civil.Minute() &&
		t.Second() == civil.Second() && t.Nanosecond() == civil.Nanosecond()
}

// ParseModified parses an RFC 3339 timestamp with an explicit offset.
func ParseModified(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, &domain.TimeError{Value: value, Err: err}
	}
	return t, nil
}

// Window is the naive local start and end of a calendar day.
type Window struct {
	Start string
	End   string
}

// DayWindow returns 00:00:00 through 23:59:59 of the date that now falls on
// in loc.
func DayWindow(now time.Time, loc *time.Location) Window {
	y, m, d := now.In(loc).Date()
	// Formatting a UTC reading keeps the civil fields intact even on days
	// where midnight does not exist in loc.
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	end := time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
	return Window{
		Start: start.Format(LocalLayout),
		End:   end.Format(LocalLayout),
	}
}

// Resolver computes the query window for a configured zone. Now defaults to
// time.Now and is read on every call.
type Resolver struct {
	Location *time.Location
	Now      func() time.Time
}

// NewResolver returns a Resolver for the named zone.
func NewResolver(zone string) (*Resolver, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return nil, err
	}
	return &Resolver{Location: loc, Now: time.Now}, nil
}

// Today returns the window for the current date in the resolver's zone.
func (r *Resolver) Today() Window {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return DayWindow(now(), r.Location)
}
