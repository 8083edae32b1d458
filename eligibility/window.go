// Package eligibility decides when a video may be credited again for a user.
//
// Windows are fixed and aligned to local midnight of the configured location.
// A 24h length is a calendar day; shorter lengths (e.g. 4h) split the day into
// equal slots. The same policy drives the eligibility check, the window key
// stored with every watch record and the advertised next eligible time.
package eligibility

import (
	"fmt"
	"time"
)

const DefaultLength = 24 * time.Hour

// Policy describes the reset window.
type Policy struct {
	Length   time.Duration
	Location *time.Location
}

// NewPolicy validates length so that windows tile a day exactly.
func NewPolicy(length time.Duration, loc *time.Location) (Policy, error) {
	if length <= 0 || length > 24*time.Hour {
		return Policy{}, fmt.Errorf("window length must be in (0, 24h], got %s", length)
	}
	if (24*time.Hour)%length != 0 {
		return Policy{}, fmt.Errorf("window length %s does not divide a day", length)
	}
	if loc == nil {
		loc = time.UTC
	}
	return Policy{Length: length, Location: loc}, nil
}

// Daily is a calendar-day policy in loc.
func Daily(loc *time.Location) Policy {
	p, _ := NewPolicy(DefaultLength, loc)
	return p
}

func (p Policy) loc() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

func (p Policy) length() time.Duration {
	if p.Length <= 0 {
		return DefaultLength
	}
	return p.Length
}

func (p Policy) midnight(t time.Time) time.Time {
	local := t.In(p.loc())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.loc())
}

// WindowStart returns the latest window boundary at or before now. The last
// window of a day runs to the next local midnight, so a 25h DST day has no
// extra window.
func (p Policy) WindowStart(now time.Time) time.Time {
	day := p.midnight(now)
	slots := now.Sub(day) / p.length()
	if last := DefaultLength/p.length() - 1; slots > last {
		slots = last
	}
	return day.Add(slots * p.length())
}

// NextEligibleAt is the instant the window containing now closes.
func (p Policy) NextEligibleAt(now time.Time) time.Time {
	next := p.WindowStart(now).Add(p.length())
	day := p.midnight(now)
	tomorrow := time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, p.loc())
	if next.After(tomorrow) {
		// 23h DST day
		return tomorrow
	}
	return next
}

// CanWatch reports whether a completion at lastCompletedAt still blocks now.
// A nil lastCompletedAt means the user never completed the video.
func (p Policy) CanWatch(lastCompletedAt *time.Time, now time.Time) bool {
	if lastCompletedAt == nil {
		return true
	}
	return lastCompletedAt.Before(p.WindowStart(now))
}

// WindowKey identifies the window containing now. Two instants share a key
// iff they share a window.
func (p Policy) WindowKey(now time.Time) string {
	return p.WindowStart(now).UTC().Format(time.RFC3339)
}
