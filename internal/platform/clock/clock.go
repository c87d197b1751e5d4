// Package clock supplies "now" and calendar-date arithmetic in a fixed planning timezone.
//
// Calendar dates are represented as time.Time values at midnight UTC carrying the
// year/month/day of the planning timezone, which is also how DATE columns round-trip
// through Postgres and SQLite.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
	// Today is the current calendar date in the planning timezone.
	Today() time.Time
	Location() *time.Location
}

type systemClock struct {
	loc *time.Location
}

// New returns a wall clock that resolves calendar dates in loc (UTC when nil).
func New(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return systemClock{loc: loc}
}

func (c systemClock) Now() time.Time           { return time.Now().UTC() }
func (c systemClock) Today() time.Time         { return DateIn(time.Now(), c.loc) }
func (c systemClock) Location() *time.Location { return c.loc }

// DateIn truncates t to its calendar date in loc.
func DateIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date normalizes an already calendar-shaped value (e.g. read from a DATE column).
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func AddDays(date time.Time, n int) time.Time {
	return Date(date).AddDate(0, 0, n)
}

// StartOf is the instant a calendar date begins in loc.
func StartOf(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).UTC()
}

// Fixed is a settable clock for tests and replays.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
	loc *time.Location
}

func NewFixed(now time.Time) *Fixed {
	return NewFixedIn(now, time.UTC)
}

// NewFixedIn resolves calendar dates in loc.
func NewFixedIn(now time.Time, loc *time.Location) *Fixed {
	if loc == nil {
		loc = time.UTC
	}
	return &Fixed{now: now.UTC(), loc: loc}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fixed) Today() time.Time {
	return DateIn(f.Now(), f.loc)
}

func (f *Fixed) Location() *time.Location { return f.loc }

func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// AdvanceDays moves the clock forward by whole calendar days.
func (f *Fixed) AdvanceDays(n int) {
	f.mu.Lock()
	f.now = f.now.AddDate(0, 0, n)
	f.mu.Unlock()
}
