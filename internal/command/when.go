package command

import (
	"errors"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
)

// ErrInPast is returned when a reminder time resolves to now or earlier.
var ErrInPast = errors.New("time is in the past")

// When is a reminder time as written by the user, resolved against the
// current time (and its location) when the reminder is created.
type When interface {
	Resolve(now time.Time) (time.Time, error)
	isWhen()
}

// maxOffsetDays bounds how far ahead a relative delay may reach.
const maxOffsetDays = 100 * 366

// Offset is a relative delay. Years, months and days use calendar arithmetic.
type Offset struct {
	Years, Months, Days int
	Hours, Minutes      int
}

// IsZero reports whether the offset adds nothing.
func (o Offset) IsZero() bool {
	return o == Offset{}
}

// From applies the offset to t.
func (o Offset) From(t time.Time) time.Time {
	return t.AddDate(o.Years, o.Months, o.Days).
		Add(time.Duration(o.Hours)*time.Hour + time.Duration(o.Minutes)*time.Minute)
}

// Resolve returns now plus the offset.
func (o Offset) Resolve(now time.Time) (time.Time, error) {
	return o.From(now), nil
}

// spanDays is an upper estimate of the offset's length in days.
func (o Offset) spanDays() int {
	return o.Years*366 + o.Months*31 + o.Days + o.Hours/24 + o.Minutes/(24*60)
}

func (o Offset) add(other Offset) Offset {
	return Offset{
		Years:   o.Years + other.Years,
		Months:  o.Months + other.Months,
		Days:    o.Days + other.Days,
		Hours:   o.Hours + other.Hours,
		Minutes: o.Minutes + other.Minutes,
	}
}

// Clock is a time of day.
type Clock struct {
	Hour, Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// on returns the clock time on the calendar day of t, in t's location.
func (c Clock) on(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, t.Location())
}

// Weekday is the next future occurrence of Day, at Clock when HasClock is set
// and at the current time of day otherwise.
type Weekday struct {
	Day      time.Weekday
	HasClock bool
	Clock    Clock
}

// Resolve returns the next occurrence strictly after now.
func (w Weekday) Resolve(now time.Time) (time.Time, error) {
	days := (int(w.Day) - int(now.Weekday()) + 7) % 7
	if !w.HasClock {
		if days == 0 {
			days = 7
		}
		return now.AddDate(0, 0, days), nil
	}

	at := w.Clock.on(now.AddDate(0, 0, days))
	if !at.After(now) {
		at = at.AddDate(0, 0, 7)
	}
	return at, nil
}

// ClockTime is "at HH:MM": today if still ahead, tomorrow otherwise.
type ClockTime struct {
	Clock Clock
}

// Resolve returns the next occurrence of the clock time after now.
func (c ClockTime) Resolve(now time.Time) (time.Time, error) {
	at := c.Clock.on(now)
	if !at.After(now) {
		at = c.Clock.on(now.AddDate(0, 0, 1))
	}
	return at, nil
}

// DateTime is an absolute date/time in any format dateparse understands,
// interpreted in the location of now.
type DateTime struct {
	Text string
}

// Resolve parses the date in now's location; it must lie in the future.
func (d DateTime) Resolve(now time.Time) (time.Time, error) {
	at, err := dateparse.ParseIn(d.Text, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", d.Text, err)
	}
	if !at.After(now) {
		return time.Time{}, ErrInPast
	}
	return at, nil
}

func (Offset) isWhen()    {}
func (Weekday) isWhen()   {}
func (ClockTime) isWhen() {}
func (DateTime) isWhen()  {}
