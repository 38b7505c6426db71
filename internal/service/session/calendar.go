package session

import (
	"fmt"
	"time"
)

// Calendar knows when the exchange session is open. Sessions never cross
// midnight.
type Calendar struct {
	loc      *time.Location
	open     clock
	close    clock
	holidays map[string]struct{}
}

type clock struct{ h, m int }

func (c clock) on(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.h, c.m, 0, 0, day.Location())
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// NewCalendar builds a calendar from a tz name, "HH:MM" open/close and a list
// of "YYYY-MM-DD" holidays.
func NewCalendar(timezone, open, close string, holidays []string) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	oh, om, err := ParseClock(open)
	if err != nil {
		return nil, err
	}
	ch, cm, err := ParseClock(close)
	if err != nil {
		return nil, err
	}
	if ch*60+cm <= oh*60+om {
		return nil, fmt.Errorf("session close %s must be after open %s", close, open)
	}
	cal := &Calendar{
		loc:      loc,
		open:     clock{oh, om},
		close:    clock{ch, cm},
		holidays: make(map[string]struct{}, len(holidays)),
	}
	for _, h := range holidays {
		d, err := time.ParseInLocation("2006-01-02", h, loc)
		if err != nil {
			return nil, fmt.Errorf("parse holiday %q: %w", h, err)
		}
		cal.holidays[d.Format("2006-01-02")] = struct{}{}
	}
	return cal, nil
}

func (c *Calendar) Location() *time.Location { return c.loc }

// IsTradingDay reports whether t's local date is a weekday and not a holiday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	t = t.In(c.loc)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := c.holidays[t.Format("2006-01-02")]
	return !holiday
}

// IsOpen reports whether t falls in [open, close) of a trading day.
func (c *Calendar) IsOpen(t time.Time) bool {
	t = t.In(c.loc)
	if !c.IsTradingDay(t) {
		return false
	}
	return !t.Before(c.open.on(t)) && t.Before(c.close.on(t))
}

// SessionClose returns the close of the session containing t. ok is false
// when the session is not open at t.
func (c *Calendar) SessionClose(t time.Time) (time.Time, bool) {
	if !c.IsOpen(t) {
		return time.Time{}, false
	}
	return c.close.on(t.In(c.loc)), true
}

// NextOpen returns the first session open strictly after t.
func (c *Calendar) NextOpen(t time.Time) time.Time {
	t = t.In(c.loc)
	day := t
	for i := 0; i < 366; i++ {
		if c.IsTradingDay(day) {
			if o := c.open.on(day); o.After(t) {
				return o
			}
		}
		day = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, c.loc)
	}
	// a year of holidays is a configuration error; fall back to a day later
	return t.Add(24 * time.Hour)
}

// OpenClock and CloseClock return the configured session bounds.
func (c *Calendar) OpenClock() (int, int)  { return c.open.h, c.open.m }
func (c *Calendar) CloseClock() (int, int) { return c.close.h, c.close.m }
