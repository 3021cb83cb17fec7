package clock

import (
	"log"
	"time"
)

// Clock abstracts wall time so schedulers and policy code can be tested
// against a fixed instant.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always reports the same instant until advanced.
type FixedClock struct {
	current time.Time
}

func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{current: t}
}

func (c *FixedClock) Now() time.Time {
	return c.current
}

func (c *FixedClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func (c *FixedClock) Set(t time.Time) {
	c.current = t
}

// LoadLocation resolves an IANA timezone name, falling back to UTC when the
// name is empty or unknown.
func LoadLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("⚠️ Unknown timezone %q, falling back to UTC", tz)
		return time.UTC
	}
	return loc
}

// NowInZone returns the clock's current time in the given timezone.
func NowInZone(c Clock, tz string) time.Time {
	return c.Now().In(LoadLocation(tz))
}

// StartOfHour truncates t to the top of its hour, preserving location.
func StartOfHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// StartOfDay returns midnight of t's calendar day in the given timezone.
func StartOfDay(t time.Time, tz string) time.Time {
	local := t.In(LoadLocation(tz))
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
}

// WeekdayIndex returns the day of week for t as 0 (Sunday) through 6
// (Saturday), matching how activity patterns are bucketed.
func WeekdayIndex(t time.Time) int {
	return int(t.Weekday())
}

// IsWeekend reports whether t falls on Saturday or Sunday in the given zone.
func IsWeekend(t time.Time, tz string) bool {
	wd := t.In(LoadLocation(tz)).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// NextBusinessHourStart returns the earliest top-of-hour at or after t that
// falls within [startHour, endHour) on a weekday in the given timezone. If t
// already satisfies the window, the start of t's current hour is returned.
func NextBusinessHourStart(t time.Time, tz string, startHour, endHour int) time.Time {
	local := t.In(LoadLocation(tz))
	candidate := StartOfHour(local)
	for {
		wd := candidate.Weekday()
		h := candidate.Hour()
		if wd != time.Saturday && wd != time.Sunday && h >= startHour && h < endHour {
			if !candidate.Before(StartOfHour(local)) {
				return candidate
			}
		}
		candidate = candidate.Add(time.Hour)
	}
}
