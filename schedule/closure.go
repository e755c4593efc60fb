// Package schedule computes the weekly ordering closure window.
//
// The canteen closes weekly planning at a configured weekday and time
// of day ("Friday 12:00"). From that cutoff until the start of the
// following week, ordering for the next operational week is blocked.
// All calculations are pure: callers pass the evaluation instant.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rule is a weekly recurring cutoff: a weekday plus a time of day.
type Rule struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
}

// DefaultRule is the fail-closed fallback when configuration is
// malformed: cutoff Friday 12:00 with blocking disabled by the caller.
var DefaultRule = Rule{Weekday: time.Friday, Hour: 12, Minute: 0}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseRule builds a Rule from a weekday name and an "HH:MM" clock
// string. On any parse failure it returns DefaultRule together with the
// error so callers can fall back without blocking anyone.
func ParseRule(day, clock string) (Rule, error) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(day))]
	if !ok {
		return DefaultRule, fmt.Errorf("schedule: unknown weekday %q", day)
	}

	hour, minute, err := parseClock(clock)
	if err != nil {
		return DefaultRule, err
	}

	return Rule{Weekday: wd, Hour: hour, Minute: minute}, nil
}

func parseClock(clock string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(clock), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("schedule: malformed time %q", clock)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("schedule: malformed hour in %q", clock)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("schedule: malformed minute in %q", clock)
	}

	return hour, minute, nil
}

// occurrenceOn returns the rule's cutoff instant on the same calendar
// day as t.
func (r Rule) occurrenceOn(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), r.Hour, r.Minute, 0, 0, t.Location())
}

// NextCutoff returns the next occurrence of the rule strictly after now.
func (r Rule) NextCutoff(now time.Time) time.Time {
	t := now
	for i := 0; i < 8; i++ {
		if t.Weekday() == r.Weekday {
			candidate := r.occurrenceOn(t)
			if candidate.After(now) {
				return candidate
			}
		}
		t = t.AddDate(0, 0, 1)
	}
	// Unreachable: a weekday recurs within any 8-day span.
	return r.occurrenceOn(t)
}

// PrevCutoff returns the most recent occurrence of the rule at or
// before now.
func (r Rule) PrevCutoff(now time.Time) time.Time {
	return r.NextCutoff(now).AddDate(0, 0, -7)
}

// Blocked reports whether ordering for the next operational week is
// blocked at the given instant. The blocked window runs from the
// cutoff until the start of the following week (Monday 00:00 after
// the cutoff).
func (r Rule) Blocked(now time.Time) bool {
	prev := r.PrevCutoff(now)
	return !now.Before(prev) && now.Before(startOfFollowingWeek(prev))
}

// startOfFollowingWeek returns the first Monday 00:00 strictly after t.
func startOfFollowingWeek(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	for {
		day = day.AddDate(0, 0, 1)
		if day.Weekday() == time.Monday {
			return day
		}
	}
}
