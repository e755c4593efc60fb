package schedule

import (
	"testing"
	"time"
)

// at builds an instant on the given 2026 date. 2026-03-06 is a Friday.
func at(day int, hour, minute int) time.Time {
	return time.Date(2026, 3, day, hour, minute, 0, 0, time.UTC)
}

func TestParseRule(t *testing.T) {
	tests := []struct {
		name    string
		day     string
		clock   string
		want    Rule
		wantErr bool
	}{
		{"friday noon", "friday", "12:00", Rule{time.Friday, 12, 0}, false},
		{"case insensitive", "  Monday ", "08:30", Rule{time.Monday, 8, 30}, false},
		{"unknown weekday", "someday", "12:00", DefaultRule, true},
		{"malformed time", "friday", "noonish", DefaultRule, true},
		{"hour out of range", "friday", "25:00", DefaultRule, true},
		{"minute out of range", "friday", "12:61", DefaultRule, true},
		{"missing minute", "friday", "12", DefaultRule, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRule(tt.day, tt.clock)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr = %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNextCutoff(t *testing.T) {
	rule := Rule{Weekday: time.Friday, Hour: 12, Minute: 0}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"friday just before noon", at(6, 11, 59), at(6, 12, 0)},
		{"friday just after noon", at(6, 12, 1), at(13, 12, 0)},
		{"exactly at cutoff is not after", at(6, 12, 0), at(13, 12, 0)},
		{"midweek", at(4, 9, 0), at(6, 12, 0)},
		{"sunday", at(8, 20, 0), at(13, 12, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rule.NextCutoff(tt.now)
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if !got.After(tt.now) {
				t.Error("next cutoff must be strictly after now")
			}
		})
	}
}

func TestBlocked(t *testing.T) {
	rule := Rule{Weekday: time.Friday, Hour: 12, Minute: 0}

	tests := []struct {
		name    string
		now     time.Time
		blocked bool
	}{
		{"friday 11:59 open", at(6, 11, 59), false},
		{"friday 12:00 blocked", at(6, 12, 0), true},
		{"friday 12:01 blocked", at(6, 12, 1), true},
		{"saturday blocked", at(7, 10, 0), true},
		{"sunday blocked", at(8, 23, 59), true},
		{"monday 00:00 open again", at(9, 0, 0), false},
		{"wednesday open", at(11, 12, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rule.Blocked(tt.now); got != tt.blocked {
				t.Errorf("Blocked(%v) = %v, want %v", tt.now, got, tt.blocked)
			}
		})
	}
}

func TestBlockedMidweekCutoff(t *testing.T) {
	// A Wednesday 18:00 cutoff blocks Wednesday evening through Sunday.
	rule := Rule{Weekday: time.Wednesday, Hour: 18, Minute: 0}

	if rule.Blocked(at(4, 17, 59)) {
		t.Error("before cutoff should be open")
	}
	if !rule.Blocked(at(4, 18, 0)) {
		t.Error("at cutoff should be blocked")
	}
	if !rule.Blocked(at(6, 12, 0)) {
		t.Error("friday after wednesday cutoff should be blocked")
	}
	if rule.Blocked(at(9, 0, 0)) {
		t.Error("following monday should be open")
	}
}

func TestPrevCutoff(t *testing.T) {
	rule := Rule{Weekday: time.Friday, Hour: 12, Minute: 0}

	prev := rule.PrevCutoff(at(10, 9, 0)) // Tuesday
	if !prev.Equal(at(6, 12, 0)) {
		t.Errorf("got %v, want %v", prev, at(6, 12, 0))
	}
}
