package config

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/canteen/schedule"
)

type mapSource map[string]string

func (m mapSource) ConfigValue(_ context.Context, key string) (string, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	return "", nil
}

func TestClosureRule(t *testing.T) {
	ctx := context.Background()

	t.Run("configured", func(t *testing.T) {
		s := NewSettings(mapSource{
			KeyClosingDay:     "wednesday",
			KeyClosingTime:    "18:30",
			KeyClosureEnabled: "true",
		}, nil)

		rule, enabled := s.ClosureRule(ctx)
		if !enabled {
			t.Fatal("closure should be enabled")
		}
		want := schedule.Rule{Weekday: time.Wednesday, Hour: 18, Minute: 30}
		if rule != want {
			t.Errorf("got %+v, want %+v", rule, want)
		}
	})

	t.Run("defaults when unset", func(t *testing.T) {
		s := NewSettings(mapSource{}, nil)

		rule, enabled := s.ClosureRule(ctx)
		if !enabled {
			t.Fatal("closure defaults to enabled")
		}
		if rule != schedule.DefaultRule {
			t.Errorf("got %+v, want default rule", rule)
		}
	})

	t.Run("malformed disables blocking", func(t *testing.T) {
		s := NewSettings(mapSource{
			KeyClosingDay:  "payday",
			KeyClosingTime: "12:00",
		}, nil)

		rule, enabled := s.ClosureRule(ctx)
		if enabled {
			t.Error("malformed schedule must disable blocking")
		}
		if rule != schedule.DefaultRule {
			t.Errorf("got %+v, want default rule", rule)
		}
	})
}

func TestAutoConfirmEnabled(t *testing.T) {
	ctx := context.Background()

	if !NewSettings(mapSource{}, nil).AutoConfirmEnabled(ctx) {
		t.Error("auto-confirm defaults to enabled")
	}
	if NewSettings(mapSource{KeyAutoConfirm: "false"}, nil).AutoConfirmEnabled(ctx) {
		t.Error("explicit false should disable auto-confirm")
	}
}

func TestBillingPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		p := NewSettings(mapSource{}, nil).BillingPolicy(ctx)
		if p.Enabled {
			t.Error("billing defaults to disabled")
		}
		if p.Percent != 100 {
			t.Errorf("percent = %d, want 100", p.Percent)
		}
		if p.FreeAbsences != 0 {
			t.Errorf("free absences = %d, want 0", p.FreeAbsences)
		}
		if p.Grace != 24*time.Hour {
			t.Errorf("grace = %v, want 24h", p.Grace)
		}
		if p.BillWeekends || p.BillHolidays {
			t.Error("weekends and holidays default to exempt")
		}
	})

	t.Run("configured", func(t *testing.T) {
		p := NewSettings(mapSource{
			KeyBillingEnabled: "true",
			KeyBillingPercent: "50",
			KeyFreeAbsences:   "2",
			KeyGraceHours:     "48",
			KeyBillWeekends:   "true",
			KeyBillHolidays:   "true",
		}, nil).BillingPolicy(ctx)

		if !p.Enabled || p.Percent != 50 || p.FreeAbsences != 2 {
			t.Errorf("unexpected policy %+v", p)
		}
		if p.Grace != 48*time.Hour {
			t.Errorf("grace = %v, want 48h", p.Grace)
		}
		if !p.BillWeekends || !p.BillHolidays {
			t.Error("weekend and holiday billing should be on")
		}
	})

	t.Run("malformed numeric falls back", func(t *testing.T) {
		p := NewSettings(mapSource{KeyBillingPercent: "half"}, nil).BillingPolicy(ctx)
		if p.Percent != 100 {
			t.Errorf("percent = %d, want default 100", p.Percent)
		}
	})
}
