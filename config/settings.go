package config

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/canteen/schedule"
)

// Source supplies raw configuration values. The store's config table
// satisfies this; any error is treated as "key absent".
type Source interface {
	ConfigValue(ctx context.Context, key string) (string, error)
}

// Entry is one configuration row: a key, its raw value, and the
// operator-facing description of what the key controls.
type Entry struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// Settings is the typed reader over a Source. Malformed values are
// logged and replaced by the documented default, never propagated.
type Settings struct {
	source Source
	logger *slog.Logger
}

// NewSettings creates a Settings reader over the given source.
func NewSettings(source Source, logger *slog.Logger) *Settings {
	if logger == nil {
		logger = slog.Default()
	}
	return &Settings{source: source, logger: logger}
}

func (s *Settings) raw(ctx context.Context, key string) (string, bool) {
	v, err := s.source.ConfigValue(ctx, key)
	if err != nil || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (s *Settings) boolValue(ctx context.Context, key string, def bool) bool {
	v, ok := s.raw(ctx, key)
	if !ok {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		s.logger.Warn("config: malformed boolean, using default",
			"key", key,
			"value", v,
			"default", def,
		)
		return def
	}
	return parsed
}

func (s *Settings) intValue(ctx context.Context, key string, def, min, max int) int {
	v, ok := s.raw(ctx, key)
	if !ok {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < min || parsed > max {
		s.logger.Warn("config: malformed integer, using default",
			"key", key,
			"value", v,
			"default", def,
		)
		return def
	}
	return parsed
}

// ClosureRule returns the weekly cutoff rule and whether closure
// blocking is enabled at all. A malformed weekday or time fails closed:
// the default rule is returned and blocking is reported disabled.
func (s *Settings) ClosureRule(ctx context.Context) (schedule.Rule, bool) {
	enabled := s.boolValue(ctx, KeyClosureEnabled, true)

	day, dayOK := s.raw(ctx, KeyClosingDay)
	if !dayOK {
		day = "friday"
	}
	clock, clockOK := s.raw(ctx, KeyClosingTime)
	if !clockOK {
		clock = "12:00"
	}

	rule, err := schedule.ParseRule(day, clock)
	if err != nil {
		s.logger.Warn("config: malformed closure rule, blocking disabled",
			"day", day,
			"time", clock,
			"error", err,
		)
		return schedule.DefaultRule, false
	}
	return rule, enabled
}

// AutoConfirmEnabled reports whether the auto-confirmation pass runs.
func (s *Settings) AutoConfirmEnabled(ctx context.Context) bool {
	return s.boolValue(ctx, KeyAutoConfirm, true)
}

// BillingPolicy is the resolved back-billing policy.
type BillingPolicy struct {
	Enabled      bool
	Percent      int           // charged percentage of nominal price, 0-100
	FreeAbsences int           // exempted non-consumed orders per requester per month
	Grace        time.Duration // cancellations earlier than this before the date are free
	BillWeekends bool
	BillHolidays bool
}

// BillingPolicy resolves the billing policy from configuration,
// applying defaults for missing or malformed keys.
func (s *Settings) BillingPolicy(ctx context.Context) BillingPolicy {
	return BillingPolicy{
		Enabled:      s.boolValue(ctx, KeyBillingEnabled, false),
		Percent:      s.intValue(ctx, KeyBillingPercent, 100, 0, 100),
		FreeAbsences: s.intValue(ctx, KeyFreeAbsences, 0, 0, 31),
		Grace:        time.Duration(s.intValue(ctx, KeyGraceHours, 24, 0, 24*31)) * time.Hour,
		BillWeekends: s.boolValue(ctx, KeyBillWeekends, false),
		BillHolidays: s.boolValue(ctx, KeyBillHolidays, false),
	}
}
