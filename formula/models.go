// Package formula defines the formula-of-the-day: one dated menu
// offering with finite per-period capacity and subsidy margin.
package formula

import (
	"time"

	"github.com/xraph/canteen/id"
	"github.com/xraph/canteen/types"
)

// Period is a service shift with independent capacity.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodNight Period = "night"
)

// Valid reports whether the period is one of the known shifts.
func (p Period) Valid() bool {
	return p == PeriodDay || p == PeriodNight
}

// Kind is the formula type a daily offering belongs to.
type Kind string

const (
	KindImproved  Kind = "improved"
	KindStandard1 Kind = "standard-1"
	KindStandard2 Kind = "standard-2"
)

// FormulaDay is one menu offering valid for a single calendar date.
// The remaining quota and margin fields are the only contended state in
// the system; they are mutated exclusively through the store's atomic
// Reserve and Release operations, never by read-modify-write at a
// caller.
type FormulaDay struct {
	types.Entity
	ID       id.FormulaDayID `json:"id"`
	Kind     Kind            `json:"kind"`
	Date     time.Time       `json:"date"` // calendar date, midnight UTC
	Starter  string          `json:"starter"`
	MainDish string          `json:"main_dish"`
	Dessert  string          `json:"dessert"`
	Price    types.Money     `json:"price"` // nominal price, basis for back-billing

	DayQuotaInitial     int `json:"day_quota_initial"`
	DayQuotaRemaining   int `json:"day_quota_remaining"`
	NightQuotaInitial   int `json:"night_quota_initial"`
	NightQuotaRemaining int `json:"night_quota_remaining"`

	DayMarginInitial     types.Money `json:"day_margin_initial"`
	DayMarginRemaining   types.Money `json:"day_margin_remaining"`
	NightMarginInitial   types.Money `json:"night_margin_initial"`
	NightMarginRemaining types.Money `json:"night_margin_remaining"`
}

// QuotaInitial returns the configured unit quota for a period.
func (f *FormulaDay) QuotaInitial(p Period) int {
	if p == PeriodNight {
		return f.NightQuotaInitial
	}
	return f.DayQuotaInitial
}

// MarginInitial returns the configured subsidy margin for a period.
func (f *FormulaDay) MarginInitial(p Period) types.Money {
	if p == PeriodNight {
		return f.NightMarginInitial
	}
	return f.DayMarginInitial
}

// QuotaRemaining returns the remaining unit quota for a period.
func (f *FormulaDay) QuotaRemaining(p Period) int {
	if p == PeriodNight {
		return f.NightQuotaRemaining
	}
	return f.DayQuotaRemaining
}

// MarginRemaining returns the remaining subsidy margin for a period.
func (f *FormulaDay) MarginRemaining(p Period) types.Money {
	if p == PeriodNight {
		return f.NightMarginRemaining
	}
	return f.DayMarginRemaining
}

// ListOpts filters formula-day listings.
type ListOpts struct {
	Kind   Kind
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// Day truncates a timestamp to its calendar date at midnight UTC.
// Orders, formula-days and proofs all key on this normalized form.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
