package billing

import (
	"sort"
	"time"

	"github.com/xraph/canteen/types"
)

// Compute applies the billing policy to a set of candidates and
// returns the per-order charges plus aggregate totals.
//
// priorExemptions seeds the per-requester monthly free-absence counters
// with allowances already consumed by earlier runs (keyed by MonthKey),
// so overlapping date ranges never grant the allowance twice.
//
// Pure: no storage, no clock. Candidates are processed oldest first by
// consumption date so the free allowance goes to the earliest absences
// of the month.
func Compute(candidates []Candidate, policy Policy, isHoliday HolidayFunc, priorExemptions map[string]int) Result {
	result := Result{
		BillingEnabled: policy.Enabled,
		Charges:        make([]Charge, 0, len(candidates)),
	}

	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Order.Date.Equal(ordered[j].Order.Date) {
			return ordered[i].Order.Date.Before(ordered[j].Order.Date)
		}
		return ordered[i].Order.CreatedAt.Before(ordered[j].Order.CreatedAt)
	})

	allowanceUsed := make(map[string]int, len(priorExemptions))
	for k, v := range priorExemptions {
		allowanceUsed[k] = v
	}

	var billed []types.Money
	for _, cand := range ordered {
		charge := computeOne(cand, policy, isHoliday, allowanceUsed)
		if charge.Exempt() {
			result.ExemptCount++
		} else {
			result.BillableCount++
			billed = append(billed, charge.Amount)
		}
		result.Charges = append(result.Charges, charge)
	}
	result.TotalAmount = types.Sum(billed...)

	return result
}

func computeOne(cand Candidate, policy Policy, isHoliday HolidayFunc, allowanceUsed map[string]int) Charge {
	o := cand.Order
	charge := Charge{
		OrderID:   o.ID,
		Requester: o.Requester,
		Date:      o.Date,
		Rate:      policy.Percent,
		Amount:    types.Zero(cand.Price.Currency),
		Cause:     cand.Cause,
	}

	switch {
	case !policy.BillWeekends && isWeekend(o.Date):
		charge.ExemptReason = ReasonWeekend
		return charge

	case !policy.BillHolidays && isHoliday != nil && isHoliday(o.Date):
		charge.ExemptReason = ReasonHoliday
		return charge

	case cand.Cause == CauseCancelled && withinGrace(o.CancelledAt, o.Date, policy.Grace):
		charge.ExemptReason = ReasonGrace
		return charge
	}

	key := MonthKey(o.Requester, o.Date)
	if allowanceUsed[key] < policy.FreeAbsences {
		allowanceUsed[key]++
		charge.ExemptReason = ReasonFreeAllowance
		return charge
	}

	amount := cand.Price.Multiply(int64(o.Quantity)).Percent(int64(policy.Percent))
	if !amount.IsPositive() {
		charge.ExemptReason = ReasonZeroRate
		return charge
	}
	charge.Amount = amount
	return charge
}

func isWeekend(date time.Time) bool {
	wd := date.UTC().Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// withinGrace reports whether a cancellation happened early enough
// before the consumption date to stay free of charge.
func withinGrace(cancelledAt *time.Time, date time.Time, grace time.Duration) bool {
	if cancelledAt == nil {
		return false
	}
	return date.Sub(*cancelledAt) >= grace
}
