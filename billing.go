package canteen

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/canteen/billing"
)

// ──────────────────────────────────────────────────
// Back-billing
// ──────────────────────────────────────────────────

// NonConsumed returns the billing candidates in the date range:
// cancelled orders (unless provider fault), confirmed preorders
// strictly past their date, and orders marked consumed with no
// surviving consumption point. An order whose date has not passed, or
// a preorder the confirmation pass has not stamped, is never a
// candidate.
func (c *Canteen) NonConsumed(ctx context.Context, from, to time.Time) ([]billing.Candidate, error) {
	return c.store.NonConsumed(ctx, from, to, c.now())
}

// ComputeBilling resolves the billing policy and computes charges for
// every candidate in the date range without persisting anything. It
// always computes, even while billing is disabled, so operators can
// preview what a policy change would cost.
//
// Free-allowance counters are seeded from exemptions granted by
// earlier runs over the same months, so the per-requester monthly
// allowance is consumed exactly once across overlapping runs.
func (c *Canteen) ComputeBilling(ctx context.Context, from, to time.Time) (*billing.Result, error) {
	policy := c.settings.BillingPolicy(ctx)

	candidates, err := c.store.NonConsumed(ctx, from, to, c.now())
	if err != nil {
		return nil, err
	}

	prior, err := c.store.FreeAllowanceUsed(ctx, monthStart(from), monthEnd(to))
	if err != nil {
		return nil, err
	}

	result := billing.Compute(candidates, policy, c.isHoliday, prior)

	c.plugins.EmitBillingComputed(ctx, &result)
	c.logger.Info("billing computed",
		"from", from.Format("2006-01-02"),
		"to", to.Format("2006-01-02"),
		"candidates", len(candidates),
		"billable", result.BillableCount,
		"exempt", result.ExemptCount,
		"total", result.TotalAmount.String(),
	)
	return &result, nil
}

// ApplyBilling computes charges for the date range and persists them,
// transitioning each candidate to billed or exempted. While billing is
// disabled nothing is persisted; the computed result is still returned
// alongside ErrBillingDisabled so callers keep the preview. Per-order
// failures are collected and do not abort the run; an order settled by
// a concurrent run is skipped silently.
func (c *Canteen) ApplyBilling(ctx context.Context, from, to time.Time) (*billing.Result, error) {
	result, err := c.ComputeBilling(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if !result.BillingEnabled {
		return result, ErrBillingDisabled
	}

	now := c.now()
	var merr MultiError
	for _, charge := range result.Charges {
		err := c.store.ApplyCharge(ctx, charge.OrderID, charge.Amount, charge.Rate, charge.ExemptReason, now)
		if err != nil {
			if errors.Is(err, ErrAlreadyBilled) {
				continue
			}
			merr.Add(UnitError{Unit: charge.OrderID.String(), Err: err})
		}
	}

	c.plugins.EmitBillingApplied(ctx, result)
	c.logger.Info("billing applied",
		"charges", len(result.Charges),
		"total", result.TotalAmount.String(),
		"failed", len(merr.Errors),
	)
	return result, merr.ErrOrNil()
}

// monthStart returns the first day of t's month.
func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// monthEnd returns the last day of t's month.
func monthEnd(t time.Time) time.Time {
	return monthStart(t).AddDate(0, 1, -1)
}
