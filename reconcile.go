package canteen

import (
	"context"
	"sort"
	"time"

	"github.com/xraph/canteen/formula"
	"github.com/xraph/canteen/id"
	"github.com/xraph/canteen/order"
)

// ──────────────────────────────────────────────────
// Duplicate Reconciliation
// ──────────────────────────────────────────────────

// DuplicateGroup records one requester/date collision and how it was
// resolved.
type DuplicateGroup struct {
	Requester order.Requester `json:"requester"`
	Date      time.Time       `json:"date"`
	Kept      id.OrderID      `json:"kept"`
	Discarded []id.OrderID    `json:"discarded"`
}

// ReconcileReport summarizes a duplicate cleanup pass.
type ReconcileReport struct {
	Scanned   int              `json:"scanned"`
	Groups    []DuplicateGroup `json:"groups"`
	Discarded int              `json:"discarded"`
}

// ReconcileDuplicates collapses stacked orders per requester and date
// in the range. Planned orders are rejected up front when a duplicate
// exists, so stacks only arise from the instant path; for each stack
// the newest order is kept and the rest are discarded, releasing their
// capacity. Per-order failures are collected, never abort the pass.
func (c *Canteen) ReconcileDuplicates(ctx context.Context, from, to time.Time) (*ReconcileReport, error) {
	pending, err := c.store.ListOrders(ctx, order.ListOpts{
		Status: order.StatusPreorder,
		From:   from,
		To:     to,
	})
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]*order.Order)
	for _, o := range pending {
		key := o.Requester.Key() + "|" + formula.Day(o.Date).Format("2006-01-02")
		groups[key] = append(groups[key], o)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	report := &ReconcileReport{Scanned: len(pending)}
	now := c.now()

	var merr MultiError
	for _, key := range keys {
		stack := groups[key]
		if len(stack) < 2 {
			continue
		}

		// Newest first; the latest order is the requester's final word.
		sort.Slice(stack, func(i, j int) bool {
			return stack[i].CreatedAt.After(stack[j].CreatedAt)
		})

		group := DuplicateGroup{
			Requester: stack[0].Requester,
			Date:      stack[0].Date,
			Kept:      stack[0].ID,
		}
		for _, dup := range stack[1:] {
			if err := c.store.DiscardOrder(ctx, dup.ID, now); err != nil {
				merr.Add(UnitError{Unit: dup.ID.String(), Err: err})
				continue
			}
			group.Discarded = append(group.Discarded, dup.ID)
			report.Discarded++
		}
		report.Groups = append(report.Groups, group)
	}

	c.plugins.EmitDuplicatesReconciled(ctx, report)
	c.logger.Info("duplicate reconciliation finished",
		"scanned", report.Scanned,
		"groups", len(report.Groups),
		"discarded", report.Discarded,
		"failed", len(merr.Errors),
	)
	return report, merr.ErrOrNil()
}
