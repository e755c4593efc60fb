package canteen

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/canteen/formula"
	"github.com/xraph/canteen/id"
	"github.com/xraph/canteen/order"
	"github.com/xraph/canteen/proof"
	"github.com/xraph/canteen/types"
)

// ──────────────────────────────────────────────────
// Order Lifecycle
// ──────────────────────────────────────────────────

// OrderRequest carries the caller-provided fields of a new order.
type OrderRequest struct {
	Requester order.Requester
	Kind      formula.Kind
	Date      time.Time
	Period    formula.Period
	Quantity  int

	// Instant marks a same-day walk-in order. Instant orders bypass
	// the weekly closure window and may stack until the duplicate
	// reconciler collapses them. The date must be today.
	Instant bool
}

// CreateOrder places an order against the date's formula.
//
// Instant orders bypass the weekly closure window and may stack until
// the duplicate reconciler collapses them; they are only valid for
// today's date. Planned orders are gated by the closure window and
// rejected up front when the requester already holds an active order
// for the date. Either way the quota and margin reservation is atomic:
// the order exists if and only if capacity was taken.
func (c *Canteen) CreateOrder(ctx context.Context, req OrderRequest) (*order.Order, error) {
	if req.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if !req.Period.Valid() {
		return nil, ErrInvalidPeriod
	}
	if req.Requester.Ref == "" {
		return nil, ErrInvalidInput
	}

	now := c.now()
	date := formula.Day(req.Date)
	today := formula.Day(now)
	if date.Before(today) {
		return nil, ErrInvalidInput
	}
	if req.Instant && !date.Equal(today) {
		return nil, ErrInvalidInput
	}
	if !req.Instant && c.IsOrderingBlocked(ctx) {
		return nil, ErrOrderingClosed
	}

	f, err := c.store.GetFormulaDayByDate(ctx, req.Kind, date)
	if err != nil {
		return nil, err
	}

	o := &order.Order{
		Entity:    types.NewEntityAt(now),
		ID:        id.NewOrderID(),
		Requester: req.Requester,
		FormulaID: f.ID,
		Date:      date,
		Period:    req.Period,
		Quantity:  req.Quantity,
		Status:    order.StatusPreorder,
		Instant:   req.Instant,
	}
	margin := f.Price.Multiply(int64(req.Quantity))

	if err := c.store.PlaceOrder(ctx, o, margin, !req.Instant); err != nil {
		if errors.Is(err, ErrCapacityExhausted) {
			c.plugins.EmitCapacityDenied(ctx, f.ID.String(), string(req.Period), req.Quantity)
		}
		return nil, err
	}

	c.plugins.EmitOrderCreated(ctx, o)
	c.logger.Info("order created",
		"order_id", o.ID.String(),
		"requester", o.Requester.Key(),
		"date", o.Date.Format("2006-01-02"),
		"period", o.Period,
		"instant", o.Instant,
	)
	return o, nil
}

// GetOrder retrieves an order by ID.
func (c *Canteen) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	return c.store.GetOrder(ctx, orderID)
}

// ListOrders lists orders matching the options.
func (c *Canteen) ListOrders(ctx context.Context, opts order.ListOpts) ([]*order.Order, error) {
	return c.store.ListOrders(ctx, opts)
}

// ActiveOrder returns the requester's active order for a date.
func (c *Canteen) ActiveOrder(ctx context.Context, requester order.Requester, date time.Time) (*order.Order, error) {
	return c.store.GetActiveOrder(ctx, requester, date)
}

// CancelOrder cancels a preorder and releases its capacity. A
// provider-fault cancellation marks the order exempt from back-billing.
func (c *Canteen) CancelOrder(ctx context.Context, orderID id.OrderID, reason string, actor order.Actor) (*order.Order, error) {
	providerFault := actor == order.ActorProvider

	o, err := c.store.CancelOrder(ctx, orderID, reason, actor, providerFault, c.now())
	if err != nil {
		return nil, err
	}

	c.plugins.EmitOrderCancelled(ctx, o, reason)
	c.logger.Info("order cancelled",
		"order_id", o.ID.String(),
		"actor", actor,
		"provider_fault", providerFault,
	)
	return o, nil
}

// RecordConsumption registers a consumption point for an order and
// marks it consumed. The proof, not the status, is what billing
// trusts later.
func (c *Canteen) RecordConsumption(ctx context.Context, orderID id.OrderID, redeemer string) (*proof.ConsumptionPoint, error) {
	now := c.now()
	p := &proof.ConsumptionPoint{
		Entity:     types.NewEntityAt(now),
		ID:         id.NewProofID(),
		OrderID:    orderID,
		RedeemedAt: now,
		Redeemer:   redeemer,
	}

	if err := c.store.RecordProof(ctx, p); err != nil {
		return nil, err
	}

	o, err := c.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	c.plugins.EmitOrderConsumed(ctx, o, p)
	c.logger.Info("consumption recorded",
		"order_id", orderID.String(),
		"proof_id", p.ID.String(),
		"redeemer", redeemer,
	)
	return p, nil
}

// RetireConsumption withdraws a consumption point (service-point
// correction). The order keeps its consumed status; the mismatch is
// picked up by the next billing pass.
func (c *Canteen) RetireConsumption(ctx context.Context, proofID id.ProofID) error {
	return c.store.RetireProof(ctx, proofID, c.now())
}

// ConsumptionProof returns the active proof for an order.
func (c *Canteen) ConsumptionProof(ctx context.Context, orderID id.OrderID) (*proof.ConsumptionPoint, error) {
	return c.store.GetProofByOrder(ctx, orderID)
}

// RunAutoConfirmationPass stamps every past-dated preorder with a
// confirmation timestamp, making it visible to the billing engine.
// The pass is idempotent; already-stamped and terminal orders are
// skipped. Per-order failures are collected, never abort the pass.
func (c *Canteen) RunAutoConfirmationPass(ctx context.Context) (confirmed, skipped int, err error) {
	if !c.settings.AutoConfirmEnabled(ctx) {
		c.logger.Debug("auto-confirmation disabled, pass skipped")
		return 0, 0, nil
	}

	start := c.now()
	yesterday := formula.Day(start).AddDate(0, 0, -1)

	pending, err := c.store.ListOrders(ctx, order.ListOpts{
		Status: order.StatusPreorder,
		To:     yesterday,
	})
	if err != nil {
		return 0, 0, err
	}

	var merr MultiError
	for _, o := range pending {
		stamped, err := c.store.ConfirmOrder(ctx, o.ID, start)
		if err != nil {
			merr.Add(UnitError{Unit: o.ID.String(), Err: err})
			continue
		}
		if stamped {
			confirmed++
		} else {
			skipped++
		}
	}

	elapsed := time.Since(start)
	c.plugins.EmitAutoConfirmRun(ctx, confirmed, skipped, elapsed)
	c.logger.Info("auto-confirmation pass finished",
		"confirmed", confirmed,
		"skipped", skipped,
		"failed", len(merr.Errors),
	)
	return confirmed, skipped, merr.ErrOrNil()
}
