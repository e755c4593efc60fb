package order

import (
	"context"
	"time"

	"github.com/xraph/canteen/id"
	"github.com/xraph/canteen/types"
)

// Store is the order persistence contract. The composite operations
// (Place, Cancel, Discard) run the order mutation and its quota/margin
// counterpart inside one storage transaction so a failure leaves
// neither side applied.
type Store interface {
	// Place atomically reserves o.Quantity units plus the given margin
	// amount against o.FormulaID/o.Period and inserts the order.
	// When enforceUnique is set it fails with the duplicate-order
	// sentinel if the requester already has an active order for the
	// date. Fails with the capacity sentinel when the reservation is
	// denied; in every failure case nothing is persisted.
	Place(ctx context.Context, o *Order, marginAmount types.Money, enforceUnique bool) error

	Get(ctx context.Context, orderID id.OrderID) (*Order, error)
	List(ctx context.Context, opts ListOpts) ([]*Order, error)

	// GetActive returns the requester's active order for a consumption
	// date, regardless of planned/instant origin.
	GetActive(ctx context.Context, requester Requester, date time.Time) (*Order, error)

	// Cancel transitions a Preorder to Cancelled with the given reason
	// and actor, releasing its quota and margin in the same
	// transaction. Fails with the invalid-transition sentinel when the
	// order is not in Preorder.
	Cancel(ctx context.Context, orderID id.OrderID, reason string, actor Actor, providerFault bool, at time.Time) (*Order, error)

	// Confirm stamps ConfirmedAt on a past-dated Preorder. Returns
	// false without error when the order was already stamped or is
	// terminal, making the auto-confirmation pass idempotent.
	Confirm(ctx context.Context, orderID id.OrderID, at time.Time) (bool, error)

	// MarkConsumed transitions to Consumed. Only called by the proof
	// recording path.
	MarkConsumed(ctx context.Context, orderID id.OrderID, at time.Time) error

	// ApplyCharge transitions a candidate to Billed (amount > 0) or
	// Exempted (amount == 0) and persists the charge fields. Fails with
	// the already-billed sentinel when the order is already in a billed
	// or exempted state so overlapping billing runs never double-charge.
	ApplyCharge(ctx context.Context, orderID id.OrderID, amount types.Money, rate int, exemptReason string, at time.Time) error

	// Discard cancels a duplicate with the system actor, soft-deletes
	// it and releases its quota and margin, all in one transaction.
	Discard(ctx context.Context, orderID id.OrderID, at time.Time) error
}
