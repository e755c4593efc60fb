package proof

import (
	"context"
	"time"

	"github.com/xraph/canteen/id"
)

// Store is the consumption-point persistence contract.
type Store interface {
	// Record inserts the proof and transitions its order to Consumed in
	// one transaction. Fails with the already-recorded sentinel when an
	// active proof exists for the order.
	Record(ctx context.Context, p *ConsumptionPoint) error

	// GetByOrder returns the active proof for an order, or the
	// not-found sentinel.
	GetByOrder(ctx context.Context, orderID id.OrderID) (*ConsumptionPoint, error)

	// Retire soft-deletes a proof (service-point correction). The order
	// status is left untouched; the resulting status/proof mismatch is
	// exactly what the billing candidate query detects.
	Retire(ctx context.Context, proofID id.ProofID, at time.Time) error
}
