// Package proof defines consumption points: redemption records at a
// service point. The presence of an active proof is the sole authority
// for "really consumed"; the order status field alone is not trusted.
package proof

import (
	"time"

	"github.com/xraph/canteen/id"
	"github.com/xraph/canteen/types"
)

// ConsumptionPoint is evidence that an order was redeemed.
type ConsumptionPoint struct {
	types.Entity
	ID         id.ProofID `json:"id"`
	OrderID    id.OrderID `json:"order_id"`
	RedeemedAt time.Time  `json:"redeemed_at"`
	Redeemer   string     `json:"redeemer"` // service-point operator reference
}
