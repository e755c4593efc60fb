// Package order defines meal orders and their state machine.
package order

import (
	"time"

	"github.com/xraph/canteen/formula"
	"github.com/xraph/canteen/id"
	"github.com/xraph/canteen/types"
)

// Status is the order's lifecycle state.
//
// Preorder is the only non-terminal state. Consumed is set exclusively
// on arrival of a consumption point; a status of Consumed without a
// matching active proof is an inconsistency, and billing trusts the
// proof, not the status.
type Status string

const (
	StatusPreorder  Status = "preorder"
	StatusConsumed  Status = "consumed"
	StatusCancelled Status = "cancelled"
	StatusBilled    Status = "billed"
	StatusExempted  Status = "exempted"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s != StatusPreorder
}

// RequesterKind tags who placed the order.
type RequesterKind string

const (
	RequesterEmployee RequesterKind = "employee"
	RequesterGroup    RequesterKind = "group"   // non-member group
	RequesterVisitor  RequesterKind = "visitor" // walk-in
)

// Requester identifies who an order belongs to. Ref is an external
// directory reference (employee number, group code, visitor tag) the
// core treats as opaque.
type Requester struct {
	Kind RequesterKind `json:"kind"`
	Ref  string        `json:"ref"`
}

// Key returns the deduplication key for a requester.
func (r Requester) Key() string {
	return string(r.Kind) + ":" + r.Ref
}

// Actor identifies who triggered a cancellation.
type Actor string

const (
	ActorRequester Actor = "requester"
	ActorProvider  Actor = "provider"
	ActorSystem    Actor = "system"
)

// ReasonDuplicate is the cancellation reason recorded by the duplicate
// reconciler.
const ReasonDuplicate = "system-duplicate-cleanup"

// Order is one reservation of formula units by one requester for one
// consumption date and service period.
type Order struct {
	types.Entity
	ID        id.OrderID      `json:"id"`
	Requester Requester       `json:"requester"`
	FormulaID id.FormulaDayID `json:"formula_id"`
	Date      time.Time       `json:"date"` // consumption date, midnight UTC
	Period    formula.Period  `json:"period"`
	Quantity  int             `json:"quantity"`
	Status    Status          `json:"status"`

	// MarginAmount is the subsidy margin reserved at placement and
	// released verbatim when the order is cancelled or discarded.
	MarginAmount types.Money `json:"margin_amount"`

	// Instant orders are same-day orders placed outside the weekly
	// planning window; they bypass the closure check but not the
	// per-day deduplication handled by the reconciler.
	Instant bool `json:"instant"`

	// ProviderFault marks cancellations initiated by the meal provider;
	// such orders are never billed back to the requester.
	ProviderFault bool `json:"provider_fault"`

	CancelReason string     `json:"cancel_reason,omitempty"`
	CancelActor  Actor      `json:"cancel_actor,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`

	// ConfirmedAt is stamped by the auto-confirmation pass; a stamped
	// past-dated preorder is visible to the billing engine.
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`

	// Billing outcome, set once by the billing engine.
	ChargeAmount types.Money `json:"charge_amount,omitempty"`
	ChargeRate   int         `json:"charge_rate,omitempty"` // percentage applied
	ExemptReason string      `json:"exempt_reason,omitempty"`
	BilledAt     *time.Time  `json:"billed_at,omitempty"`
}

// ListOpts filters order listings. Zero fields are ignored.
type ListOpts struct {
	Requester *Requester
	Status    Status
	From      time.Time
	To        time.Time
	Instant   *bool
	Limit     int
	Offset    int
}
