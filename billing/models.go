// Package billing computes back-charges for non-consumed orders.
//
// Candidate selection and persistence live in the store and engine;
// this package holds the models and the pure charge computation so the
// policy arithmetic is testable without storage.
package billing

import (
	"time"

	"github.com/xraph/canteen/config"
	"github.com/xraph/canteen/id"
	"github.com/xraph/canteen/order"
	"github.com/xraph/canteen/types"
)

// Cause explains why an order is a billing candidate.
type Cause string

const (
	// CauseCancelled: cancelled without provider fault.
	CauseCancelled Cause = "cancelled"
	// CausePastDate: still a preorder after its consumption date.
	CausePastDate Cause = "past_date"
	// CauseMissingProof: status says consumed but no active consumption
	// point exists. The proof is authoritative; the mismatch is
	// surfaced, never silently repaired.
	CauseMissingProof Cause = "consumed_without_proof"
)

// Candidate is one non-consumed order plus the pricing context the
// computation needs.
type Candidate struct {
	Order *order.Order
	Price types.Money // formula's nominal price per unit
	Cause Cause
}

// Exemption reasons recorded on the order.
const (
	ReasonFreeAllowance = "free-allowance"
	ReasonGrace         = "grace-cancellation"
	ReasonWeekend       = "weekend"
	ReasonHoliday       = "holiday"
	ReasonZeroRate      = "zero-rate"
)

// Charge is the computed outcome for one candidate.
type Charge struct {
	OrderID      id.OrderID      `json:"order_id"`
	Requester    order.Requester `json:"requester"`
	Date         time.Time       `json:"date"`
	Amount       types.Money     `json:"amount"`
	Rate         int             `json:"rate"`
	ExemptReason string          `json:"exempt_reason,omitempty"`
	Cause        Cause           `json:"cause"`
}

// Exempt reports whether the charge carries no amount.
func (c Charge) Exempt() bool { return !c.Amount.IsPositive() }

// Result aggregates a billing computation.
type Result struct {
	BillingEnabled bool        `json:"billing_enabled"`
	TotalAmount    types.Money `json:"total_amount"`
	BillableCount  int         `json:"billable_count"`
	ExemptCount    int         `json:"exempt_count"`
	Charges        []Charge    `json:"charges"`
}

// HolidayFunc reports whether a date is a public holiday. Holiday
// determination is an external collaborator; the zero calendar (nil)
// treats every day as a working day.
type HolidayFunc func(date time.Time) bool

// Policy aliases the configuration-resolved billing policy.
type Policy = config.BillingPolicy

// MonthKey identifies a requester's free-absence bucket for one
// calendar month.
func MonthKey(r order.Requester, date time.Time) string {
	return r.Key() + "|" + date.UTC().Format("2006-01")
}
