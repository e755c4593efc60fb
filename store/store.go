package store

import (
	"context"
	"time"

	"github.com/xraph/canteen/billing"
	"github.com/xraph/canteen/config"
	"github.com/xraph/canteen/formula"
	"github.com/xraph/canteen/id"
	"github.com/xraph/canteen/order"
	"github.com/xraph/canteen/proof"
	"github.com/xraph/canteen/types"
)

// Store is the unified storage interface for all canteen entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
//
// The composite order operations (PlaceOrder, CancelOrder, DiscardOrder,
// RecordProof) pair the order mutation with its quota/margin or status
// counterpart inside one storage transaction.
type Store interface {
	// Formula-day methods
	CreateFormulaDay(ctx context.Context, f *formula.FormulaDay) error
	GetFormulaDay(ctx context.Context, fdayID id.FormulaDayID) (*formula.FormulaDay, error)
	GetFormulaDayByDate(ctx context.Context, kind formula.Kind, date time.Time) (*formula.FormulaDay, error)
	ListFormulaDays(ctx context.Context, opts formula.ListOpts) ([]*formula.FormulaDay, error)
	RetireFormulaDay(ctx context.Context, fdayID id.FormulaDayID, at time.Time) error
	Reserve(ctx context.Context, fdayID id.FormulaDayID, period formula.Period, units int, amount types.Money) error
	Release(ctx context.Context, fdayID id.FormulaDayID, period formula.Period, units int, amount types.Money) error

	// Order methods
	PlaceOrder(ctx context.Context, o *order.Order, marginAmount types.Money, enforceUnique bool) error
	GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error)
	ListOrders(ctx context.Context, opts order.ListOpts) ([]*order.Order, error)
	GetActiveOrder(ctx context.Context, requester order.Requester, date time.Time) (*order.Order, error)
	CancelOrder(ctx context.Context, orderID id.OrderID, reason string, actor order.Actor, providerFault bool, at time.Time) (*order.Order, error)
	ConfirmOrder(ctx context.Context, orderID id.OrderID, at time.Time) (bool, error)
	MarkConsumed(ctx context.Context, orderID id.OrderID, at time.Time) error
	ApplyCharge(ctx context.Context, orderID id.OrderID, amount types.Money, rate int, exemptReason string, at time.Time) error
	DiscardOrder(ctx context.Context, orderID id.OrderID, at time.Time) error

	// Proof methods
	RecordProof(ctx context.Context, p *proof.ConsumptionPoint) error
	GetProofByOrder(ctx context.Context, orderID id.OrderID) (*proof.ConsumptionPoint, error)
	RetireProof(ctx context.Context, proofID id.ProofID, at time.Time) error

	// Billing queries. NonConsumed selects the candidates in the date
	// range as seen at asOf: cancelled without provider fault,
	// confirmed preorders whose date is strictly before asOf's day, and
	// consumed orders with no active proof. An unconfirmed preorder is
	// never a candidate; the confirmation pass is what exposes missed
	// meals to billing. FreeAllowanceUsed counts free-allowance
	// exemptions already granted in the range, keyed per
	// requester-month, so later billing runs never re-grant an
	// allowance a prior run consumed.
	NonConsumed(ctx context.Context, from, to, asOf time.Time) ([]billing.Candidate, error)
	FreeAllowanceUsed(ctx context.Context, from, to time.Time) (map[string]int, error)

	// Config methods
	ConfigValue(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value, description string) error
	ListConfig(ctx context.Context) ([]config.Entry, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
