package canteen

import (
	"context"
	"time"

	"github.com/xraph/canteen/billing"
	"github.com/xraph/canteen/config"
	"github.com/xraph/canteen/formula"
	"github.com/xraph/canteen/id"
	"github.com/xraph/canteen/order"
	"github.com/xraph/canteen/proof"
)

// The engine's public surface, split by concern so callers can depend
// on the slice they need.

// ConfigurationService reads and writes runtime configuration and the
// closure window derived from it.
type ConfigurationService interface {
	ConfigValue(ctx context.Context, key string) (string, error)
	SetConfigValue(ctx context.Context, key, value, description string) error
	ListConfig(ctx context.Context) ([]config.Entry, error)
	IsOrderingBlocked(ctx context.Context) bool
	NextClosure(ctx context.Context) time.Time
}

// OrderLifecycle covers order placement through consumption and the
// maintenance passes that act on orders.
type OrderLifecycle interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*order.Order, error)
	GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error)
	ListOrders(ctx context.Context, opts order.ListOpts) ([]*order.Order, error)
	CancelOrder(ctx context.Context, orderID id.OrderID, reason string, actor order.Actor) (*order.Order, error)
	RecordConsumption(ctx context.Context, orderID id.OrderID, redeemer string) (*proof.ConsumptionPoint, error)
	RunAutoConfirmationPass(ctx context.Context) (confirmed, skipped int, err error)
	ReconcileDuplicates(ctx context.Context, from, to time.Time) (*ReconcileReport, error)
}

// BillingService computes and applies back-charges for non-consumed
// orders.
type BillingService interface {
	NonConsumed(ctx context.Context, from, to time.Time) ([]billing.Candidate, error)
	ComputeBilling(ctx context.Context, from, to time.Time) (*billing.Result, error)
	ApplyBilling(ctx context.Context, from, to time.Time) (*billing.Result, error)
}

// MenuService manages the formula-day catalog.
type MenuService interface {
	CreateFormulaDay(ctx context.Context, f *formula.FormulaDay) error
	GetFormulaDay(ctx context.Context, fdayID id.FormulaDayID) (*formula.FormulaDay, error)
	GetFormulaForDate(ctx context.Context, kind formula.Kind, date time.Time) (*formula.FormulaDay, error)
	ListFormulaDays(ctx context.Context, opts formula.ListOpts) ([]*formula.FormulaDay, error)
	RetireFormulaDay(ctx context.Context, fdayID id.FormulaDayID) error
}

var (
	_ ConfigurationService = (*Canteen)(nil)
	_ OrderLifecycle       = (*Canteen)(nil)
	_ BillingService       = (*Canteen)(nil)
	_ MenuService          = (*Canteen)(nil)
)
