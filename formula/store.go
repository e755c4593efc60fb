package formula

import (
	"context"
	"time"

	"github.com/xraph/canteen/id"
	"github.com/xraph/canteen/types"
)

// Store is the formula-day persistence contract, including the
// quota/margin allocator. Reserve and Release must be storage-level
// atomic operations: concurrent reservations against the same
// formula/period are serialized by the store, and unit quota and
// monetary margin move together or not at all.
type Store interface {
	Create(ctx context.Context, f *FormulaDay) error
	Get(ctx context.Context, fdayID id.FormulaDayID) (*FormulaDay, error)
	GetByDate(ctx context.Context, kind Kind, date time.Time) (*FormulaDay, error)
	List(ctx context.Context, opts ListOpts) ([]*FormulaDay, error)
	Retire(ctx context.Context, fdayID id.FormulaDayID, at time.Time) error

	// Reserve decrements remaining quota by units and remaining margin
	// by amount for the given period, failing without any partial
	// decrement when either would go negative.
	Reserve(ctx context.Context, fdayID id.FormulaDayID, period Period, units int, amount types.Money) error

	// Release returns units and amount to the period's remaining
	// capacity, clamped to the initial capacity so double-releases can
	// never inflate it.
	Release(ctx context.Context, fdayID id.FormulaDayID, period Period, units int, amount types.Money) error
}
