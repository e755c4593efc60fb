// Package canteen provides a composable meal-ordering and back-billing
// engine for Go applications.
//
// Canteen is designed as a library, not a service. Import it directly
// into your Go application. It provides:
//
//   - Per-date formula catalogs with finite quota and subsidy margin
//   - Atomic compare-and-decrement reservations (no oversell under
//     concurrency)
//   - A weekly closure window that gates planned ordering
//   - Consumption points as the single source of truth for "really
//     eaten"
//   - Policy-driven back-billing of non-consumed orders with monthly
//     free allowances, grace cancellations and weekend/holiday
//     exemptions
//   - Duplicate reconciliation for the same-day instant ordering path
//
// # Quick Start
//
// Create a canteen instance with your preferred store:
//
//	import (
//	    "github.com/xraph/canteen"
//	    "github.com/xraph/canteen/store/postgres"
//	)
//
//	// Initialize store from a grove database handle
//	store := postgres.New(db)
//
//	// Create canteen
//	c := canteen.New(store)
//
//	// Start the canteen (runs migrations, initializes plugins)
//	if err := c.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Stop()
//
// # Core Concepts
//
// Formula-days define what can be ordered for a calendar date and how
// much of it:
//
//	f := &formula.FormulaDay{
//	    Kind:  formula.KindStandard1,
//	    Date:  date,
//	    Price: canteen.EUR(650),
//	    DayQuotaInitial:  120,
//	    DayMarginInitial: canteen.EUR(78000),
//	}
//
// Orders reserve capacity for one requester and date:
//
//	o, err := c.CreateOrder(ctx, canteen.OrderRequest{
//	    Requester: order.Requester{Kind: order.RequesterEmployee, Ref: "emp-42"},
//	    Kind:      formula.KindStandard1,
//	    Date:      date,
//	    Period:    formula.PeriodDay,
//	    Quantity:  1,
//	})
//
// Consumption points record redemption at a service point:
//
//	_, err := c.RecordConsumption(ctx, o.ID, "till-3")
//
// Billing settles everything that was ordered but never consumed:
//
//	result, err := c.ApplyBilling(ctx, monthStart, monthEnd)
//
// All monetary calculations use integer arithmetic to avoid
// floating-point precision issues. The Money type represents amounts
// in the smallest currency unit (cents for EUR, pence for GBP, etc).
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	fday_01h2xcejqtf2nbrexx3vqjhp41   // Formula-day ID
//	ord_01h2xcejqtf2nbrexx3vqjhp41    // Order ID
//	proof_01h455vb4pex5vsknk084sn02q  // Consumption-point ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package canteen
