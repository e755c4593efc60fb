// Package plugin provides an extensible plugin system for Canteen.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Order lifecycle hooks
// ──────────────────────────────────────────────────

// OnOrderCreated is called when an order is placed.
type OnOrderCreated interface {
	Plugin
	OnOrderCreated(ctx context.Context, o interface{}) error
}

// OnOrderCancelled is called when an order is cancelled.
type OnOrderCancelled interface {
	Plugin
	OnOrderCancelled(ctx context.Context, o interface{}, reason string) error
}

// OnOrderConsumed is called when a consumption point is recorded for
// an order.
type OnOrderConsumed interface {
	Plugin
	OnOrderConsumed(ctx context.Context, o interface{}, p interface{}) error
}

// OnCapacityDenied is called when a reservation is refused because
// quota or margin is exhausted.
type OnCapacityDenied interface {
	Plugin
	OnCapacityDenied(ctx context.Context, formulaID string, period string, units int) error
}

// OnAutoConfirmRun is called after an auto-confirmation pass.
type OnAutoConfirmRun interface {
	Plugin
	OnAutoConfirmRun(ctx context.Context, confirmed, skipped int, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Billing hooks
// ──────────────────────────────────────────────────

// OnBillingComputed is called after a billing computation.
type OnBillingComputed interface {
	Plugin
	OnBillingComputed(ctx context.Context, result interface{}) error
}

// OnBillingApplied is called after computed charges are persisted.
type OnBillingApplied interface {
	Plugin
	OnBillingApplied(ctx context.Context, result interface{}) error
}

// ──────────────────────────────────────────────────
// Reconciliation hooks
// ──────────────────────────────────────────────────

// OnDuplicatesReconciled is called after a duplicate cleanup pass.
type OnDuplicatesReconciled interface {
	Plugin
	OnDuplicatesReconciled(ctx context.Context, report interface{}) error
}

// ──────────────────────────────────────────────────
// Configuration hooks
// ──────────────────────────────────────────────────

// OnConfigChanged is called when a configuration key is written.
type OnConfigChanged interface {
	Plugin
	OnConfigChanged(ctx context.Context, key, value string) error
}

// ──────────────────────────────────────────────────
// Holiday providers
// ──────────────────────────────────────────────────

// HolidayProvider supplies the public-holiday calendar consulted by
// the billing policy.
type HolidayProvider interface {
	Plugin
	IsHoliday(date time.Time) bool
}
