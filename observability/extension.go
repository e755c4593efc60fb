// Package observability provides a metrics extension for Canteen that
// records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	canteen "github.com/xraph/canteen"
	"github.com/xraph/canteen/billing"
	"github.com/xraph/canteen/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnOrderCreated         = (*MetricsExtension)(nil)
	_ plugin.OnOrderCancelled       = (*MetricsExtension)(nil)
	_ plugin.OnOrderConsumed        = (*MetricsExtension)(nil)
	_ plugin.OnCapacityDenied       = (*MetricsExtension)(nil)
	_ plugin.OnAutoConfirmRun       = (*MetricsExtension)(nil)
	_ plugin.OnBillingComputed      = (*MetricsExtension)(nil)
	_ plugin.OnBillingApplied       = (*MetricsExtension)(nil)
	_ plugin.OnDuplicatesReconciled = (*MetricsExtension)(nil)
	_ plugin.OnConfigChanged        = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Canteen plugin to automatically track ordering metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Order metrics
	OrderCreated   Counter
	OrderCancelled Counter
	OrderConsumed  Counter
	CapacityDenied Counter

	// Auto-confirmation metrics
	AutoConfirmed      Counter
	AutoConfirmSkipped Counter
	AutoConfirmLatency Histogram

	// Billing metrics
	BillingRuns        Counter
	ChargesApplied     Counter
	ChargesExempted    Counter
	BillingTotalAmount Histogram

	// Reconciliation metrics
	DuplicatesDiscarded Counter

	// Configuration metrics
	ConfigWrites Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Order metrics
		OrderCreated:   factory.Counter("canteen.order.created"),
		OrderCancelled: factory.Counter("canteen.order.cancelled"),
		OrderConsumed:  factory.Counter("canteen.order.consumed"),
		CapacityDenied: factory.Counter("canteen.order.capacity_denied"),

		// Auto-confirmation metrics
		AutoConfirmed:      factory.Counter("canteen.autoconfirm.confirmed"),
		AutoConfirmSkipped: factory.Counter("canteen.autoconfirm.skipped"),
		AutoConfirmLatency: factory.Histogram("canteen.autoconfirm.latency_ms"),

		// Billing metrics
		BillingRuns:        factory.Counter("canteen.billing.runs"),
		ChargesApplied:     factory.Counter("canteen.billing.charges.applied"),
		ChargesExempted:    factory.Counter("canteen.billing.charges.exempted"),
		BillingTotalAmount: factory.Histogram("canteen.billing.total_amount"),

		// Reconciliation metrics
		DuplicatesDiscarded: factory.Counter("canteen.reconcile.discarded"),

		// Configuration metrics
		ConfigWrites: factory.Counter("canteen.config.writes"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Order lifecycle hooks
// ──────────────────────────────────────────────────

// OnOrderCreated implements plugin.OnOrderCreated.
func (m *MetricsExtension) OnOrderCreated(_ context.Context, _ interface{}) error {
	m.OrderCreated.Inc()
	return nil
}

// OnOrderCancelled implements plugin.OnOrderCancelled.
func (m *MetricsExtension) OnOrderCancelled(_ context.Context, _ interface{}, _ string) error {
	m.OrderCancelled.Inc()
	return nil
}

// OnOrderConsumed implements plugin.OnOrderConsumed.
func (m *MetricsExtension) OnOrderConsumed(_ context.Context, _, _ interface{}) error {
	m.OrderConsumed.Inc()
	return nil
}

// OnCapacityDenied implements plugin.OnCapacityDenied.
func (m *MetricsExtension) OnCapacityDenied(_ context.Context, _, _ string, _ int) error {
	m.CapacityDenied.Inc()
	return nil
}

// OnAutoConfirmRun implements plugin.OnAutoConfirmRun.
func (m *MetricsExtension) OnAutoConfirmRun(_ context.Context, confirmed, skipped int, elapsed time.Duration) error {
	m.AutoConfirmed.Add(float64(confirmed))
	m.AutoConfirmSkipped.Add(float64(skipped))
	m.AutoConfirmLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// Billing hooks
// ──────────────────────────────────────────────────

// OnBillingComputed implements plugin.OnBillingComputed.
func (m *MetricsExtension) OnBillingComputed(_ context.Context, _ interface{}) error {
	m.BillingRuns.Inc()
	return nil
}

// OnBillingApplied implements plugin.OnBillingApplied.
func (m *MetricsExtension) OnBillingApplied(_ context.Context, result interface{}) error {
	r, ok := result.(*billing.Result)
	if !ok {
		return nil
	}
	m.ChargesApplied.Add(float64(r.BillableCount))
	m.ChargesExempted.Add(float64(r.ExemptCount))
	m.BillingTotalAmount.Observe(float64(r.TotalAmount.Amount))
	return nil
}

// ──────────────────────────────────────────────────
// Reconciliation hooks
// ──────────────────────────────────────────────────

// OnDuplicatesReconciled implements plugin.OnDuplicatesReconciled.
func (m *MetricsExtension) OnDuplicatesReconciled(_ context.Context, report interface{}) error {
	if r, ok := report.(*canteen.ReconcileReport); ok {
		m.DuplicatesDiscarded.Add(float64(r.Discarded))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Configuration hooks
// ──────────────────────────────────────────────────

// OnConfigChanged implements plugin.OnConfigChanged.
func (m *MetricsExtension) OnConfigChanged(_ context.Context, _, _ string) error {
	m.ConfigWrites.Inc()
	return nil
}
