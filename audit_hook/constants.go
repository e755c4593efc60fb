package audithook

// Action constants for audit events.
const (
	// Order actions
	ActionOrderCreated   = "order.created"
	ActionOrderCancelled = "order.cancelled"
	ActionOrderConsumed  = "order.consumed"
	ActionOrderDenied    = "order.capacity_denied"
	ActionOrderConfirmed = "order.auto_confirmed"

	// Billing actions
	ActionBillingComputed = "billing.computed"
	ActionBillingApplied  = "billing.applied"

	// Reconciliation actions
	ActionDuplicatesReconciled = "reconcile.duplicates"

	// Configuration actions
	ActionConfigChanged = "config.changed"
)

// Resource constants for audit events.
const (
	ResourceOrder   = "order"
	ResourceFormula = "formula_day"
	ResourceBilling = "billing"
	ResourceConfig  = "config"
)

// Category constants for audit events.
const (
	CategoryOrdering = "ordering"
	CategoryBilling  = "billing"
	CategoryHygiene  = "hygiene"
	CategoryConfig   = "configuration"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
