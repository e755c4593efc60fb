// Package config provides typed access to the canteen's key/value
// configuration rows. Every getter documents a default and falls back
// to it when the key is absent or its value is malformed; a bad
// configuration row must never take ordering or billing down.
package config

// Configuration keys. Values are stored as strings and typed by
// convention per key.
const (
	// KeyClosingDay is the weekday name of the weekly ordering cutoff.
	// Default: "friday".
	KeyClosingDay = "ordering.closing_day"

	// KeyClosingTime is the cutoff time of day, "HH:MM".
	// Default: "12:00".
	KeyClosingTime = "ordering.closing_time"

	// KeyClosureEnabled toggles the weekly closure window entirely.
	// Default: "true".
	KeyClosureEnabled = "ordering.closure_enabled"

	// KeyAutoConfirm toggles the scheduled auto-confirmation pass.
	// Default: "true".
	KeyAutoConfirm = "ordering.auto_confirm"

	// KeyBillingEnabled toggles back-billing of non-consumed orders.
	// Default: "false", billing must be an explicit opt-in.
	KeyBillingEnabled = "billing.enabled"

	// KeyBillingPercent is the charged percentage (0-100) of the
	// formula's nominal price. Default: "100".
	KeyBillingPercent = "billing.percent"

	// KeyFreeAbsences is the number of non-consumed orders per
	// requester per calendar month that are exempted, oldest first.
	// Default: "0".
	KeyFreeAbsences = "billing.free_absences"

	// KeyGraceHours is the minimum number of hours before the
	// consumption date at which a cancellation is still free.
	// Default: "24".
	KeyGraceHours = "billing.grace_hours"

	// KeyBillWeekends controls whether weekend consumption dates are
	// billable. Default: "false".
	KeyBillWeekends = "billing.weekends"

	// KeyBillHolidays controls whether holiday consumption dates are
	// billable. Default: "false".
	KeyBillHolidays = "billing.holidays"
)
