package canteen

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("canteen: not found")
	ErrAlreadyExists = errors.New("canteen: already exists")
	ErrInvalidInput  = errors.New("canteen: invalid input")

	// Ordering errors
	ErrOrderingClosed    = errors.New("canteen: ordering window is closed")
	ErrCapacityExhausted = errors.New("canteen: formula capacity exhausted")
	ErrDuplicateOrder    = errors.New("canteen: active order already exists for requester and date")
	ErrInvalidTransition = errors.New("canteen: invalid order state transition")
	ErrOrderNotFound     = errors.New("canteen: order not found")

	// Formula errors
	ErrFormulaNotFound = errors.New("canteen: formula-day not found")
	ErrFormulaRetired  = errors.New("canteen: formula-day is retired")
	ErrInvalidPeriod   = errors.New("canteen: invalid service period")
	ErrInvalidQuantity = errors.New("canteen: invalid order quantity")

	// Consumption errors
	ErrProofNotFound = errors.New("canteen: consumption point not found")
	ErrProofExists   = errors.New("canteen: consumption point already recorded")

	// Billing errors
	ErrBillingDisabled = errors.New("canteen: billing disabled by policy")
	ErrAlreadyBilled   = errors.New("canteen: order already billed or exempted")

	// Configuration errors
	ErrConfigInvalid  = errors.New("canteen: malformed configuration value")
	ErrConfigNotFound = errors.New("canteen: configuration key not found")

	// Store errors
	ErrStorageConflict = errors.New("canteen: concurrent mutation conflict")
	ErrStoreNotReady   = errors.New("canteen: store not ready")
	ErrStoreClosed     = errors.New("canteen: store is closed")
	ErrMigrationFailed = errors.New("canteen: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("canteen: validation failed for %s: %s", e.Field, e.Message)
}

// UnitError records a per-unit failure inside a batch pass (one order,
// one duplicate group). Batch passes aggregate these instead of
// aborting the whole run.
type UnitError struct {
	Unit string // order ID or group key the failure belongs to
	Err  error
}

func (e UnitError) Error() string {
	return fmt.Sprintf("canteen: unit %s: %v", e.Unit, e.Err)
}

func (e UnitError) Unwrap() error { return e.Err }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "canteen: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("canteen: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// ErrOrNil returns the MultiError itself when it holds errors, nil otherwise.
func (e MultiError) ErrOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrFormulaNotFound) ||
		errors.Is(err, ErrProofNotFound) ||
		errors.Is(err, ErrConfigNotFound)
}

// IsDenied returns true if the error is an order-creation denial the
// caller should present to the requester (closed, full, or duplicate).
func IsDenied(err error) bool {
	return errors.Is(err, ErrOrderingClosed) ||
		errors.Is(err, ErrCapacityExhausted) ||
		errors.Is(err, ErrDuplicateOrder)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageConflict) ||
		errors.Is(err, ErrStoreNotReady)
}
