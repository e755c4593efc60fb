// Package audithook bridges Canteen lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// the audit backend directly. Callers inject a RecorderFunc adapter that
// bridges to the concrete trail at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/canteen/order"
	"github.com/xraph/canteen/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnOrderCreated         = (*Extension)(nil)
	_ plugin.OnOrderCancelled       = (*Extension)(nil)
	_ plugin.OnOrderConsumed        = (*Extension)(nil)
	_ plugin.OnCapacityDenied       = (*Extension)(nil)
	_ plugin.OnBillingApplied       = (*Extension)(nil)
	_ plugin.OnDuplicatesReconciled = (*Extension)(nil)
	_ plugin.OnConfigChanged        = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so that the audit_hook package does not depend
// on any particular trail implementation.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Canteen lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Order lifecycle hooks
// ──────────────────────────────────────────────────

// OnOrderCreated implements plugin.OnOrderCreated.
func (e *Extension) OnOrderCreated(ctx context.Context, o interface{}) error {
	id, requester := orderDetails(o)
	return e.record(ctx, ActionOrderCreated, SeverityInfo, OutcomeSuccess,
		ResourceOrder, id, CategoryOrdering, nil,
		"requester", requester,
	)
}

// OnOrderCancelled implements plugin.OnOrderCancelled.
func (e *Extension) OnOrderCancelled(ctx context.Context, o interface{}, reason string) error {
	id, requester := orderDetails(o)
	return e.record(ctx, ActionOrderCancelled, SeverityInfo, OutcomeSuccess,
		ResourceOrder, id, CategoryOrdering, nil,
		"requester", requester,
		"cancel_reason", reason,
	)
}

// OnOrderConsumed implements plugin.OnOrderConsumed.
func (e *Extension) OnOrderConsumed(ctx context.Context, o, _ interface{}) error {
	id, requester := orderDetails(o)
	return e.record(ctx, ActionOrderConsumed, SeverityInfo, OutcomeSuccess,
		ResourceOrder, id, CategoryOrdering, nil,
		"requester", requester,
	)
}

// OnCapacityDenied implements plugin.OnCapacityDenied.
func (e *Extension) OnCapacityDenied(ctx context.Context, formulaID, period string, units int) error {
	return e.record(ctx, ActionOrderDenied, SeverityWarning, OutcomeFailure,
		ResourceFormula, formulaID, CategoryOrdering, nil,
		"period", period,
		"units", units,
	)
}

// ──────────────────────────────────────────────────
// Billing hooks
// ──────────────────────────────────────────────────

// OnBillingApplied implements plugin.OnBillingApplied.
func (e *Extension) OnBillingApplied(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionBillingApplied, SeverityInfo, OutcomeSuccess,
		ResourceBilling, "", CategoryBilling, nil,
		"event", "billing_applied",
	)
}

// ──────────────────────────────────────────────────
// Reconciliation hooks
// ──────────────────────────────────────────────────

// OnDuplicatesReconciled implements plugin.OnDuplicatesReconciled.
func (e *Extension) OnDuplicatesReconciled(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionDuplicatesReconciled, SeverityInfo, OutcomeSuccess,
		ResourceOrder, "", CategoryHygiene, nil,
		"event", "duplicates_reconciled",
	)
}

// ──────────────────────────────────────────────────
// Configuration hooks
// ──────────────────────────────────────────────────

// OnConfigChanged implements plugin.OnConfigChanged.
func (e *Extension) OnConfigChanged(ctx context.Context, key, value string) error {
	return e.record(ctx, ActionConfigChanged, SeverityWarning, OutcomeSuccess,
		ResourceConfig, key, CategoryConfig, nil,
		"key", key,
		"value", value,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// orderDetails extracts the identifiers used in audit metadata.
func orderDetails(payload interface{}) (id, requester string) {
	o, ok := payload.(*order.Order)
	if !ok {
		return "", ""
	}
	return o.ID.String(), o.Requester.Key()
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
