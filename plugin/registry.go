package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onOrderCreated         []OnOrderCreated
	onOrderCancelled       []OnOrderCancelled
	onOrderConsumed        []OnOrderConsumed
	onCapacityDenied       []OnCapacityDenied
	onAutoConfirmRun       []OnAutoConfirmRun
	onBillingComputed      []OnBillingComputed
	onBillingApplied       []OnBillingApplied
	onDuplicatesReconciled []OnDuplicatesReconciled
	onConfigChanged        []OnConfigChanged
	holidayProviders       []HolidayProvider
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnOrderCreated); ok {
		r.onOrderCreated = append(r.onOrderCreated, v)
	}
	if v, ok := p.(OnOrderCancelled); ok {
		r.onOrderCancelled = append(r.onOrderCancelled, v)
	}
	if v, ok := p.(OnOrderConsumed); ok {
		r.onOrderConsumed = append(r.onOrderConsumed, v)
	}
	if v, ok := p.(OnCapacityDenied); ok {
		r.onCapacityDenied = append(r.onCapacityDenied, v)
	}
	if v, ok := p.(OnAutoConfirmRun); ok {
		r.onAutoConfirmRun = append(r.onAutoConfirmRun, v)
	}
	if v, ok := p.(OnBillingComputed); ok {
		r.onBillingComputed = append(r.onBillingComputed, v)
	}
	if v, ok := p.(OnBillingApplied); ok {
		r.onBillingApplied = append(r.onBillingApplied, v)
	}
	if v, ok := p.(OnDuplicatesReconciled); ok {
		r.onDuplicatesReconciled = append(r.onDuplicatesReconciled, v)
	}
	if v, ok := p.(OnConfigChanged); ok {
		r.onConfigChanged = append(r.onConfigChanged, v)
	}
	if v, ok := p.(HolidayProvider); ok {
		r.holidayProviders = append(r.holidayProviders, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnOrderCreated)(nil)).Elem(), "OnOrderCreated")
	checkInterface(reflect.TypeOf((*OnOrderCancelled)(nil)).Elem(), "OnOrderCancelled")
	checkInterface(reflect.TypeOf((*OnOrderConsumed)(nil)).Elem(), "OnOrderConsumed")
	checkInterface(reflect.TypeOf((*OnCapacityDenied)(nil)).Elem(), "OnCapacityDenied")
	checkInterface(reflect.TypeOf((*OnAutoConfirmRun)(nil)).Elem(), "OnAutoConfirmRun")
	checkInterface(reflect.TypeOf((*OnBillingComputed)(nil)).Elem(), "OnBillingComputed")
	checkInterface(reflect.TypeOf((*OnBillingApplied)(nil)).Elem(), "OnBillingApplied")
	checkInterface(reflect.TypeOf((*OnDuplicatesReconciled)(nil)).Elem(), "OnDuplicatesReconciled")
	checkInterface(reflect.TypeOf((*OnConfigChanged)(nil)).Elem(), "OnConfigChanged")
	checkInterface(reflect.TypeOf((*HolidayProvider)(nil)).Elem(), "HolidayProvider")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// HolidayProviders returns all registered holiday providers.
func (r *Registry) HolidayProviders() []HolidayProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]HolidayProvider, len(r.holidayProviders))
	copy(result, r.holidayProviders)
	return result
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitOrderCreated emits an order created event.
func (r *Registry) EmitOrderCreated(ctx context.Context, o interface{}) {
	r.mu.RLock()
	plugins := r.onOrderCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnOrderCreated(ctx, o)
		}); err != nil {
			r.logger.Warn("plugin OnOrderCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitOrderCancelled emits an order cancelled event.
func (r *Registry) EmitOrderCancelled(ctx context.Context, o interface{}, reason string) {
	r.mu.RLock()
	plugins := r.onOrderCancelled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnOrderCancelled(ctx, o, reason)
		}); err != nil {
			r.logger.Warn("plugin OnOrderCancelled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitOrderConsumed emits an order consumed event.
func (r *Registry) EmitOrderConsumed(ctx context.Context, o, proof interface{}) {
	r.mu.RLock()
	plugins := r.onOrderConsumed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnOrderConsumed(ctx, o, proof)
		}); err != nil {
			r.logger.Warn("plugin OnOrderConsumed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCapacityDenied emits a capacity denied event.
func (r *Registry) EmitCapacityDenied(ctx context.Context, formulaID, period string, units int) {
	r.mu.RLock()
	plugins := r.onCapacityDenied
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCapacityDenied(ctx, formulaID, period, units)
		}); err != nil {
			r.logger.Warn("plugin OnCapacityDenied failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAutoConfirmRun emits an auto-confirmation pass event.
func (r *Registry) EmitAutoConfirmRun(ctx context.Context, confirmed, skipped int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onAutoConfirmRun
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAutoConfirmRun(ctx, confirmed, skipped, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnAutoConfirmRun failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitBillingComputed emits a billing computed event.
func (r *Registry) EmitBillingComputed(ctx context.Context, result interface{}) {
	r.mu.RLock()
	plugins := r.onBillingComputed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnBillingComputed(ctx, result)
		}); err != nil {
			r.logger.Warn("plugin OnBillingComputed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitBillingApplied emits a billing applied event.
func (r *Registry) EmitBillingApplied(ctx context.Context, result interface{}) {
	r.mu.RLock()
	plugins := r.onBillingApplied
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnBillingApplied(ctx, result)
		}); err != nil {
			r.logger.Warn("plugin OnBillingApplied failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitDuplicatesReconciled emits a duplicate cleanup event.
func (r *Registry) EmitDuplicatesReconciled(ctx context.Context, report interface{}) {
	r.mu.RLock()
	plugins := r.onDuplicatesReconciled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDuplicatesReconciled(ctx, report)
		}); err != nil {
			r.logger.Warn("plugin OnDuplicatesReconciled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitConfigChanged emits a configuration changed event.
func (r *Registry) EmitConfigChanged(ctx context.Context, key, value string) {
	r.mu.RLock()
	plugins := r.onConfigChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnConfigChanged(ctx, key, value)
		}); err != nil {
			r.logger.Warn("plugin OnConfigChanged failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the ordering pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
