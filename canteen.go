package canteen

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/canteen/billing"
	"github.com/xraph/canteen/config"
	"github.com/xraph/canteen/formula"
	"github.com/xraph/canteen/id"
	"github.com/xraph/canteen/plugin"
	"github.com/xraph/canteen/schedule"
	"github.com/xraph/canteen/store"
	"github.com/xraph/canteen/types"
)

// Canteen is the main order lifecycle and billing engine.
type Canteen struct {
	store    store.Store
	plugins  *plugin.Registry
	logger   *slog.Logger
	settings *config.Settings

	// now is the engine clock; tests inject a fixed one.
	now func() time.Time

	// holidays is the explicit holiday calendar; when nil, registered
	// HolidayProvider plugins are consulted instead.
	holidays billing.HolidayFunc
}

// New creates a new Canteen instance.
func New(s store.Store, opts ...Option) *Canteen {
	c := &Canteen{
		store:   s,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(c)
	}

	c.settings = config.NewSettings(s, c.logger)
	return c
}

// Option configures a Canteen instance.
type Option func(*Canteen)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Canteen) {
		c.logger = logger
		c.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(c *Canteen) {
		_ = c.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock sets the engine clock. Closure checks, auto-confirmation
// and billing all read time through it.
func WithClock(now func() time.Time) Option {
	return func(c *Canteen) {
		c.now = now
	}
}

// WithHolidayCalendar sets the public-holiday calendar used by the
// billing policy. It takes precedence over HolidayProvider plugins.
func WithHolidayCalendar(fn billing.HolidayFunc) Option {
	return func(c *Canteen) {
		c.holidays = fn
	}
}

// Start migrates the store and initializes plugins.
func (c *Canteen) Start(ctx context.Context) error {
	if err := c.store.Migrate(ctx); err != nil {
		return err
	}

	c.plugins.EmitInit(ctx, c)

	c.logger.Info("canteen started",
		"plugins", c.plugins.Count(),
	)
	return nil
}

// Stop shuts down the Canteen.
func (c *Canteen) Stop() error {
	ctx := context.Background()
	c.plugins.EmitShutdown(ctx)

	return c.store.Close()
}

// Ping reports storage health.
func (c *Canteen) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// isHoliday consults the explicit calendar first, then any registered
// holiday provider plugins.
func (c *Canteen) isHoliday(date time.Time) bool {
	if c.holidays != nil {
		return c.holidays(date)
	}
	for _, p := range c.plugins.HolidayProviders() {
		if p.IsHoliday(date) {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────────
// Formula-day Management
// ──────────────────────────────────────────────────

// CreateFormulaDay registers a menu offering for a calendar date.
// Remaining quota and margin start at their initial values.
func (c *Canteen) CreateFormulaDay(ctx context.Context, f *formula.FormulaDay) error {
	if f.Kind == "" || f.Date.IsZero() {
		return ErrInvalidInput
	}
	if f.DayQuotaInitial < 0 || f.NightQuotaInitial < 0 {
		return ValidationError{Field: "quota", Message: "initial quota cannot be negative"}
	}
	if f.DayMarginInitial.IsNegative() || f.NightMarginInitial.IsNegative() {
		return ValidationError{Field: "margin", Message: "initial margin cannot be negative"}
	}
	if f.ID == (id.FormulaDayID{}) {
		f.ID = id.NewFormulaDayID()
	}
	f.Entity = types.NewEntityAt(c.now())
	f.Date = formula.Day(f.Date)
	f.DayQuotaRemaining = f.DayQuotaInitial
	f.NightQuotaRemaining = f.NightQuotaInitial
	f.DayMarginRemaining = f.DayMarginInitial
	f.NightMarginRemaining = f.NightMarginInitial

	if err := c.store.CreateFormulaDay(ctx, f); err != nil {
		return err
	}

	c.logger.Info("formula day created",
		"formula_id", f.ID.String(),
		"kind", f.Kind,
		"date", f.Date.Format("2006-01-02"),
	)
	return nil
}

// GetFormulaDay retrieves a formula-day by ID.
func (c *Canteen) GetFormulaDay(ctx context.Context, fdayID id.FormulaDayID) (*formula.FormulaDay, error) {
	return c.store.GetFormulaDay(ctx, fdayID)
}

// GetFormulaForDate retrieves the active formula-day of a kind for a date.
func (c *Canteen) GetFormulaForDate(ctx context.Context, kind formula.Kind, date time.Time) (*formula.FormulaDay, error) {
	return c.store.GetFormulaDayByDate(ctx, kind, date)
}

// ListFormulaDays lists formula-days matching the options.
func (c *Canteen) ListFormulaDays(ctx context.Context, opts formula.ListOpts) ([]*formula.FormulaDay, error) {
	return c.store.ListFormulaDays(ctx, opts)
}

// RetireFormulaDay withdraws an offering. Existing orders are untouched.
func (c *Canteen) RetireFormulaDay(ctx context.Context, fdayID id.FormulaDayID) error {
	return c.store.RetireFormulaDay(ctx, fdayID, c.now())
}

// ──────────────────────────────────────────────────
// Configuration
// ──────────────────────────────────────────────────

// ConfigValue reads a raw configuration value.
func (c *Canteen) ConfigValue(ctx context.Context, key string) (string, error) {
	return c.store.ConfigValue(ctx, key)
}

// SetConfigValue writes a configuration value together with its
// operator-facing description.
func (c *Canteen) SetConfigValue(ctx context.Context, key, value, description string) error {
	if key == "" {
		return ErrInvalidInput
	}
	if err := c.store.SetConfig(ctx, key, value, description); err != nil {
		return err
	}

	c.plugins.EmitConfigChanged(ctx, key, value)
	c.logger.Info("config changed", "key", key, "value", value)
	return nil
}

// ListConfig returns all configuration rows, sorted by key.
func (c *Canteen) ListConfig(ctx context.Context) ([]config.Entry, error) {
	return c.store.ListConfig(ctx)
}

// IsOrderingBlocked reports whether planned ordering is currently
// inside the weekly closure window.
func (c *Canteen) IsOrderingBlocked(ctx context.Context) bool {
	rule, enabled := c.settings.ClosureRule(ctx)
	return enabled && rule.Blocked(c.now())
}

// NextClosure returns the next ordering cutoff instant, strictly after
// the current time.
func (c *Canteen) NextClosure(ctx context.Context) time.Time {
	rule, _ := c.settings.ClosureRule(ctx)
	return rule.NextCutoff(c.now())
}

// ClosureRule exposes the resolved weekly cutoff rule and whether
// blocking is enabled.
func (c *Canteen) ClosureRule(ctx context.Context) (schedule.Rule, bool) {
	return c.settings.ClosureRule(ctx)
}
