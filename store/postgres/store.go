package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	canteen "github.com/xraph/canteen"
	"github.com/xraph/canteen/billing"
	"github.com/xraph/canteen/config"
	"github.com/xraph/canteen/formula"
	"github.com/xraph/canteen/id"
	"github.com/xraph/canteen/order"
	"github.com/xraph/canteen/proof"
	canteenstore "github.com/xraph/canteen/store"
	"github.com/xraph/canteen/types"
)

// compile-time interface check
var _ canteenstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
//
// The quota allocator relies on single-statement guarded updates: a
// reservation decrements quota and margin in one UPDATE whose WHERE
// clause rejects any decrement that would go negative, so concurrent
// reservations serialize on the row without explicit locking.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("canteen/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("canteen/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Formula-day Store ====================

func (s *Store) CreateFormulaDay(ctx context.Context, f *formula.FormulaDay) error {
	f.Date = formula.Day(f.Date)
	m := toFormulaDayModel(f)
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return canteen.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) GetFormulaDay(ctx context.Context, fdayID id.FormulaDayID) (*formula.FormulaDay, error) {
	m := new(formulaDayModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", fdayID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, canteen.ErrFormulaNotFound
		}
		return nil, err
	}
	return fromFormulaDayModel(m)
}

func (s *Store) GetFormulaDayByDate(ctx context.Context, kind formula.Kind, date time.Time) (*formula.FormulaDay, error) {
	m := new(formulaDayModel)
	err := s.pg.NewSelect(m).
		Where("kind = $1", string(kind)).
		Where("date = $2", formula.Day(date)).
		Where("state = $3", string(types.LifecycleActive)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, canteen.ErrFormulaNotFound
		}
		return nil, err
	}
	return fromFormulaDayModel(m)
}

func (s *Store) ListFormulaDays(ctx context.Context, opts formula.ListOpts) ([]*formula.FormulaDay, error) {
	var models []formulaDayModel
	q := s.pg.NewSelect(&models).Where("state = $1", string(types.LifecycleActive))

	argIdx := 1
	if opts.Kind != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("kind = $%d", argIdx), string(opts.Kind))
	}
	if !opts.From.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("date >= $%d", argIdx), formula.Day(opts.From))
	}
	if !opts.To.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("date <= $%d", argIdx), formula.Day(opts.To))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("date ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*formula.FormulaDay, len(models))
	for i := range models {
		f, err := fromFormulaDayModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = f
	}
	return result, nil
}

func (s *Store) RetireFormulaDay(ctx context.Context, fdayID id.FormulaDayID, at time.Time) error {
	at = at.UTC()
	res, err := s.pg.NewUpdate((*formulaDayModel)(nil)).
		Set("state = $1", string(types.LifecycleRetired)).
		Set("retired_at = $2", at).
		Set("updated_at = $3", at).
		Where("id = $4", fdayID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return canteen.ErrFormulaNotFound
	}
	return nil
}

func (s *Store) Reserve(ctx context.Context, fdayID id.FormulaDayID, period formula.Period, units int, amount types.Money) error {
	f, err := s.GetFormulaDay(ctx, fdayID)
	if err != nil {
		return err
	}
	if !f.IsActive() {
		return canteen.ErrFormulaRetired
	}

	quotaCol, marginCol := periodColumns(period)
	res, err := s.pg.NewUpdate((*formulaDayModel)(nil)).
		Set(fmt.Sprintf("%s = %s - $1", quotaCol, quotaCol), units).
		Set(fmt.Sprintf("%s = %s - $2", marginCol, marginCol), amount.Amount).
		Set("updated_at = $3", now()).
		Where("id = $4", fdayID.String()).
		Where("state = $5", string(types.LifecycleActive)).
		Where(fmt.Sprintf("%s >= $6", quotaCol), units).
		Where(fmt.Sprintf("%s >= $7", marginCol), amount.Amount).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return canteen.ErrCapacityExhausted
	}
	return nil
}

func (s *Store) Release(ctx context.Context, fdayID id.FormulaDayID, period formula.Period, units int, amount types.Money) error {
	quotaCol, marginCol := periodColumns(period)
	quotaInit := strings.Replace(quotaCol, "remaining", "initial", 1)
	marginInit := strings.Replace(marginCol, "remaining", "initial", 1)

	res, err := s.pg.NewUpdate((*formulaDayModel)(nil)).
		Set(fmt.Sprintf("%s = LEAST(%s, %s + $1)", quotaCol, quotaInit, quotaCol), units).
		Set(fmt.Sprintf("%s = LEAST(%s, %s + $2)", marginCol, marginInit, marginCol), amount.Amount).
		Set("updated_at = $3", now()).
		Where("id = $4", fdayID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return canteen.ErrFormulaNotFound
	}
	return nil
}

// ==================== Order Store ====================

func (s *Store) PlaceOrder(ctx context.Context, o *order.Order, marginAmount types.Money, enforceUnique bool) error {
	o.Date = formula.Day(o.Date)

	if enforceUnique {
		_, err := s.GetActiveOrder(ctx, o.Requester, o.Date)
		switch {
		case err == nil:
			return canteen.ErrDuplicateOrder
		case !errors.Is(err, canteen.ErrOrderNotFound):
			return err
		}
	}

	if err := s.Reserve(ctx, o.FormulaID, o.Period, o.Quantity, marginAmount); err != nil {
		return err
	}

	o.MarginAmount = marginAmount
	m := toOrderModel(o)
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		// Give the reservation back; the order was never persisted.
		_ = s.Release(ctx, o.FormulaID, o.Period, o.Quantity, marginAmount) //nolint:errcheck // compensation is best-effort
		if isUniqueViolation(err) {
			return canteen.ErrDuplicateOrder
		}
		return err
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	m := new(orderModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", orderID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, canteen.ErrOrderNotFound
		}
		return nil, err
	}
	return fromOrderModel(m)
}

func (s *Store) ListOrders(ctx context.Context, opts order.ListOpts) ([]*order.Order, error) {
	var models []orderModel
	q := s.pg.NewSelect(&models).Where("state = $1", string(types.LifecycleActive))

	argIdx := 1
	if opts.Requester != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("requester_kind = $%d", argIdx), string(opts.Requester.Kind))
		argIdx++
		q = q.Where(fmt.Sprintf("requester_ref = $%d", argIdx), opts.Requester.Ref)
	}
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if !opts.From.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("date >= $%d", argIdx), formula.Day(opts.From))
	}
	if !opts.To.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("date <= $%d", argIdx), formula.Day(opts.To))
	}
	if opts.Instant != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("instant = $%d", argIdx), *opts.Instant)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("date ASC, created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*order.Order, len(models))
	for i := range models {
		o, err := fromOrderModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = o
	}
	return result, nil
}

func (s *Store) GetActiveOrder(ctx context.Context, requester order.Requester, date time.Time) (*order.Order, error) {
	m := new(orderModel)
	err := s.pg.NewSelect(m).
		Where("requester_kind = $1", string(requester.Kind)).
		Where("requester_ref = $2", requester.Ref).
		Where("date = $3", formula.Day(date)).
		Where("state = $4", string(types.LifecycleActive)).
		Where("status != $5", string(order.StatusCancelled)).
		OrderExpr("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, canteen.ErrOrderNotFound
		}
		return nil, err
	}
	return fromOrderModel(m)
}

func (s *Store) CancelOrder(ctx context.Context, orderID id.OrderID, reason string, actor order.Actor, providerFault bool, at time.Time) (*order.Order, error) {
	at = at.UTC()
	res, err := s.pg.NewUpdate((*orderModel)(nil)).
		Set("status = $1", string(order.StatusCancelled)).
		Set("cancel_reason = $2", reason).
		Set("cancel_actor = $3", string(actor)).
		Set("provider_fault = $4", providerFault).
		Set("cancelled_at = $5", at).
		Set("updated_at = $6", at).
		Where("id = $7", orderID.String()).
		Where("state = $8", string(types.LifecycleActive)).
		Where("status = $9", string(order.StatusPreorder)).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		if _, err := s.GetOrder(ctx, orderID); err != nil {
			return nil, err
		}
		return nil, canteen.ErrInvalidTransition
	}

	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.Release(ctx, o.FormulaID, o.Period, o.Quantity, o.MarginAmount); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) ConfirmOrder(ctx context.Context, orderID id.OrderID, at time.Time) (bool, error) {
	at = at.UTC()
	res, err := s.pg.NewUpdate((*orderModel)(nil)).
		Set("confirmed_at = $1", at).
		Set("updated_at = $2", at).
		Where("id = $3", orderID.String()).
		Where("state = $4", string(types.LifecycleActive)).
		Where("status = $5", string(order.StatusPreorder)).
		Where("confirmed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		if _, err := s.GetOrder(ctx, orderID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) MarkConsumed(ctx context.Context, orderID id.OrderID, at time.Time) error {
	at = at.UTC()
	res, err := s.pg.NewUpdate((*orderModel)(nil)).
		Set("status = $1", string(order.StatusConsumed)).
		Set("updated_at = $2", at).
		Where("id = $3", orderID.String()).
		Where("state = $4", string(types.LifecycleActive)).
		Where("status = $5", string(order.StatusPreorder)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := s.GetOrder(ctx, orderID); err != nil {
			return err
		}
		return canteen.ErrInvalidTransition
	}
	return nil
}

func (s *Store) ApplyCharge(ctx context.Context, orderID id.OrderID, amount types.Money, rate int, exemptReason string, at time.Time) error {
	at = at.UTC()
	status := order.StatusExempted
	if amount.IsPositive() {
		status = order.StatusBilled
	}

	res, err := s.pg.NewUpdate((*orderModel)(nil)).
		Set("status = $1", string(status)).
		Set("charge_amount = $2", amount.Amount).
		Set("charge_rate = $3", rate).
		Set("exempt_reason = $4", exemptReason).
		Set("billed_at = $5", at).
		Set("updated_at = $6", at).
		Where("id = $7", orderID.String()).
		Where("state = $8", string(types.LifecycleActive)).
		Where("status NOT IN ($9, $10)", string(order.StatusBilled), string(order.StatusExempted)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := s.GetOrder(ctx, orderID); err != nil {
			return err
		}
		return canteen.ErrAlreadyBilled
	}
	return nil
}

func (s *Store) DiscardOrder(ctx context.Context, orderID id.OrderID, at time.Time) error {
	at = at.UTC()
	res, err := s.pg.NewUpdate((*orderModel)(nil)).
		Set("status = $1", string(order.StatusCancelled)).
		Set("cancel_reason = $2", order.ReasonDuplicate).
		Set("cancel_actor = $3", string(order.ActorSystem)).
		Set("cancelled_at = $4", at).
		Set("state = $5", string(types.LifecycleRetired)).
		Set("retired_at = $6", at).
		Set("updated_at = $7", at).
		Where("id = $8", orderID.String()).
		Where("state = $9", string(types.LifecycleActive)).
		Where("status = $10", string(order.StatusPreorder)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := s.GetOrder(ctx, orderID); err != nil {
			return err
		}
		return canteen.ErrInvalidTransition
	}

	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	return s.Release(ctx, o.FormulaID, o.Period, o.Quantity, o.MarginAmount)
}

// ==================== Consumption-point Store ====================

func (s *Store) RecordProof(ctx context.Context, p *proof.ConsumptionPoint) error {
	o, err := s.GetOrder(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if !o.IsActive() {
		return canteen.ErrOrderNotFound
	}

	m := toProofModel(p)
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return canteen.ErrProofExists
		}
		return err
	}

	// Only a preorder needs the transition; a proof recorded against
	// an already-consumed order repairs a status mismatch.
	if o.Status == order.StatusPreorder {
		return s.MarkConsumed(ctx, p.OrderID, p.RedeemedAt)
	}
	return nil
}

func (s *Store) GetProofByOrder(ctx context.Context, orderID id.OrderID) (*proof.ConsumptionPoint, error) {
	m := new(proofModel)
	err := s.pg.NewSelect(m).
		Where("order_id = $1", orderID.String()).
		Where("state = $2", string(types.LifecycleActive)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, canteen.ErrProofNotFound
		}
		return nil, err
	}
	return fromProofModel(m)
}

func (s *Store) RetireProof(ctx context.Context, proofID id.ProofID, at time.Time) error {
	at = at.UTC()
	res, err := s.pg.NewUpdate((*proofModel)(nil)).
		Set("state = $1", string(types.LifecycleRetired)).
		Set("retired_at = $2", at).
		Set("updated_at = $3", at).
		Where("id = $4", proofID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return canteen.ErrProofNotFound
	}
	return nil
}

// ==================== Billing queries ====================

func (s *Store) NonConsumed(ctx context.Context, from, to, asOf time.Time) ([]billing.Candidate, error) {
	var models []orderModel
	err := s.pg.NewSelect(&models).
		Where("state = $1", string(types.LifecycleActive)).
		Where("date >= $2", formula.Day(from)).
		Where("date <= $3", formula.Day(to)).
		Where(`(
			(status = $4 AND NOT provider_fault)
			OR (status = $5 AND confirmed_at IS NOT NULL AND date < $6)
			OR (status = $7 AND NOT EXISTS (
				SELECT 1 FROM canteen_consumption_points cp
				WHERE cp.order_id = canteen_orders.id AND cp.state = $8
			))
		)`,
			string(order.StatusCancelled),
			string(order.StatusPreorder),
			formula.Day(asOf),
			string(order.StatusConsumed),
			string(types.LifecycleActive),
		).
		OrderExpr("date ASC, created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]types.Money)
	result := make([]billing.Candidate, 0, len(models))
	for i := range models {
		o, err := fromOrderModel(&models[i])
		if err != nil {
			return nil, err
		}

		price, ok := prices[models[i].FormulaID]
		if !ok {
			f, err := s.GetFormulaDay(ctx, o.FormulaID)
			if err != nil {
				return nil, err
			}
			price = f.Price
			prices[models[i].FormulaID] = price
		}

		var cause billing.Cause
		switch o.Status {
		case order.StatusCancelled:
			cause = billing.CauseCancelled
		case order.StatusPreorder:
			cause = billing.CausePastDate
		default:
			cause = billing.CauseMissingProof
		}
		result = append(result, billing.Candidate{Order: o, Price: price, Cause: cause})
	}
	return result, nil
}

func (s *Store) FreeAllowanceUsed(ctx context.Context, from, to time.Time) (map[string]int, error) {
	var models []orderModel
	err := s.pg.NewSelect(&models).
		Where("state = $1", string(types.LifecycleActive)).
		Where("status = $2", string(order.StatusExempted)).
		Where("exempt_reason = $3", billing.ReasonFreeAllowance).
		Where("date >= $4", formula.Day(from)).
		Where("date <= $5", formula.Day(to)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	used := make(map[string]int)
	for i := range models {
		o, err := fromOrderModel(&models[i])
		if err != nil {
			return nil, err
		}
		used[billing.MonthKey(o.Requester, o.Date)]++
	}
	return used, nil
}

// ==================== Config Store ====================

func (s *Store) ConfigValue(ctx context.Context, key string) (string, error) {
	m := new(configModel)
	err := s.pg.NewSelect(m).
		Where("key = $1", key).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return "", canteen.ErrConfigNotFound
		}
		return "", err
	}
	return m.Value, nil
}

func (s *Store) SetConfig(ctx context.Context, key, value, description string) error {
	m := &configModel{Key: key, Value: value, Description: description, UpdatedAt: now()}
	_, err := s.pg.NewInsert(m).
		OnConflict("(key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("description = EXCLUDED.description").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) ListConfig(ctx context.Context) ([]config.Entry, error) {
	var models []configModel
	if err := s.pg.NewSelect(&models).OrderExpr("key ASC").Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]config.Entry, 0, len(models))
	for _, m := range models {
		result = append(result, config.Entry{Key: m.Key, Value: m.Value, Description: m.Description})
	}
	return result, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// periodColumns maps a service period to its remaining-capacity columns.
func periodColumns(p formula.Period) (quotaCol, marginCol string) {
	if p == formula.PeriodNight {
		return "night_quota_remaining", "night_margin_remaining"
	}
	return "day_quota_remaining", "day_margin_remaining"
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation reports whether an insert hit a unique index.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}
