package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
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

// Store implements store.Store using SQLite via Grove ORM.
//
// SQLite serializes writers, so the guarded single-statement updates
// used for reservations are atomic without further coordination.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("canteen/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("canteen/sqlite: migration failed: %w", err)
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
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return canteen.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) GetFormulaDay(ctx context.Context, fdayID id.FormulaDayID) (*formula.FormulaDay, error) {
	m := new(formulaDayModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", fdayID.String()).
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
	err := s.sdb.NewSelect(m).
		Where("kind = ?", string(kind)).
		Where("date = ?", formula.Day(date)).
		Where("state = ?", string(types.LifecycleActive)).
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
	q := s.sdb.NewSelect(&models).Where("state = ?", string(types.LifecycleActive))

	if opts.Kind != "" {
		q = q.Where("kind = ?", string(opts.Kind))
	}
	if !opts.From.IsZero() {
		q = q.Where("date >= ?", formula.Day(opts.From))
	}
	if !opts.To.IsZero() {
		q = q.Where("date <= ?", formula.Day(opts.To))
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
	res, err := s.sdb.NewUpdate((*formulaDayModel)(nil)).
		Set("state = ?", string(types.LifecycleRetired)).
		Set("retired_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", fdayID.String()).
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
	res, err := s.sdb.NewUpdate((*formulaDayModel)(nil)).
		Set(fmt.Sprintf("%s = %s - ?", quotaCol, quotaCol), units).
		Set(fmt.Sprintf("%s = %s - ?", marginCol, marginCol), amount.Amount).
		Set("updated_at = ?", now()).
		Where("id = ?", fdayID.String()).
		Where("state = ?", string(types.LifecycleActive)).
		Where(fmt.Sprintf("%s >= ?", quotaCol), units).
		Where(fmt.Sprintf("%s >= ?", marginCol), amount.Amount).
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

	res, err := s.sdb.NewUpdate((*formulaDayModel)(nil)).
		Set(fmt.Sprintf("%s = MIN(%s, %s + ?)", quotaCol, quotaInit, quotaCol), units).
		Set(fmt.Sprintf("%s = MIN(%s, %s + ?)", marginCol, marginInit, marginCol), amount.Amount).
		Set("updated_at = ?", now()).
		Where("id = ?", fdayID.String()).
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
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
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
	err := s.sdb.NewSelect(m).
		Where("id = ?", orderID.String()).
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
	q := s.sdb.NewSelect(&models).Where("state = ?", string(types.LifecycleActive))

	if opts.Requester != nil {
		q = q.Where("requester_kind = ?", string(opts.Requester.Kind)).
			Where("requester_ref = ?", opts.Requester.Ref)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if !opts.From.IsZero() {
		q = q.Where("date >= ?", formula.Day(opts.From))
	}
	if !opts.To.IsZero() {
		q = q.Where("date <= ?", formula.Day(opts.To))
	}
	if opts.Instant != nil {
		q = q.Where("instant = ?", *opts.Instant)
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
	err := s.sdb.NewSelect(m).
		Where("requester_kind = ?", string(requester.Kind)).
		Where("requester_ref = ?", requester.Ref).
		Where("date = ?", formula.Day(date)).
		Where("state = ?", string(types.LifecycleActive)).
		Where("status != ?", string(order.StatusCancelled)).
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
	res, err := s.sdb.NewUpdate((*orderModel)(nil)).
		Set("status = ?", string(order.StatusCancelled)).
		Set("cancel_reason = ?", reason).
		Set("cancel_actor = ?", string(actor)).
		Set("provider_fault = ?", providerFault).
		Set("cancelled_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", orderID.String()).
		Where("state = ?", string(types.LifecycleActive)).
		Where("status = ?", string(order.StatusPreorder)).
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
	res, err := s.sdb.NewUpdate((*orderModel)(nil)).
		Set("confirmed_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", orderID.String()).
		Where("state = ?", string(types.LifecycleActive)).
		Where("status = ?", string(order.StatusPreorder)).
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
	res, err := s.sdb.NewUpdate((*orderModel)(nil)).
		Set("status = ?", string(order.StatusConsumed)).
		Set("updated_at = ?", at).
		Where("id = ?", orderID.String()).
		Where("state = ?", string(types.LifecycleActive)).
		Where("status = ?", string(order.StatusPreorder)).
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

	res, err := s.sdb.NewUpdate((*orderModel)(nil)).
		Set("status = ?", string(status)).
		Set("charge_amount = ?", amount.Amount).
		Set("charge_rate = ?", rate).
		Set("exempt_reason = ?", exemptReason).
		Set("billed_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", orderID.String()).
		Where("state = ?", string(types.LifecycleActive)).
		Where("status NOT IN (?, ?)", string(order.StatusBilled), string(order.StatusExempted)).
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
	res, err := s.sdb.NewUpdate((*orderModel)(nil)).
		Set("status = ?", string(order.StatusCancelled)).
		Set("cancel_reason = ?", order.ReasonDuplicate).
		Set("cancel_actor = ?", string(order.ActorSystem)).
		Set("cancelled_at = ?", at).
		Set("state = ?", string(types.LifecycleRetired)).
		Set("retired_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", orderID.String()).
		Where("state = ?", string(types.LifecycleActive)).
		Where("status = ?", string(order.StatusPreorder)).
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
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
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
	err := s.sdb.NewSelect(m).
		Where("order_id = ?", orderID.String()).
		Where("state = ?", string(types.LifecycleActive)).
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
	res, err := s.sdb.NewUpdate((*proofModel)(nil)).
		Set("state = ?", string(types.LifecycleRetired)).
		Set("retired_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", proofID.String()).
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
	err := s.sdb.NewSelect(&models).
		Where("state = ?", string(types.LifecycleActive)).
		Where("date >= ?", formula.Day(from)).
		Where("date <= ?", formula.Day(to)).
		Where(`(
			(status = ? AND NOT provider_fault)
			OR (status = ? AND confirmed_at IS NOT NULL AND date < ?)
			OR (status = ? AND NOT EXISTS (
				SELECT 1 FROM canteen_consumption_points cp
				WHERE cp.order_id = canteen_orders.id AND cp.state = ?
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
	err := s.sdb.NewSelect(&models).
		Where("state = ?", string(types.LifecycleActive)).
		Where("status = ?", string(order.StatusExempted)).
		Where("exempt_reason = ?", billing.ReasonFreeAllowance).
		Where("date >= ?", formula.Day(from)).
		Where("date <= ?", formula.Day(to)).
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
	err := s.sdb.NewSelect(m).
		Where("key = ?", key).
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
	_, err := s.sdb.NewInsert(m).
		OnConflict("(key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("description = EXCLUDED.description").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) ListConfig(ctx context.Context) ([]config.Entry, error) {
	var models []configModel
	if err := s.sdb.NewSelect(&models).OrderExpr("key ASC").Scan(ctx); err != nil {
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
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
