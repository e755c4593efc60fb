package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

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

// Collection name constants.
const (
	colFormulaDays = "canteen_formula_days"
	colOrders      = "canteen_orders"
	colProofs      = "canteen_consumption_points"
	colConfig      = "canteen_config"
)

// compile-time interface check
var _ canteenstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
//
// Reservations are expressed as guarded $inc updates whose filter
// requires enough remaining quota and margin, so a reservation either
// decrements both counters atomically or matches no document at all.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all canteen collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("canteen/mongo: migrate %s indexes: %w", col, err)
		}
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
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return canteen.ErrAlreadyExists
		}
		return fmt.Errorf("canteen/mongo: create formula day: %w", err)
	}
	return nil
}

func (s *Store) GetFormulaDay(ctx context.Context, fdayID id.FormulaDayID) (*formula.FormulaDay, error) {
	var m formulaDayModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": fdayID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, canteen.ErrFormulaNotFound
		}
		return nil, fmt.Errorf("canteen/mongo: get formula day: %w", err)
	}
	return fromFormulaDayModel(&m)
}

func (s *Store) GetFormulaDayByDate(ctx context.Context, kind formula.Kind, date time.Time) (*formula.FormulaDay, error) {
	var m formulaDayModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{
			"kind":  string(kind),
			"date":  formula.Day(date),
			"state": string(types.LifecycleActive),
		}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, canteen.ErrFormulaNotFound
		}
		return nil, fmt.Errorf("canteen/mongo: get formula day by date: %w", err)
	}
	return fromFormulaDayModel(&m)
}

func (s *Store) ListFormulaDays(ctx context.Context, opts formula.ListOpts) ([]*formula.FormulaDay, error) {
	var models []formulaDayModel

	filter := bson.M{"state": string(types.LifecycleActive)}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}
	if dateFilter := rangeFilter(opts.From, opts.To); dateFilter != nil {
		filter["date"] = dateFilter
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("canteen/mongo: list formula days: %w", err)
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
	res, err := s.mdb.NewUpdate((*formulaDayModel)(nil)).
		Filter(bson.M{"_id": fdayID.String()}).
		Set("state", string(types.LifecycleRetired)).
		Set("retired_at", at).
		Set("updated_at", at).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("canteen/mongo: retire formula day: %w", err)
	}
	if res.MatchedCount() == 0 {
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

	quotaCol, marginCol := periodFields(period)
	res, err := s.mdb.NewUpdate((*formulaDayModel)(nil)).
		Filter(bson.M{
			"_id":     fdayID.String(),
			"state":   string(types.LifecycleActive),
			quotaCol:  bson.M{"$gte": units},
			marginCol: bson.M{"$gte": amount.Amount},
		}).
		SetUpdate(bson.M{
			"$inc": bson.M{quotaCol: -units, marginCol: -amount.Amount},
			"$set": bson.M{"updated_at": now()},
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("canteen/mongo: reserve: %w", err)
	}
	if res.MatchedCount() == 0 {
		return canteen.ErrCapacityExhausted
	}
	return nil
}

func (s *Store) Release(ctx context.Context, fdayID id.FormulaDayID, period formula.Period, units int, amount types.Money) error {
	quotaCol, marginCol := periodFields(period)

	// Compare-and-set so the clamp to the initial capacity stays
	// correct under concurrent releases.
	for attempt := 0; attempt < 5; attempt++ {
		f, err := s.GetFormulaDay(ctx, fdayID)
		if err != nil {
			return err
		}

		quota := minInt(f.QuotaInitial(period), f.QuotaRemaining(period)+units)
		margin := f.MarginInitial(period).Min(f.MarginRemaining(period).Add(amount))

		res, err := s.mdb.NewUpdate((*formulaDayModel)(nil)).
			Filter(bson.M{
				"_id":     fdayID.String(),
				quotaCol:  f.QuotaRemaining(period),
				marginCol: f.MarginRemaining(period).Amount,
			}).
			SetUpdate(bson.M{"$set": bson.M{
				quotaCol:     quota,
				marginCol:    margin.Amount,
				"updated_at": now(),
			}}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("canteen/mongo: release: %w", err)
		}
		if res.MatchedCount() > 0 {
			return nil
		}
	}
	return canteen.ErrStorageConflict
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
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		// Give the reservation back; the order was never persisted.
		_ = s.Release(ctx, o.FormulaID, o.Period, o.Quantity, marginAmount) //nolint:errcheck // compensation is best-effort
		if mongo.IsDuplicateKeyError(err) {
			return canteen.ErrDuplicateOrder
		}
		return fmt.Errorf("canteen/mongo: place order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	var m orderModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": orderID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, canteen.ErrOrderNotFound
		}
		return nil, fmt.Errorf("canteen/mongo: get order: %w", err)
	}
	return fromOrderModel(&m)
}

func (s *Store) ListOrders(ctx context.Context, opts order.ListOpts) ([]*order.Order, error) {
	var models []orderModel

	filter := bson.M{"state": string(types.LifecycleActive)}
	if opts.Requester != nil {
		filter["requester_kind"] = string(opts.Requester.Kind)
		filter["requester_ref"] = opts.Requester.Ref
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if dateFilter := rangeFilter(opts.From, opts.To); dateFilter != nil {
		filter["date"] = dateFilter
	}
	if opts.Instant != nil {
		filter["instant"] = *opts.Instant
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "date", Value: 1}, {Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("canteen/mongo: list orders: %w", err)
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
	var m orderModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{
			"requester_kind": string(requester.Kind),
			"requester_ref":  requester.Ref,
			"date":           formula.Day(date),
			"state":          string(types.LifecycleActive),
			"status":         bson.M{"$ne": string(order.StatusCancelled)},
		}).
		Sort(bson.D{{Key: "created_at", Value: -1}}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, canteen.ErrOrderNotFound
		}
		return nil, fmt.Errorf("canteen/mongo: get active order: %w", err)
	}
	return fromOrderModel(&m)
}

func (s *Store) CancelOrder(ctx context.Context, orderID id.OrderID, reason string, actor order.Actor, providerFault bool, at time.Time) (*order.Order, error) {
	at = at.UTC()
	res, err := s.mdb.NewUpdate((*orderModel)(nil)).
		Filter(bson.M{
			"_id":    orderID.String(),
			"state":  string(types.LifecycleActive),
			"status": string(order.StatusPreorder),
		}).
		Set("status", string(order.StatusCancelled)).
		Set("cancel_reason", reason).
		Set("cancel_actor", string(actor)).
		Set("provider_fault", providerFault).
		Set("cancelled_at", at).
		Set("updated_at", at).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("canteen/mongo: cancel order: %w", err)
	}
	if res.MatchedCount() == 0 {
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
	res, err := s.mdb.NewUpdate((*orderModel)(nil)).
		Filter(bson.M{
			"_id":          orderID.String(),
			"state":        string(types.LifecycleActive),
			"status":       string(order.StatusPreorder),
			"confirmed_at": nil,
		}).
		Set("confirmed_at", at).
		Set("updated_at", at).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("canteen/mongo: confirm order: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, err := s.GetOrder(ctx, orderID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) MarkConsumed(ctx context.Context, orderID id.OrderID, at time.Time) error {
	at = at.UTC()
	res, err := s.mdb.NewUpdate((*orderModel)(nil)).
		Filter(bson.M{
			"_id":    orderID.String(),
			"state":  string(types.LifecycleActive),
			"status": string(order.StatusPreorder),
		}).
		Set("status", string(order.StatusConsumed)).
		Set("updated_at", at).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("canteen/mongo: mark consumed: %w", err)
	}
	if res.MatchedCount() == 0 {
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

	res, err := s.mdb.NewUpdate((*orderModel)(nil)).
		Filter(bson.M{
			"_id":   orderID.String(),
			"state": string(types.LifecycleActive),
			"status": bson.M{"$nin": bson.A{
				string(order.StatusBilled),
				string(order.StatusExempted),
			}},
		}).
		Set("status", string(status)).
		Set("charge_amount", amount.Amount).
		Set("charge_rate", rate).
		Set("exempt_reason", exemptReason).
		Set("billed_at", at).
		Set("updated_at", at).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("canteen/mongo: apply charge: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, err := s.GetOrder(ctx, orderID); err != nil {
			return err
		}
		return canteen.ErrAlreadyBilled
	}
	return nil
}

func (s *Store) DiscardOrder(ctx context.Context, orderID id.OrderID, at time.Time) error {
	at = at.UTC()
	res, err := s.mdb.NewUpdate((*orderModel)(nil)).
		Filter(bson.M{
			"_id":    orderID.String(),
			"state":  string(types.LifecycleActive),
			"status": string(order.StatusPreorder),
		}).
		Set("status", string(order.StatusCancelled)).
		Set("cancel_reason", order.ReasonDuplicate).
		Set("cancel_actor", string(order.ActorSystem)).
		Set("cancelled_at", at).
		Set("state", string(types.LifecycleRetired)).
		Set("retired_at", at).
		Set("updated_at", at).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("canteen/mongo: discard order: %w", err)
	}
	if res.MatchedCount() == 0 {
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
	if _, err := s.GetProofByOrder(ctx, p.OrderID); err == nil {
		return canteen.ErrProofExists
	} else if !errors.Is(err, canteen.ErrProofNotFound) {
		return err
	}

	m := toProofModel(p)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return canteen.ErrProofExists
		}
		return fmt.Errorf("canteen/mongo: record proof: %w", err)
	}

	// Only a preorder needs the transition; a proof recorded against
	// an already-consumed order repairs a status mismatch.
	if o.Status == order.StatusPreorder {
		return s.MarkConsumed(ctx, p.OrderID, p.RedeemedAt)
	}
	return nil
}

func (s *Store) GetProofByOrder(ctx context.Context, orderID id.OrderID) (*proof.ConsumptionPoint, error) {
	var m proofModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{
			"order_id": orderID.String(),
			"state":    string(types.LifecycleActive),
		}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, canteen.ErrProofNotFound
		}
		return nil, fmt.Errorf("canteen/mongo: get proof by order: %w", err)
	}
	return fromProofModel(&m)
}

func (s *Store) RetireProof(ctx context.Context, proofID id.ProofID, at time.Time) error {
	at = at.UTC()
	res, err := s.mdb.NewUpdate((*proofModel)(nil)).
		Filter(bson.M{"_id": proofID.String()}).
		Set("state", string(types.LifecycleRetired)).
		Set("retired_at", at).
		Set("updated_at", at).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("canteen/mongo: retire proof: %w", err)
	}
	if res.MatchedCount() == 0 {
		return canteen.ErrProofNotFound
	}
	return nil
}

// ==================== Billing queries ====================

func (s *Store) NonConsumed(ctx context.Context, from, to, asOf time.Time) ([]billing.Candidate, error) {
	var models []orderModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"state": string(types.LifecycleActive),
			"date":  bson.M{"$gte": formula.Day(from), "$lte": formula.Day(to)},
			"status": bson.M{"$in": bson.A{
				string(order.StatusCancelled),
				string(order.StatusPreorder),
				string(order.StatusConsumed),
			}},
		}).
		Sort(bson.D{{Key: "date", Value: 1}, {Key: "created_at", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("canteen/mongo: non-consumed: %w", err)
	}

	cutoff := formula.Day(asOf)
	prices := make(map[string]types.Money)
	result := make([]billing.Candidate, 0, len(models))
	for i := range models {
		o, err := fromOrderModel(&models[i])
		if err != nil {
			return nil, err
		}

		var cause billing.Cause
		switch o.Status {
		case order.StatusCancelled:
			if o.ProviderFault {
				continue
			}
			cause = billing.CauseCancelled
		case order.StatusPreorder:
			// Only a confirmed preorder strictly past its date counts
			// as a missed meal.
			if o.ConfirmedAt == nil || !o.Date.Before(cutoff) {
				continue
			}
			cause = billing.CausePastDate
		default:
			// Consumed orders only qualify when no active proof backs
			// the status.
			if _, err := s.GetProofByOrder(ctx, o.ID); err == nil {
				continue
			} else if !errors.Is(err, canteen.ErrProofNotFound) {
				return nil, err
			}
			cause = billing.CauseMissingProof
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
		result = append(result, billing.Candidate{Order: o, Price: price, Cause: cause})
	}
	return result, nil
}

func (s *Store) FreeAllowanceUsed(ctx context.Context, from, to time.Time) (map[string]int, error) {
	var models []orderModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"state":         string(types.LifecycleActive),
			"status":        string(order.StatusExempted),
			"exempt_reason": billing.ReasonFreeAllowance,
			"date":          bson.M{"$gte": formula.Day(from), "$lte": formula.Day(to)},
		}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("canteen/mongo: free allowance used: %w", err)
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
	var m configModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": key}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return "", canteen.ErrConfigNotFound
		}
		return "", fmt.Errorf("canteen/mongo: config value: %w", err)
	}
	return m.Value, nil
}

func (s *Store) SetConfig(ctx context.Context, key, value, description string) error {
	m := &configModel{Key: key, Value: value, Description: description, UpdatedAt: now()}
	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": key}).
		SetUpdate(bson.M{"$set": bson.M{
			"_id":         key,
			"value":       value,
			"description": description,
			"updated_at":  m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("canteen/mongo: set config: %w", err)
	}
	return nil
}

func (s *Store) ListConfig(ctx context.Context) ([]config.Entry, error) {
	var models []configModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("canteen/mongo: list config: %w", err)
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

// periodFields maps a service period to its remaining-capacity fields.
func periodFields(p formula.Period) (quotaField, marginField string) {
	if p == formula.PeriodNight {
		return "night_quota_remaining", "night_margin_remaining"
	}
	return "day_quota_remaining", "day_margin_remaining"
}

// rangeFilter builds an inclusive date range filter, nil when open.
func rangeFilter(from, to time.Time) bson.M {
	f := bson.M{}
	if !from.IsZero() {
		f["$gte"] = formula.Day(from)
	}
	if !to.IsZero() {
		f["$lte"] = formula.Day(to)
	}
	if len(f) == 0 {
		return nil
	}
	return f
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all canteen collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colFormulaDays: {
			{
				Keys: bson.D{{Key: "kind", Value: 1}, {Key: "date", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"state": string(types.LifecycleActive)}),
			},
			{Keys: bson.D{{Key: "date", Value: 1}}},
		},
		colOrders: {
			{
				// One live planned order per requester and date. Instant
				// orders are exempt; the duplicate reconciler collapses
				// those.
				Keys: bson.D{
					{Key: "requester_kind", Value: 1},
					{Key: "requester_ref", Value: 1},
					{Key: "date", Value: 1},
				},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{
						"state":   string(types.LifecycleActive),
						"status":  bson.M{"$ne": string(order.StatusCancelled)},
						"instant": false,
					}),
			},
			{Keys: bson.D{{Key: "date", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "requester_kind", Value: 1}, {Key: "requester_ref", Value: 1}, {Key: "date", Value: 1}}},
			{Keys: bson.D{{Key: "formula_id", Value: 1}}},
		},
		colProofs: {
			{
				Keys: bson.D{{Key: "order_id", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"state": string(types.LifecycleActive)}),
			},
		},
		colConfig: {},
	}
}
