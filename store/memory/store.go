// Package memory provides an in-memory store for tests and
// single-process deployments. A single mutex serializes all writes,
// which is what makes the composite operations atomic.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/canteen"
	"github.com/xraph/canteen/billing"
	"github.com/xraph/canteen/config"
	"github.com/xraph/canteen/formula"
	"github.com/xraph/canteen/id"
	"github.com/xraph/canteen/order"
	"github.com/xraph/canteen/proof"
	"github.com/xraph/canteen/store"
	"github.com/xraph/canteen/types"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Formula-day storage
	formulaDays map[string]*formula.FormulaDay

	// Order storage
	orders map[string]*order.Order

	// Consumption-point storage
	proofs map[string]*proof.ConsumptionPoint

	// Config storage
	config map[string]config.Entry
}

func New() *Store {
	return &Store{
		formulaDays: make(map[string]*formula.FormulaDay),
		orders:      make(map[string]*order.Order),
		proofs:      make(map[string]*proof.ConsumptionPoint),
		config:      make(map[string]config.Entry),
	}
}

// Formula-day Store implementation

func (s *Store) CreateFormulaDay(_ context.Context, f *formula.FormulaDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.formulaDays[f.ID.String()]; exists {
		return canteen.ErrAlreadyExists
	}
	f.Date = formula.Day(f.Date)
	for _, existing := range s.formulaDays {
		if existing.IsActive() && existing.Kind == f.Kind && existing.Date.Equal(f.Date) {
			return canteen.ErrAlreadyExists
		}
	}
	s.formulaDays[f.ID.String()] = f
	return nil
}

func (s *Store) GetFormulaDay(_ context.Context, fdayID id.FormulaDayID) (*formula.FormulaDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f, ok := s.formulaDays[fdayID.String()]; ok {
		return f, nil
	}
	return nil, canteen.ErrFormulaNotFound
}

func (s *Store) GetFormulaDayByDate(_ context.Context, kind formula.Kind, date time.Time) (*formula.FormulaDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	date = formula.Day(date)
	for _, f := range s.formulaDays {
		if f.IsActive() && f.Kind == kind && f.Date.Equal(date) {
			return f, nil
		}
	}
	return nil, canteen.ErrFormulaNotFound
}

func (s *Store) ListFormulaDays(_ context.Context, opts formula.ListOpts) ([]*formula.FormulaDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*formula.FormulaDay, 0)
	for _, f := range s.formulaDays {
		if !f.IsActive() {
			continue
		}
		if opts.Kind != "" && f.Kind != opts.Kind {
			continue
		}
		if !opts.From.IsZero() && f.Date.Before(formula.Day(opts.From)) {
			continue
		}
		if !opts.To.IsZero() && f.Date.After(formula.Day(opts.To)) {
			continue
		}
		result = append(result, f)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID.String() < result[j].ID.String()
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) RetireFormulaDay(_ context.Context, fdayID id.FormulaDayID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.formulaDays[fdayID.String()]
	if !ok {
		return canteen.ErrFormulaNotFound
	}
	if f.IsActive() {
		f.Retire(at)
	}
	return nil
}

func (s *Store) Reserve(_ context.Context, fdayID id.FormulaDayID, period formula.Period, units int, amount types.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reserveLocked(fdayID, period, units, amount)
}

func (s *Store) Release(_ context.Context, fdayID id.FormulaDayID, period formula.Period, units int, amount types.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked(fdayID, period, units, amount)
}

// reserveLocked decrements quota and margin together or not at all.
// Callers must hold the write lock.
func (s *Store) reserveLocked(fdayID id.FormulaDayID, period formula.Period, units int, amount types.Money) error {
	f, ok := s.formulaDays[fdayID.String()]
	if !ok {
		return canteen.ErrFormulaNotFound
	}
	if !f.IsActive() {
		return canteen.ErrFormulaRetired
	}

	if period == formula.PeriodNight {
		if f.NightQuotaRemaining < units || f.NightMarginRemaining.LessThan(amount) {
			return canteen.ErrCapacityExhausted
		}
		f.NightQuotaRemaining -= units
		f.NightMarginRemaining = f.NightMarginRemaining.Subtract(amount)
	} else {
		if f.DayQuotaRemaining < units || f.DayMarginRemaining.LessThan(amount) {
			return canteen.ErrCapacityExhausted
		}
		f.DayQuotaRemaining -= units
		f.DayMarginRemaining = f.DayMarginRemaining.Subtract(amount)
	}
	f.Touch()
	return nil
}

// releaseLocked returns capacity, clamped to the initial values so a
// double release can never inflate what was configured.
func (s *Store) releaseLocked(fdayID id.FormulaDayID, period formula.Period, units int, amount types.Money) error {
	f, ok := s.formulaDays[fdayID.String()]
	if !ok {
		return canteen.ErrFormulaNotFound
	}

	if period == formula.PeriodNight {
		f.NightQuotaRemaining = minInt(f.NightQuotaInitial, f.NightQuotaRemaining+units)
		f.NightMarginRemaining = f.NightMarginInitial.Min(f.NightMarginRemaining.Add(amount))
	} else {
		f.DayQuotaRemaining = minInt(f.DayQuotaInitial, f.DayQuotaRemaining+units)
		f.DayMarginRemaining = f.DayMarginInitial.Min(f.DayMarginRemaining.Add(amount))
	}
	f.Touch()
	return nil
}

// Order Store implementation

func (s *Store) PlaceOrder(_ context.Context, o *order.Order, marginAmount types.Money, enforceUnique bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID.String()]; exists {
		return canteen.ErrAlreadyExists
	}
	o.Date = formula.Day(o.Date)

	if enforceUnique {
		if s.activeOrderLocked(o.Requester, o.Date) != nil {
			return canteen.ErrDuplicateOrder
		}
	}

	if err := s.reserveLocked(o.FormulaID, o.Period, o.Quantity, marginAmount); err != nil {
		return err
	}
	o.MarginAmount = marginAmount
	s.orders[o.ID.String()] = o
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID id.OrderID) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if o, ok := s.orders[orderID.String()]; ok {
		return o, nil
	}
	return nil, canteen.ErrOrderNotFound
}

func (s *Store) ListOrders(_ context.Context, opts order.ListOpts) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*order.Order, 0)
	for _, o := range s.orders {
		if !o.IsActive() {
			continue
		}
		if opts.Requester != nil && o.Requester != *opts.Requester {
			continue
		}
		if opts.Status != "" && o.Status != opts.Status {
			continue
		}
		if !opts.From.IsZero() && o.Date.Before(formula.Day(opts.From)) {
			continue
		}
		if !opts.To.IsZero() && o.Date.After(formula.Day(opts.To)) {
			continue
		}
		if opts.Instant != nil && o.Instant != *opts.Instant {
			continue
		}
		result = append(result, o)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) GetActiveOrder(_ context.Context, requester order.Requester, date time.Time) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if o := s.activeOrderLocked(requester, formula.Day(date)); o != nil {
		return o, nil
	}
	return nil, canteen.ErrOrderNotFound
}

// activeOrderLocked is the deduplication lookup: a non-cancelled,
// non-deleted order by the requester for the date.
func (s *Store) activeOrderLocked(requester order.Requester, date time.Time) *order.Order {
	for _, o := range s.orders {
		if !o.IsActive() || o.Status == order.StatusCancelled {
			continue
		}
		if o.Requester == requester && o.Date.Equal(date) {
			return o
		}
	}
	return nil
}

func (s *Store) CancelOrder(_ context.Context, orderID id.OrderID, reason string, actor order.Actor, providerFault bool, at time.Time) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID.String()]
	if !ok || !o.IsActive() {
		return nil, canteen.ErrOrderNotFound
	}
	if o.Status != order.StatusPreorder {
		return nil, canteen.ErrInvalidTransition
	}

	at = at.UTC()
	o.Status = order.StatusCancelled
	o.CancelReason = reason
	o.CancelActor = actor
	o.ProviderFault = providerFault
	o.CancelledAt = &at
	o.Touch()

	if err := s.releaseLocked(o.FormulaID, o.Period, o.Quantity, o.MarginAmount); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) ConfirmOrder(_ context.Context, orderID id.OrderID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID.String()]
	if !ok || !o.IsActive() {
		return false, canteen.ErrOrderNotFound
	}
	if o.ConfirmedAt != nil || o.Status.Terminal() {
		return false, nil
	}

	at = at.UTC()
	o.ConfirmedAt = &at
	o.Touch()
	return true, nil
}

func (s *Store) MarkConsumed(_ context.Context, orderID id.OrderID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markConsumedLocked(orderID, at)
}

func (s *Store) markConsumedLocked(orderID id.OrderID, at time.Time) error {
	o, ok := s.orders[orderID.String()]
	if !ok || !o.IsActive() {
		return canteen.ErrOrderNotFound
	}
	if o.Status != order.StatusPreorder {
		return canteen.ErrInvalidTransition
	}
	o.Status = order.StatusConsumed
	o.Touch()
	return nil
}

func (s *Store) ApplyCharge(_ context.Context, orderID id.OrderID, amount types.Money, rate int, exemptReason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID.String()]
	if !ok || !o.IsActive() {
		return canteen.ErrOrderNotFound
	}
	if o.Status == order.StatusBilled || o.Status == order.StatusExempted {
		return canteen.ErrAlreadyBilled
	}

	at = at.UTC()
	if amount.IsPositive() {
		o.Status = order.StatusBilled
	} else {
		o.Status = order.StatusExempted
	}
	o.ChargeAmount = amount
	o.ChargeRate = rate
	o.ExemptReason = exemptReason
	o.BilledAt = &at
	o.Touch()
	return nil
}

func (s *Store) DiscardOrder(_ context.Context, orderID id.OrderID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID.String()]
	if !ok || !o.IsActive() {
		return canteen.ErrOrderNotFound
	}
	if o.Status != order.StatusPreorder {
		return canteen.ErrInvalidTransition
	}

	at = at.UTC()
	o.Status = order.StatusCancelled
	o.CancelReason = order.ReasonDuplicate
	o.CancelActor = order.ActorSystem
	o.CancelledAt = &at
	o.Retire(at)

	return s.releaseLocked(o.FormulaID, o.Period, o.Quantity, o.MarginAmount)
}

// Consumption-point Store implementation

func (s *Store) RecordProof(_ context.Context, p *proof.ConsumptionPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[p.OrderID.String()]
	if !ok || !o.IsActive() {
		return canteen.ErrOrderNotFound
	}
	if s.activeProofLocked(p.OrderID) != nil {
		return canteen.ErrProofExists
	}

	s.proofs[p.ID.String()] = p
	// A proof on an already-consumed order repairs a status mismatch;
	// only a preorder needs the transition.
	if o.Status == order.StatusPreorder {
		return s.markConsumedLocked(p.OrderID, p.RedeemedAt)
	}
	return nil
}

func (s *Store) GetProofByOrder(_ context.Context, orderID id.OrderID) (*proof.ConsumptionPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p := s.activeProofLocked(orderID); p != nil {
		return p, nil
	}
	return nil, canteen.ErrProofNotFound
}

func (s *Store) activeProofLocked(orderID id.OrderID) *proof.ConsumptionPoint {
	for _, p := range s.proofs {
		if p.IsActive() && p.OrderID.String() == orderID.String() {
			return p
		}
	}
	return nil
}

func (s *Store) RetireProof(_ context.Context, proofID id.ProofID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proofs[proofID.String()]
	if !ok {
		return canteen.ErrProofNotFound
	}
	if p.IsActive() {
		p.Retire(at)
	}
	return nil
}

// Billing queries

func (s *Store) NonConsumed(_ context.Context, from, to, asOf time.Time) ([]billing.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from, to = formula.Day(from), formula.Day(to)
	cutoff := formula.Day(asOf)
	result := make([]billing.Candidate, 0)
	for _, o := range s.orders {
		if !o.IsActive() || o.Date.Before(from) || o.Date.After(to) {
			continue
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
		case order.StatusConsumed:
			if s.activeProofLocked(o.ID) != nil {
				continue
			}
			cause = billing.CauseMissingProof
		default:
			continue
		}

		price := types.Zero("eur")
		if f, ok := s.formulaDays[o.FormulaID.String()]; ok {
			price = f.Price
		}
		result = append(result, billing.Candidate{Order: o, Price: price, Cause: cause})
	}
	return result, nil
}

func (s *Store) FreeAllowanceUsed(_ context.Context, from, to time.Time) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from, to = formula.Day(from), formula.Day(to)
	used := make(map[string]int)
	for _, o := range s.orders {
		if !o.IsActive() || o.Status != order.StatusExempted {
			continue
		}
		if o.ExemptReason != billing.ReasonFreeAllowance {
			continue
		}
		if o.Date.Before(from) || o.Date.After(to) {
			continue
		}
		used[billing.MonthKey(o.Requester, o.Date)]++
	}
	return used, nil
}

// Config Store implementation

func (s *Store) ConfigValue(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.config[key]; ok {
		return e.Value, nil
	}
	return "", canteen.ErrConfigNotFound
}

func (s *Store) SetConfig(_ context.Context, key, value, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config[key] = config.Entry{Key: key, Value: value, Description: description}
	return nil
}

func (s *Store) ListConfig(_ context.Context) ([]config.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]config.Entry, 0, len(s.config))
	for _, e := range s.config {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Core methods

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Helpers

func paginate[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
