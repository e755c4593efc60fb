package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/canteen"
	"github.com/xraph/canteen/billing"
	"github.com/xraph/canteen/formula"
	"github.com/xraph/canteen/id"
	"github.com/xraph/canteen/order"
	"github.com/xraph/canteen/proof"
	"github.com/xraph/canteen/types"
)

func date(day int) time.Time {
	return time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC)
}

func newFormulaDay(day int, quota int, margin types.Money) *formula.FormulaDay {
	return &formula.FormulaDay{
		Entity:   types.NewEntity(),
		ID:       id.NewFormulaDayID(),
		Kind:     formula.KindStandard1,
		Date:     date(day),
		MainDish: "plat du jour",
		Price:    types.EUR(1000),

		DayQuotaInitial:     quota,
		DayQuotaRemaining:   quota,
		NightQuotaInitial:   quota,
		NightQuotaRemaining: quota,

		DayMarginInitial:     margin,
		DayMarginRemaining:   margin,
		NightMarginInitial:   margin,
		NightMarginRemaining: margin,
	}
}

func newOrder(f *formula.FormulaDay, ref string) *order.Order {
	return &order.Order{
		Entity:    types.NewEntity(),
		ID:        id.NewOrderID(),
		Requester: order.Requester{Kind: order.RequesterEmployee, Ref: ref},
		FormulaID: f.ID,
		Date:      f.Date,
		Period:    formula.PeriodDay,
		Quantity:  1,
		Status:    order.StatusPreorder,
	}
}

func TestReserveRelease(t *testing.T) {
	ctx := context.Background()
	s := New()
	f := newFormulaDay(2, 2, types.EUR(500))
	if err := s.CreateFormulaDay(ctx, f); err != nil {
		t.Fatal(err)
	}

	if err := s.Reserve(ctx, f.ID, formula.PeriodDay, 1, types.EUR(200)); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if err := s.Reserve(ctx, f.ID, formula.PeriodDay, 1, types.EUR(200)); err != nil {
		t.Fatalf("second reserve: %v", err)
	}

	// Quota exhausted even though margin remains.
	err := s.Reserve(ctx, f.ID, formula.PeriodDay, 1, types.EUR(0))
	if !errors.Is(err, canteen.ErrCapacityExhausted) {
		t.Fatalf("got %v, want capacity exhausted", err)
	}

	// Night period is untouched.
	if err := s.Reserve(ctx, f.ID, formula.PeriodNight, 1, types.EUR(200)); err != nil {
		t.Fatalf("night reserve: %v", err)
	}

	if err := s.Release(ctx, f.ID, formula.PeriodDay, 1, types.EUR(200)); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetFormulaDay(ctx, f.ID)
	if got.DayQuotaRemaining != 1 {
		t.Errorf("day quota = %d, want 1", got.DayQuotaRemaining)
	}
	if !got.DayMarginRemaining.Equal(types.EUR(300)) {
		t.Errorf("day margin = %v, want €3.00", got.DayMarginRemaining)
	}
}

func TestReserveMarginDenied(t *testing.T) {
	ctx := context.Background()
	s := New()
	f := newFormulaDay(2, 10, types.EUR(100))
	if err := s.CreateFormulaDay(ctx, f); err != nil {
		t.Fatal(err)
	}

	err := s.Reserve(ctx, f.ID, formula.PeriodDay, 1, types.EUR(150))
	if !errors.Is(err, canteen.ErrCapacityExhausted) {
		t.Fatalf("got %v, want capacity exhausted", err)
	}
	// Denial must not consume quota.
	got, _ := s.GetFormulaDay(ctx, f.ID)
	if got.DayQuotaRemaining != 10 {
		t.Errorf("quota = %d, want untouched 10", got.DayQuotaRemaining)
	}
}

func TestReleaseClampedToInitial(t *testing.T) {
	ctx := context.Background()
	s := New()
	f := newFormulaDay(2, 5, types.EUR(500))
	if err := s.CreateFormulaDay(ctx, f); err != nil {
		t.Fatal(err)
	}

	if err := s.Release(ctx, f.ID, formula.PeriodDay, 3, types.EUR(9999)); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetFormulaDay(ctx, f.ID)
	if got.DayQuotaRemaining != 5 {
		t.Errorf("quota = %d, want clamped to 5", got.DayQuotaRemaining)
	}
	if !got.DayMarginRemaining.Equal(types.EUR(500)) {
		t.Errorf("margin = %v, want clamped to €5.00", got.DayMarginRemaining)
	}
}

func TestConcurrentReservationSingleUnit(t *testing.T) {
	ctx := context.Background()
	s := New()
	f := newFormulaDay(2, 1, types.EUR(1000))
	if err := s.CreateFormulaDay(ctx, f); err != nil {
		t.Fatal(err)
	}

	const goroutines = 32
	var wg sync.WaitGroup
	successes := make(chan struct{}, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Reserve(ctx, f.ID, formula.PeriodDay, 1, types.EUR(100)); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	if n := len(successes); n != 1 {
		t.Fatalf("%d reservations succeeded for a single unit, want exactly 1", n)
	}
	got, _ := s.GetFormulaDay(ctx, f.ID)
	if got.DayQuotaRemaining != 0 {
		t.Errorf("quota = %d, want 0", got.DayQuotaRemaining)
	}
}

func TestPlaceOrderDuplicate(t *testing.T) {
	ctx := context.Background()
	s := New()
	f := newFormulaDay(2, 10, types.EUR(1000))
	if err := s.CreateFormulaDay(ctx, f); err != nil {
		t.Fatal(err)
	}

	first := newOrder(f, "emp-7")
	if err := s.PlaceOrder(ctx, first, types.EUR(100), true); err != nil {
		t.Fatalf("first place: %v", err)
	}

	dup := newOrder(f, "emp-7")
	err := s.PlaceOrder(ctx, dup, types.EUR(100), true)
	if !errors.Is(err, canteen.ErrDuplicateOrder) {
		t.Fatalf("got %v, want duplicate order", err)
	}
	// The rejected duplicate must not consume quota.
	got, _ := s.GetFormulaDay(ctx, f.ID)
	if got.DayQuotaRemaining != 9 {
		t.Errorf("quota = %d, want 9", got.DayQuotaRemaining)
	}

	// Without uniqueness enforcement (instant path) it stacks.
	stacked := newOrder(f, "emp-7")
	stacked.Instant = true
	if err := s.PlaceOrder(ctx, stacked, types.EUR(100), false); err != nil {
		t.Fatalf("instant place: %v", err)
	}
}

func TestCancelReleasesCapacity(t *testing.T) {
	ctx := context.Background()
	s := New()
	f := newFormulaDay(2, 1, types.EUR(100))
	if err := s.CreateFormulaDay(ctx, f); err != nil {
		t.Fatal(err)
	}

	o := newOrder(f, "emp-1")
	if err := s.PlaceOrder(ctx, o, types.EUR(100), true); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetFormulaDay(ctx, f.ID)
	if got.DayQuotaRemaining != 0 {
		t.Fatalf("quota = %d, want 0 after placement", got.DayQuotaRemaining)
	}

	cancelled, err := s.CancelOrder(ctx, o.ID, "changed plans", order.ActorRequester, false, date(1))
	if err != nil {
		t.Fatal(err)
	}
	if cancelled.Status != order.StatusCancelled || cancelled.CancelledAt == nil {
		t.Errorf("unexpected cancelled order %+v", cancelled)
	}

	got, _ = s.GetFormulaDay(ctx, f.ID)
	if got.DayQuotaRemaining != 1 {
		t.Errorf("quota = %d, want released back to 1", got.DayQuotaRemaining)
	}
	if !got.DayMarginRemaining.Equal(types.EUR(100)) {
		t.Errorf("margin = %v, want released back to €1.00", got.DayMarginRemaining)
	}

	// Cancelling twice is an invalid transition.
	if _, err := s.CancelOrder(ctx, o.ID, "again", order.ActorRequester, false, date(1)); !errors.Is(err, canteen.ErrInvalidTransition) {
		t.Errorf("got %v, want invalid transition", err)
	}

	// The slot freed by the cancellation is reusable.
	if err := s.PlaceOrder(ctx, newOrder(f, "emp-1"), types.EUR(100), true); err != nil {
		t.Errorf("re-place after cancel: %v", err)
	}
}

func TestConfirmOrderIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	f := newFormulaDay(2, 5, types.EUR(500))
	if err := s.CreateFormulaDay(ctx, f); err != nil {
		t.Fatal(err)
	}
	o := newOrder(f, "emp-1")
	if err := s.PlaceOrder(ctx, o, types.EUR(0), true); err != nil {
		t.Fatal(err)
	}

	stamped, err := s.ConfirmOrder(ctx, o.ID, date(3))
	if err != nil || !stamped {
		t.Fatalf("first confirm: stamped=%v err=%v", stamped, err)
	}
	stamped, err = s.ConfirmOrder(ctx, o.ID, date(4))
	if err != nil || stamped {
		t.Fatalf("second confirm: stamped=%v err=%v, want no-op", stamped, err)
	}
	got, _ := s.GetOrder(ctx, o.ID)
	if got.ConfirmedAt == nil || !got.ConfirmedAt.Equal(date(3)) {
		t.Errorf("confirmed at %v, want first stamp kept", got.ConfirmedAt)
	}
}

func TestRecordProofMarksConsumed(t *testing.T) {
	ctx := context.Background()
	s := New()
	f := newFormulaDay(2, 5, types.EUR(500))
	if err := s.CreateFormulaDay(ctx, f); err != nil {
		t.Fatal(err)
	}
	o := newOrder(f, "emp-1")
	if err := s.PlaceOrder(ctx, o, types.EUR(0), true); err != nil {
		t.Fatal(err)
	}

	p := &proof.ConsumptionPoint{
		Entity:     types.NewEntity(),
		ID:         id.NewProofID(),
		OrderID:    o.ID,
		RedeemedAt: date(2).Add(12 * time.Hour),
		Redeemer:   "till-3",
	}
	if err := s.RecordProof(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetOrder(ctx, o.ID)
	if got.Status != order.StatusConsumed {
		t.Errorf("status = %s, want consumed", got.Status)
	}
	if _, err := s.GetProofByOrder(ctx, o.ID); err != nil {
		t.Errorf("proof lookup: %v", err)
	}

	second := &proof.ConsumptionPoint{
		Entity: types.NewEntity(), ID: id.NewProofID(), OrderID: o.ID, RedeemedAt: date(2),
	}
	if err := s.RecordProof(ctx, second); !errors.Is(err, canteen.ErrProofExists) {
		t.Errorf("got %v, want proof exists", err)
	}
}

func TestNonConsumedCandidates(t *testing.T) {
	ctx := context.Background()
	s := New()
	f := newFormulaDay(2, 20, types.EUR(5000))
	if err := s.CreateFormulaDay(ctx, f); err != nil {
		t.Fatal(err)
	}

	place := func(ref string) *order.Order {
		o := newOrder(f, ref)
		if err := s.PlaceOrder(ctx, o, types.EUR(0), true); err != nil {
			t.Fatal(err)
		}
		return o
	}

	// Confirmed preorder past its date: candidate.
	pastDue := place("emp-past")
	if _, err := s.ConfirmOrder(ctx, pastDue.ID, date(3)); err != nil {
		t.Fatal(err)
	}

	// Unconfirmed preorder: not a candidate, whatever its date.
	place("emp-unconfirmed")

	// Properly consumed: not a candidate.
	consumed := place("emp-consumed")
	p := &proof.ConsumptionPoint{Entity: types.NewEntity(), ID: id.NewProofID(), OrderID: consumed.ID, RedeemedAt: date(2)}
	if err := s.RecordProof(ctx, p); err != nil {
		t.Fatal(err)
	}

	// Consumed on paper but proof retired: candidate, missing proof.
	mismatch := place("emp-mismatch")
	mp := &proof.ConsumptionPoint{Entity: types.NewEntity(), ID: id.NewProofID(), OrderID: mismatch.ID, RedeemedAt: date(2)}
	if err := s.RecordProof(ctx, mp); err != nil {
		t.Fatal(err)
	}
	if err := s.RetireProof(ctx, mp.ID, date(2)); err != nil {
		t.Fatal(err)
	}

	// Requester cancellation: candidate.
	cancelled := place("emp-cancelled")
	if _, err := s.CancelOrder(ctx, cancelled.ID, "sick", order.ActorRequester, false, date(1)); err != nil {
		t.Fatal(err)
	}

	// Provider-fault cancellation: never a candidate.
	faulted := place("emp-faulted")
	if _, err := s.CancelOrder(ctx, faulted.ID, "kitchen closed", order.ActorProvider, true, date(1)); err != nil {
		t.Fatal(err)
	}

	candidates, err := s.NonConsumed(ctx, date(1), date(3), date(3))
	if err != nil {
		t.Fatal(err)
	}

	causes := make(map[string]billing.Cause)
	for _, c := range candidates {
		causes[c.Order.Requester.Ref] = c.Cause
		if !c.Price.Equal(types.EUR(1000)) {
			t.Errorf("candidate %s price = %v, want formula price", c.Order.Requester.Ref, c.Price)
		}
	}
	want := map[string]billing.Cause{
		pastDue.Requester.Ref:   billing.CausePastDate,
		mismatch.Requester.Ref:  billing.CauseMissingProof,
		cancelled.Requester.Ref: billing.CauseCancelled,
	}
	if len(causes) != len(want) {
		t.Fatalf("got %d candidates %v, want %d", len(causes), causes, len(want))
	}
	for ref, cause := range want {
		if causes[ref] != cause {
			t.Errorf("candidate %s cause = %s, want %s", ref, causes[ref], cause)
		}
	}

	// As of the consumption day itself the meal is not missed yet.
	candidates, err = s.NonConsumed(ctx, date(1), date(3), date(2))
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range candidates {
		if c.Order.ID == pastDue.ID {
			t.Error("preorder surfaced before its date passed")
		}
	}
}

func TestDiscardOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	f := newFormulaDay(2, 5, types.EUR(500))
	if err := s.CreateFormulaDay(ctx, f); err != nil {
		t.Fatal(err)
	}
	o := newOrder(f, "emp-1")
	o.Instant = true
	if err := s.PlaceOrder(ctx, o, types.EUR(100), false); err != nil {
		t.Fatal(err)
	}

	if err := s.DiscardOrder(ctx, o.ID, date(2)); err != nil {
		t.Fatal(err)
	}

	// Soft-deleted: invisible to listings and the dedup lookup.
	list, _ := s.ListOrders(ctx, order.ListOpts{})
	if len(list) != 0 {
		t.Errorf("listed %d orders, want discarded one hidden", len(list))
	}
	if _, err := s.GetActiveOrder(ctx, o.Requester, o.Date); !errors.Is(err, canteen.ErrOrderNotFound) {
		t.Errorf("got %v, want not found", err)
	}

	got, _ := s.GetFormulaDay(ctx, f.ID)
	if got.DayQuotaRemaining != 5 {
		t.Errorf("quota = %d, want released to 5", got.DayQuotaRemaining)
	}
}

func TestFreeAllowanceUsed(t *testing.T) {
	ctx := context.Background()
	s := New()
	f := newFormulaDay(2, 10, types.EUR(5000))
	if err := s.CreateFormulaDay(ctx, f); err != nil {
		t.Fatal(err)
	}
	o := newOrder(f, "emp-1")
	if err := s.PlaceOrder(ctx, o, types.EUR(0), true); err != nil {
		t.Fatal(err)
	}
	if err := s.ApplyCharge(ctx, o.ID, types.EUR(0), 50, billing.ReasonFreeAllowance, date(5)); err != nil {
		t.Fatal(err)
	}

	used, err := s.FreeAllowanceUsed(ctx, date(1), date(31))
	if err != nil {
		t.Fatal(err)
	}
	key := billing.MonthKey(o.Requester, o.Date)
	if used[key] != 1 {
		t.Errorf("used[%s] = %d, want 1", key, used[key])
	}

	// Re-billing a settled order is rejected.
	if err := s.ApplyCharge(ctx, o.ID, types.EUR(500), 50, "", date(6)); !errors.Is(err, canteen.ErrAlreadyBilled) {
		t.Errorf("got %v, want already billed", err)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.ConfigValue(ctx, "billing.enabled"); !errors.Is(err, canteen.ErrConfigNotFound) {
		t.Errorf("got %v, want config not found", err)
	}
	if err := s.SetConfig(ctx, "billing.enabled", "true", "master billing switch"); err != nil {
		t.Fatal(err)
	}
	v, err := s.ConfigValue(ctx, "billing.enabled")
	if err != nil || v != "true" {
		t.Errorf("got %q/%v, want true", v, err)
	}
	all, _ := s.ListConfig(ctx)
	if len(all) != 1 {
		t.Fatalf("listed %d rows, want 1", len(all))
	}
	if all[0].Key != "billing.enabled" || all[0].Description != "master billing switch" {
		t.Errorf("unexpected row %+v", all[0])
	}

	// Overwriting replaces value and description together.
	if err := s.SetConfig(ctx, "billing.enabled", "false", "billing paused for audit"); err != nil {
		t.Fatal(err)
	}
	all, _ = s.ListConfig(ctx)
	if all[0].Value != "false" || all[0].Description != "billing paused for audit" {
		t.Errorf("unexpected row after overwrite %+v", all[0])
	}
}
