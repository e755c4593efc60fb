package canteen_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/canteen"
	"github.com/xraph/canteen/billing"
	"github.com/xraph/canteen/config"
	"github.com/xraph/canteen/formula"
	"github.com/xraph/canteen/order"
	"github.com/xraph/canteen/store/memory"
)

// clock is a mutable test clock injected into the engine.
type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

// 2026-03-04 is a Wednesday, comfortably outside the default
// Friday-noon closure window.
func newTestEngine(t *testing.T) (*canteen.Canteen, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)}
	c := canteen.New(memory.New(),
		canteen.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		canteen.WithClock(clk.Now),
	)
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Stop() })
	return c, clk
}

func mustFormula(t *testing.T, c *canteen.Canteen, day, quota int, margin canteen.Money) *formula.FormulaDay {
	t.Helper()
	f := &formula.FormulaDay{
		Kind:     formula.KindStandard1,
		Date:     time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC),
		MainDish: "plat du jour",
		Price:    canteen.EUR(1000),

		DayQuotaInitial:   quota,
		NightQuotaInitial: quota,

		DayMarginInitial:   margin,
		NightMarginInitial: margin,
	}
	if err := c.CreateFormulaDay(context.Background(), f); err != nil {
		t.Fatal(err)
	}
	return f
}

func requester(ref string) order.Requester {
	return order.Requester{Kind: order.RequesterEmployee, Ref: ref}
}

func request(ref string, day int) canteen.OrderRequest {
	return canteen.OrderRequest{
		Requester: requester(ref),
		Kind:      formula.KindStandard1,
		Date:      time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC),
		Period:    formula.PeriodDay,
		Quantity:  1,
	}
}

func TestCreateOrderPlanned(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestEngine(t)
	f := mustFormula(t, c, 9, 10, canteen.EUR(100000))

	o, err := c.CreateOrder(ctx, request("emp-1", 9))
	if err != nil {
		t.Fatal(err)
	}
	if o.Status != order.StatusPreorder || o.Instant {
		t.Errorf("unexpected order %+v", o)
	}
	if o.FormulaID != f.ID {
		t.Error("order not bound to the date's formula")
	}

	got, _ := c.GetFormulaDay(ctx, f.ID)
	if got.DayQuotaRemaining != 9 {
		t.Errorf("quota = %d, want 9", got.DayQuotaRemaining)
	}
	if !got.DayMarginRemaining.Equal(canteen.EUR(99000)) {
		t.Errorf("margin = %v, want €990.00", got.DayMarginRemaining)
	}

	// Same requester, same date: rejected up front.
	if _, err := c.CreateOrder(ctx, request("emp-1", 9)); !errors.Is(err, canteen.ErrDuplicateOrder) {
		t.Errorf("got %v, want duplicate order", err)
	}

	// Another requester is unaffected.
	if _, err := c.CreateOrder(ctx, request("emp-2", 9)); err != nil {
		t.Errorf("second requester: %v", err)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestEngine(t)
	mustFormula(t, c, 9, 10, canteen.EUR(100000))

	bad := request("emp-1", 9)
	bad.Quantity = 0
	if _, err := c.CreateOrder(ctx, bad); !errors.Is(err, canteen.ErrInvalidQuantity) {
		t.Errorf("got %v, want invalid quantity", err)
	}

	bad = request("emp-1", 9)
	bad.Period = "brunch"
	if _, err := c.CreateOrder(ctx, bad); !errors.Is(err, canteen.ErrInvalidPeriod) {
		t.Errorf("got %v, want invalid period", err)
	}

	// Past dates cannot be ordered.
	if _, err := c.CreateOrder(ctx, request("emp-1", 2)); !errors.Is(err, canteen.ErrInvalidInput) {
		t.Errorf("got %v, want invalid input", err)
	}

	// No formula registered for the date.
	if _, err := c.CreateOrder(ctx, request("emp-1", 10)); !errors.Is(err, canteen.ErrFormulaNotFound) {
		t.Errorf("got %v, want formula not found", err)
	}

	// Instant is a same-day capability, not a closure loophole.
	bad = request("emp-1", 9)
	bad.Instant = true
	if _, err := c.CreateOrder(ctx, bad); !errors.Is(err, canteen.ErrInvalidInput) {
		t.Errorf("got %v, want invalid input for future instant order", err)
	}
}

func TestCreateOrderCapacity(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestEngine(t)
	mustFormula(t, c, 9, 1, canteen.EUR(100000))

	if _, err := c.CreateOrder(ctx, request("emp-1", 9)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CreateOrder(ctx, request("emp-2", 9)); !errors.Is(err, canteen.ErrCapacityExhausted) {
		t.Errorf("got %v, want capacity exhausted", err)
	}
}

func TestCreateOrderClosureWindow(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestEngine(t)
	mustFormula(t, c, 9, 10, canteen.EUR(100000))

	// Friday 13:00 is inside the default closure window.
	clk.now = time.Date(2026, 3, 6, 13, 0, 0, 0, time.UTC)
	if !c.IsOrderingBlocked(ctx) {
		t.Fatal("friday afternoon should be blocked")
	}
	if _, err := c.CreateOrder(ctx, request("emp-1", 9)); !errors.Is(err, canteen.ErrOrderingClosed) {
		t.Errorf("got %v, want ordering closed", err)
	}

	// A planned order for today is still gated by the window.
	mustFormula(t, c, 6, 10, canteen.EUR(100000))
	if _, err := c.CreateOrder(ctx, request("emp-2", 6)); !errors.Is(err, canteen.ErrOrderingClosed) {
		t.Errorf("got %v, want ordering closed", err)
	}

	// An instant order bypasses it.
	instant := request("emp-1", 6)
	instant.Instant = true
	o, err := c.CreateOrder(ctx, instant)
	if err != nil {
		t.Fatal(err)
	}
	if !o.Instant {
		t.Error("order should carry the instant flag")
	}

	// Disabling the window reopens planned ordering.
	if err := c.SetConfigValue(ctx, config.KeyClosureEnabled, "false", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CreateOrder(ctx, request("emp-1", 9)); err != nil {
		t.Errorf("with closure disabled: %v", err)
	}
}

func TestMalformedClosureScheduleFailsOpen(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestEngine(t)
	mustFormula(t, c, 9, 10, canteen.EUR(100000))

	if err := c.SetConfigValue(ctx, config.KeyClosingDay, "payday", ""); err != nil {
		t.Fatal(err)
	}

	// Inside what would be the default window, but the malformed rule
	// disables blocking rather than guessing.
	clk.now = time.Date(2026, 3, 6, 13, 0, 0, 0, time.UTC)
	if c.IsOrderingBlocked(ctx) {
		t.Error("malformed schedule must disable blocking")
	}
	if _, err := c.CreateOrder(ctx, request("emp-1", 9)); err != nil {
		t.Errorf("got %v, want order accepted", err)
	}
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestEngine(t)
	f := mustFormula(t, c, 9, 1, canteen.EUR(100000))

	o, err := c.CreateOrder(ctx, request("emp-1", 9))
	if err != nil {
		t.Fatal(err)
	}

	cancelled, err := c.CancelOrder(ctx, o.ID, "sick leave", order.ActorRequester)
	if err != nil {
		t.Fatal(err)
	}
	if cancelled.Status != order.StatusCancelled || cancelled.ProviderFault {
		t.Errorf("unexpected cancelled order %+v", cancelled)
	}

	got, _ := c.GetFormulaDay(ctx, f.ID)
	if got.DayQuotaRemaining != 1 {
		t.Errorf("quota = %d, want released to 1", got.DayQuotaRemaining)
	}

	// Provider cancellations carry the fault marker.
	o2, err := c.CreateOrder(ctx, request("emp-2", 9))
	if err != nil {
		t.Fatal(err)
	}
	cancelled, err = c.CancelOrder(ctx, o2.ID, "kitchen flooded", order.ActorProvider)
	if err != nil {
		t.Fatal(err)
	}
	if !cancelled.ProviderFault {
		t.Error("provider cancellation should mark provider fault")
	}
}

func TestRecordConsumption(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestEngine(t)
	mustFormula(t, c, 4, 10, canteen.EUR(100000))

	o, err := c.CreateOrder(ctx, request("emp-1", 4))
	if err != nil {
		t.Fatal(err)
	}

	clk.now = clk.now.Add(2 * time.Hour)
	p, err := c.RecordConsumption(ctx, o.ID, "till-3")
	if err != nil {
		t.Fatal(err)
	}

	got, _ := c.GetOrder(ctx, o.ID)
	if got.Status != order.StatusConsumed {
		t.Errorf("status = %s, want consumed", got.Status)
	}
	if _, err := c.ConsumptionProof(ctx, o.ID); err != nil {
		t.Errorf("proof lookup: %v", err)
	}

	// A second redemption of the same order is refused.
	if _, err := c.RecordConsumption(ctx, o.ID, "till-1"); !errors.Is(err, canteen.ErrProofExists) {
		t.Errorf("got %v, want proof exists", err)
	}

	// Retiring the proof leaves the status mismatch for billing.
	if err := c.RetireConsumption(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	candidates, err := c.NonConsumed(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 || candidates[0].Cause != billing.CauseMissingProof {
		t.Errorf("got %+v, want one missing-proof candidate", candidates)
	}
}

func TestAutoConfirmationPass(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestEngine(t)
	mustFormula(t, c, 9, 10, canteen.EUR(100000))
	mustFormula(t, c, 10, 10, canteen.EUR(100000))

	if _, err := c.CreateOrder(ctx, request("emp-1", 9)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CreateOrder(ctx, request("emp-1", 10)); err != nil {
		t.Fatal(err)
	}

	// Nothing is past-dated yet.
	confirmed, skipped, err := c.RunAutoConfirmationPass(ctx)
	if err != nil || confirmed != 0 || skipped != 0 {
		t.Fatalf("early pass: confirmed=%d skipped=%d err=%v", confirmed, skipped, err)
	}

	// A week later both orders are past their date.
	clk.now = time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC)
	confirmed, skipped, err = c.RunAutoConfirmationPass(ctx)
	if err != nil || confirmed != 2 || skipped != 0 {
		t.Fatalf("pass: confirmed=%d skipped=%d err=%v", confirmed, skipped, err)
	}

	// Re-running is a no-op.
	confirmed, skipped, err = c.RunAutoConfirmationPass(ctx)
	if err != nil || confirmed != 0 || skipped != 2 {
		t.Fatalf("second pass: confirmed=%d skipped=%d err=%v", confirmed, skipped, err)
	}

	// Disabled by configuration.
	if err := c.SetConfigValue(ctx, config.KeyAutoConfirm, "false", ""); err != nil {
		t.Fatal(err)
	}
	confirmed, skipped, err = c.RunAutoConfirmationPass(ctx)
	if err != nil || confirmed != 0 || skipped != 0 {
		t.Fatalf("disabled pass: confirmed=%d skipped=%d err=%v", confirmed, skipped, err)
	}
}

func TestBillingEndToEnd(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestEngine(t)
	mustFormula(t, c, 9, 10, canteen.EUR(100000))
	mustFormula(t, c, 10, 10, canteen.EUR(100000))
	mustFormula(t, c, 11, 10, canteen.EUR(100000))

	// emp-1 orders Monday through Wednesday and never shows up.
	for _, day := range []int{9, 10, 11} {
		if _, err := c.CreateOrder(ctx, request("emp-1", day)); err != nil {
			t.Fatal(err)
		}
	}

	clk.now = time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC)
	if _, _, err := c.RunAutoConfirmationPass(ctx); err != nil {
		t.Fatal(err)
	}

	// Billing disabled: compute previews, apply refuses but still
	// hands back the preview.
	result, err := c.ComputeBilling(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if result.BillingEnabled {
		t.Error("billing should default to disabled")
	}
	if len(result.Charges) != 3 {
		t.Fatalf("computed %d charges, want 3", len(result.Charges))
	}
	preview, err := c.ApplyBilling(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, canteen.ErrBillingDisabled) {
		t.Fatalf("got %v, want billing disabled", err)
	}
	if preview == nil || len(preview.Charges) != 3 {
		t.Fatalf("refused apply should return the preview, got %+v", preview)
	}
	monday, _ := c.ActiveOrder(ctx, requester("emp-1"), time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))
	if monday.Status != order.StatusPreorder {
		t.Fatalf("refused apply persisted a charge: %s", monday.Status)
	}

	// Enable: 50% rate, one free absence per month.
	for key, value := range map[string]string{
		config.KeyBillingEnabled: "true",
		config.KeyBillingPercent: "50",
		config.KeyFreeAbsences:   "1",
	} {
		if err := c.SetConfigValue(ctx, key, value, ""); err != nil {
			t.Fatal(err)
		}
	}

	result, err = c.ApplyBilling(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if result.BillableCount != 1 || result.ExemptCount != 1 {
		t.Fatalf("billable=%d exempt=%d, want 1/1", result.BillableCount, result.ExemptCount)
	}
	if !result.TotalAmount.Equal(canteen.EUR(500)) {
		t.Errorf("total = %v, want €5.00 (50%% of €10.00)", result.TotalAmount)
	}

	// Oldest absence got the allowance, the next one paid.
	monday, _ = c.ActiveOrder(ctx, requester("emp-1"), time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))
	if monday.Status != order.StatusExempted || monday.ExemptReason != billing.ReasonFreeAllowance {
		t.Errorf("monday order %s/%s, want exempted with free allowance", monday.Status, monday.ExemptReason)
	}
	tuesday, _ := c.ActiveOrder(ctx, requester("emp-1"), time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	if tuesday.Status != order.StatusBilled || !tuesday.ChargeAmount.Equal(canteen.EUR(500)) {
		t.Errorf("tuesday order %s/%v, want billed €5.00", tuesday.Status, tuesday.ChargeAmount)
	}

	// A later run over the rest of the month sees the allowance as
	// already consumed: wednesday is billed, not exempted again.
	result, err = c.ApplyBilling(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if result.BillableCount != 1 || result.ExemptCount != 0 {
		t.Fatalf("later run billable=%d exempt=%d, want 1/0", result.BillableCount, result.ExemptCount)
	}
	wednesday, _ := c.ActiveOrder(ctx, requester("emp-1"), time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC))
	if wednesday.Status != order.StatusBilled {
		t.Errorf("wednesday order %s, want billed", wednesday.Status)
	}

	// Everything settled: nothing left to bill.
	result, err = c.ApplyBilling(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Charges) != 0 {
		t.Errorf("settled run produced %d charges, want 0", len(result.Charges))
	}
}

func TestBillingGraceAndProviderFault(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestEngine(t)
	mustFormula(t, c, 9, 10, canteen.EUR(100000))
	mustFormula(t, c, 10, 10, canteen.EUR(100000))

	// Cancelled five days ahead: inside the grace period.
	early, err := c.CreateOrder(ctx, request("emp-1", 9))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.CancelOrder(ctx, early.ID, "trip", order.ActorRequester); err != nil {
		t.Fatal(err)
	}

	// Provider-fault cancellation: never a candidate.
	faulted, err := c.CreateOrder(ctx, request("emp-2", 9))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.CancelOrder(ctx, faulted.ID, "no delivery", order.ActorProvider); err != nil {
		t.Fatal(err)
	}

	// Cancelled the morning of the date: past the grace cutoff.
	late, err := c.CreateOrder(ctx, request("emp-3", 10))
	if err != nil {
		t.Fatal(err)
	}
	clk.now = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	if _, err := c.CancelOrder(ctx, late.ID, "overslept", order.ActorRequester); err != nil {
		t.Fatal(err)
	}

	clk.now = time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC)
	if err := c.SetConfigValue(ctx, config.KeyBillingEnabled, "true", ""); err != nil {
		t.Fatal(err)
	}

	result, err := c.ApplyBilling(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if result.BillableCount != 1 || result.ExemptCount != 1 {
		t.Fatalf("billable=%d exempt=%d, want 1/1", result.BillableCount, result.ExemptCount)
	}

	gotEarly, _ := c.GetOrder(ctx, early.ID)
	if gotEarly.Status != order.StatusExempted || gotEarly.ExemptReason != billing.ReasonGrace {
		t.Errorf("early cancel %s/%s, want grace exemption", gotEarly.Status, gotEarly.ExemptReason)
	}
	gotLate, _ := c.GetOrder(ctx, late.ID)
	if gotLate.Status != order.StatusBilled || !gotLate.ChargeAmount.Equal(canteen.EUR(1000)) {
		t.Errorf("late cancel %s/%v, want billed full €10.00", gotLate.Status, gotLate.ChargeAmount)
	}
	gotFaulted, _ := c.GetOrder(ctx, faulted.ID)
	if gotFaulted.Status != order.StatusCancelled {
		t.Errorf("provider-fault cancel %s, want left cancelled", gotFaulted.Status)
	}
}

func TestReconcileDuplicates(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestEngine(t)
	f := mustFormula(t, c, 4, 10, canteen.EUR(100000))

	// Three instant orders stack for the same requester and day.
	var last *order.Order
	for i := 0; i < 3; i++ {
		clk.now = clk.now.Add(time.Minute)
		req := request("emp-1", 4)
		req.Instant = true
		o, err := c.CreateOrder(ctx, req)
		if err != nil {
			t.Fatal(err)
		}
		last = o
	}

	report, err := c.ReconcileDuplicates(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if report.Scanned != 3 || len(report.Groups) != 1 || report.Discarded != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Groups[0].Kept != last.ID {
		t.Errorf("kept %s, want newest %s", report.Groups[0].Kept, last.ID)
	}

	// The newest survives, the others are gone, capacity is back.
	kept, err := c.ActiveOrder(ctx, requester("emp-1"), time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if kept.ID != last.ID {
		t.Errorf("active order %s, want %s", kept.ID, last.ID)
	}
	got, _ := c.GetFormulaDay(ctx, f.ID)
	if got.DayQuotaRemaining != 9 {
		t.Errorf("quota = %d, want 9 after cleanup", got.DayQuotaRemaining)
	}

	// A second pass finds nothing to do.
	report, err = c.ReconcileDuplicates(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if report.Discarded != 0 {
		t.Errorf("second pass discarded %d, want 0", report.Discarded)
	}
}

func TestBillingWaitsForConfirmation(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestEngine(t)
	mustFormula(t, c, 4, 10, canteen.EUR(100000))

	for key, value := range map[string]string{
		config.KeyBillingEnabled: "true",
		config.KeyAutoConfirm:    "false",
	} {
		if err := c.SetConfigValue(ctx, key, value, ""); err != nil {
			t.Fatal(err)
		}
	}

	req := request("emp-1", 4)
	req.Instant = true
	o, err := c.CreateOrder(ctx, req)
	if err != nil {
		t.Fatal(err)
	}

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	// The range covers today, but today's meal is not missed yet.
	result, err := c.ApplyBilling(ctx, from, to)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Charges) != 0 {
		t.Fatalf("billed %d orders whose date has not passed", len(result.Charges))
	}
	got, _ := c.GetOrder(ctx, o.ID)
	if got.Status != order.StatusPreorder {
		t.Fatalf("status = %s, want untouched preorder", got.Status)
	}

	// Past the date but unconfirmed: still invisible to billing.
	clk.now = time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC)
	result, err = c.ApplyBilling(ctx, from, to)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Charges) != 0 {
		t.Fatalf("billed %d unconfirmed preorders", len(result.Charges))
	}

	// Confirmation is what exposes the missed meal.
	if err := c.SetConfigValue(ctx, config.KeyAutoConfirm, "true", ""); err != nil {
		t.Fatal(err)
	}
	if _, _, err := c.RunAutoConfirmationPass(ctx); err != nil {
		t.Fatal(err)
	}
	result, err = c.ApplyBilling(ctx, from, to)
	if err != nil {
		t.Fatal(err)
	}
	if result.BillableCount != 1 {
		t.Fatalf("billable = %d, want 1 after confirmation", result.BillableCount)
	}
	got, _ = c.GetOrder(ctx, o.ID)
	if got.Status != order.StatusBilled || !got.ChargeAmount.Equal(canteen.EUR(1000)) {
		t.Errorf("order %s/%v, want billed full €10.00", got.Status, got.ChargeAmount)
	}
}

func TestConfigDescriptions(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestEngine(t)

	if err := c.SetConfigValue(ctx, config.KeyBillingPercent, "75", "charged share of the nominal price"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetConfigValue(ctx, config.KeyBillingEnabled, "true", "master billing switch"); err != nil {
		t.Fatal(err)
	}

	entries, err := c.ListConfig(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("listed %d rows, want 2", len(entries))
	}
	// Sorted by key.
	if entries[0].Key != config.KeyBillingEnabled || entries[0].Description != "master billing switch" {
		t.Errorf("unexpected first row %+v", entries[0])
	}
	if entries[1].Key != config.KeyBillingPercent || entries[1].Value != "75" {
		t.Errorf("unexpected second row %+v", entries[1])
	}

	// Overwriting replaces value and description together.
	if err := c.SetConfigValue(ctx, config.KeyBillingPercent, "50", "reduced winter rate"); err != nil {
		t.Fatal(err)
	}
	v, err := c.ConfigValue(ctx, config.KeyBillingPercent)
	if err != nil || v != "50" {
		t.Errorf("got %q/%v, want 50", v, err)
	}
	entries, _ = c.ListConfig(ctx)
	if entries[1].Value != "50" || entries[1].Description != "reduced winter rate" {
		t.Errorf("unexpected row after overwrite %+v", entries[1])
	}
}
