package billing

import (
	"testing"
	"time"

	"github.com/xraph/canteen/id"
	"github.com/xraph/canteen/order"
	"github.com/xraph/canteen/types"
)

// weekday returns a date guaranteed to fall on a working day.
func weekday(day int) time.Time {
	// 2026-03-02 is a Monday.
	return time.Date(2026, 3, 2+day*7, 0, 0, 0, 0, time.UTC)
}

func candidate(date time.Time, cause Cause, price types.Money) Candidate {
	o := &order.Order{
		ID:        id.NewOrderID(),
		Requester: order.Requester{Kind: order.RequesterEmployee, Ref: "emp-1"},
		Date:      date,
		Quantity:  1,
		Status:    order.StatusPreorder,
	}
	o.Entity = types.NewEntity()
	return Candidate{Order: o, Price: price, Cause: cause}
}

func enabledPolicy() Policy {
	return Policy{
		Enabled:      true,
		Percent:      50,
		FreeAbsences: 1,
		Grace:        24 * time.Hour,
		BillWeekends: false,
		BillHolidays: false,
	}
}

func TestComputeFreeAllowanceThenBilled(t *testing.T) {
	// First non-consumed order of the month is exempted, the second is
	// billed at 50% of the €10.00 nominal price.
	policy := enabledPolicy()
	first := candidate(weekday(0), CausePastDate, types.EUR(1000))
	second := candidate(weekday(0).AddDate(0, 0, 1), CausePastDate, types.EUR(1000))
	second.Order.Requester = first.Order.Requester

	result := Compute([]Candidate{second, first}, policy, nil, nil)

	if !result.BillingEnabled {
		t.Fatal("expected billing enabled")
	}
	if result.ExemptCount != 1 || result.BillableCount != 1 {
		t.Fatalf("counts: exempt=%d billable=%d", result.ExemptCount, result.BillableCount)
	}

	// Oldest first: the earlier order gets the allowance.
	if result.Charges[0].OrderID != first.Order.ID {
		t.Error("expected oldest candidate first")
	}
	if result.Charges[0].ExemptReason != ReasonFreeAllowance {
		t.Errorf("first charge: got reason %q", result.Charges[0].ExemptReason)
	}
	if !result.Charges[1].Amount.Equal(types.EUR(500)) {
		t.Errorf("second charge: got %v, want %v", result.Charges[1].Amount, types.EUR(500))
	}
	if !result.TotalAmount.Equal(types.EUR(500)) {
		t.Errorf("total: got %v, want %v", result.TotalAmount, types.EUR(500))
	}
}

func TestComputeAllowanceResetsPerMonth(t *testing.T) {
	policy := enabledPolicy()
	march := candidate(time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), CausePastDate, types.EUR(1000))
	april := candidate(time.Date(2026, 4, 7, 0, 0, 0, 0, time.UTC), CausePastDate, types.EUR(1000))
	april.Order.Requester = march.Order.Requester

	result := Compute([]Candidate{march, april}, policy, nil, nil)

	for i, c := range result.Charges {
		if c.ExemptReason != ReasonFreeAllowance {
			t.Errorf("charge %d: got reason %q, want free allowance", i, c.ExemptReason)
		}
	}
}

func TestComputePriorExemptionsConsumeAllowance(t *testing.T) {
	policy := enabledPolicy()
	cand := candidate(weekday(0), CausePastDate, types.EUR(1000))

	prior := map[string]int{MonthKey(cand.Order.Requester, cand.Order.Date): 1}
	result := Compute([]Candidate{cand}, policy, nil, prior)

	if result.BillableCount != 1 {
		t.Fatalf("expected billable, got %+v", result.Charges[0])
	}
}

func TestComputeGraceCancellation(t *testing.T) {
	policy := enabledPolicy()
	policy.FreeAbsences = 0

	date := weekday(0)
	early := date.Add(-48 * time.Hour)
	late := date.Add(-2 * time.Hour)

	tests := []struct {
		name        string
		cancelledAt time.Time
		wantReason  string
	}{
		{"cancelled before grace threshold", early, ReasonGrace},
		{"cancelled inside grace threshold", late, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand := candidate(date, CauseCancelled, types.EUR(1000))
			cand.Order.Status = order.StatusCancelled
			cand.Order.CancelledAt = &tt.cancelledAt

			result := Compute([]Candidate{cand}, policy, nil, nil)
			if got := result.Charges[0].ExemptReason; got != tt.wantReason {
				t.Errorf("got reason %q, want %q", got, tt.wantReason)
			}
		})
	}
}

func TestComputeWeekendAndHoliday(t *testing.T) {
	policy := enabledPolicy()
	policy.FreeAbsences = 0

	saturday := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	holiday := weekday(0)

	holidays := HolidayFunc(func(d time.Time) bool { return d.Equal(holiday) })

	t.Run("weekend exempt by default", func(t *testing.T) {
		result := Compute([]Candidate{candidate(saturday, CausePastDate, types.EUR(1000))}, policy, holidays, nil)
		if result.Charges[0].ExemptReason != ReasonWeekend {
			t.Errorf("got reason %q", result.Charges[0].ExemptReason)
		}
	})

	t.Run("weekend billable when configured", func(t *testing.T) {
		p := policy
		p.BillWeekends = true
		result := Compute([]Candidate{candidate(saturday, CausePastDate, types.EUR(1000))}, p, holidays, nil)
		if result.Charges[0].Exempt() {
			t.Error("expected billable weekend charge")
		}
	})

	t.Run("holiday exempt by default", func(t *testing.T) {
		result := Compute([]Candidate{candidate(holiday, CausePastDate, types.EUR(1000))}, policy, holidays, nil)
		if result.Charges[0].ExemptReason != ReasonHoliday {
			t.Errorf("got reason %q", result.Charges[0].ExemptReason)
		}
	})
}

func TestComputeZeroRate(t *testing.T) {
	policy := enabledPolicy()
	policy.FreeAbsences = 0
	policy.Percent = 0

	result := Compute([]Candidate{candidate(weekday(0), CausePastDate, types.EUR(1000))}, policy, nil, nil)

	charge := result.Charges[0]
	if !charge.Exempt() || charge.ExemptReason != ReasonZeroRate {
		t.Errorf("zero-rate charge should be exempt, got %+v", charge)
	}
}

func TestComputeQuantityMultiplies(t *testing.T) {
	policy := enabledPolicy()
	policy.FreeAbsences = 0

	cand := candidate(weekday(0), CausePastDate, types.EUR(1000))
	cand.Order.Quantity = 3

	result := Compute([]Candidate{cand}, policy, nil, nil)
	if !result.Charges[0].Amount.Equal(types.EUR(1500)) {
		t.Errorf("got %v, want %v", result.Charges[0].Amount, types.EUR(1500))
	}
}

func TestComputeDisabledStillComputes(t *testing.T) {
	policy := enabledPolicy()
	policy.Enabled = false

	result := Compute([]Candidate{candidate(weekday(0), CausePastDate, types.EUR(1000))}, policy, nil, nil)
	if result.BillingEnabled {
		t.Error("expected BillingEnabled=false")
	}
	// The computation itself still runs; refusing to charge is Apply's job.
	if len(result.Charges) != 1 {
		t.Fatalf("expected one charge, got %d", len(result.Charges))
	}
}
