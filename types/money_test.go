package types

import (
	"encoding/json"
	"testing"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   int64
		currency string
		display  string
	}{
		{"EUR", EUR(650), 650, "eur", "€6.50"},
		{"USD", USD(1000), 1000, "usd", "$10.00"},
		{"GBP", GBP(420), 420, "gbp", "£4.20"},
		{"CHF", CHF(1250), 1250, "chf", "CHF 12.50"},
		{"Zero EUR", Zero("EUR"), 0, "eur", "€0.00"},
		{"Zero USD", Zero("USD"), 0, "usd", "$0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.money.Currency, tt.currency)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return EUR(100).Add(EUR(200)) }, EUR(300)},
		{"Subtract", func() Money { return EUR(500).Subtract(EUR(200)) }, EUR(300)},
		{"Multiply", func() Money { return EUR(100).Multiply(3) }, EUR(300)},
		{"Negate", func() Money { return EUR(100).Negate() }, EUR(-100)},
		{"Percent half", func() Money { return EUR(1000).Percent(50) }, EUR(500)},
		{"Percent full", func() Money { return EUR(1000).Percent(100) }, EUR(1000)},
		{"Percent zero", func() Money { return EUR(1000).Percent(0) }, EUR(0)},
		{"Percent truncates", func() Money { return EUR(999).Percent(50) }, EUR(499)},
		{"Complex", func() Money {
			return EUR(1000).Add(EUR(500)).Multiply(2).Subtract(EUR(1000))
		}, EUR(2000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.op()
			if !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for currency mismatch")
		}
	}()

	// This should panic
	_ = EUR(100).Add(USD(100))
}

func TestMoneyComparison(t *testing.T) {
	if !EUR(100).LessThan(EUR(200)) {
		t.Error("100 should be less than 200")
	}
	if !EUR(200).GreaterThan(EUR(100)) {
		t.Error("200 should be greater than 100")
	}
	if !EUR(100).Min(EUR(200)).Equal(EUR(100)) {
		t.Error("Min should return the smaller value")
	}
	if !EUR(0).IsZero() || EUR(1).IsZero() {
		t.Error("IsZero mismatch")
	}
	if !EUR(1).IsPositive() || !EUR(-1).IsNegative() {
		t.Error("sign predicates mismatch")
	}
}

func TestMoneyFormatting(t *testing.T) {
	tests := []struct {
		money Money
		major string
	}{
		{EUR(650), "6.50"},
		{EUR(5), "0.05"},
		{EUR(-650), "-6.50"},
		{Money{Amount: 100, Currency: "jpy"}, "100"},
	}
	for _, tt := range tests {
		if got := tt.money.FormatMajor(); got != tt.major {
			t.Errorf("FormatMajor(%v): got %s, want %s", tt.money, got, tt.major)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(EUR(650))
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Amount != 650 || decoded.Currency != "eur" || decoded.Display != "€6.50" {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestSum(t *testing.T) {
	total := Sum(EUR(100), EUR(200), EUR(300))
	if !total.Equal(EUR(600)) {
		t.Errorf("Sum: got %v, want %v", total, EUR(600))
	}
	if !Sum().IsZero() {
		t.Error("empty Sum should be zero")
	}
}
