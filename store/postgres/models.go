package postgres

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/canteen/formula"
	"github.com/xraph/canteen/id"
	"github.com/xraph/canteen/order"
	"github.com/xraph/canteen/proof"
	"github.com/xraph/canteen/types"
)

// ==================== Formula-day models ====================

type formulaDayModel struct {
	grove.BaseModel `grove:"table:canteen_formula_days"`

	ID       string    `grove:"id,pk"`
	Kind     string    `grove:"kind"`
	Date     time.Time `grove:"date"`
	Starter  string    `grove:"starter"`
	MainDish string    `grove:"main_dish"`
	Dessert  string    `grove:"dessert"`
	Currency string    `grove:"currency"`

	PriceAmount int64 `grove:"price_amount"`

	DayQuotaInitial     int `grove:"day_quota_initial"`
	DayQuotaRemaining   int `grove:"day_quota_remaining"`
	NightQuotaInitial   int `grove:"night_quota_initial"`
	NightQuotaRemaining int `grove:"night_quota_remaining"`

	DayMarginInitial     int64 `grove:"day_margin_initial"`
	DayMarginRemaining   int64 `grove:"day_margin_remaining"`
	NightMarginInitial   int64 `grove:"night_margin_initial"`
	NightMarginRemaining int64 `grove:"night_margin_remaining"`

	State     string     `grove:"state"`
	CreatedAt time.Time  `grove:"created_at"`
	UpdatedAt time.Time  `grove:"updated_at"`
	RetiredAt *time.Time `grove:"retired_at"`
}

func toFormulaDayModel(f *formula.FormulaDay) *formulaDayModel {
	return &formulaDayModel{
		ID:       f.ID.String(),
		Kind:     string(f.Kind),
		Date:     f.Date,
		Starter:  f.Starter,
		MainDish: f.MainDish,
		Dessert:  f.Dessert,
		Currency: f.Price.Currency,

		PriceAmount: f.Price.Amount,

		DayQuotaInitial:     f.DayQuotaInitial,
		DayQuotaRemaining:   f.DayQuotaRemaining,
		NightQuotaInitial:   f.NightQuotaInitial,
		NightQuotaRemaining: f.NightQuotaRemaining,

		DayMarginInitial:     f.DayMarginInitial.Amount,
		DayMarginRemaining:   f.DayMarginRemaining.Amount,
		NightMarginInitial:   f.NightMarginInitial.Amount,
		NightMarginRemaining: f.NightMarginRemaining.Amount,

		State:     string(f.State),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		RetiredAt: f.RetiredAt,
	}
}

func fromFormulaDayModel(m *formulaDayModel) (*formula.FormulaDay, error) {
	fdayID, err := id.ParseFormulaDayID(m.ID)
	if err != nil {
		return nil, err
	}

	money := func(amount int64) types.Money {
		return types.Money{Amount: amount, Currency: m.Currency}
	}

	return &formula.FormulaDay{
		Entity: types.Entity{
			State:     types.Lifecycle(m.State),
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
			RetiredAt: m.RetiredAt,
		},
		ID:       fdayID,
		Kind:     formula.Kind(m.Kind),
		Date:     m.Date.UTC(),
		Starter:  m.Starter,
		MainDish: m.MainDish,
		Dessert:  m.Dessert,
		Price:    money(m.PriceAmount),

		DayQuotaInitial:     m.DayQuotaInitial,
		DayQuotaRemaining:   m.DayQuotaRemaining,
		NightQuotaInitial:   m.NightQuotaInitial,
		NightQuotaRemaining: m.NightQuotaRemaining,

		DayMarginInitial:     money(m.DayMarginInitial),
		DayMarginRemaining:   money(m.DayMarginRemaining),
		NightMarginInitial:   money(m.NightMarginInitial),
		NightMarginRemaining: money(m.NightMarginRemaining),
	}, nil
}

// ==================== Order models ====================

type orderModel struct {
	grove.BaseModel `grove:"table:canteen_orders"`

	ID            string    `grove:"id,pk"`
	RequesterKind string    `grove:"requester_kind"`
	RequesterRef  string    `grove:"requester_ref"`
	FormulaID     string    `grove:"formula_id"`
	Date          time.Time `grove:"date"`
	Period        string    `grove:"period"`
	Quantity      int       `grove:"quantity"`
	Status        string    `grove:"status"`
	Instant       bool      `grove:"instant"`
	ProviderFault bool      `grove:"provider_fault"`

	Currency     string `grove:"currency"`
	MarginAmount int64  `grove:"margin_amount"`

	CancelReason string     `grove:"cancel_reason"`
	CancelActor  string     `grove:"cancel_actor"`
	CancelledAt  *time.Time `grove:"cancelled_at"`
	ConfirmedAt  *time.Time `grove:"confirmed_at"`

	ChargeAmount int64      `grove:"charge_amount"`
	ChargeRate   int        `grove:"charge_rate"`
	ExemptReason string     `grove:"exempt_reason"`
	BilledAt     *time.Time `grove:"billed_at"`

	State     string     `grove:"state"`
	CreatedAt time.Time  `grove:"created_at"`
	UpdatedAt time.Time  `grove:"updated_at"`
	RetiredAt *time.Time `grove:"retired_at"`
}

func toOrderModel(o *order.Order) *orderModel {
	currency := o.MarginAmount.Currency
	if currency == "" {
		currency = o.ChargeAmount.Currency
	}

	return &orderModel{
		ID:            o.ID.String(),
		RequesterKind: string(o.Requester.Kind),
		RequesterRef:  o.Requester.Ref,
		FormulaID:     o.FormulaID.String(),
		Date:          o.Date,
		Period:        string(o.Period),
		Quantity:      o.Quantity,
		Status:        string(o.Status),
		Instant:       o.Instant,
		ProviderFault: o.ProviderFault,

		Currency:     currency,
		MarginAmount: o.MarginAmount.Amount,

		CancelReason: o.CancelReason,
		CancelActor:  string(o.CancelActor),
		CancelledAt:  o.CancelledAt,
		ConfirmedAt:  o.ConfirmedAt,

		ChargeAmount: o.ChargeAmount.Amount,
		ChargeRate:   o.ChargeRate,
		ExemptReason: o.ExemptReason,
		BilledAt:     o.BilledAt,

		State:     string(o.State),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
		RetiredAt: o.RetiredAt,
	}
}

func fromOrderModel(m *orderModel) (*order.Order, error) {
	orderID, err := id.ParseOrderID(m.ID)
	if err != nil {
		return nil, err
	}
	formulaID, err := id.ParseFormulaDayID(m.FormulaID)
	if err != nil {
		return nil, err
	}

	return &order.Order{
		Entity: types.Entity{
			State:     types.Lifecycle(m.State),
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
			RetiredAt: m.RetiredAt,
		},
		ID: orderID,
		Requester: order.Requester{
			Kind: order.RequesterKind(m.RequesterKind),
			Ref:  m.RequesterRef,
		},
		FormulaID:     formulaID,
		Date:          m.Date.UTC(),
		Period:        formula.Period(m.Period),
		Quantity:      m.Quantity,
		Status:        order.Status(m.Status),
		Instant:       m.Instant,
		ProviderFault: m.ProviderFault,

		MarginAmount: types.Money{Amount: m.MarginAmount, Currency: m.Currency},

		CancelReason: m.CancelReason,
		CancelActor:  order.Actor(m.CancelActor),
		CancelledAt:  m.CancelledAt,
		ConfirmedAt:  m.ConfirmedAt,

		ChargeAmount: types.Money{Amount: m.ChargeAmount, Currency: m.Currency},
		ChargeRate:   m.ChargeRate,
		ExemptReason: m.ExemptReason,
		BilledAt:     m.BilledAt,
	}, nil
}

// ==================== Consumption-point models ====================

type proofModel struct {
	grove.BaseModel `grove:"table:canteen_consumption_points"`

	ID         string    `grove:"id,pk"`
	OrderID    string    `grove:"order_id"`
	RedeemedAt time.Time `grove:"redeemed_at"`
	Redeemer   string    `grove:"redeemer"`

	State     string     `grove:"state"`
	CreatedAt time.Time  `grove:"created_at"`
	UpdatedAt time.Time  `grove:"updated_at"`
	RetiredAt *time.Time `grove:"retired_at"`
}

func toProofModel(p *proof.ConsumptionPoint) *proofModel {
	return &proofModel{
		ID:         p.ID.String(),
		OrderID:    p.OrderID.String(),
		RedeemedAt: p.RedeemedAt,
		Redeemer:   p.Redeemer,

		State:     string(p.State),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		RetiredAt: p.RetiredAt,
	}
}

func fromProofModel(m *proofModel) (*proof.ConsumptionPoint, error) {
	proofID, err := id.ParseProofID(m.ID)
	if err != nil {
		return nil, err
	}
	orderID, err := id.ParseOrderID(m.OrderID)
	if err != nil {
		return nil, err
	}

	return &proof.ConsumptionPoint{
		Entity: types.Entity{
			State:     types.Lifecycle(m.State),
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
			RetiredAt: m.RetiredAt,
		},
		ID:         proofID,
		OrderID:    orderID,
		RedeemedAt: m.RedeemedAt.UTC(),
		Redeemer:   m.Redeemer,
	}, nil
}

// ==================== Config models ====================

type configModel struct {
	grove.BaseModel `grove:"table:canteen_config"`

	Key         string    `grove:"key,pk"`
	Value       string    `grove:"value"`
	Description string    `grove:"description"`
	UpdatedAt   time.Time `grove:"updated_at"`
}
