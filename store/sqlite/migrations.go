package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Canteen store (SQLite).
var Migrations = migrate.NewGroup("canteen")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_canteen_formula_days",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS canteen_formula_days (
    id                     TEXT PRIMARY KEY,
    kind                   TEXT NOT NULL DEFAULT '',
    date                   TEXT NOT NULL,
    starter                TEXT NOT NULL DEFAULT '',
    main_dish              TEXT NOT NULL DEFAULT '',
    dessert                TEXT NOT NULL DEFAULT '',
    currency               TEXT NOT NULL DEFAULT 'eur',
    price_amount           INTEGER NOT NULL DEFAULT 0,
    day_quota_initial      INTEGER NOT NULL DEFAULT 0,
    day_quota_remaining    INTEGER NOT NULL DEFAULT 0,
    night_quota_initial    INTEGER NOT NULL DEFAULT 0,
    night_quota_remaining  INTEGER NOT NULL DEFAULT 0,
    day_margin_initial     INTEGER NOT NULL DEFAULT 0,
    day_margin_remaining   INTEGER NOT NULL DEFAULT 0,
    night_margin_initial   INTEGER NOT NULL DEFAULT 0,
    night_margin_remaining INTEGER NOT NULL DEFAULT 0,
    state                  TEXT NOT NULL DEFAULT 'active',
    created_at             TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at             TEXT NOT NULL DEFAULT (datetime('now')),
    retired_at             TEXT,
    CONSTRAINT chk_formula_quota CHECK (
        day_quota_remaining >= 0 AND night_quota_remaining >= 0
        AND day_margin_remaining >= 0 AND night_margin_remaining >= 0
    )
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_canteen_fdays_kind_date
    ON canteen_formula_days (kind, date) WHERE state = 'active';
CREATE INDEX IF NOT EXISTS idx_canteen_fdays_date ON canteen_formula_days (date);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS canteen_formula_days`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_canteen_orders",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS canteen_orders (
    id             TEXT PRIMARY KEY,
    requester_kind TEXT NOT NULL DEFAULT '',
    requester_ref  TEXT NOT NULL DEFAULT '',
    formula_id     TEXT NOT NULL DEFAULT '',
    date           TEXT NOT NULL,
    period         TEXT NOT NULL DEFAULT 'day',
    quantity       INTEGER NOT NULL DEFAULT 1,
    status         TEXT NOT NULL DEFAULT 'preorder',
    instant        INTEGER NOT NULL DEFAULT 0,
    provider_fault INTEGER NOT NULL DEFAULT 0,
    currency       TEXT NOT NULL DEFAULT 'eur',
    margin_amount  INTEGER NOT NULL DEFAULT 0,
    cancel_reason  TEXT NOT NULL DEFAULT '',
    cancel_actor   TEXT NOT NULL DEFAULT '',
    cancelled_at   TEXT,
    confirmed_at   TEXT,
    charge_amount  INTEGER NOT NULL DEFAULT 0,
    charge_rate    INTEGER NOT NULL DEFAULT 0,
    exempt_reason  TEXT NOT NULL DEFAULT '',
    billed_at      TEXT,
    state          TEXT NOT NULL DEFAULT 'active',
    created_at     TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at     TEXT NOT NULL DEFAULT (datetime('now')),
    retired_at     TEXT
);

-- One live planned order per requester and date. Instant orders are
-- exempt; the duplicate reconciler collapses those.
CREATE UNIQUE INDEX IF NOT EXISTS idx_canteen_orders_requester_date
    ON canteen_orders (requester_kind, requester_ref, date)
    WHERE state = 'active' AND status != 'cancelled' AND NOT instant;
CREATE INDEX IF NOT EXISTS idx_canteen_orders_date ON canteen_orders (date, status);
CREATE INDEX IF NOT EXISTS idx_canteen_orders_requester ON canteen_orders (requester_kind, requester_ref, date);
CREATE INDEX IF NOT EXISTS idx_canteen_orders_formula ON canteen_orders (formula_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS canteen_orders`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_canteen_consumption_points",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS canteen_consumption_points (
    id          TEXT PRIMARY KEY,
    order_id    TEXT NOT NULL DEFAULT '',
    redeemed_at TEXT NOT NULL DEFAULT (datetime('now')),
    redeemer    TEXT NOT NULL DEFAULT '',
    state       TEXT NOT NULL DEFAULT 'active',
    created_at  TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at  TEXT NOT NULL DEFAULT (datetime('now')),
    retired_at  TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_canteen_proofs_order
    ON canteen_consumption_points (order_id) WHERE state = 'active';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS canteen_consumption_points`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_canteen_config",
			Version: "20260101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS canteen_config (
    key         TEXT PRIMARY KEY,
    value       TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS canteen_config`)
				return err
			},
		},
	)
}
