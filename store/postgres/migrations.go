package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the presale store (PostgreSQL).
var Migrations = migrate.NewGroup("presale")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_presale_accounts",
			Version: "20250601000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS presale_accounts (
    address              TEXT PRIMARY KEY,
    usd_paid             TEXT NOT NULL DEFAULT '0',
    tokens_from_buy      TEXT NOT NULL DEFAULT '0',
    tokens_from_referral TEXT NOT NULL DEFAULT '0',
    tokens_from_bonus    TEXT NOT NULL DEFAULT '0',
    tokens_claimed       TEXT NOT NULL DEFAULT '0',
    referral_count       BIGINT NOT NULL DEFAULT 0,
    referral_usd         TEXT NOT NULL DEFAULT '0',
    referral_code        TEXT NOT NULL DEFAULT '',
    sponsor_code         TEXT NOT NULL DEFAULT '',
    sponsor              TEXT NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_presale_accounts_code ON presale_accounts (referral_code) WHERE referral_code != '';
CREATE INDEX IF NOT EXISTS idx_presale_accounts_created ON presale_accounts (created_at, address);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS presale_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_presale_deposits",
			Version: "20250601000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS presale_deposits (
    id        TEXT PRIMARY KEY,
    account   TEXT NOT NULL,
    payer     TEXT NOT NULL,
    seq       INTEGER NOT NULL,
    currency  TEXT NOT NULL,
    amount    TEXT NOT NULL,
    usd       TEXT NOT NULL,
    tokens    TEXT NOT NULL,
    stage     INTEGER NOT NULL,
    timestamp TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_presale_deposits_seq ON presale_deposits (account, seq);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS presale_deposits`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_presale_withdrawals",
			Version: "20250601000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS presale_withdrawals (
    id        TEXT PRIMARY KEY,
    account   TEXT NOT NULL,
    seq       INTEGER NOT NULL,
    amount    TEXT NOT NULL,
    timestamp TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_presale_withdrawals_seq ON presale_withdrawals (account, seq);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS presale_withdrawals`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_presale_state",
			Version: "20250601000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS presale_state (
    id         INTEGER PRIMARY KEY,
    data       JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS presale_state`)
				return err
			},
		},
	)
}
