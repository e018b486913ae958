package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL,
		username      TEXT,
		name          TEXT NOT NULL DEFAULT '',
		avatar        TEXT NOT NULL DEFAULT '',
		role          TEXT NOT NULL DEFAULT 'user',
		provider      TEXT NOT NULL DEFAULT 'credentials',
		password_hash TEXT NOT NULL DEFAULT '',
		session_token TEXT NOT NULL DEFAULT '',
		refresh_token TEXT NOT NULL DEFAULT '',
		with_social   BOOLEAN NOT NULL DEFAULT FALSE,
		ip            TEXT NOT NULL DEFAULT '',
		options       JSONB NOT NULL DEFAULT '{}'::jsonb,
		licenses      TEXT[] NOT NULL DEFAULT '{}',
		records       TEXT[] NOT NULL DEFAULT '{}',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS accounts_email_key ON accounts (email)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS accounts_username_key ON accounts (username) WHERE username IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS accounts_session_token_key ON accounts (session_token) WHERE session_token <> ''`,
	`CREATE INDEX IF NOT EXISTS accounts_refresh_token_idx ON accounts (refresh_token)`,
	`CREATE INDEX IF NOT EXISTS accounts_ip_idx ON accounts (ip)`,

	`CREATE TABLE IF NOT EXISTS licenses (
		id                    TEXT PRIMARY KEY,
		account_id            TEXT NOT NULL,
		product_id            TEXT NOT NULL DEFAULT '',
		status                TEXT NOT NULL,
		modify_date_activated TEXT NOT NULL DEFAULT '',
		activation_days       INTEGER NOT NULL DEFAULT 0,
		expires_at            TEXT,
		current_plan          TEXT NOT NULL DEFAULT '',
		current_price         TEXT NOT NULL DEFAULT '',
		plan_history          TEXT[] NOT NULL DEFAULT '{}',
		tool_name             TEXT NOT NULL,
		category              TEXT NOT NULL,
		payment_method        TEXT NOT NULL,
		note                  TEXT NOT NULL DEFAULT '',
		options               JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS licenses_account_idx ON licenses (account_id)`,
	`CREATE INDEX IF NOT EXISTS licenses_status_idx ON licenses (status)`,

	`CREATE TABLE IF NOT EXISTS financial_records (
		id              TEXT PRIMARY KEY,
		account_id      TEXT NOT NULL,
		date            TEXT NOT NULL,
		updated_date    TEXT NOT NULL DEFAULT '',
		amount          DOUBLE PRECISION NOT NULL,
		original_amount DOUBLE PRECISION,
		currency        TEXT NOT NULL DEFAULT '',
		category        TEXT NOT NULL,
		child_category  TEXT NOT NULL DEFAULT '',
		payment_method  TEXT NOT NULL,
		note            TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS financial_records_account_idx ON financial_records (account_id)`,
}

// Migrate applies the bootstrap schema. Statements are idempotent so the
// function is safe to run on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}
