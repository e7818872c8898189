package repository

import (
	"context"
	"fmt"
)

// schema creates the mirror tables. Addresses are stored lowercase.
const schema = `
CREATE TABLE IF NOT EXISTS scheduled_payments (
    id BIGSERIAL PRIMARY KEY,
    contract_address TEXT NOT NULL UNIQUE,
    chain_id BIGINT NOT NULL,
    payer TEXT NOT NULL,
    payee TEXT NOT NULL,
    token_address TEXT NOT NULL DEFAULT '',
    token_symbol TEXT NOT NULL,
    amount NUMERIC(78, 18) NOT NULL,
    release_time TIMESTAMPTZ NOT NULL,
    released BOOLEAN NOT NULL DEFAULT FALSE,
    release_tx_hash TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS recurring_payments (
    id BIGSERIAL PRIMARY KEY,
    contract_address TEXT NOT NULL UNIQUE,
    chain_id BIGINT NOT NULL,
    payer TEXT NOT NULL,
    payee TEXT NOT NULL,
    token_address TEXT NOT NULL DEFAULT '',
    token_symbol TEXT NOT NULL,
    monthly_amount NUMERIC(78, 18) NOT NULL,
    first_payment_at TIMESTAMPTZ NOT NULL,
    total_months INTEGER NOT NULL,
    executed_months INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'active',
    beneficiaries TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS recurring_payment_events (
    id BIGSERIAL PRIMARY KEY,
    contract_address TEXT NOT NULL REFERENCES recurring_payments(contract_address) ON DELETE CASCADE,
    event_type TEXT NOT NULL,
    month_index INTEGER NOT NULL DEFAULT 0,
    amount NUMERIC(78, 18) NOT NULL DEFAULT 0,
    tx_hash TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS payment_links (
    id TEXT PRIMARY KEY,
    creator TEXT NOT NULL,
    payee TEXT NOT NULL,
    token_address TEXT NOT NULL DEFAULT '',
    token_symbol TEXT NOT NULL,
    amount NUMERIC(78, 18) NOT NULL,
    chain_id BIGINT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    signature TEXT NOT NULL,
    expires_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS notifications (
    id BIGSERIAL PRIMARY KEY,
    user_address TEXT NOT NULL,
    kind TEXT NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    contract_address TEXT NOT NULL DEFAULT '',
    read BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_scheduled_payer ON scheduled_payments(payer);
CREATE INDEX IF NOT EXISTS idx_scheduled_payee ON scheduled_payments(payee);
CREATE INDEX IF NOT EXISTS idx_recurring_payer ON recurring_payments(payer);
CREATE INDEX IF NOT EXISTS idx_recurring_payee ON recurring_payments(payee);
CREATE INDEX IF NOT EXISTS idx_recurring_events_contract ON recurring_payment_events(contract_address);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_address);
`

// Migrate creates missing tables and indexes
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
