package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
)

// Schema is the full DDL for the subscription service. EnsureSchema applies
// it idempotently at startup; the partial unique index is the hard backstop
// for the one-active-subscription-per-user invariant.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
  id         UUID PRIMARY KEY,
  email      TEXT NOT NULL UNIQUE,
  name       TEXT NOT NULL,
  role       TEXT NOT NULL DEFAULT 'user',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS plans (
  id              TEXT PRIMARY KEY,
  name            TEXT NOT NULL,
  price           BIGINT NOT NULL,
  original_price  BIGINT NOT NULL,
  currency        TEXT NOT NULL DEFAULT 'BDT',
  duration_months INT NOT NULL,
  features        JSONB NOT NULL DEFAULT '[]',
  popular         BOOLEAN NOT NULL DEFAULT FALSE,
  is_active       BOOLEAN NOT NULL DEFAULT TRUE,
  version         INT NOT NULL DEFAULT 1,
  created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_plans_active_popular ON plans (is_active, popular);

CREATE TABLE IF NOT EXISTS subscriptions (
  id                  UUID PRIMARY KEY,
  user_id             UUID NOT NULL REFERENCES users (id),
  plan_id             TEXT NOT NULL,
  plan_snapshot       JSONB NOT NULL,
  start_date          TIMESTAMPTZ NOT NULL,
  end_date            TIMESTAMPTZ NOT NULL,
  is_active           BOOLEAN NOT NULL DEFAULT FALSE,
  auto_renew          BOOLEAN NOT NULL DEFAULT FALSE,
  cancelled_at        TIMESTAMPTZ,
  cancellation_reason TEXT NOT NULL DEFAULT '',
  gateway             TEXT NOT NULL,
  transaction_id      TEXT NOT NULL UNIQUE,
  amount_paid         BIGINT NOT NULL,
  currency            TEXT NOT NULL,
  payment_status      TEXT NOT NULL,
  val_id              TEXT NOT NULL DEFAULT '',
  card_type           TEXT NOT NULL DEFAULT '',
  card_brand          TEXT NOT NULL DEFAULT '',
  card_issuer         TEXT NOT NULL DEFAULT '',
  bank_tran_id        TEXT NOT NULL DEFAULT '',
  store_amount        BIGINT NOT NULL DEFAULT 0,
  payment_date        TIMESTAMPTZ,
  error_message       TEXT NOT NULL DEFAULT '',
  created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_subscriptions_one_active
  ON subscriptions (user_id) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_subscriptions_user ON subscriptions (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_subscriptions_pending ON subscriptions (payment_status, created_at);
CREATE INDEX IF NOT EXISTS idx_subscriptions_expiry ON subscriptions (end_date) WHERE is_active;

CREATE TABLE IF NOT EXISTS notification_outbox (
  id              TEXT PRIMARY KEY,
  kind            TEXT NOT NULL,
  user_id         UUID NOT NULL,
  subscription_id UUID NOT NULL,
  payload         JSONB NOT NULL DEFAULT '{}',
  attempts        INT NOT NULL DEFAULT 0,
  created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  sent_at         TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_outbox_subscription_kind
  ON notification_outbox (subscription_id, kind);
CREATE INDEX IF NOT EXISTS idx_outbox_unsent ON notification_outbox (created_at) WHERE sent_at IS NULL;
`

// EnsureSchema applies the DDL. Safe to run on every startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}
