package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"briefly60-subscription/internal/domain"
	"briefly60-subscription/internal/domain/model"
	"briefly60-subscription/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subColumns = `id, user_id, plan_id, plan_snapshot, start_date, end_date, is_active, auto_renew,
cancelled_at, cancellation_reason, gateway, transaction_id, amount_paid, currency, payment_status,
val_id, card_type, card_brand, card_issuer, bank_tran_id, store_amount, payment_date, error_message,
created_at, updated_at`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, user_id, plan_id, plan_snapshot, start_date, end_date, is_active, auto_renew,
  cancelled_at, cancellation_reason, gateway, transaction_id, amount_paid, currency, payment_status,
  val_id, card_type, card_brand, card_issuer, bank_tran_id, store_amount, payment_date, error_message,
  created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
ON CONFLICT (id) DO UPDATE SET
  start_date=$5, end_date=$6, is_active=$7, auto_renew=$8,
  cancelled_at=$9, cancellation_reason=$10, payment_status=$15,
  val_id=$16, card_type=$17, card_brand=$18, card_issuer=$19,
  bank_tran_id=$20, store_amount=$21, payment_date=$22, error_message=$23,
  updated_at=$25;`

	snapshot, err := json.Marshal(s.Plan)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	if _, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.PlanID, snapshot, s.StartDate, s.EndDate, s.IsActive, s.AutoRenew,
		s.CancelledAt, s.CancellationReason, s.Payment.Gateway, s.Payment.TransactionID,
		s.Payment.AmountPaid, s.Payment.Currency, string(s.Payment.Status),
		s.Payment.ValID, s.Payment.CardType, s.Payment.CardBrand, s.Payment.CardIssuer,
		s.Payment.BankTranID, s.Payment.StoreAmount, s.Payment.PaymentDate, s.Payment.ErrorMessage,
		s.CreatedAt, s.UpdatedAt,
	); err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				// transaction id or one-active-per-user uniqueness violated
				return domain.ErrAlreadyExists
			}
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	const q = `SELECT ` + subColumns + ` FROM subscriptions WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *subscriptionRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, transactionID string) (*model.Subscription, error) {
	const q = `SELECT ` + subColumns + ` FROM subscriptions WHERE transaction_id=$1;`
	return r.queryOne(ctx, tx, q, transactionID)
}

func (r *subscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	const q = `
SELECT ` + subColumns + `
  FROM subscriptions
 WHERE user_id=$1 AND is_active AND end_date >= now() AND payment_status='completed'
 ORDER BY end_date DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, userID)
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	const q = `SELECT ` + subColumns + ` FROM subscriptions WHERE user_id=$1 ORDER BY created_at DESC;`
	return r.queryMany(ctx, tx, q, userID)
}

func (r *subscriptionRepo) DeactivateOthers(ctx context.Context, tx repository.Tx, userID, keepID, reason string) (int64, error) {
	const q = `
UPDATE subscriptions
   SET is_active=FALSE, cancelled_at=now(), cancellation_reason=$3, updated_at=now()
 WHERE user_id=$1 AND is_active AND id <> $2;`
	tag, err := execSQL(ctx, r.pool, tx, q, userID, keepID, reason)
	if err != nil {
		return 0, domain.ErrOperationFailed
	}
	return tag.RowsAffected(), nil
}

func (r *subscriptionRepo) ExpireDue(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	const q = `
UPDATE subscriptions
   SET is_active=FALSE, cancelled_at=$1, cancellation_reason='Subscription expired', updated_at=$1
 WHERE is_active AND end_date < $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		return 0, domain.ErrOperationFailed
	}
	return tag.RowsAffected(), nil
}

func (r *subscriptionRepo) ListExpiring(ctx context.Context, tx repository.Tx, withinDays int) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subColumns + `
  FROM subscriptions
 WHERE is_active AND payment_status='completed'
   AND end_date > now()
   AND end_date <= now() + ($1::int * INTERVAL '1 day')
 ORDER BY end_date ASC;`
	return r.queryMany(ctx, tx, q, withinDays)
}

func (r *subscriptionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subColumns + `
  FROM subscriptions
 WHERE payment_status='pending' AND created_at < $1
 ORDER BY created_at ASC
 LIMIT $2;`
	return r.queryMany(ctx, tx, q, cutoff, limit)
}

func (r *subscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	const q = `
SELECT CASE
         WHEN payment_status='pending' THEN 'pending'
         WHEN payment_status='failed' THEN 'failed'
         WHEN payment_status IN ('cancelled','refunded') THEN 'cancelled'
         WHEN is_active AND end_date >= now() THEN 'active'
         WHEN NOT is_active AND cancellation_reason NOT IN ('', 'Subscription expired') AND end_date >= now() THEN 'cancelled'
         ELSE 'expired'
       END AS status, COUNT(*)
  FROM subscriptions
 GROUP BY 1;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	counts := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		counts[model.SubscriptionStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return counts, nil
}

func (r *subscriptionRepo) CountActiveByPlan(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	const q = `
SELECT plan_id, COUNT(*)
  FROM subscriptions
 WHERE is_active AND end_date >= now() AND payment_status='completed'
 GROUP BY plan_id;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	m := make(map[string]int)
	for rows.Next() {
		var planID string
		var c int
		if err := rows.Scan(&planID, &c); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		m[planID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return m, nil
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	return scanSub(row)
}

func (r *subscriptionRepo) queryMany(ctx context.Context, tx repository.Tx, sql string, args ...any) ([]*model.Subscription, error) {
	rows, err := queryRows(ctx, r.pool, tx, sql, args...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()
	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSub(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanSub(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	var snapshot []byte
	var status string
	if err := row.Scan(
		&s.ID, &s.UserID, &s.PlanID, &snapshot, &s.StartDate, &s.EndDate, &s.IsActive, &s.AutoRenew,
		&s.CancelledAt, &s.CancellationReason, &s.Payment.Gateway, &s.Payment.TransactionID,
		&s.Payment.AmountPaid, &s.Payment.Currency, &status,
		&s.Payment.ValID, &s.Payment.CardType, &s.Payment.CardBrand, &s.Payment.CardIssuer,
		&s.Payment.BankTranID, &s.Payment.StoreAmount, &s.Payment.PaymentDate, &s.Payment.ErrorMessage,
		&s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.Payment.Status = model.PaymentStatus(status)
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &s.Plan); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return s, nil
}
