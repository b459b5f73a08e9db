package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"briefly60-subscription/internal/domain"
	"briefly60-subscription/internal/domain/model"
	"briefly60-subscription/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.OutboxRepository = (*outboxRepo)(nil)

type outboxRepo struct {
	pool *pgxpool.Pool
}

func NewOutboxRepo(pool *pgxpool.Pool) *outboxRepo {
	return &outboxRepo{pool: pool}
}

const outboxColumns = `id, kind, user_id, subscription_id, payload, attempts, created_at, sent_at`

// Enqueue inserts an event. A second event for the same (subscription, kind)
// pair is silently dropped; callers rely on that for at-most-once intents.
func (r *outboxRepo) Enqueue(ctx context.Context, tx repository.Tx, ev *model.OutboxEvent) error {
	const q = `
INSERT INTO notification_outbox (id, kind, user_id, subscription_id, payload, attempts, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (subscription_id, kind) DO NOTHING;`

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	if _, err := execSQL(ctx, r.pool, tx, q,
		ev.ID, string(ev.Kind), ev.UserID, ev.SubscriptionID, payload, ev.Attempts, ev.CreatedAt,
	); err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *outboxRepo) ListUnsent(ctx context.Context, tx repository.Tx, limit int) ([]*model.OutboxEvent, error) {
	const q = `
SELECT ` + outboxColumns + `
  FROM notification_outbox
 WHERE sent_at IS NULL
 ORDER BY created_at ASC
 LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()
	var out []*model.OutboxEvent
	for rows.Next() {
		ev, err := scanOutbox(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *outboxRepo) MarkSent(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	const q = `UPDATE notification_outbox SET sent_at=$2 WHERE id=$1;`
	if _, err := execSQL(ctx, r.pool, tx, q, id, at); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *outboxRepo) IncAttempts(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE notification_outbox SET attempts = attempts + 1 WHERE id=$1;`
	if _, err := execSQL(ctx, r.pool, tx, q, id); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *outboxRepo) Exists(ctx context.Context, tx repository.Tx, subscriptionID string, kind model.NotificationKind) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM notification_outbox WHERE subscription_id=$1 AND kind=$2);`
	row, err := pickRow(ctx, r.pool, tx, q, subscriptionID, string(kind))
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func scanOutbox(row pgx.Row) (*model.OutboxEvent, error) {
	ev := &model.OutboxEvent{}
	var kind string
	var payload []byte
	if err := row.Scan(&ev.ID, &kind, &ev.UserID, &ev.SubscriptionID, &payload,
		&ev.Attempts, &ev.CreatedAt, &ev.SentAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	ev.Kind = model.NotificationKind(kind)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &ev.Payload); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return ev, nil
}
