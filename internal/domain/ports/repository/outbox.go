package repository

import (
	"context"
	"time"

	"briefly60-subscription/internal/domain/model"
)

// OutboxRepository persists pending notifications. Enqueue is called inside
// the transaction that performs the state change being announced.
type OutboxRepository interface {
	// Enqueue inserts the event; a duplicate (subscription_id, kind) pair is
	// silently ignored so that retried completions do not double-send.
	Enqueue(ctx context.Context, tx Tx, ev *model.OutboxEvent) error
	ListUnsent(ctx context.Context, tx Tx, limit int) ([]*model.OutboxEvent, error)
	MarkSent(ctx context.Context, tx Tx, id string, at time.Time) error
	IncAttempts(ctx context.Context, tx Tx, id string) error
	Exists(ctx context.Context, tx Tx, subscriptionID string, kind model.NotificationKind) (bool, error)
}
