package repository

import (
	"context"
	"time"

	"briefly60-subscription/internal/domain/model"
)

// SubscriptionRepository is the port for subscription records.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindByTransactionID(ctx context.Context, tx Tx, transactionID string) (*model.Subscription, error)

	// FindActiveByUser returns the user's current entitlement:
	// is_active AND end_date >= now AND payment completed, latest end_date
	// first if more than one abnormally matches.
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Subscription, error)

	// DeactivateOthers flips is_active off for every active subscription of
	// the user except keepID, stamping the cancellation reason. Returns the
	// number of rows touched.
	DeactivateOthers(ctx context.Context, tx Tx, userID, keepID, reason string) (int64, error)

	// ExpireDue bulk-deactivates every active subscription whose end_date has
	// passed. Idempotent; returns the number of rows touched.
	ExpireDue(ctx context.Context, tx Tx, now time.Time) (int64, error)

	// ListExpiring returns active subscriptions ending within the window.
	ListExpiring(ctx context.Context, tx Tx, withinDays int) ([]*model.Subscription, error)

	// ListPendingOlderThan feeds the payment reconciler.
	ListPendingOlderThan(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.Subscription, error)

	// --- Statistics (admin dashboard) ---
	CountByStatus(ctx context.Context, tx Tx) (map[model.SubscriptionStatus]int, error)
	CountActiveByPlan(ctx context.Context, tx Tx) (map[string]int, error)
}
