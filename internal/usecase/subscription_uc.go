package usecase

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"briefly60-subscription/internal/domain"
	"briefly60-subscription/internal/domain/model"
	"briefly60-subscription/internal/domain/ports/adapter"
	"briefly60-subscription/internal/domain/ports/repository"
)

const (
	reasonSuperseded    = "New subscription activated"
	reasonExpired       = "Subscription expired"
	reasonUserRequested = "User requested cancellation"
)

// SubscriptionUseCase owns the subscription lifecycle:
// pending -> active -> expired/cancelled, plus the failed branch.
type SubscriptionUseCase struct {
	subs   repository.SubscriptionRepository
	plans  repository.PlanRepository
	outbox repository.OutboxRepository
	tm     repository.TransactionManager
	log    *zerolog.Logger
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	outbox repository.OutboxRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *SubscriptionUseCase {
	l := logger.With().Str("component", "SubscriptionUC").Logger()
	return &SubscriptionUseCase{subs: subs, plans: plans, outbox: outbox, tm: tm, log: &l}
}

func hashToInt64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64() & ((1 << 63) - 1))
}

// lockUser takes the per-user advisory xact lock when the handle is a real
// pgx transaction. In-memory test transactions skip it.
func lockUser(ctx context.Context, tx repository.Tx, userID string) error {
	px, ok := tx.(pgx.Tx)
	if !ok {
		return nil
	}
	_, err := px.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", hashToInt64(userID))
	return err
}

// CreatePending snapshots the plan terms into a new inactive subscription.
// The plan must exist and be active; nothing else is touched.
func (uc *SubscriptionUseCase) CreatePending(ctx context.Context, userID, planID, transactionID string, amount int64, autoRenew bool) (*model.Subscription, error) {
	plan, err := uc.plans.FindActiveByID(ctx, repository.NoTX, planID)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, domain.ErrPlanInactive
		}
		return nil, err
	}

	sub, err := model.NewPendingSubscription(uuid.NewString(), userID, plan, transactionID, amount, autoRenew)
	if err != nil {
		return nil, err
	}
	if err := uc.subs.Save(ctx, repository.NoTX, sub); err != nil {
		return nil, err
	}
	uc.log.Info().Str("subscription_id", sub.ID).Str("user_id", userID).
		Str("plan_id", planID).Str("transaction_id", transactionID).
		Msg("pending subscription created")
	return sub, nil
}

// Complete transitions the record behind a verified payment to active,
// superseding any other active subscription of the same user in the same
// transaction. Completing an already-completed record is a no-op; completing
// a record in a terminal payment state is rejected.
func (uc *SubscriptionUseCase) Complete(ctx context.Context, transactionID string, data *adapter.ValidationResult) (*model.Subscription, error) {
	var out *model.Subscription
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.FindByTransactionID(ctx, tx, transactionID)
		if err != nil {
			// a callback naming an unknown transaction means tampering or a
			// lost record; this is a hard error, not expected absence
			return err
		}
		if err := lockUser(ctx, tx, sub.UserID); err != nil {
			return err
		}
		// re-read under the lock; a concurrent callback may have settled the
		// record while we waited
		sub, err = uc.subs.FindByTransactionID(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if sub.Payment.Status == model.PaymentStatusCompleted {
			out = sub
			return nil
		}
		if sub.Payment.Status.Terminal() {
			return domain.ErrTransactionFinalized
		}

		if _, err := uc.subs.DeactivateOthers(ctx, tx, sub.UserID, sub.ID, reasonSuperseded); err != nil {
			return err
		}

		now := time.Now()
		sub.Payment.Status = model.PaymentStatusCompleted
		sub.Payment.ValID = data.ValID
		sub.Payment.CardType = data.CardType
		sub.Payment.CardBrand = data.CardBrand
		sub.Payment.CardIssuer = data.CardIssuer
		sub.Payment.BankTranID = data.BankTranID
		sub.Payment.StoreAmount = data.StoreAmount
		if !data.PaidAt.IsZero() {
			paid := data.PaidAt
			sub.Payment.PaymentDate = &paid
		} else {
			sub.Payment.PaymentDate = &now
		}
		sub.IsActive = true
		sub.UpdatedAt = now
		if err := uc.subs.Save(ctx, tx, sub); err != nil {
			return err
		}

		ev := &model.OutboxEvent{
			ID:             ulid.Make().String(),
			Kind:           model.NotificationKindConfirmation,
			UserID:         sub.UserID,
			SubscriptionID: sub.ID,
			Payload: map[string]any{
				"plan_id":        sub.Plan.PlanID,
				"plan_name":      sub.Plan.Name,
				"amount":         sub.Payment.AmountPaid,
				"currency":       sub.Payment.Currency,
				"start_date":     sub.StartDate,
				"end_date":       sub.EndDate,
				"transaction_id": sub.Payment.TransactionID,
			},
			CreatedAt: now,
		}
		if err := uc.outbox.Enqueue(ctx, tx, ev); err != nil {
			return err
		}

		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("subscription_id", out.ID).Str("transaction_id", transactionID).
		Msg("subscription completed")
	return out, nil
}

// Fail marks the record behind the transaction as failed. Idempotent: a
// record that is already failed stays failed. Runs in one transaction under
// the user lock so a late fail callback cannot clobber a completion that
// committed after our first read.
func (uc *SubscriptionUseCase) Fail(ctx context.Context, transactionID, errorMessage string) error {
	if errorMessage == "" {
		errorMessage = "Payment failed"
	}
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.FindByTransactionID(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if err := lockUser(ctx, tx, sub.UserID); err != nil {
			return err
		}
		sub, err = uc.subs.FindByTransactionID(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if sub.Payment.Status == model.PaymentStatusFailed {
			return nil
		}
		if sub.Payment.Status == model.PaymentStatusCompleted {
			// a confirmed payment never regresses to failed
			return domain.ErrTransactionFinalized
		}
		sub.Payment.Status = model.PaymentStatusFailed
		sub.Payment.ErrorMessage = errorMessage
		sub.IsActive = false
		sub.UpdatedAt = time.Now()
		return uc.subs.Save(ctx, tx, sub)
	})
	if err != nil {
		return err
	}
	uc.log.Info().Str("transaction_id", transactionID).Str("reason", errorMessage).
		Msg("subscription failed")
	return nil
}

// Cancel deactivates a subscription at the user's request. Not-found is a
// plain false, not an error. Takes the same user lock as Complete and Fail
// so the write applies to the current row, not a stale read.
func (uc *SubscriptionUseCase) Cancel(ctx context.Context, subscriptionID, reason string) (bool, error) {
	if reason == "" {
		reason = reasonUserRequested
	}
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.FindByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if err := lockUser(ctx, tx, sub.UserID); err != nil {
			return err
		}
		sub, err = uc.subs.FindByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		now := time.Now()
		sub.IsActive = false
		sub.CancelledAt = &now
		sub.CancellationReason = reason
		sub.Payment.Status = model.PaymentStatusCancelled
		sub.UpdatedAt = now
		return uc.subs.Save(ctx, tx, sub)
	})
	if err != nil {
		if err == domain.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	uc.log.Info().Str("subscription_id", subscriptionID).Str("reason", reason).
		Msg("subscription cancelled")
	return true, nil
}

// CancelActive cancels the caller's current active subscription. Returns
// false when there is nothing to cancel.
func (uc *SubscriptionUseCase) CancelActive(ctx context.Context, userID string) (bool, error) {
	sub, err := uc.GetActive(ctx, userID)
	if err != nil {
		if err == domain.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return uc.Cancel(ctx, sub.ID, reasonUserRequested)
}

// GetActive returns the user's current entitlement or ErrNotFound.
func (uc *SubscriptionUseCase) GetActive(ctx context.Context, userID string) (*model.Subscription, error) {
	return uc.subs.FindActiveByUser(ctx, repository.NoTX, userID)
}

// HasPremiumAccess reports whether the user currently holds an active,
// paid, unexpired subscription.
func (uc *SubscriptionUseCase) HasPremiumAccess(ctx context.Context, userID string) (bool, error) {
	_, err := uc.GetActive(ctx, userID)
	if err == domain.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Status is the read projection combining the active subscription with the
// computed days remaining.
func (uc *SubscriptionUseCase) Status(ctx context.Context, userID string) (*model.StatusView, error) {
	sub, err := uc.GetActive(ctx, userID)
	if err == domain.ErrNotFound {
		return &model.StatusView{HasActiveSubscription: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &model.StatusView{
		HasActiveSubscription: true,
		Subscription: &model.StatusViewEntry{
			ID:            sub.ID,
			Plan:          sub.Plan.PlanID,
			PlanName:      sub.Plan.Name,
			StartDate:     sub.StartDate,
			EndDate:       sub.EndDate,
			IsActive:      sub.IsActive,
			AutoRenew:     sub.AutoRenew,
			DaysRemaining: model.DaysRemaining(sub.EndDate, time.Now()),
			PaymentStatus: sub.Payment.Status,
			Amount:        sub.Payment.AmountPaid,
		},
	}, nil
}

// ListByUser returns the user's full subscription history, newest first.
func (uc *SubscriptionUseCase) ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error) {
	return uc.subs.ListByUser(ctx, repository.NoTX, userID)
}

// ExpireDue bulk-expires every active subscription whose end date has
// passed. Safe under duplicate or concurrent invocation; a second run finds
// nothing left.
func (uc *SubscriptionUseCase) ExpireDue(ctx context.Context) (int64, error) {
	n, err := uc.subs.ExpireDue(ctx, repository.NoTX, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		uc.log.Info().Int64("count", n).Msg("subscriptions expired")
	}
	return n, nil
}

// EnqueueExpiryReminders queues one reminder per subscription ending within
// the window. The (subscription, kind) pair is deduplicated so repeated
// sweeps do not re-send.
func (uc *SubscriptionUseCase) EnqueueExpiryReminders(ctx context.Context, withinDays int) (int, error) {
	expiring, err := uc.subs.ListExpiring(ctx, repository.NoTX, withinDays)
	if err != nil {
		if err == domain.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	queued := 0
	for _, sub := range expiring {
		exists, err := uc.outbox.Exists(ctx, repository.NoTX, sub.ID, model.NotificationKindExpiryReminder)
		if err != nil {
			return queued, err
		}
		if exists {
			continue
		}
		ev := &model.OutboxEvent{
			ID:             ulid.Make().String(),
			Kind:           model.NotificationKindExpiryReminder,
			UserID:         sub.UserID,
			SubscriptionID: sub.ID,
			Payload: map[string]any{
				"plan_name": sub.Plan.Name,
				"end_date":  sub.EndDate,
			},
			CreatedAt: time.Now(),
		}
		if err := uc.outbox.Enqueue(ctx, repository.NoTX, ev); err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}

// CountByStatus exposes record counts for the admin dashboard and gauges.
func (uc *SubscriptionUseCase) CountByStatus(ctx context.Context) (map[model.SubscriptionStatus]int, error) {
	return uc.subs.CountByStatus(ctx, repository.NoTX)
}

// CountActiveByPlan exposes per-plan active counts.
func (uc *SubscriptionUseCase) CountActiveByPlan(ctx context.Context) (map[string]int, error) {
	return uc.subs.CountActiveByPlan(ctx, repository.NoTX)
}
