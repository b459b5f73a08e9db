package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"briefly60-subscription/internal/infra/metrics"
	"briefly60-subscription/internal/usecase"
)

// ExpiryWorker periodically deactivates lapsed subscriptions and queues
// expiry reminder notifications.
type ExpiryWorker struct {
	interval     time.Duration
	reminderDays int
	subUC        *usecase.SubscriptionUseCase
	log          *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, reminderDays int, subUC *usecase.SubscriptionUseCase, logger *zerolog.Logger) *ExpiryWorker {
	compLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval:     interval,
		reminderDays: reminderDays,
		subUC:        subUC,
		log:          &compLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	// Run once on startup, then on every tick
	w.runCheck(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.runCheck(ctx)
		}
	}
}

func (w *ExpiryWorker) runCheck(ctx context.Context) {
	n, err := w.subUC.ExpireDue(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("expiry sweep failed")
	}
	if n > 0 {
		metrics.IncSubscriptionsExpired(int(n))
		w.log.Info().Int64("count", n).Msg("expired subscriptions deactivated")
	}

	queued, err := w.subUC.EnqueueExpiryReminders(ctx, w.reminderDays)
	if err != nil {
		w.log.Error().Err(err).Msg("expiry reminder enqueue failed")
	}
	if queued > 0 {
		w.log.Info().Int("count", queued).Msg("expiry reminders queued")
	}

	if counts, err := w.subUC.CountByStatus(ctx); err == nil {
		metrics.SetSubscriptionsTotal(counts)
	}
}
