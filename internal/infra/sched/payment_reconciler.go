package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"briefly60-subscription/internal/usecase"
)

const reconcileBatchSize = 200

// PaymentReconciler periodically scans for stale pending checkouts and asks
// the gateway for their real outcome. This covers the cases where the
// browser never came back or the process crashed mid-confirm.
type PaymentReconciler struct {
	uc         *usecase.PaymentUseCase
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending checkout must be to retry
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc *usecase.PaymentUseCase, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	compLog := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{uc: uc, interval: interval, staleAfter: staleAfter, log: &compLog}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			n, err := w.uc.ReconcilePending(ctx, w.staleAfter, reconcileBatchSize)
			if err != nil {
				w.log.Error().Err(err).Msg("reconcile sweep failed")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("pending checkouts reconciled")
			}
		}
	}
}
