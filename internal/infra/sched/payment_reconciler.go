package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"paysession/internal/domain/ports/repository"
	"paysession/internal/usecase"
)

// PaymentReconciler periodically scans for stale pending payments and tries
// to finalize them against the gateway. This covers webhooks that never
// arrived and processes that crashed mid-confirm.
type PaymentReconciler struct {
	confirm    usecase.ConfirmUseCase
	payments   repository.PaymentRepository
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending payment must be to retry
	log        *zerolog.Logger
}

func NewPaymentReconciler(confirm usecase.ConfirmUseCase, payments repository.PaymentRepository, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{
		confirm:    confirm,
		payments:   payments,
		interval:   interval,
		staleAfter: staleAfter,
		log:        &l,
	}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, nil, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending payments")
		return
	}
	for _, p := range pending {
		if p.GatewayRef == "" {
			continue
		}
		res, err := w.confirm.ResolvePayment(ctx, p.ID, p.GatewayRef)
		if err != nil {
			if usecase.ErrIsRetryable(err) {
				continue
			}
			w.log.Warn().Err(err).Str("payment_id", p.ID).Msg("reconcile failed")
			continue
		}
		w.log.Info().Str("payment_id", p.ID).Str("status", string(res.Status)).Msg("payment reconciled")
	}
}
