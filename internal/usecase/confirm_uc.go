// File: internal/usecase/confirm_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"paysession/internal/domain"
	"paysession/internal/domain/model"
	"paysession/internal/domain/ports/adapter"
	"paysession/internal/domain/ports/repository"
	"paysession/internal/infra/logging"
	"paysession/internal/infra/metrics"
)

// Compile-time check
var _ ConfirmUseCase = (*confirmUC)(nil)

// WebhookEvent is the untrusted payload the processor (or anyone holding
// the URL) posts to us. Authentication happens before this ever reaches the
// use case; the amounts and statuses in here are still double-checked
// against the gateway's own lookup when possible.
type WebhookEvent struct {
	OrderID          string
	GatewayPaymentID string
	Amount           int64
	Status           model.PaymentStatus
	Method           string
}

type ConfirmUseCase interface {
	// ConfirmFromWebhook applies an inbound confirmation. Idempotent:
	// replays of a terminal status are no-ops.
	ConfirmFromWebhook(ctx context.Context, ev WebhookEvent) (*model.Payment, error)
	// ResolvePayment polls the gateway until the payment settles, for a
	// bounded number of attempts. Still pending afterwards ->
	// domain.ErrPaymentNotConfirmed, which callers treat as retryable.
	ResolvePayment(ctx context.Context, paymentID, gatewayRef string) (*model.Payment, error)
}

type confirmUC struct {
	orders       repository.OrderRepository
	payments     repository.PaymentRepository
	gateway      adapter.PaymentGateway
	tm           repository.TransactionManager
	pollAttempts int
	pollInterval time.Duration
	log          *zerolog.Logger
}

func NewConfirmUseCase(
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	pollAttempts int,
	pollInterval time.Duration,
	logger *zerolog.Logger,
) *confirmUC {
	if pollAttempts <= 0 {
		pollAttempts = 5
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	l := logger.With().Str("component", "ConfirmUC").Logger()
	return &confirmUC{
		orders:       orders,
		payments:     payments,
		gateway:      gateway,
		tm:           tm,
		pollAttempts: pollAttempts,
		pollInterval: pollInterval,
		log:          &l,
	}
}

func (u *confirmUC) ConfirmFromWebhook(ctx context.Context, ev WebhookEvent) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "ConfirmUC.ConfirmFromWebhook")()
	if ev.OrderID == "" {
		return nil, domain.ErrInvalidArgument
	}
	ctx = logging.WithOrderID(ctx, ev.OrderID)
	log := logging.With(ctx, u.log)

	p, err := u.payments.FindByOrderID(ctx, nil, ev.OrderID)
	if errors.Is(err, domain.ErrNotFound) && ev.GatewayPaymentID != "" {
		// Some processors redeliver under their own reference; the canonical
		// gateway ref still locates the payment.
		p, err = u.payments.FindByGatewayRef(ctx, nil, ev.GatewayPaymentID)
	}
	if err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		// Replay of an already-settled confirmation.
		metrics.IncWebhookReplay()
		return p, nil
	}

	// The caller's self-reported fields are a hint; the gateway's own lookup
	// wins whenever it answers.
	res := &model.GatewayResult{Status: ev.Status, Amount: ev.Amount, Method: ev.Method}
	if ev.GatewayPaymentID != "" {
		if gw, err := u.gateway.GetPaymentStatus(ctx, ev.GatewayPaymentID); err == nil {
			res = gw
		} else {
			log.Warn().Err(err).Str("gateway_ref", ev.GatewayPaymentID).Msg("gateway lookup failed; using webhook-reported fields")
		}
	}

	return u.applyGatewayResult(ctx, p, ev.GatewayPaymentID, res)
}

func (u *confirmUC) ResolvePayment(ctx context.Context, paymentID, gatewayRef string) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "ConfirmUC.ResolvePayment")()
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		return p, nil
	}

	// Persist the canonical reference on first use so the reconciler and any
	// later poll can find the payment at the processor without the caller.
	ref := p.GatewayRef
	if gatewayRef != "" && gatewayRef != p.GatewayRef {
		if err := u.payments.SetGatewayRef(ctx, nil, p.ID, gatewayRef); err != nil {
			return nil, err
		}
		p.GatewayRef = gatewayRef
		ref = gatewayRef
	}
	if ref == "" {
		return nil, domain.ErrInvalidArgument
	}

	for attempt := 1; attempt <= u.pollAttempts; attempt++ {
		res, err := u.gateway.GetPaymentStatus(ctx, ref)
		if err == nil && res.Status.Terminal() {
			metrics.ObservePollAttempts(attempt)
			return u.applyGatewayResult(ctx, p, ref, res)
		}
		if err != nil {
			u.log.Warn().Err(err).Int("attempt", attempt).Str("gateway_ref", ref).Msg("gateway poll failed")
		}
		if attempt == u.pollAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(u.pollInterval):
		}
	}
	metrics.ObservePollAttempts(u.pollAttempts)
	return nil, domain.ErrPaymentNotConfirmed
}

// applyGatewayResult is the single transition both entry points share. It is
// a conditional state advance: only a pending pair moves, and both rows move
// in the same transaction. Two concurrent callers race on the conditional
// UPDATE, not on a lock; the loser affects zero rows and re-reads the
// winner's terminal state.
func (u *confirmUC) applyGatewayResult(ctx context.Context, p *model.Payment, gatewayRef string, res *model.GatewayResult) (*model.Payment, error) {
	if !res.Status.Terminal() {
		return nil, domain.ErrPaymentNotConfirmed
	}

	target := res.Status
	var mismatch bool
	var out *model.Payment

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		o, err := u.orders.FindByID(ctx, tx, p.OrderID)
		if err != nil {
			return err
		}
		// A confirmed amount that disagrees with the order forces the pair
		// FAILED; we never adopt the gateway's number.
		if target == model.PaymentStatusCompleted && res.Amount != o.Amount {
			target = model.PaymentStatusFailed
			mismatch = true
		}

		var method *string
		if res.Method != "" {
			method = &res.Method
		}
		var paidAt *time.Time
		if target == model.PaymentStatusCompleted {
			if res.PaidAt != nil {
				paidAt = res.PaidAt
			} else {
				now := time.Now()
				paidAt = &now
			}
		}

		advanced, err := u.payments.UpdateStatusIfPending(ctx, tx, p.ID, target, method, paidAt)
		if err != nil {
			return err
		}
		if !advanced {
			// Another path already settled this pair; nothing to do.
			return nil
		}
		if gatewayRef != "" && gatewayRef != p.GatewayRef {
			if err := u.payments.SetGatewayRef(ctx, tx, p.ID, gatewayRef); err != nil {
				return err
			}
		}
		if _, err := u.orders.UpdateStatusIfPending(ctx, tx, o.ID, model.PaidStatusFor(target)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out, err = u.payments.FindByID(ctx, nil, p.ID)
	if err != nil {
		return nil, err
	}
	metrics.IncPaymentTransition(string(out.Status))
	if out.Status == model.PaymentStatusCompleted {
		metrics.AddPaymentRevenue(out.Amount)
	}
	if mismatch {
		logging.With(ctx, u.log).Warn().Str("payment_id", p.ID).Int64("reported", res.Amount).Msg("amount mismatch; pair forced failed")
		return out, domain.ErrAmountMismatch
	}
	return out, nil
}

// ErrIsRetryable reports whether a confirmation error means "try again
// later" rather than "give up".
func ErrIsRetryable(err error) bool {
	return errors.Is(err, domain.ErrPaymentNotConfirmed)
}
