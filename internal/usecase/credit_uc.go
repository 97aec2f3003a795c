// File: internal/usecase/credit_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"paysession/internal/domain"
	"paysession/internal/domain/model"
	"paysession/internal/domain/ports/repository"
	"paysession/internal/infra/logging"
	"paysession/internal/infra/metrics"
)

var _ CreditUseCase = (*creditUC)(nil)

type PurchaseCreditInput struct {
	UserID          string
	Minutes         int
	PaymentID       string
	GatewayRef      string
	ActiveSessionID string // optional: extend this session's budget in the same transaction
}

type CreditBalance struct {
	Day              time.Time
	FreeUsed         bool
	PurchasedMinutes int
	AvailableSeconds int
}

type CreditUseCase interface {
	// BalanceToday reports the caller's current-day ledger row. A user with
	// no row yet has the full free allowance available.
	BalanceToday(ctx context.Context, userID string) (*CreditBalance, error)
	IsFreeAllowanceUsedToday(ctx context.Context, userID string) (bool, error)
	// PurchaseCredit settles the payment, records the minutes under today's
	// ledger, and when ActiveSessionID is set also tops up that session's
	// budget atomically with the ledger write.
	PurchaseCredit(ctx context.Context, in PurchaseCreditInput) (*CreditBalance, error)
}

type creditUC struct {
	credits  repository.TimeCreditRepository
	sessions repository.SessionRepository
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	confirm  ConfirmUseCase
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewCreditUseCase(
	credits repository.TimeCreditRepository,
	sessions repository.SessionRepository,
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	confirm ConfirmUseCase,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *creditUC {
	l := logger.With().Str("component", "CreditUC").Logger()
	return &creditUC{
		credits:  credits,
		sessions: sessions,
		orders:   orders,
		payments: payments,
		confirm:  confirm,
		tm:       tm,
		log:      &l,
	}
}

func (u *creditUC) BalanceToday(ctx context.Context, userID string) (*CreditBalance, error) {
	now := time.Now()
	tc, err := u.credits.Find(ctx, nil, userID, now)
	if err != nil {
		if err == domain.ErrNotFound {
			return &CreditBalance{
				Day:              model.CreditDay(now),
				AvailableSeconds: model.FreeAllowanceSeconds,
			}, nil
		}
		return nil, err
	}
	return &CreditBalance{
		Day:              tc.Day,
		FreeUsed:         tc.FreeUsed,
		PurchasedMinutes: tc.PurchasedMinutes,
		AvailableSeconds: tc.AvailableSeconds(),
	}, nil
}

func (u *creditUC) IsFreeAllowanceUsedToday(ctx context.Context, userID string) (bool, error) {
	tc, err := u.credits.Find(ctx, nil, userID, time.Now())
	if err != nil {
		if err == domain.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return tc.FreeUsed, nil
}

func (u *creditUC) PurchaseCredit(ctx context.Context, in PurchaseCreditInput) (*CreditBalance, error) {
	defer logging.TraceDuration(u.log, "CreditUC.PurchaseCredit")()
	if in.UserID == "" || in.PaymentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if !model.SellableMinutes[in.Minutes] {
		return nil, domain.ErrInvalidDuration
	}

	p, err := u.payments.FindByID(ctx, nil, in.PaymentID)
	if err != nil {
		return nil, err
	}
	o, err := u.orders.FindByID(ctx, nil, p.OrderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != in.UserID {
		return nil, domain.ErrAccessDenied
	}
	if p.Status != model.PaymentStatusCompleted {
		p, err = u.confirm.ResolvePayment(ctx, in.PaymentID, in.GatewayRef)
		if err != nil {
			return nil, err
		}
		if p.Status != model.PaymentStatusCompleted {
			return nil, domain.ErrPaymentNotConfirmed
		}
	}

	now := time.Now()
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.credits.AddPurchasedMinutes(ctx, tx, in.UserID, now, in.Minutes); err != nil {
			return err
		}
		if in.ActiveSessionID == "" {
			return nil
		}
		// Session extension rides the same transaction: either the ledger
		// and the budget both move, or neither does.
		s, err := u.sessions.FindByID(ctx, tx, in.ActiveSessionID)
		if err != nil {
			return err
		}
		if s.UserID != in.UserID {
			return domain.ErrAccessDenied
		}
		matched, err := u.sessions.AddBudget(ctx, tx, in.ActiveSessionID, in.Minutes*60)
		if err != nil {
			return err
		}
		if !matched {
			return domain.ErrSessionNotActive
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.AddCreditMinutes(in.Minutes)

	tc, err := u.credits.Find(ctx, nil, in.UserID, now)
	if err != nil {
		return nil, err
	}
	return &CreditBalance{
		Day:              tc.Day,
		FreeUsed:         tc.FreeUsed,
		PurchasedMinutes: tc.PurchasedMinutes,
		AvailableSeconds: tc.AvailableSeconds(),
	}, nil
}
