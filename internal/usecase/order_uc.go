// File: internal/usecase/order_uc.go
package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"paysession/internal/domain"
	"paysession/internal/domain/model"
	"paysession/internal/domain/ports/adapter"
	"paysession/internal/domain/ports/repository"
	"paysession/internal/infra/logging"
	"paysession/internal/infra/metrics"
)

// Compile-time check
var _ OrderUseCase = (*orderUC)(nil)

type OrderUseCase interface {
	// Quote applies the configured discount to a list amount.
	Quote(amount int64) int64
	// CreateOrderAndPayment atomically creates the pending pair with a fresh
	// gateway-facing reference.
	CreateOrderAndPayment(ctx context.Context, userID string, amount int64, currency, name string, meta map[string]interface{}) (*model.Order, *model.Payment, error)
	Get(ctx context.Context, orderID, userID string) (*model.Order, *model.Payment, error)
	// ListOrders returns the caller's most recent orders.
	ListOrders(ctx context.Context, userID string, limit int) ([]*model.Order, error)
	// UpdatePairStatus moves Order and Payment together inside one
	// transaction; no caller may ever move one of them alone.
	UpdatePairStatus(ctx context.Context, tx repository.Tx, orderID string, ps model.PaymentStatus, method *string, paidAt *time.Time) error
	// Cancel cancels a pair on the buyer's behalf; returns a reason code the
	// client can act on.
	Cancel(ctx context.Context, orderID, userID, reason string) (string, error)
}

type orderUC struct {
	orders          repository.OrderRepository
	payments        repository.PaymentRepository
	sessions        repository.SessionRepository
	gateway         adapter.PaymentGateway
	tm              repository.TransactionManager
	discountPercent int
	log             *zerolog.Logger
}

func NewOrderUseCase(
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	sessions repository.SessionRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	discountPercent int,
	logger *zerolog.Logger,
) *orderUC {
	l := logger.With().Str("component", "OrderUC").Logger()
	return &orderUC{
		orders:          orders,
		payments:        payments,
		sessions:        sessions,
		gateway:         gateway,
		tm:              tm,
		discountPercent: discountPercent,
		log:             &l,
	}
}

func (u *orderUC) Quote(amount int64) int64 {
	return model.QuoteCharge(amount, u.discountPercent)
}

func (u *orderUC) CreateOrderAndPayment(ctx context.Context, userID string, amount int64, currency, name string, meta map[string]interface{}) (*model.Order, *model.Payment, error) {
	defer logging.TraceDuration(u.log, "OrderUC.CreateOrderAndPayment")()
	if userID == "" || amount <= 0 || currency == "" {
		return nil, nil, domain.ErrInvalidArgument
	}
	// The ledger stores the charged amount, not the list price.
	amount = u.Quote(amount)
	now := time.Now()
	o := &model.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Currency:  currency,
		Name:      name,
		Status:    model.OrderStatusPending,
		Meta:      meta,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p := &model.Payment{
		ID:         uuid.NewString(),
		OrderID:    o.ID,
		GatewayRef: newGatewayRef(now),
		Amount:     amount,
		Status:     model.PaymentStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.orders.Save(ctx, tx, o); err != nil {
			return err
		}
		return u.payments.Save(ctx, tx, p)
	})
	if err != nil {
		return nil, nil, err
	}
	metrics.IncOrderCreated(currency)
	u.log.Info().Str("order_id", o.ID).Str("payment_id", p.ID).Int64("amount", amount).Msg("order/payment pair created")
	return o, p, nil
}

func (u *orderUC) Get(ctx context.Context, orderID, userID string) (*model.Order, *model.Payment, error) {
	o, err := u.orders.FindByID(ctx, nil, orderID)
	if err != nil {
		return nil, nil, err
	}
	if o.UserID != userID {
		return nil, nil, domain.ErrAccessDenied
	}
	p, err := u.payments.FindByOrderID(ctx, nil, orderID)
	if err != nil {
		return nil, nil, err
	}
	return o, p, nil
}

func (u *orderUC) ListOrders(ctx context.Context, userID string, limit int) ([]*model.Order, error) {
	defer logging.TraceDuration(u.log, "OrderUC.ListOrders")()
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return u.orders.ListByUser(ctx, nil, userID, limit)
}

// UpdatePairStatus keeps the no-skew invariant: both rows commit in the same
// transaction, or neither does. When called with a nil tx it opens its own.
func (u *orderUC) UpdatePairStatus(ctx context.Context, tx repository.Tx, orderID string, ps model.PaymentStatus, method *string, paidAt *time.Time) error {
	apply := func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByOrderID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := u.payments.UpdateStatus(ctx, tx, p.ID, ps, method, paidAt); err != nil {
			return err
		}
		return u.orders.UpdateStatus(ctx, tx, orderID, model.PaidStatusFor(ps))
	}
	if tx != nil {
		return apply(ctx, tx)
	}
	return u.tm.WithTx(ctx, pgx.TxOptions{}, apply)
}

// Cancel handles both pre-confirmation cancels (buyer walked away) and
// post-confirmation voids (processor-side cancel, session cascade). The
// historical session rows survive deactivation.
func (u *orderUC) Cancel(ctx context.Context, orderID, userID, reason string) (string, error) {
	defer logging.TraceDuration(u.log, "OrderUC.Cancel")()
	ctx = logging.WithOrderID(ctx, orderID)
	o, err := u.orders.FindByID(ctx, nil, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ReasonPaymentNotFound, err
		}
		return "", err
	}
	if o.UserID != userID {
		return "", domain.ErrAccessDenied
	}
	p, err := u.payments.FindByOrderID(ctx, nil, orderID)
	if err != nil {
		return domain.ReasonPaymentNotFound, err
	}

	switch p.Status {
	case model.PaymentStatusCancelled, model.PaymentStatusUserCancelled:
		return domain.ReasonAlreadyCancelled, domain.ErrAlreadyCancelled
	case model.PaymentStatusFailed, model.PaymentStatusRefunded:
		return domain.ReasonCannotCancel, domain.ErrCannotCancel
	}

	target := model.PaymentStatusUserCancelled
	if p.Status == model.PaymentStatusCompleted {
		// Confirmed money needs a processor-side void before our ledger moves.
		if err := u.gateway.CancelPayment(ctx, p.GatewayRef, p.Amount, reason); err != nil {
			return domain.ReasonCannotCancel, err
		}
		target = model.PaymentStatusCancelled
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.UpdatePairStatus(ctx, tx, orderID, target, nil, nil); err != nil {
			return err
		}
		return u.sessions.DeactivateByOrder(ctx, tx, orderID)
	})
	if err != nil {
		return "", err
	}
	metrics.IncOrderCancelled(string(target))
	logging.With(ctx, u.log).Info().Str("status", string(target)).Msg("order cancelled")
	return "", nil
}

// newGatewayRef mints the gateway-facing reference for a fresh pair. ULIDs
// sort by creation time, which keeps processor-side support lookups sane.
func newGatewayRef(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.Monotonic(rand.Reader, 0)).String()
}
