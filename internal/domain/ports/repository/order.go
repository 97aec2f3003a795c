package repository

import (
	"context"
	"time"

	"paysession/internal/domain/model"
)

type OrderRepository interface {
	Save(ctx context.Context, tx Tx, o *model.Order) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Order, error)
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.Order, error)
	// UpdateStatus mutates only the order row; callers go through the use
	// case so the paired payment row moves in the same transaction.
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.OrderStatus) error
	// UpdateStatusIfPending advances the order only when it is still
	// pending; reports whether a row actually changed.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.OrderStatus) (bool, error)
	SetMeta(ctx context.Context, tx Tx, id string, key string, value interface{}) error
}

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByGatewayRef(ctx context.Context, tx Tx, ref string) (*model.Payment, error)
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.Payment, error)
	// SetGatewayRef persists the gateway's canonical id the first time it
	// becomes known (written once, then stable).
	SetGatewayRef(ctx context.Context, tx Tx, id string, ref string) error
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.PaymentStatus, method *string, paidAt *time.Time) error
	// UpdateStatusIfPending is the conditional state advance both
	// confirmation paths share: only a pending payment moves to a terminal
	// status, so replays and concurrent confirmers are no-ops.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.PaymentStatus, method *string, paidAt *time.Time) (bool, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
	SaveSessionPayment(ctx context.Context, tx Tx, sp *model.SessionPayment) error
	FindSessionPaymentBySession(ctx context.Context, tx Tx, sessionID string) (*model.SessionPayment, error)
}
