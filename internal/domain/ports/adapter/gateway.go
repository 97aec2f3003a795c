package adapter

import (
	"context"

	"paysession/internal/domain/model"
)

// PaymentGateway is the hex port for the external payment processor. The
// processor's own lookup is authoritative over anything a webhook caller
// self-reports.
type PaymentGateway interface {
	Name() string

	// GetPaymentStatus looks up a payment by the gateway's canonical id.
	GetPaymentStatus(ctx context.Context, gatewayPaymentID string) (*model.GatewayResult, error)

	// CancelPayment voids or refunds a confirmed payment at the processor.
	CancelPayment(ctx context.Context, gatewayPaymentID string, amount int64, reason string) error
}
