package payment

import (
	"context"
	"sync"

	"paysession/internal/domain"
	"paysession/internal/domain/model"
	"paysession/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopGateway)(nil)

// NoopGateway is an in-memory gateway for dev mode and tests. Results are
// programmed per gateway payment id.
type NoopGateway struct {
	mu      sync.Mutex
	results map[string]*model.GatewayResult
}

func NewNoopGateway() *NoopGateway {
	return &NoopGateway{results: make(map[string]*model.GatewayResult)}
}

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) SetResult(gatewayPaymentID string, r *model.GatewayResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.results[gatewayPaymentID] = r
}

func (g *NoopGateway) GetPaymentStatus(ctx context.Context, gatewayPaymentID string) (*model.GatewayResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.results[gatewayPaymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (g *NoopGateway) CancelPayment(ctx context.Context, gatewayPaymentID string, amount int64, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.results[gatewayPaymentID]; ok {
		r.Status = model.PaymentStatusCancelled
		return nil
	}
	return domain.ErrNotFound
}
