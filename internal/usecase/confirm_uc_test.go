//go:build !integration

// File: internal/usecase/confirm_uc_test.go
package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"paysession/internal/domain"
	"paysession/internal/domain/model"
	"paysession/internal/domain/ports/repository"
	"paysession/internal/usecase"
)

type confirmUCDeps struct {
	orders   *memOrderRepo
	payments *memPaymentRepo
	gateway  *MockGateway
	tm       *MockTxManager
}

func newConfirmUCDeps() confirmUCDeps {
	return confirmUCDeps{
		orders:   newMemOrderRepo(),
		payments: newMemPaymentRepo(),
		gateway:  &MockGateway{},
		tm:       NewMockTxManager(),
	}
}

func (d confirmUCDeps) build(pollAttempts int, pollInterval time.Duration) usecase.ConfirmUseCase {
	return usecase.NewConfirmUseCase(d.orders, d.payments, d.gateway, d.tm, pollAttempts, pollInterval, newTestLogger())
}

// seedPair inserts a pending order/payment pair directly into the mem repos.
func (d confirmUCDeps) seedPair(t *testing.T, userID string, amount int64) (*model.Order, *model.Payment) {
	t.Helper()
	now := time.Now()
	o := &model.Order{
		ID: uuid.NewString(), UserID: userID, Amount: amount, Currency: "KRW",
		Status: model.OrderStatusPending, CreatedAt: now, UpdatedAt: now,
	}
	p := &model.Payment{
		ID: uuid.NewString(), OrderID: o.ID, GatewayRef: "ref-" + o.ID[:8],
		Amount: amount, Status: model.PaymentStatusPending, CreatedAt: now, UpdatedAt: now,
	}
	if err := d.orders.Save(context.Background(), nil, o); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	if err := d.payments.Save(context.Background(), nil, p); err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return o, p
}

func TestConfirmUC_ConfirmFromWebhook(t *testing.T) {
	t.Run("completes the pair and stamps paid_at", func(t *testing.T) {
		// --- Arrange ---
		deps := newConfirmUCDeps()
		o, p := deps.seedPair(t, "user-1", 15000)
		paidAt := time.Now().Add(-time.Minute)
		deps.gateway.GetPaymentStatusFunc = func(ctx context.Context, id string) (*model.GatewayResult, error) {
			return &model.GatewayResult{Status: model.PaymentStatusCompleted, Amount: 15000, Method: "card", PaidAt: &paidAt}, nil
		}
		uc := deps.build(3, time.Millisecond)

		// --- Act ---
		got, err := uc.ConfirmFromWebhook(context.Background(), usecase.WebhookEvent{
			OrderID: o.ID, GatewayPaymentID: p.GatewayRef, Amount: 15000, Status: model.PaymentStatusCompleted,
		})

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Status != model.PaymentStatusCompleted {
			t.Fatalf("payment status = %s, want completed", got.Status)
		}
		if got.PaidAt == nil || !got.PaidAt.Equal(paidAt) {
			t.Fatalf("paid_at not taken from the gateway result")
		}
		if got.Method != "card" {
			t.Fatalf("method = %q, want card", got.Method)
		}
		gotO, _ := deps.orders.FindByID(context.Background(), nil, o.ID)
		if gotO.Status != model.OrderStatusPaid {
			t.Fatalf("order status = %s, want paid", gotO.Status)
		}
	})

	t.Run("gateway lookup overrides self-reported fields", func(t *testing.T) {
		// --- Arrange ---
		deps := newConfirmUCDeps()
		o, p := deps.seedPair(t, "user-1", 15000)
		deps.gateway.GetPaymentStatusFunc = func(ctx context.Context, id string) (*model.GatewayResult, error) {
			return &model.GatewayResult{Status: model.PaymentStatusFailed, Amount: 15000}, nil
		}
		uc := deps.build(3, time.Millisecond)

		// --- Act ---
		// The webhook claims completed; the gateway says failed. Gateway wins.
		got, err := uc.ConfirmFromWebhook(context.Background(), usecase.WebhookEvent{
			OrderID: o.ID, GatewayPaymentID: p.GatewayRef, Amount: 15000, Status: model.PaymentStatusCompleted,
		})

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Status != model.PaymentStatusFailed {
			t.Fatalf("payment status = %s, want failed (gateway verdict)", got.Status)
		}
		gotO, _ := deps.orders.FindByID(context.Background(), nil, o.ID)
		if gotO.Status != model.OrderStatusFailed {
			t.Fatalf("order status = %s, want failed", gotO.Status)
		}
	})

	t.Run("amount mismatch forces the pair failed", func(t *testing.T) {
		// --- Arrange ---
		deps := newConfirmUCDeps()
		o, p := deps.seedPair(t, "user-1", 15000)
		deps.gateway.GetPaymentStatusFunc = func(ctx context.Context, id string) (*model.GatewayResult, error) {
			return &model.GatewayResult{Status: model.PaymentStatusCompleted, Amount: 9999}, nil
		}
		uc := deps.build(3, time.Millisecond)

		// --- Act ---
		got, err := uc.ConfirmFromWebhook(context.Background(), usecase.WebhookEvent{
			OrderID: o.ID, GatewayPaymentID: p.GatewayRef, Amount: 9999, Status: model.PaymentStatusCompleted,
		})

		// --- Assert ---
		if !errors.Is(err, domain.ErrAmountMismatch) {
			t.Fatalf("got %v, want ErrAmountMismatch", err)
		}
		if got == nil || got.Status != model.PaymentStatusFailed {
			t.Fatalf("payment not forced failed: %+v", got)
		}
		gotO, _ := deps.orders.FindByID(context.Background(), nil, o.ID)
		if gotO.Status != model.OrderStatusFailed {
			t.Fatalf("order status = %s, want failed", gotO.Status)
		}
	})

	t.Run("replay of a settled payment is a no-op", func(t *testing.T) {
		// --- Arrange ---
		deps := newConfirmUCDeps()
		o, p := deps.seedPair(t, "user-1", 15000)
		now := time.Now()
		_ = deps.payments.UpdateStatus(context.Background(), nil, p.ID, model.PaymentStatusCompleted, nil, &now)
		uc := deps.build(3, time.Millisecond)

		// --- Act ---
		got, err := uc.ConfirmFromWebhook(context.Background(), usecase.WebhookEvent{
			OrderID: o.ID, GatewayPaymentID: p.GatewayRef, Status: model.PaymentStatusCompleted,
		})

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Status != model.PaymentStatusCompleted {
			t.Fatalf("status = %s", got.Status)
		}
		if deps.gateway.StatusCalls != 0 {
			t.Fatalf("gateway consulted on a replay")
		}
	})

	t.Run("loser of a concurrent confirm races to a no-op", func(t *testing.T) {
		// --- Arrange ---
		deps := newConfirmUCDeps()
		o, p := deps.seedPair(t, "user-1", 15000)
		deps.gateway.GetPaymentStatusFunc = func(ctx context.Context, id string) (*model.GatewayResult, error) {
			return &model.GatewayResult{Status: model.PaymentStatusCompleted, Amount: 15000}, nil
		}
		// Another confirmer wins the conditional update between our read and
		// our write.
		deps.payments.UpdateIfPending = func(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, method *string, paidAt *time.Time) (bool, error) {
			now := time.Now()
			_ = deps.payments.UpdateStatus(ctx, nil, id, model.PaymentStatusCompleted, nil, &now)
			return false, nil
		}
		uc := deps.build(3, time.Millisecond)

		// --- Act ---
		got, err := uc.ConfirmFromWebhook(context.Background(), usecase.WebhookEvent{
			OrderID: o.ID, GatewayPaymentID: p.GatewayRef, Amount: 15000, Status: model.PaymentStatusCompleted,
		})

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Status != model.PaymentStatusCompleted {
			t.Fatalf("loser did not re-read the winner's state: %s", got.Status)
		}
	})

	t.Run("pending gateway verdict is not a confirmation", func(t *testing.T) {
		deps := newConfirmUCDeps()
		o, p := deps.seedPair(t, "user-1", 15000)
		deps.gateway.GetPaymentStatusFunc = func(ctx context.Context, id string) (*model.GatewayResult, error) {
			return &model.GatewayResult{Status: model.PaymentStatusPending, Amount: 15000}, nil
		}
		uc := deps.build(3, time.Millisecond)
		_, err := uc.ConfirmFromWebhook(context.Background(), usecase.WebhookEvent{
			OrderID: o.ID, GatewayPaymentID: p.GatewayRef, Status: model.PaymentStatusPending,
		})
		if !errors.Is(err, domain.ErrPaymentNotConfirmed) {
			t.Fatalf("got %v, want ErrPaymentNotConfirmed", err)
		}
	})

	t.Run("falls back to the gateway reference when the order id is foreign", func(t *testing.T) {
		// --- Arrange ---
		deps := newConfirmUCDeps()
		_, p := deps.seedPair(t, "user-1", 15000)
		deps.gateway.GetPaymentStatusFunc = func(ctx context.Context, id string) (*model.GatewayResult, error) {
			return &model.GatewayResult{Status: model.PaymentStatusCompleted, Amount: 15000}, nil
		}
		uc := deps.build(3, time.Millisecond)

		// --- Act ---
		// The processor redelivers under its own order numbering; only the
		// gateway reference matches anything we stored.
		got, err := uc.ConfirmFromWebhook(context.Background(), usecase.WebhookEvent{
			OrderID: "proc-" + uuid.NewString(), GatewayPaymentID: p.GatewayRef,
			Amount: 15000, Status: model.PaymentStatusCompleted,
		})

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ID != p.ID || got.Status != model.PaymentStatusCompleted {
			t.Fatalf("payment = %s/%s, want %s completed", got.ID, got.Status, p.ID)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		uc := newConfirmUCDeps().build(3, time.Millisecond)
		if _, err := uc.ConfirmFromWebhook(context.Background(), usecase.WebhookEvent{OrderID: uuid.NewString()}); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("got %v, want ErrNotFound", err)
		}
	})
}

func TestConfirmUC_ResolvePayment(t *testing.T) {
	t.Run("settles on a later poll attempt", func(t *testing.T) {
		// --- Arrange ---
		deps := newConfirmUCDeps()
		o, p := deps.seedPair(t, "user-1", 15000)
		calls := 0
		deps.gateway.GetPaymentStatusFunc = func(ctx context.Context, id string) (*model.GatewayResult, error) {
			calls++
			if calls < 3 {
				return &model.GatewayResult{Status: model.PaymentStatusPending}, nil
			}
			return &model.GatewayResult{Status: model.PaymentStatusCompleted, Amount: 15000}, nil
		}
		uc := deps.build(5, time.Millisecond)

		// --- Act ---
		got, err := uc.ResolvePayment(context.Background(), p.ID, "")

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Status != model.PaymentStatusCompleted {
			t.Fatalf("status = %s, want completed", got.Status)
		}
		if calls != 3 {
			t.Fatalf("gateway polled %d times, want 3", calls)
		}
		gotO, _ := deps.orders.FindByID(context.Background(), nil, o.ID)
		if gotO.Status != model.OrderStatusPaid {
			t.Fatalf("order status = %s, want paid", gotO.Status)
		}
	})

	t.Run("exhausted attempts yield a retryable not-confirmed", func(t *testing.T) {
		// --- Arrange ---
		deps := newConfirmUCDeps()
		_, p := deps.seedPair(t, "user-1", 15000)
		deps.gateway.GetPaymentStatusFunc = func(ctx context.Context, id string) (*model.GatewayResult, error) {
			return &model.GatewayResult{Status: model.PaymentStatusPending}, nil
		}
		uc := deps.build(2, time.Millisecond)

		// --- Act ---
		_, err := uc.ResolvePayment(context.Background(), p.ID, "")

		// --- Assert ---
		if !errors.Is(err, domain.ErrPaymentNotConfirmed) {
			t.Fatalf("got %v, want ErrPaymentNotConfirmed", err)
		}
		if !usecase.ErrIsRetryable(err) {
			t.Fatalf("not-confirmed should be retryable")
		}
		if deps.gateway.StatusCalls != 2 {
			t.Fatalf("gateway polled %d times, want 2", deps.gateway.StatusCalls)
		}
		got, _ := deps.payments.FindByID(context.Background(), nil, p.ID)
		if got.Status != model.PaymentStatusPending {
			t.Fatalf("payment moved to %s without a terminal verdict", got.Status)
		}
	})

	t.Run("already settled returns immediately", func(t *testing.T) {
		deps := newConfirmUCDeps()
		_, p := deps.seedPair(t, "user-1", 15000)
		now := time.Now()
		_ = deps.payments.UpdateStatus(context.Background(), nil, p.ID, model.PaymentStatusCompleted, nil, &now)
		uc := deps.build(3, time.Millisecond)
		got, err := uc.ResolvePayment(context.Background(), p.ID, "")
		if err != nil || got.Status != model.PaymentStatusCompleted {
			t.Fatalf("got status=%v err=%v", got, err)
		}
		if deps.gateway.StatusCalls != 0 {
			t.Fatalf("gateway polled for a settled payment")
		}
	})

	t.Run("adopts the caller's canonical gateway reference", func(t *testing.T) {
		// --- Arrange ---
		deps := newConfirmUCDeps()
		_, p := deps.seedPair(t, "user-1", 15000)
		var polledRef string
		deps.gateway.GetPaymentStatusFunc = func(ctx context.Context, id string) (*model.GatewayResult, error) {
			polledRef = id
			return &model.GatewayResult{Status: model.PaymentStatusCompleted, Amount: 15000}, nil
		}
		uc := deps.build(3, time.Millisecond)

		// --- Act ---
		_, err := uc.ResolvePayment(context.Background(), p.ID, "gw-canonical-1")

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if polledRef != "gw-canonical-1" {
			t.Fatalf("polled %q, want the canonical reference", polledRef)
		}
		got, _ := deps.payments.FindByID(context.Background(), nil, p.ID)
		if got.GatewayRef != "gw-canonical-1" {
			t.Fatalf("canonical reference not persisted: %q", got.GatewayRef)
		}
	})

	t.Run("unknown payment", func(t *testing.T) {
		uc := newConfirmUCDeps().build(3, time.Millisecond)
		if _, err := uc.ResolvePayment(context.Background(), uuid.NewString(), ""); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("got %v, want ErrNotFound", err)
		}
	})
}
