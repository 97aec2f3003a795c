package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "pending"   // awaiting gateway confirmation
	PaymentStatusCompleted     PaymentStatus = "completed" // verified OK at the gateway
	PaymentStatusFailed        PaymentStatus = "failed"    // verification failed or amount mismatch
	PaymentStatusCancelled     PaymentStatus = "cancelled"
	PaymentStatusUserCancelled PaymentStatus = "user_cancelled"
	PaymentStatusRefunded      PaymentStatus = "refunded"
)

// Terminal reports whether a payment status can never transition again.
func (s PaymentStatus) Terminal() bool {
	return s != PaymentStatusPending && s != ""
}

// Payment records the attempt at the external gateway, 1:1 with an Order.
type Payment struct {
	ID         string // UUID
	OrderID    string // UUID -> Order
	GatewayRef string // our generated reference; corrected to the gateway's canonical id once known
	Method     string // e.g. "card", reported by the gateway
	Amount     int64  // must equal Order.Amount or the pair is forced failed
	Status     PaymentStatus
	PaidAt     *time.Time // set only on completed
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// GatewayResult is what the external processor reports for a payment lookup.
// It is treated as authoritative over self-reported webhook fields.
type GatewayResult struct {
	Status PaymentStatus
	Amount int64
	Method string
	PaidAt *time.Time
}

// SessionPayment joins a session to the payment that funded it, so lookups
// work from either side without scanning order metadata.
type SessionPayment struct {
	SessionID string
	PaymentID string
	OrderID   string
	CreatedAt time.Time
}
