package model

import "time"

type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "pending"        // created; awaiting payment confirmation
	OrderStatusPaid          OrderStatus = "paid"           // payment confirmed at the gateway
	OrderStatusFailed        OrderStatus = "failed"         // verification failed or amount mismatch
	OrderStatusCancelled     OrderStatus = "cancelled"      // cancelled by operator or cascade
	OrderStatusUserCancelled OrderStatus = "user_cancelled" // cancelled by the buyer before confirmation
	OrderStatusRefunded      OrderStatus = "refunded"
)

// Order records one purchase attempt. Exactly one Payment exists per Order;
// the pair transitions together, never independently.
type Order struct {
	ID        string // UUID
	UserID    string // UUID
	Amount    int64  // minor units, to avoid float errors
	Currency  string
	Name      string // display name shown to the buyer and the gateway
	Status    OrderStatus
	Meta      map[string]interface{} // JSONB; enriched post-creation with artifact/session ids
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Meta keys filled in after creation. A typed side record replaces the old
// convention-based bag: these are the only keys the code reads back.
const (
	OrderMetaArtifactID = "artifact_id"
	OrderMetaSessionID  = "session_id"
)

// PaidStatusFor maps a terminal payment status to the order status that must
// be committed in the same transaction.
func PaidStatusFor(ps PaymentStatus) OrderStatus {
	switch ps {
	case PaymentStatusCompleted:
		return OrderStatusPaid
	case PaymentStatusFailed:
		return OrderStatusFailed
	case PaymentStatusCancelled:
		return OrderStatusCancelled
	case PaymentStatusUserCancelled:
		return OrderStatusUserCancelled
	case PaymentStatusRefunded:
		return OrderStatusRefunded
	default:
		return OrderStatusPending
	}
}

// QuoteCharge applies a percentage discount using integer math, truncating
// toward zero: 15000 at 33% discounts to 10050.
func QuoteCharge(amount int64, discountPercent int) int64 {
	if discountPercent <= 0 {
		return amount
	}
	if discountPercent >= 100 {
		return 0
	}
	return amount * int64(100-discountPercent) / 100
}
