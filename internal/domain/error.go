package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Payment lifecycle
	ErrPaymentNotConfirmed = errors.New("payment not yet confirmed")
	ErrAmountMismatch      = errors.New("confirmed amount does not match order amount")
	ErrWebhookAuth         = errors.New("webhook authentication failed")
	ErrCannotCancel        = errors.New("payment cannot be cancelled in its current state")
	ErrAlreadyCancelled    = errors.New("payment already cancelled")

	// Sessions and credits
	ErrActiveSessionExists = errors.New("user already has an active session for this category")
	ErrSessionNotActive    = errors.New("session is not active")
	ErrPriceQuoteRequired  = errors.New("neither payment nor free allowance supplied")
	ErrFreeAllowanceUsed   = errors.New("free allowance already used today")
	ErrInvalidDuration     = errors.New("duration is not one of the sellable units")

	// Capability tokens
	ErrTokenInvalid = errors.New("capability token invalid or expired")

	// Generation collaborator
	ErrGenerationFailed = errors.New("artifact generation failed")
)

// Reason codes returned to clients on payment-flow failures so they can pick
// between retry, re-checkout, or terminal messaging.
const (
	ReasonPaymentNotFound  = "PAYMENT_NOT_FOUND"
	ReasonAlreadyCancelled = "ALREADY_CANCELLED"
	ReasonCannotCancel     = "CANNOT_CANCEL"
	ReasonAmountMismatch   = "AMOUNT_MISMATCH"
	ReasonNotConfirmed     = "PAYMENT_NOT_CONFIRMED"
	ReasonAllowanceUsed    = "FREE_ALLOWANCE_USED"
	ReasonDurationRequired = "DURATION_REQUIRED"
)
