package model

import "time"

// TimeCredit is the per-user, per-calendar-day ledger row mixing the
// recurring free grant with purchased balance. Purchased minutes only
// accumulate; they are debited implicitly through session budgets. The
// ledger is day-scoped and non-carrying: nothing rolls forward.
type TimeCredit struct {
	UserID           string
	Day              time.Time // date only, UTC midnight
	FreeUsed         bool      // the 120s free allowance, consumable once per day
	PurchasedMinutes int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AvailableSeconds is the time budget a fresh session could draw today.
func (t *TimeCredit) AvailableSeconds() int {
	free := 0
	if !t.FreeUsed {
		free = FreeAllowanceSeconds
	}
	return free + t.PurchasedMinutes*60
}

// CreditDay truncates a timestamp to the ledger's day key.
func CreditDay(at time.Time) time.Time {
	return at.UTC().Truncate(24 * time.Hour)
}
