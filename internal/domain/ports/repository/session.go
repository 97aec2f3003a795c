package repository

import (
	"context"
	"time"

	"paysession/internal/domain/model"
)

type SessionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Session) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Session, error)
	FindActiveByUserAndCategory(ctx context.Context, tx Tx, userID, category string) (*model.Session, error)
	SaveMessage(ctx context.Context, tx Tx, m *model.SessionMessage) error
	ListMessages(ctx context.Context, tx Tx, sessionID string, limit int) ([]model.SessionMessage, error)
	SetArtifact(ctx context.Context, tx Tx, id string, artifactID string) error
	// Finish moves the session to a terminal status and clears the active
	// flag. The row itself is never deleted.
	Finish(ctx context.Context, tx Tx, id string, status model.SessionStatus) error
	// AddBudget atomically increases remaining time on a still-active
	// session; reports whether a row matched.
	AddBudget(ctx context.Context, tx Tx, id string, seconds int) (bool, error)
	// ConsumeBudget atomically decrements remaining time, clamping at zero;
	// returns the remaining budget after the decrement.
	ConsumeBudget(ctx context.Context, tx Tx, id string, seconds int) (int, error)
	// ExpireOlderThan finishes active sessions whose expiry passed; returns
	// the number of sessions swept.
	ExpireOlderThan(ctx context.Context, tx Tx, now time.Time) (int, error)
	DeactivateByOrder(ctx context.Context, tx Tx, orderID string) error
}

type TimeCreditRepository interface {
	// Find returns the (user, day) row or domain.ErrNotFound.
	Find(ctx context.Context, tx Tx, userID string, day time.Time) (*model.TimeCredit, error)
	// MarkFreeUsed upserts the row setting the free-used flag. Idempotent at
	// the storage level; reports whether this call flipped the flag.
	MarkFreeUsed(ctx context.Context, tx Tx, userID string, day time.Time) (bool, error)
	// AddPurchasedMinutes upserts the row incrementing the purchased total.
	AddPurchasedMinutes(ctx context.Context, tx Tx, userID string, day time.Time, minutes int) error
}
