package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"paysession/internal/domain"
	"paysession/internal/domain/model"
	"paysession/internal/domain/ports/repository"
)

var _ repository.TimeCreditRepository = (*timeCreditRepo)(nil)

// timeCreditRepo keys rows by (user_id, day). The free-used flag and the
// purchased counter live in the same row so a single upsert covers both.
type timeCreditRepo struct{ pool *pgxpool.Pool }

func NewTimeCreditRepo(pool *pgxpool.Pool) *timeCreditRepo {
	return &timeCreditRepo{pool: pool}
}

func (r *timeCreditRepo) Find(ctx context.Context, tx repository.Tx, userID string, day time.Time) (*model.TimeCredit, error) {
	q := `SELECT user_id, day, free_used, purchased_minutes, created_at, updated_at FROM time_credits WHERE user_id=$1 AND day=$2`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, userID, model.CreditDay(day))
	if err != nil {
		return nil, err
	}
	tc := &model.TimeCredit{}
	if err := row.Scan(&tc.UserID, &tc.Day, &tc.FreeUsed, &tc.PurchasedMinutes, &tc.CreatedAt, &tc.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return tc, nil
}

// MarkFreeUsed flips the free flag for (user, day). The upsert itself is
// idempotent; the returned bool tells the caller whether THIS call consumed
// the allowance (false means someone already had).
func (r *timeCreditRepo) MarkFreeUsed(ctx context.Context, tx repository.Tx, userID string, day time.Time) (bool, error) {
	const q = `
INSERT INTO time_credits (user_id, day, free_used, purchased_minutes, created_at, updated_at)
VALUES ($1, $2, TRUE, 0, NOW(), NOW())
ON CONFLICT (user_id, day) DO UPDATE SET free_used=TRUE, updated_at=NOW()
  WHERE time_credits.free_used = FALSE;`
	ct, err := execSQL(ctx, r.pool, tx, q, userID, model.CreditDay(day))
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return ct.RowsAffected() >= 1, nil
}

func (r *timeCreditRepo) AddPurchasedMinutes(ctx context.Context, tx repository.Tx, userID string, day time.Time, minutes int) error {
	const q = `
INSERT INTO time_credits (user_id, day, free_used, purchased_minutes, created_at, updated_at)
VALUES ($1, $2, FALSE, $3, NOW(), NOW())
ON CONFLICT (user_id, day) DO UPDATE SET
  purchased_minutes = time_credits.purchased_minutes + $3,
  updated_at = NOW();`
	_, err := execSQL(ctx, r.pool, tx, q, userID, model.CreditDay(day), minutes)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
