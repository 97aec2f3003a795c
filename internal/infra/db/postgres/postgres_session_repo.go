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
	"paysession/internal/infra/redis"
	"paysession/internal/infra/security"
)

// SessionRepo persists sessions with captured user input encrypted at rest,
// and keeps a short-lived cache of active sessions in redis.
var _ repository.SessionRepository = (*SessionRepo)(nil)

type SessionRepo struct {
	pool  *pgxpool.Pool
	cache *redis.SessionCache
	enc   *security.EncryptionService
}

func NewSessionRepo(pool *pgxpool.Pool, cache *redis.SessionCache, enc *security.EncryptionService) *SessionRepo {
	return &SessionRepo{pool: pool, cache: cache, enc: enc}
}

const sessionCols = `id, user_id, category, form_type, mode, status, budget_secs, active, expires_at, input, user_data, artifact_id, created_at, updated_at`

func (r *SessionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Session) error {
	input, userData := s.Input, s.UserData
	if r.enc != nil {
		var err error
		if input, err = r.enc.Encrypt(s.Input); err != nil {
			return err
		}
		if userData, err = r.enc.Encrypt(s.UserData); err != nil {
			return err
		}
	}
	const q = `
INSERT INTO sessions (id, user_id, category, form_type, mode, status, budget_secs, active, expires_at, input, user_data, artifact_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
  status=$6, budget_secs=$7, active=$8, expires_at=$9, artifact_id=$12, updated_at=$14;`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.Category, s.FormType, s.Mode, s.Status, s.BudgetSecs, s.Active, s.ExpiresAt, input, userData, s.ArtifactID, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	// Cache only outside a transaction. A cached copy of an uncommitted
	// session would survive a rollback and shadow the database.
	if r.cache != nil && tx == nil && s.Active {
		_ = r.cache.Store(ctx, s)
	}
	return nil
}

func (r *SessionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Session, error) {
	q := `SELECT ` + sessionCols + ` FROM sessions WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return r.scanSession(row)
}

func (r *SessionRepo) FindActiveByUserAndCategory(ctx context.Context, tx repository.Tx, userID, category string) (*model.Session, error) {
	if r.cache != nil && tx == nil {
		if s, err := r.cache.GetActive(ctx, userID, category); err == nil && s != nil {
			return s, nil
		}
	}
	q := `SELECT ` + sessionCols + ` FROM sessions WHERE user_id=$1 AND category=$2 AND active ORDER BY created_at DESC LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, userID, category)
	if err != nil {
		return nil, err
	}
	s, err := r.scanSession(row)
	if err != nil {
		return nil, err
	}
	if r.cache != nil && tx == nil {
		_ = r.cache.Store(ctx, s)
	}
	return s, nil
}

func (r *SessionRepo) SaveMessage(ctx context.Context, tx repository.Tx, m *model.SessionMessage) error {
	content := m.Content
	if r.enc != nil {
		var err error
		if content, err = r.enc.Encrypt(m.Content); err != nil {
			return err
		}
	}
	const q = `INSERT INTO session_messages (session_id, role, content, ts) VALUES ($1,$2,$3,$4);`
	_, err := execSQL(ctx, r.pool, tx, q, m.SessionID, m.Role, content, m.Timestamp)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *SessionRepo) ListMessages(ctx context.Context, tx repository.Tx, sessionID string, limit int) ([]model.SessionMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT session_id, role, content, ts FROM (
  SELECT session_id, role, content, ts FROM session_messages WHERE session_id=$1 ORDER BY ts DESC LIMIT $2
) recent ORDER BY ts ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, sessionID, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []model.SessionMessage
	for rows.Next() {
		var m model.SessionMessage
		if err := rows.Scan(&m.SessionID, &m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		if r.enc != nil {
			if pt, err := r.enc.Decrypt(m.Content); err == nil {
				m.Content = pt
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *SessionRepo) SetArtifact(ctx context.Context, tx repository.Tx, id string, artifactID string) error {
	const q = `UPDATE sessions SET artifact_id=$2, updated_at=NOW() WHERE id=$1;`
	ct, err := execSQL(ctx, r.pool, tx, q, id, artifactID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Finish is a terminal transition: the status lands and the active flag
// clears together, history stays queryable.
func (r *SessionRepo) Finish(ctx context.Context, tx repository.Tx, id string, status model.SessionStatus) error {
	const q = `UPDATE sessions SET status=$2, active=FALSE, updated_at=NOW() WHERE id=$1;`
	ct, err := execSQL(ctx, r.pool, tx, q, id, status)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if r.cache != nil {
		_ = r.cache.Drop(ctx, id)
	}
	return nil
}

func (r *SessionRepo) AddBudget(ctx context.Context, tx repository.Tx, id string, seconds int) (bool, error) {
	const q = `UPDATE sessions SET budget_secs = budget_secs + $2, updated_at=NOW() WHERE id=$1 AND active;`
	ct, err := execSQL(ctx, r.pool, tx, q, id, seconds)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	if r.cache != nil {
		_ = r.cache.Drop(ctx, id)
	}
	return ct.RowsAffected() >= 1, nil
}

// ConsumeBudget decrements remaining time with the same atomic-update
// discipline as the confirmation transition, so concurrent ticks never lose
// updates. Clamped at zero.
func (r *SessionRepo) ConsumeBudget(ctx context.Context, tx repository.Tx, id string, seconds int) (int, error) {
	const q = `
UPDATE sessions
   SET budget_secs = GREATEST(budget_secs - $2, 0),
       updated_at = NOW()
 WHERE id = $1 AND active
RETURNING budget_secs;`
	row, err := pickRow(ctx, r.pool, tx, q, id, seconds)
	if err != nil {
		return 0, err
	}
	var remaining int
	if err := row.Scan(&remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrSessionNotActive
		}
		return 0, domain.ErrReadDatabaseRow
	}
	if r.cache != nil {
		_ = r.cache.Drop(ctx, id)
	}
	return remaining, nil
}

func (r *SessionRepo) ExpireOlderThan(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	const q = `UPDATE sessions SET status='expired', active=FALSE, updated_at=NOW() WHERE active AND expires_at IS NOT NULL AND expires_at < $1;`
	ct, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		return 0, domain.ErrOperationFailed
	}
	return int(ct.RowsAffected()), nil
}

func (r *SessionRepo) DeactivateByOrder(ctx context.Context, tx repository.Tx, orderID string) error {
	const q = `
UPDATE sessions SET status='cancelled', active=FALSE, updated_at=NOW()
 WHERE active AND id IN (SELECT session_id FROM session_payments WHERE order_id=$1)
RETURNING id;`
	rows, err := queryRows(ctx, r.pool, tx, q, orderID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return domain.ErrReadDatabaseRow
		}
		ids = append(ids, id)
	}
	// The cached copies still carry active=TRUE and would feed the re-entry
	// check until the TTL runs out.
	if r.cache != nil {
		for _, id := range ids {
			_ = r.cache.Drop(ctx, id)
		}
	}
	return nil
}

func (r *SessionRepo) scanSession(row pgx.Row) (*model.Session, error) {
	s := &model.Session{}
	if err := row.Scan(&s.ID, &s.UserID, &s.Category, &s.FormType, &s.Mode, &s.Status, &s.BudgetSecs, &s.Active, &s.ExpiresAt, &s.Input, &s.UserData, &s.ArtifactID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if r.enc != nil {
		if pt, err := r.enc.Decrypt(s.Input); err == nil {
			s.Input = pt
		}
		if pt, err := r.enc.Decrypt(s.UserData); err == nil {
			s.UserData = pt
		}
	}
	return s, nil
}
