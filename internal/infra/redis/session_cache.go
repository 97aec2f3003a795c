package redis

import (
	"context"
	"encoding/json"
	"time"

	"paysession/internal/domain/model"
	"paysession/internal/infra/metrics"
)

// SessionCache keeps the latest state of active sessions so the factory's
// idempotent re-entry check does not always hit Postgres. Entries are
// dropped on any budget or status change; the database stays authoritative.
type SessionCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewSessionCache(client RedisClient, ttl time.Duration) *SessionCache {
	return &SessionCache{client: client, ttl: ttl}
}

func sessionKey(id string) string { return "session:" + id }

func activeKey(userID, category string) string { return "session_active:" + userID + ":" + category }

func (c *SessionCache) Store(ctx context.Context, s *model.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, sessionKey(s.ID), data, c.ttl); err != nil {
		return err
	}
	if s.Active {
		return c.client.Set(ctx, activeKey(s.UserID, s.Category), s.ID, c.ttl)
	}
	return nil
}

func (c *SessionCache) GetActive(ctx context.Context, userID, category string) (*model.Session, error) {
	id, err := c.client.Get(ctx, activeKey(userID, category))
	if err != nil {
		metrics.IncCacheRequest("session", "miss")
		return nil, err
	}
	data, err := c.client.Get(ctx, sessionKey(id))
	if err != nil {
		metrics.IncCacheRequest("session", "miss")
		return nil, err
	}
	metrics.IncCacheRequest("session", "hit")
	var s model.Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, err
	}
	if !s.Active || s.Expired(time.Now()) {
		_ = c.Drop(ctx, s.ID)
		return nil, nil
	}
	return &s, nil
}

func (c *SessionCache) Drop(ctx context.Context, sessionID string) error {
	data, err := c.client.Get(ctx, sessionKey(sessionID))
	if err == nil {
		var s model.Session
		if json.Unmarshal([]byte(data), &s) == nil {
			_ = c.client.Del(ctx, activeKey(s.UserID, s.Category))
		}
	}
	return c.client.Del(ctx, sessionKey(sessionID))
}
