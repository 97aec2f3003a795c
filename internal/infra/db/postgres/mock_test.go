//go:build !integration

package postgres

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	red "paysession/internal/infra/redis"
)

// mockRedisClient mocks our Redis client wrapper. Unset funcs behave like an
// empty cache.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
}

var _ red.RedisClient = (*mockRedisClient)(nil)

func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc == nil {
		return "", redis.Nil
	}
	return m.GetFunc(ctx, key)
}

func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}

func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}

func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	if m.IncrFunc == nil {
		return 0, nil
	}
	return m.IncrFunc(ctx, key)
}

func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	if m.ExpireFunc == nil {
		return nil
	}
	return m.ExpireFunc(ctx, key, expiration)
}

func (m *mockRedisClient) Close() error { return nil }

// fakeTx satisfies pgx.Tx for the executor switch; only the statements a test
// stubs out may run, anything else panics through the embedded nil interface.
type fakeTx struct {
	pgx.Tx
	execFn  func(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	queryFn func(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return t.execFn(ctx, sql, args...)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return t.queryFn(ctx, sql, args...)
}

// fakeRows yields one string id per row.
type fakeRows struct {
	pgx.Rows
	ids []string
	i   int
}

func (r *fakeRows) Next() bool {
	r.i++
	return r.i <= len(r.ids)
}

func (r *fakeRows) Scan(dest ...interface{}) error {
	if p, ok := dest[0].(*string); ok {
		*p = r.ids[r.i-1]
	}
	return nil
}

func (r *fakeRows) Close()     {}
func (r *fakeRows) Err() error { return nil }
