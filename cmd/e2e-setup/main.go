package main

import (
	"context"
	"flag"
	"log"

	"paysession/internal/config"
	"paysession/internal/infra/db/postgres"
	"paysession/internal/infra/redis"

	"github.com/jackc/pgx/v4/pgxpool"
)

// This script sets up a clean, predictable database state for manual
// end-to-end testing: schema in place, all rows gone, caches flushed.
func main() {
	ctx := context.Background()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 5)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer pool.Close()

	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer redisClient.Close()

	log.Println("--- Starting E2E Environment Setup ---")

	log.Println("[1/3] Ensuring schema...")
	ensureSchema(ctx, pool)

	log.Println("[2/3] Wiping all existing database data...")
	_, err = pool.Exec(ctx, `
		TRUNCATE
			orders, payments, session_payments,
			sessions, session_messages, time_credits
		RESTART IDENTITY CASCADE;
	`)
	if err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}

	log.Println("[3/3] Wiping Redis cache...")
	if err := redisClient.FlushDB(ctx); err != nil {
		log.Fatalf("failed to flush redis: %v", err)
	}

	log.Println("--- E2E Environment Setup Complete ---")
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) {
	const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id         UUID PRIMARY KEY,
	user_id    TEXT NOT NULL,
	amount     BIGINT NOT NULL,
	currency   TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	meta       JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_orders_user ON orders (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS payments (
	id          UUID PRIMARY KEY,
	order_id    UUID NOT NULL REFERENCES orders (id),
	gateway_ref TEXT NOT NULL DEFAULT '',
	method      TEXT,
	amount      BIGINT NOT NULL,
	status      TEXT NOT NULL,
	paid_at     TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_payments_order ON payments (order_id);
CREATE INDEX IF NOT EXISTS idx_payments_gateway_ref ON payments (gateway_ref);
CREATE INDEX IF NOT EXISTS idx_payments_pending ON payments (created_at) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS sessions (
	id          UUID PRIMARY KEY,
	user_id     TEXT NOT NULL,
	category    TEXT NOT NULL,
	form_type   TEXT NOT NULL DEFAULT '',
	mode        TEXT NOT NULL,
	status      TEXT NOT NULL,
	budget_secs INT NOT NULL DEFAULT 0,
	active      BOOLEAN NOT NULL DEFAULT TRUE,
	expires_at  TIMESTAMPTZ,
	input       TEXT NOT NULL DEFAULT '',
	user_data   TEXT NOT NULL DEFAULT '',
	artifact_id UUID,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_sessions_active ON sessions (user_id, category) WHERE active;

CREATE TABLE IF NOT EXISTS session_payments (
	session_id UUID NOT NULL REFERENCES sessions (id),
	payment_id UUID NOT NULL REFERENCES payments (id),
	order_id   UUID NOT NULL REFERENCES orders (id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (session_id, payment_id)
);
CREATE INDEX IF NOT EXISTS idx_session_payments_order ON session_payments (order_id);

CREATE TABLE IF NOT EXISTS session_messages (
	id         BIGSERIAL PRIMARY KEY,
	session_id UUID NOT NULL REFERENCES sessions (id),
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	ts         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_session_messages_session ON session_messages (session_id, ts);

CREATE TABLE IF NOT EXISTS time_credits (
	user_id           TEXT NOT NULL,
	day               DATE NOT NULL,
	free_used         BOOLEAN NOT NULL DEFAULT FALSE,
	purchased_minutes INT NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, day)
);
`
	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}
}
