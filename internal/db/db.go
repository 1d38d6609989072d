package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Open connects to Postgres and verifies the connection with a ping.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

const baseSchema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'USER',
    provider_id TEXT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email));

CREATE TABLE IF NOT EXISTS providers (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL DEFAULT 'PROVIDER',
    rating DOUBLE PRECISION NOT NULL DEFAULT 5.0,
    completed_jobs INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS listings (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    price DOUBLE PRECISION NOT NULL DEFAULT 0,
    provider_id TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'LISTED',
    tags TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_listings_provider ON listings (provider_id);

CREATE TABLE IF NOT EXISTS interactions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    provider_id TEXT NOT NULL,
    listing_id TEXT NULL,
    at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    note TEXT NOT NULL DEFAULT '',
    amount DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_interactions_user ON interactions (user_id, at);

CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    customer_name TEXT NOT NULL DEFAULT '',
    provider_id TEXT NOT NULL,
    listing_id TEXT NULL,
    service TEXT NOT NULL DEFAULT 'Service request',
    status TEXT NOT NULL DEFAULT 'discuss',
    amount DOUBLE PRECISION NOT NULL DEFAULT 0,
    request JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_orders_lookup ON orders (customer_id, provider_id, listing_id, created_at);

CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL DEFAULT 'chat',
    title TEXT NOT NULL DEFAULT '',
    last_message TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS conversation_members (
    conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    PRIMARY KEY (conversation_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    user_id TEXT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, created_at);

CREATE TABLE IF NOT EXISTS reviews (
    id TEXT PRIMARY KEY,
    provider_id TEXT NOT NULL,
    order_id TEXT NOT NULL,
    author_id TEXT NOT NULL,
    rating INTEGER NOT NULL,
    text TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// column is an additive change applied after the base tables exist.
type column struct {
	table, name, ddl, backfill string
}

var columns = []column{
	{"providers", "bio", "TEXT NOT NULL DEFAULT ''", ""},
	{"providers", "location", "TEXT NOT NULL DEFAULT ''", ""},
	{"providers", "email", "TEXT NOT NULL DEFAULT ''", ""},
	{"providers", "phone", "TEXT NOT NULL DEFAULT ''", ""},
	{"providers", "website", "TEXT NOT NULL DEFAULT ''", ""},
	{"providers", "hourly_rate", "DOUBLE PRECISION NOT NULL DEFAULT 0", ""},
	{"providers", "availability", "TEXT NOT NULL DEFAULT ''", ""},
	{"providers", "attributes", "JSONB NOT NULL DEFAULT '{}'::jsonb", ""},
	{"providers", "updated_at", "TIMESTAMPTZ DEFAULT NOW()", "UPDATE providers SET updated_at = created_at WHERE updated_at IS NULL"},
	{"listings", "updated_at", "TIMESTAMPTZ DEFAULT NOW()", "UPDATE listings SET updated_at = created_at WHERE updated_at IS NULL"},
	{"listings", "version", "INTEGER NOT NULL DEFAULT 1", ""},
	{"interactions", "reference", "TEXT NOT NULL DEFAULT ''", ""},
	{"orders", "conversation_id", "TEXT NULL", "UPDATE orders SET conversation_id = request->>'conversationId' WHERE conversation_id IS NULL"},
	{"orders", "updated_at", "TIMESTAMPTZ DEFAULT NOW()", "UPDATE orders SET updated_at = created_at WHERE updated_at IS NULL"},
	{"orders", "version", "INTEGER NOT NULL DEFAULT 1", ""},
	{"conversations", "updated_at", "TIMESTAMPTZ DEFAULT NOW()", "UPDATE conversations SET updated_at = created_at WHERE updated_at IS NULL"},
}

// EnsureSchema creates missing tables and adds missing columns. It never
// drops or renames anything, so it is safe to run on every start.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if _, err := pool.Exec(ctx, baseSchema); err != nil {
		return fmt.Errorf("create base schema: %w", err)
	}
	for _, c := range columns {
		ensureColumn(ctx, pool, logger, c)
	}
	if _, err := pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_orders_conversation ON orders (conversation_id)`); err != nil {
		logger.Warn("failed to create orders conversation index", slog.Any("error", err))
	}
	return nil
}

// ensureColumn adds table.name if missing. Failures are logged and skipped;
// the dependent feature then reports storage errors at request time.
func ensureColumn(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, c column) {
	var exists bool
	err := pool.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM information_schema.columns
            WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2
        )`, c.table, c.name).Scan(&exists)
	if err != nil {
		logger.Warn("schema check failed", slog.String("table", c.table), slog.String("column", c.name), slog.Any("error", err))
		return
	}
	if exists {
		return
	}

	stmt := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s`, c.table, c.name, c.ddl)
	if _, err := pool.Exec(ctx, stmt); err != nil {
		logger.Warn("failed to add column", slog.String("table", c.table), slog.String("column", c.name), slog.Any("error", err))
		return
	}
	if c.backfill != "" {
		if _, err := pool.Exec(ctx, c.backfill); err != nil {
			logger.Warn("failed to backfill column", slog.String("table", c.table), slog.String("column", c.name), slog.Any("error", err))
		}
	}
	logger.Info("column ensured", slog.String("table", c.table), slog.String("column", c.name))
}
