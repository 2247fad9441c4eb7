package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool создаёт пул соединений. Доступность базы проверяется отдельно (Ping при старте).
func NewPool(ctx context.Context, url string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	return pool, nil
}

// Migrate создаёт таблицы профилей и журнала вердиктов, если их нет.
// snapshot хранится как JSON (не JSONB), чтобы исходные пейлоады истории сохранялись байт в байт.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS fraud_profiles (
			user_id       TEXT PRIMARY KEY,
			snapshot      JSON NOT NULL,
			overall_risk  DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_updated  TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_fraud_profiles_risk ON fraud_profiles(overall_risk);

		CREATE TABLE IF NOT EXISTS anomaly_verdicts (
			id           TEXT PRIMARY KEY,
			trace_id     TEXT NOT NULL DEFAULT '',
			user_id      TEXT NOT NULL,
			event_type   TEXT NOT NULL,
			is_anomaly   BOOLEAN NOT NULL,
			confidence   DOUBLE PRECISION NOT NULL,
			explanation  JSON NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_anomaly_verdicts_user ON anomaly_verdicts(user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}
