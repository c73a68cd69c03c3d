package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const createAccountsSQL = `CREATE TABLE IF NOT EXISTS accounts (
	account_id    BIGINT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	display_name  TEXT NOT NULL DEFAULT '',
	roles         TEXT[] NOT NULL DEFAULT '{}',
	permissions   TEXT[] NOT NULL DEFAULT '{}',
	refresh_token TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// EnsureSchema creates the accounts table on startup when Postgres is configured.
func EnsureSchema(lc fx.Lifecycle, pool *pgxpool.Pool, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if pool == nil {
				return nil
			}
			if _, err := pool.Exec(ctx, createAccountsSQL); err != nil {
				return fmt.Errorf("ensure accounts schema: %w", err)
			}
			logger.Info("database schema ready")
			return nil
		},
	})
}
