package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// defaultMaxConns caps the pool when the config leaves
// database.max_connections unset or zero.
const defaultMaxConns = 25

// Connect opens a pgx pool against the given PostgreSQL URL and
// verifies the server is reachable before returning it.
func Connect(ctx context.Context, databaseURL string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = poolMaxConns(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Debug().Int32("max_conns", cfg.MaxConns).Msg("database pool ready")
	return pool, nil
}

func poolMaxConns(configured int) int32 {
	if configured <= 0 {
		return defaultMaxConns
	}
	return int32(configured)
}
