// Package database owns Postgres access for the engine: a pgx connection
// pool serves request traffic, and a short-lived database/sql connection
// drives schema migrations at startup.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool tuning for the engine's request-path workload. Traffic is short
// single-statement commands; the conditional accept and scoring-claim
// updates hold a connection only for the life of one statement.
const (
	defaultMaxConns  = 25
	connMaxLifetime  = time.Hour
	connMaxIdleTime  = 30 * time.Minute
	healthCheckEvery = time.Minute
)

// DB wraps a pgxpool connection pool.
type DB struct {
	*pgxpool.Pool
}

// Connect opens a connection pool for the given connection string and
// verifies it with a ping. maxConns values of zero or below fall back to
// the engine default.
func Connect(ctx context.Context, connString string, maxConns int32) (*DB, error) {
	poolConfig, err := newPoolConfig(connString, maxConns)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

func newPoolConfig(connString string, maxConns int32) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	poolConfig.MaxConns = maxConns
	poolConfig.MaxConnLifetime = connMaxLifetime
	poolConfig.MaxConnIdleTime = connMaxIdleTime
	poolConfig.HealthCheckPeriod = healthCheckEvery

	return poolConfig, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
