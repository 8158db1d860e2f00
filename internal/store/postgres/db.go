// Package postgres provides the PostgreSQL-backed implementation of the
// alert repository. The at-most-one-current invariant is enforced by a
// unique index on the correlation scope, and every write branch is a single
// conditional statement so concurrent writers serialize in the database.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"vigil-go/internal/config"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, cfg *config.PostgresConfig) (*DB, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
		cfg.MaxOpenConns,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxOpenConns
	poolConfig.MinConns = cfg.MaxIdleConns
	poolConfig.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Pool returns the underlying connection pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// RunMigrations creates the required database tables.
func (db *DB) RunMigrations(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS alerts (
			id VARCHAR(36) PRIMARY KEY,
			environment TEXT NOT NULL,
			resource TEXT NOT NULL,
			event TEXT NOT NULL,
			severity VARCHAR(20) NOT NULL,
			correlate TEXT[] NOT NULL DEFAULT '{}',
			status VARCHAR(20) NOT NULL,
			previous_severity VARCHAR(20) NOT NULL,
			previous_status VARCHAR(20) NOT NULL DEFAULT '',
			trend_indication VARCHAR(20) NOT NULL,
			value TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL DEFAULT '',
			"group" TEXT NOT NULL DEFAULT '',
			origin TEXT NOT NULL DEFAULT '',
			service TEXT[] NOT NULL DEFAULT '{}',
			tags TEXT[] NOT NULL DEFAULT '{}',
			attributes JSONB NOT NULL DEFAULT '{}',
			customer TEXT NOT NULL DEFAULT '',
			duplicate_count INTEGER NOT NULL DEFAULT 0,
			repeat BOOLEAN NOT NULL DEFAULT FALSE,
			timeout INTEGER NOT NULL DEFAULT 0,
			create_time TIMESTAMP WITH TIME ZONE NOT NULL,
			receive_time TIMESTAMP WITH TIME ZONE NOT NULL,
			last_receive_id VARCHAR(36) NOT NULL DEFAULT '',
			last_receive_time TIMESTAMP WITH TIME ZONE NOT NULL,
			update_time TIMESTAMP WITH TIME ZONE NOT NULL,
			history JSONB NOT NULL DEFAULT '[]'
		);

		-- At-most-one-current: one live record per correlation scope. The
		-- severity is deliberately not part of the key, because a severity
		-- change correlates instead of duplicating.
		CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_current
			ON alerts(environment, resource, event, customer);

		CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
		CREATE INDEX IF NOT EXISTS idx_alerts_environment ON alerts(environment);
		CREATE INDEX IF NOT EXISTS idx_alerts_last_receive ON alerts(last_receive_time);
	`

	_, err := db.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
