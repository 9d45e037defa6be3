package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	applicationName = "seller-payouts"
	// Ledger transactions are short; anything slower is holding balance row locks.
	statementTimeout = "15s"
	lockTimeout      = "5s"
)

// Connect opens the ledger pool. Every session is tagged with the
// application name and bounded statement and lock timeouts.
func Connect(ctx context.Context, dbURL string, maxConns int32) (*pgxpool.Pool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	config.MinConns = min(2, config.MaxConns)
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	params := config.ConnConfig.RuntimeParams
	if _, ok := params["application_name"]; !ok {
		params["application_name"] = applicationName
	}
	if _, ok := params["statement_timeout"]; !ok {
		params["statement_timeout"] = statementTimeout
	}
	if _, ok := params["lock_timeout"]; !ok {
		params["lock_timeout"] = lockTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	return pool, nil
}
