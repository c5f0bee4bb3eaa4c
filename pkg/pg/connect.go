package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Option adjusts the parsed pool configuration before the pool is opened.
type Option func(*pgxpool.Config)

// WithSearchPath pins every connection of the pool to the given schema.
func WithSearchPath(schema string) Option {
	return func(c *pgxpool.Config) {
		if schema == "" {
			return
		}
		if c.ConnConfig.RuntimeParams == nil {
			c.ConnConfig.RuntimeParams = make(map[string]string)
		}
		c.ConnConfig.RuntimeParams["search_path"] = schema
	}
}

// WithDatabase replaces the database name of the connection string.
func WithDatabase(name string) Option {
	return func(c *pgxpool.Config) {
		if name != "" {
			c.ConnConfig.Database = name
		}
	}
}

// Connect opens a PostgreSQL pool, retrying with linear backoff until the
// database answers a ping or the attempts are used up. Cancelling ctx aborts
// the remaining attempts.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*pgxpool.Pool, error) {
	connConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	connConfig.MaxConns = cfg.MaxOpenConns
	connConfig.MinConns = cfg.MaxIdleConns
	connConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	connConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	connConfig.MaxConnLifetime = cfg.MaxConnLifetime
	for _, opt := range opts {
		opt(connConfig)
	}

	attempts := max(cfg.RetryAttempts, 1)
	var lastErr error
	for i := range attempts {
		if i > 0 {
			if err := sleep(ctx, time.Duration(i)*cfg.RetryInterval); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrConnect, err)
			}
		}

		pool, err := pgxpool.NewWithConfig(ctx, connConfig)
		if err != nil {
			lastErr = err
			continue
		}
		// Catch authentication and permission issues before handing the pool out.
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			lastErr = err
			continue
		}
		return pool, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrConnect, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
