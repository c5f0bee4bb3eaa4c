package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// New connects to MongoDB and waits for a successful ping, retrying with
// linear backoff. Cancelling ctx aborts the remaining attempts.
func New(ctx context.Context, cfg Config) (*mongo.Client, error) {
	if cfg.ConnectionURL == "" {
		return nil, ErrMissingURL
	}
	opts := options.Client().
		ApplyURI(cfg.ConnectionURL).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime).
		SetRetryWrites(cfg.RetryWrites).
		SetRetryReads(cfg.RetryReads)

	var lastErr error
	for i := range max(cfg.RetryAttempts, 1) {
		if i > 0 {
			if err := sleep(ctx, time.Duration(i)*cfg.RetryInterval); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrConnect, err)
			}
		}

		client, err := mongo.Connect(opts)
		if err != nil {
			// invalid options, retrying cannot help
			return nil, fmt.Errorf("%w: %w", ErrConnect, err)
		}
		if lastErr = client.Ping(ctx, nil); lastErr == nil {
			return client, nil
		}
		_ = client.Disconnect(context.WithoutCancel(ctx))
	}

	return nil, fmt.Errorf("%w: %w", ErrConnect, lastErr)
}

// NewWithDatabase connects and returns cfg.Database.
func NewWithDatabase(ctx context.Context, cfg Config) (*mongo.Database, error) {
	client, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client.Database(cfg.Database), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
