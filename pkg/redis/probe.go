package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Probe adapts a client to the readiness check signature used by httpserver.
func Probe(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil
	}
}
