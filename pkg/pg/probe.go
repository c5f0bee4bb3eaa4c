package pg

import (
	"context"
	"fmt"
)

// Pinger is satisfied by *pgxpool.Pool and *pgx.Conn.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe adapts a pool to the readiness check signature used by httpserver.
func Probe(p Pinger) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil
	}
}
