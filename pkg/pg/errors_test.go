package pg_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/stockline/stockline/pkg/pg"
)

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "tenants_code_key"}
	wrapped := fmt.Errorf("insert: %w", dup)

	assert.True(t, pg.IsDuplicateKeyError(wrapped))
	assert.Equal(t, "tenants_code_key", pg.ConstraintName(wrapped))
	assert.False(t, pg.IsDuplicateKeyError(&pgconn.PgError{Code: "23503"}))
	assert.False(t, pg.IsDuplicateKeyError(nil))
	assert.Empty(t, pg.ConstraintName(errors.New("plain")))

	assert.True(t, pg.IsNotFoundError(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	assert.False(t, pg.IsNotFoundError(nil))
}

type pingFunc func() error

func (f pingFunc) Ping(_ context.Context) error { return f() }

func TestProbe(t *testing.T) {
	t.Parallel()

	assert.NoError(t, pg.Probe(pingFunc(func() error { return nil }))(t.Context()))

	down := errors.New("connection refused")
	err := pg.Probe(pingFunc(func() error { return down }))(t.Context())
	assert.ErrorIs(t, err, pg.ErrUnavailable)
	assert.ErrorIs(t, err, down)
}

func TestMigrate_RequiresMigrations(t *testing.T) {
	t.Parallel()

	err := pg.Migrate(t.Context(), nil, nil, ".", pg.Config{}, nil)
	assert.ErrorIs(t, err, pg.ErrMigrationsMissing)

	err = pg.Migrate(t.Context(), nil, fstest.MapFS{}, "missing", pg.Config{}, nil)
	assert.ErrorIs(t, err, pg.ErrMigrationsMissing)
}

func TestConnect_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := pg.Connect(t.Context(), pg.Config{ConnectionString: "postgres://%zz"})
	assert.ErrorIs(t, err, pg.ErrInvalidConfig)
}
