package tenant_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockline/stockline/pkg/tenant"
)

func TestContext(t *testing.T) {
	t.Parallel()

	t.Run("binds and reads tenant", func(t *testing.T) {
		t.Parallel()
		acme := &tenant.Tenant{ID: uuid.New(), Code: "acme", Status: tenant.StatusActive}

		ctx, err := tenant.WithTenant(context.Background(), acme)
		require.NoError(t, err)

		got, ok := tenant.FromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, acme.ID, got.ID)
		assert.True(t, tenant.Has(ctx))

		id, ok := tenant.IDFromContext(ctx)
		assert.True(t, ok)
		assert.Equal(t, acme.ID, id)
	})

	t.Run("binding is immutable", func(t *testing.T) {
		t.Parallel()
		first := &tenant.Tenant{ID: uuid.New(), Code: "first"}
		second := &tenant.Tenant{ID: uuid.New(), Code: "second"}

		ctx, err := tenant.WithTenant(context.Background(), first)
		require.NoError(t, err)

		same, err := tenant.WithTenant(ctx, second)
		assert.ErrorIs(t, err, tenant.ErrTenantAlreadyBound)
		assert.Equal(t, first.ID, tenant.MustID(same))
	})

	t.Run("bound value is a copy", func(t *testing.T) {
		t.Parallel()
		acme := &tenant.Tenant{ID: uuid.New(), Code: "acme", Config: map[string]any{"k": "v"}}

		ctx, err := tenant.WithTenant(context.Background(), acme)
		require.NoError(t, err)
		acme.Code = "mutated"
		acme.Config["k"] = "changed"

		got := tenant.MustFromContext(ctx)
		assert.Equal(t, "acme", got.Code)
		assert.Equal(t, "v", got.Config["k"])
	})

	t.Run("unset context fails loud", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		assert.False(t, tenant.Has(ctx))
		_, ok := tenant.IDFromContext(ctx)
		assert.False(t, ok)
		assert.Panics(t, func() { tenant.MustFromContext(ctx) })
		assert.Panics(t, func() { tenant.MustID(ctx) })
	})

	t.Run("nil tenant is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := tenant.WithTenant(context.Background(), nil)
		assert.ErrorIs(t, err, tenant.ErrNoTenantInContext)
	})
}

func TestContext_ConcurrentIsolation(t *testing.T) {
	t.Parallel()

	a := &tenant.Tenant{ID: uuid.New(), Code: "tenant-a"}
	b := &tenant.Tenant{ID: uuid.New(), Code: "tenant-b"}

	const workers = 64
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := range workers {
		want := a
		if i%2 == 1 {
			want = b
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, err := tenant.WithTenant(context.Background(), want)
			if err != nil {
				errs <- err
				return
			}
			for range 200 {
				if got := tenant.MustID(ctx); got != want.ID {
					errs <- fmt.Errorf("request for %s observed %s", want.Code, got)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	extract := tenant.LoggerExtractor()
	_, ok := extract(context.Background())
	assert.False(t, ok)

	acme := &tenant.Tenant{ID: uuid.New(), Code: "acme"}
	ctx, err := tenant.WithTenant(context.Background(), acme)
	require.NoError(t, err)

	attr, ok := extract(ctx)
	require.True(t, ok)
	assert.Equal(t, "tenant", attr.Key)

	id, ok := tenant.AuditExtractor()(ctx)
	require.True(t, ok)
	assert.Equal(t, acme.ID.String(), id)
}
