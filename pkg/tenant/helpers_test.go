package tenant_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockline/stockline/pkg/tenant"
)

func newRegistry(t *testing.T, opts ...tenant.RegistryOption) *tenant.Registry {
	t.Helper()
	return tenant.NewRegistry(tenant.NewMemoryStore(), opts...)
}

func mustCreate(t *testing.T, r *tenant.Registry, code, domain string) *tenant.Tenant {
	t.Helper()
	created, err := r.Create(context.Background(), tenant.CreateParams{
		Code:     code,
		Domain:   domain,
		Database: "db_" + code,
	})
	require.NoError(t, err)
	return created
}
