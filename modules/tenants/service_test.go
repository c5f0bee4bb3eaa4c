package tenants_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockline/stockline/modules/tenants"
	"github.com/stockline/stockline/pkg/audit"
	"github.com/stockline/stockline/pkg/tenant"
	"github.com/stockline/stockline/pkg/tenantdb"
)

type fakeConnections struct {
	mu     sync.Mutex
	closed []uuid.UUID
	stats  []tenantdb.ConnStats
}

func (f *fakeConnections) Stats() []tenantdb.ConnStats { return f.stats }

func (f *fakeConnections) Close(_ context.Context, id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, id)
}

func (f *fakeConnections) closedIDs() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.closed...)
}

type env struct {
	registry *tenant.Registry
	conns    *fakeConnections
	records  *audit.MemoryStore
	handler  http.Handler
}

func setup(t *testing.T) *env {
	t.Helper()
	conns := &fakeConnections{}
	registry := tenant.NewRegistry(tenant.NewMemoryStore())
	registry.Subscribe(func(ctx context.Context, tn *tenant.Tenant, _ tenant.Status) {
		if !tn.IsActive() {
			conns.Close(ctx, tn.ID)
		}
	})
	records := audit.NewMemoryStore()
	svc := tenants.NewService(registry, conns, audit.NewCapture(records))
	return &env{registry: registry, conns: conns, records: records, handler: svc.Handle()}
}

func (e *env) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *env) auditRecords(t *testing.T) []audit.Record {
	t.Helper()
	out, err := e.records.Query(context.Background(), audit.Filter{})
	require.NoError(t, err)
	return out
}

type envelope[T any] struct {
	Code  string         `json:"code"`
	Data  T              `json:"data"`
	Meta  map[string]any `json:"meta"`
	Error *struct {
		Code    string              `json:"code"`
		Details map[string][]string `json:"details"`
	} `json:"error"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var out envelope[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func createTenant(t *testing.T, e *env, code string) tenant.Tenant {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/", `{"code":"`+code+`","domain":"`+code+`.example.com","database":"postgres://app:s3cret@db:5432/`+code+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[tenant.Tenant](t, rec).Data
}

func TestService_Create(t *testing.T) {
	t.Parallel()

	t.Run("creates an active tenant and audits it", func(t *testing.T) {
		t.Parallel()
		e := setup(t)

		created := createTenant(t, e, "acme")
		assert.Equal(t, "acme", created.Code)
		assert.Equal(t, tenant.StatusActive, created.Status)

		records := e.auditRecords(t)
		require.Len(t, records, 1)
		r := records[0]
		assert.Equal(t, audit.ActionCreate, r.Action)
		assert.Equal(t, tenants.EntityType, r.EntityType)
		assert.Equal(t, created.ID.String(), r.EntityID)
		assert.True(t, r.Success)
		assert.Nil(t, r.OldValues)
		assert.Equal(t, "acme", r.NewValues["code"])
		assert.NotContains(t, r.NewValues["database"], "s3cret")
		assert.Equal(t, created.ID.String(), r.TenantID)
	})

	t.Run("duplicate code is a conflict and is audited as a failure", func(t *testing.T) {
		t.Parallel()
		e := setup(t)
		createTenant(t, e, "acme")

		rec := e.do(t, http.MethodPost, "/", `{"code":"acme","domain":"other.example.com","database":"db"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "conflict", decode[any](t, rec).Code)

		records := e.auditRecords(t)
		require.Len(t, records, 2)
		assert.False(t, records[0].Success)
		assert.Equal(t, tenant.ErrDuplicateCode.Error(), records[0].ErrorMessage)
	})

	t.Run("invalid tenant data", func(t *testing.T) {
		t.Parallel()
		e := setup(t)

		rec := e.do(t, http.MethodPost, "/", `{"code":"A","domain":"nodot","database":""}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		body := decode[any](t, rec)
		assert.Equal(t, "validation_error", body.Code)
		require.NotNil(t, body.Error)
		assert.Contains(t, body.Error.Details, "code")
		assert.Contains(t, body.Error.Details, "domain")
		assert.Equal(t, []string{"is required"}, body.Error.Details["database"])
	})

	t.Run("malformed body is rejected before the operation runs", func(t *testing.T) {
		t.Parallel()
		e := setup(t)

		rec := e.do(t, http.MethodPost, "/", `{"code":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, e.auditRecords(t))
	})

	t.Run("wrong content type", func(t *testing.T) {
		t.Parallel()
		e := setup(t)

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("code=acme"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		e.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})
}

func TestService_Read(t *testing.T) {
	t.Parallel()
	e := setup(t)
	a := createTenant(t, e, "acme")
	createTenant(t, e, "globex")

	t.Run("get", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/"+a.ID.String(), "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, a.ID, decode[tenant.Tenant](t, rec).Data.ID)
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/"+uuid.NewString(), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/not-a-uuid", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[[]tenant.Tenant](t, rec)
		assert.Len(t, body.Data, 2)
		assert.EqualValues(t, 2, body.Meta["total"])
	})
}

func TestService_Update(t *testing.T) {
	t.Parallel()
	e := setup(t)
	a := createTenant(t, e, "acme")

	rec := e.do(t, http.MethodPatch, "/"+a.ID.String(), `{"domain":"acme.example.org"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "acme.example.org", decode[tenant.Tenant](t, rec).Data.Domain)

	records := e.auditRecords(t)
	require.Len(t, records, 2)
	r := records[0]
	assert.Equal(t, audit.ActionUpdate, r.Action)
	assert.Equal(t, a.ID.String(), r.EntityID)
	assert.Equal(t, audit.Change{From: "acme.example.com", To: "acme.example.org"}, r.Changes["domain"])
	assert.Equal(t, a.ID.String(), r.TenantID)

	t.Run("unknown id is audited with the requested id", func(t *testing.T) {
		id := uuid.New()
		rec := e.do(t, http.MethodPatch, "/"+id.String(), `{"domain":"x.example.org"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		latest := e.auditRecords(t)[0]
		assert.False(t, latest.Success)
		assert.Equal(t, id.String(), latest.EntityID)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := e.do(t, http.MethodPatch, "/"+a.ID.String(), `{"status":"inactive"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestService_SetStatus(t *testing.T) {
	t.Parallel()

	t.Run("suspending closes the routed connection", func(t *testing.T) {
		t.Parallel()
		e := setup(t)
		a := createTenant(t, e, "acme")

		rec := e.do(t, http.MethodPost, "/"+a.ID.String()+"/status", `{"status":"suspended","reason":"unpaid invoice"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, tenant.StatusSuspended, decode[tenant.Tenant](t, rec).Data.Status)
		assert.Equal(t, []uuid.UUID{a.ID}, e.conns.closedIDs())

		r := e.auditRecords(t)[0]
		assert.Equal(t, "unpaid invoice", r.Reason)
		assert.Equal(t, "status_change", r.Metadata["operation"])
		assert.Equal(t, audit.Change{From: "active", To: "suspended"}, r.Changes["status"])
	})

	t.Run("status change shows up in the tenant's audit trail", func(t *testing.T) {
		t.Parallel()
		e := setup(t)
		a := createTenant(t, e, "acme")
		createTenant(t, e, "globex")

		rec := e.do(t, http.MethodPost, "/"+a.ID.String()+"/status", `{"status":"inactive","reason":"offboarding"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		queries := audit.NewQueryService(e.records, audit.WithQueryTenantExtractor(tenant.AuditExtractor()))
		ctx, err := tenant.WithTenant(context.Background(), &a)
		require.NoError(t, err)

		trail, err := queries.Trail(ctx, tenants.EntityType, a.ID.String(), 0)
		require.NoError(t, err)
		require.Len(t, trail, 2)
		assert.Equal(t, "offboarding", trail[0].Reason)
		assert.Equal(t, audit.Change{From: "active", To: "inactive"}, trail[0].Changes["status"])
		assert.Equal(t, audit.ActionCreate, trail[1].Action)
	})

	t.Run("reactivating keeps connections", func(t *testing.T) {
		t.Parallel()
		e := setup(t)
		a := createTenant(t, e, "acme")
		_, err := e.registry.SetStatus(context.Background(), a.ID, tenant.StatusInactive)
		require.NoError(t, err)

		rec := e.do(t, http.MethodPost, "/"+a.ID.String()+"/status", `{"status":"active"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, e.conns.closedIDs(), 1)
	})

	t.Run("unknown status", func(t *testing.T) {
		t.Parallel()
		e := setup(t)
		a := createTenant(t, e, "acme")

		rec := e.do(t, http.MethodPost, "/"+a.ID.String()+"/status", `{"status":"deleted"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, e.auditRecords(t)[0].Success)
	})
}

func TestService_Connections(t *testing.T) {
	t.Parallel()
	e := setup(t)
	id := uuid.New()
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)
	e.conns.stats = []tenantdb.ConnStats{{TenantID: id, CreatedAt: now, LastUsed: now}}

	rec := e.do(t, http.MethodGet, "/connections", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[[]tenantdb.ConnStats](t, rec)
	require.Len(t, body.Data, 1)
	assert.Equal(t, id, body.Data[0].TenantID)

	rec = e.do(t, http.MethodDelete, "/"+id.String()+"/connection", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []uuid.UUID{id}, e.conns.closedIDs())

	r := e.auditRecords(t)[0]
	assert.Equal(t, audit.ActionDelete, r.Action)
	assert.Equal(t, "tenant_connection", r.EntityType)
	assert.Equal(t, id.String(), r.EntityID)
	assert.Equal(t, id.String(), r.TenantID)
	assert.True(t, r.Success)
}

func TestNewService_RequiresDependencies(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() {
		tenants.NewService(nil, &fakeConnections{}, audit.NewCapture(audit.NewMemoryStore()))
	})
}
