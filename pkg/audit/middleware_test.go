package audit_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockline/stockline/pkg/audit"
)

func newAuditedRouter(t *testing.T, store audit.Store, opts audit.HTTPOptions, h http.HandlerFunc) http.Handler {
	t.Helper()

	capture := audit.NewCapture(store, audit.WithRedactor(audit.NewRedactor()))
	r := chi.NewRouter()
	r.Use(audit.CorrelationMiddleware)
	r.With(capture.Middleware(opts)).Post("/products/{productID}", h)
	return r
}

func onlyRecord(t *testing.T, store *audit.MemoryStore) audit.Record {
	t.Helper()

	records, err := store.Query(context.Background(), audit.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	return records[0]
}

func TestMiddleware_Success(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	opts := audit.HTTPOptions{
		Action:          audit.ActionUpdate,
		EntityType:      "product",
		EntityIDParam:   "productID",
		IncludeRequest:  true,
		IncludeResponse: true,
	}
	handler := newAuditedRouter(t, store, opts, func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var in map[string]any
		_ = json.Unmarshal(body, &in)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": chi.URLParam(r, "productID"), "name": in["name"]})
	})

	req := httptest.NewRequest(http.MethodPost, "/products/p-42", strings.NewReader(`{"name":"Bolt","token":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(audit.HeaderCorrelationID, "corr-upstream")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"p-42","name":"Bolt"}`, rec.Body.String())
	assert.Equal(t, "corr-upstream", rec.Header().Get(audit.HeaderCorrelationID))

	got := onlyRecord(t, store)
	assert.True(t, got.Success)
	assert.Equal(t, "p-42", got.EntityID)
	assert.Equal(t, "corr-upstream", got.CorrelationID)
	assert.Equal(t, rec.Header().Get(audit.HeaderTransactionID), got.TransactionID)
	assert.Equal(t, http.MethodPost, got.Metadata["method"])
	assert.Equal(t, "/products/p-42", got.Metadata["path"])
	assert.Equal(t, http.StatusOK, got.Metadata["status"])
	assert.Equal(t, map[string]any{"name": "Bolt"}, got.Metadata["request"])
	assert.Equal(t, map[string]any{"id": "p-42", "name": "Bolt"}, got.Metadata["response"])
}

func TestMiddleware_ErrorStatusIsFailure(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	opts := audit.HTTPOptions{Action: audit.ActionUpdate, EntityType: "product", EntityIDParam: "productID"}
	handler := newAuditedRouter(t, store, opts, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	got := onlyRecord(t, store)
	assert.False(t, got.Success)
	assert.Equal(t, http.StatusText(http.StatusNotFound), got.ErrorMessage)
	assert.Equal(t, "missing", got.EntityID)
	assert.Equal(t, http.StatusNotFound, got.Metadata["status"])
}

func TestMiddleware_TenantIDParam(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	opts := audit.HTTPOptions{
		Action:        audit.ActionDelete,
		EntityType:    "tenant_connection",
		EntityIDParam: "productID",
		TenantIDParam: "productID",
	}
	handler := newAuditedRouter(t, store, opts, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/products/t-9", nil))

	got := onlyRecord(t, store)
	assert.Equal(t, "t-9", got.TenantID)
	assert.Equal(t, "t-9", got.EntityID)
}

func TestMiddleware_StoreFailureKeepsResponse(t *testing.T) {
	t.Parallel()

	store := failingStore{MemoryStore: audit.NewMemoryStore(), err: assert.AnError}
	capture := audit.NewCapture(store)
	handler := capture.Middleware(audit.HTTPOptions{Action: audit.ActionCreate, EntityType: "product"})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte("created"))
		}),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "created", rec.Body.String())
}

func TestMiddleware_Panic(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	capture := audit.NewCapture(store)
	handler := capture.Middleware(audit.HTTPOptions{Action: audit.ActionDelete, EntityType: "product"})(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
	)

	assert.PanicsWithValue(t, "boom", func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/products/1", nil))
	})

	got := onlyRecord(t, store)
	assert.False(t, got.Success)
	assert.Equal(t, "panic: boom", got.ErrorMessage)
}

func TestMiddleware_NonJSONBodyNotCaptured(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	opts := audit.HTTPOptions{Action: audit.ActionImport, EntityType: "product", IncludeRequest: true}
	var seen string
	handler := newAuditedRouter(t, store, opts, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen = string(body)
		w.WriteHeader(http.StatusAccepted)
	})

	req := httptest.NewRequest(http.MethodPost, "/products/batch", strings.NewReader("sku,qty\nA1,3\n"))
	req.Header.Set("Content-Type", "text/csv")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "sku,qty\nA1,3\n", seen)
	got := onlyRecord(t, store)
	assert.True(t, got.Success)
	assert.NotContains(t, got.Metadata, "request")
}

func TestCorrelationMiddleware(t *testing.T) {
	t.Parallel()

	var txn, corr string
	handler := audit.CorrelationMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		txn = audit.TransactionIDFromContext(r.Context())
		corr = audit.CorrelationIDFromContext(r.Context())
	}))

	t.Run("generates missing ids", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Regexp(t, `^txn_\d+_[0-9a-f]{9}$`, txn)
		assert.Regexp(t, `^corr_\d+_[0-9a-f]{9}$`, corr)
		assert.Equal(t, txn, rec.Header().Get(audit.HeaderTransactionID))
		assert.Equal(t, corr, rec.Header().Get(audit.HeaderCorrelationID))
	})

	t.Run("keeps valid inbound ids", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(audit.HeaderTransactionID, "txn-from-gateway")
		req.Header.Set(audit.HeaderCorrelationID, "corr-from-gateway")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "txn-from-gateway", txn)
		assert.Equal(t, "corr-from-gateway", corr)
	})

	t.Run("replaces malformed ids", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(audit.HeaderCorrelationID, "has space")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.NotEqual(t, "has space", corr)
		assert.True(t, strings.HasPrefix(corr, audit.CorrelationPrefix+"_"))
	})
}

func TestNewCorrelationID(t *testing.T) {
	t.Parallel()

	a := audit.NewCorrelationID("txn")
	b := audit.NewCorrelationID("txn")
	assert.Regexp(t, `^txn_\d{13}_[0-9a-f]{9}$`, a)
	assert.NotEqual(t, a, b)
}
