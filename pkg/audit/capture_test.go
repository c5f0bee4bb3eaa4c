package audit_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockline/stockline/pkg/audit"
)

type adjustReq struct {
	ProductID string `json:"product_id"`
	Delta     int    `json:"delta"`
	Password  string `json:"password"`
}

type product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

func adjustOptions() audit.Options[adjustReq, *product] {
	return audit.Options[adjustReq, *product]{
		Action:          audit.ActionAdjustment,
		EntityType:      "product",
		EntityID:        func(_ adjustReq, p *product) string { return p.ID },
		RequestEntityID: func(req adjustReq) string { return req.ProductID },
		Reason:          "cycle count",
		Before: func(_ context.Context, req adjustReq) (map[string]any, error) {
			return audit.Snapshot(product{ID: req.ProductID, Name: "Widget", Quantity: 10}), nil
		},
		After: func(_ adjustReq, p *product) map[string]any { return audit.Snapshot(p) },
	}
}

func adjust(_ context.Context, req adjustReq) (*product, error) {
	if 10+req.Delta < 0 {
		return nil, errOutOfStock
	}
	return &product{ID: req.ProductID, Name: "Widget", Quantity: 10 + req.Delta}, nil
}

func TestWrap_Success(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	clock := newFixedClock()
	capture := audit.NewCapture(store,
		audit.WithClock(clock.Now),
		audit.WithTenantExtractor(func(context.Context) (string, bool) { return "tenant-a", true }),
		audit.WithIPExtractor(func(context.Context) (string, bool) { return "203.0.113.7", true }),
	)
	op := audit.Wrap(capture, adjustOptions(), adjust)

	ctx := audit.WithActor(context.Background(), audit.Actor{ID: "u-1", Email: "ops@example.com"})
	ctx = audit.WithTransactionID(ctx, "txn_1_abc")
	p, err := op(ctx, adjustReq{ProductID: "p-1", Delta: -3})
	require.NoError(t, err)
	assert.Equal(t, 7, p.Quantity)

	records, err := store.Query(context.Background(), audit.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.True(t, rec.Success)
	assert.Empty(t, rec.ErrorMessage)
	assert.Equal(t, audit.ActionAdjustment, rec.Action)
	assert.Equal(t, "product", rec.EntityType)
	assert.Equal(t, "p-1", rec.EntityID)
	assert.Equal(t, "cycle count", rec.Reason)
	assert.Equal(t, "tenant-a", rec.TenantID)
	assert.Equal(t, "u-1", rec.UserID)
	assert.Equal(t, "ops@example.com", rec.UserEmail)
	assert.Equal(t, "203.0.113.7", rec.IPAddress)
	assert.Equal(t, "txn_1_abc", rec.TransactionID)
	assert.Regexp(t, `^corr_\d+_[0-9a-f]{9}$`, rec.CorrelationID)
	assert.Equal(t, clock.Now(), rec.CreatedAt)
	assert.Equal(t, audit.Changes{"quantity": {From: float64(10), To: float64(7)}}, rec.Changes)
}

func TestWrap_Failure(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	op := audit.Wrap(audit.NewCapture(store), adjustOptions(), adjust)

	_, err := op(context.Background(), adjustReq{ProductID: "p-1", Delta: -50})
	assert.Same(t, errOutOfStock, err)

	records, err := store.Query(context.Background(), audit.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.False(t, rec.Success)
	assert.Equal(t, errOutOfStock.Error(), rec.ErrorMessage)
	assert.Equal(t, "p-1", rec.EntityID)
	assert.NotNil(t, rec.OldValues)
	assert.Nil(t, rec.NewValues)
	assert.Nil(t, rec.Changes)
}

func TestWrap_TenantID(t *testing.T) {
	t.Parallel()

	opts := adjustOptions()
	opts.TenantID = func(req adjustReq, _ *product) string { return "owner-of-" + req.ProductID }

	t.Run("fills the tenant when the context has none", func(t *testing.T) {
		t.Parallel()
		store := audit.NewMemoryStore()
		op := audit.Wrap(audit.NewCapture(store), opts, adjust)

		_, err := op(context.Background(), adjustReq{ProductID: "p-1", Delta: -50})
		require.Error(t, err)

		records, err := store.Query(context.Background(), audit.Filter{TenantID: "owner-of-p-1"})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.False(t, records[0].Success)
	})

	t.Run("context tenant wins", func(t *testing.T) {
		t.Parallel()
		store := audit.NewMemoryStore()
		capture := audit.NewCapture(store,
			audit.WithTenantExtractor(func(context.Context) (string, bool) { return "tenant-a", true }),
		)
		op := audit.Wrap(capture, opts, adjust)

		_, err := op(context.Background(), adjustReq{ProductID: "p-1", Delta: 1})
		require.NoError(t, err)

		records, err := store.Query(context.Background(), audit.Filter{})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "tenant-a", records[0].TenantID)
	})
}

func TestWrap_Panic(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	op := audit.Wrap(audit.NewCapture(store), adjustOptions(), func(context.Context, adjustReq) (*product, error) {
		panic("ledger corrupted")
	})

	assert.PanicsWithValue(t, "ledger corrupted", func() {
		_, _ = op(context.Background(), adjustReq{ProductID: "p-9"})
	})

	records, err := store.Query(context.Background(), audit.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Success)
	assert.Equal(t, "panic: ledger corrupted", records[0].ErrorMessage)
	assert.Equal(t, "p-9", records[0].EntityID)
}

func TestWrap_StoreFailureIsLogged(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logs, nil))
	store := failingStore{MemoryStore: audit.NewMemoryStore(), err: assert.AnError}
	op := audit.Wrap(audit.NewCapture(store, audit.WithLogger(log)), adjustOptions(), adjust)

	p, err := op(context.Background(), adjustReq{ProductID: "p-1", Delta: 1})
	require.NoError(t, err)
	assert.Equal(t, 11, p.Quantity)

	_, err = op(context.Background(), adjustReq{ProductID: "p-1", Delta: -100})
	assert.Same(t, errOutOfStock, err)

	assert.Contains(t, logs.String(), "audit record not persisted")
	assert.Contains(t, logs.String(), assert.AnError.Error())
}

func TestWrap_WriteTimeout(t *testing.T) {
	t.Parallel()

	capture := audit.NewCapture(&blockingStore{MemoryStore: audit.NewMemoryStore()},
		audit.WithWriteTimeout(30*time.Millisecond))
	op := audit.Wrap(capture, adjustOptions(), adjust)

	start := time.Now()
	_, err := op(context.Background(), adjustReq{ProductID: "p-1"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWrap_CancelledContextStillRecorded(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	op := audit.Wrap(audit.NewCapture(store), adjustOptions(), func(ctx context.Context, _ adjustReq) (*product, error) {
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := op(ctx, adjustReq{ProductID: "p-1"})
	assert.ErrorIs(t, err, context.Canceled)

	records, err := store.Query(context.Background(), audit.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Success)
	assert.Equal(t, context.Canceled.Error(), records[0].Metadata["aborted"])
}

func TestWrap_PayloadsAreRedacted(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	opts := adjustOptions()
	opts.IncludeRequest = true
	opts.IncludeResponse = true
	opts.Metadata = map[string]any{"source": "scanner"}
	op := audit.Wrap(audit.NewCapture(store, audit.WithRedactor(audit.NewRedactor())), opts, adjust)

	_, err := op(context.Background(), adjustReq{ProductID: "p-1", Delta: 2, Password: "hunter2"})
	require.NoError(t, err)

	records, err := store.Query(context.Background(), audit.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	meta := records[0].Metadata
	assert.Equal(t, "scanner", meta["source"])
	req, ok := meta["request"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "p-1", req["product_id"])
	assert.NotContains(t, req, "password")
	resp, ok := meta["response"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(12), resp["quantity"])
}

func TestCapture_Record(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	capture := audit.NewCapture(store)

	capture.Record(context.Background(), audit.Entry{
		Action:     audit.ActionLogin,
		EntityType: "session",
		EntityID:   "s-1",
		Err:        assert.AnError,
	})

	records, err := store.Query(context.Background(), audit.Filter{Action: audit.ActionLogin})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Success)
	assert.Equal(t, "system", records[0].Actor())
}
