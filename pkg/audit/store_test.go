package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockline/stockline/pkg/audit"
)

func seedStore(t *testing.T) (*audit.MemoryStore, time.Time) {
	t.Helper()

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	store := audit.NewMemoryStore()
	records := []audit.Record{
		record("r1", audit.ActionCreate, "product", "p-1", "alice", base, true),
		record("r2", audit.ActionUpdate, "product", "p-1", "bob", base.Add(time.Hour), true),
		record("r3", audit.ActionStockOut, "product", "p-2", "alice", base.Add(2*time.Hour), false),
		record("r4", audit.ActionUpdate, "warehouse", "w-1", "carol", base.Add(3*time.Hour), true),
	}
	other := record("r5", audit.ActionUpdate, "product", "p-1", "dave", base.Add(4*time.Hour), true)
	other.TenantID = "tenant-b"
	records = append(records, other)

	require.NoError(t, store.AppendBatch(context.Background(), records))
	return store, base
}

func ids(records []audit.Record) []string {
	out := make([]string, len(records))
	for i := range records {
		out[i] = records[i].ID
	}
	return out
}

func TestMemoryStore_Query(t *testing.T) {
	t.Parallel()

	store, base := seedStore(t)
	failed := false

	tests := []struct {
		name   string
		filter audit.Filter
		want   []string
	}{
		{"all newest first", audit.Filter{}, []string{"r5", "r4", "r3", "r2", "r1"}},
		{"tenant", audit.Filter{TenantID: "tenant-a"}, []string{"r4", "r3", "r2", "r1"}},
		{"entity", audit.Filter{TenantID: "tenant-a", EntityType: "product", EntityID: "p-1"}, []string{"r2", "r1"}},
		{"user", audit.Filter{UserID: "alice"}, []string{"r3", "r1"}},
		{"action", audit.Filter{Action: audit.ActionUpdate}, []string{"r5", "r4", "r2"}},
		{"failures", audit.Filter{Success: &failed}, []string{"r3"}},
		{"closed interval", audit.Filter{From: base.Add(time.Hour), To: base.Add(3 * time.Hour)}, []string{"r4", "r3", "r2"}},
		{"limit", audit.Filter{Limit: 2}, []string{"r5", "r4"}},
		{"offset", audit.Filter{Limit: 2, Offset: 3}, []string{"r2", "r1"}},
		{"offset past end", audit.Filter{Offset: 10}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestMemoryStore_EqualTimestampsKeepInsertRecency(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	store := audit.NewMemoryStore()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(context.Background(), record(id, audit.ActionRead, "product", "p", "u", at, true)))
	}

	got, err := store.Query(context.Background(), audit.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(got))
}

func TestMemoryStore_RejectsInvalidRecords(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	err := store.Append(context.Background(), audit.Record{ID: "x", Action: "EXPLODE", EntityType: "product", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, audit.ErrInvalidRecord)
	assert.Zero(t, store.Len())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	r := record("r1", audit.ActionUpdate, "product", "p-1", "u", time.Now(), true)
	r.Metadata = map[string]any{"source": "api"}
	require.NoError(t, store.Append(context.Background(), r))

	r.Metadata["source"] = "changed"
	got, err := store.Query(context.Background(), audit.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "api", got[0].Metadata["source"])
}

func TestMemoryStore_Count(t *testing.T) {
	t.Parallel()

	store, _ := seedStore(t)
	n, err := store.Count(context.Background(), audit.Filter{EntityType: "product"})
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestFilter_Validate(t *testing.T) {
	t.Parallel()

	now := time.Now()
	assert.NoError(t, audit.Filter{}.Validate())
	assert.NoError(t, audit.Filter{From: now, To: now}.Validate())
	assert.ErrorIs(t, audit.Filter{Limit: -1}.Validate(), audit.ErrInvalidFilter)
	assert.ErrorIs(t, audit.Filter{Offset: -1}.Validate(), audit.ErrInvalidFilter)
	assert.ErrorIs(t, audit.Filter{From: now, To: now.Add(-time.Second)}.Validate(), audit.ErrInvalidFilter)
	assert.ErrorIs(t, audit.Filter{Action: "NOPE"}.Validate(), audit.ErrInvalidFilter)
}
