package audit_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockline/stockline/pkg/audit"
)

type batchRecorder struct {
	*audit.MemoryStore
	mu      sync.Mutex
	batches []int
}

func (s *batchRecorder) AppendBatch(ctx context.Context, records []audit.Record) error {
	s.mu.Lock()
	s.batches = append(s.batches, len(records))
	s.mu.Unlock()
	return s.MemoryStore.AppendBatch(ctx, records)
}

func (s *batchRecorder) sizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.batches...)
}

func TestAsyncWriter_FlushesBatches(t *testing.T) {
	t.Parallel()

	store := &batchRecorder{MemoryStore: audit.NewMemoryStore()}
	w, closeFn := audit.NewAsyncWriter(store, audit.AsyncOptions{BatchSize: 5, BatchTimeout: time.Hour})

	at := time.Now()
	for i := range 12 {
		require.NoError(t, w.Append(context.Background(), record(fmt.Sprintf("r%d", i), audit.ActionCreate, "product", "p", "u", at, true)))
	}
	require.NoError(t, closeFn(context.Background()))

	assert.Equal(t, 12, store.Len())
	assert.Equal(t, []int{5, 5, 2}, store.sizes())
}

func TestAsyncWriter_TimeoutFlush(t *testing.T) {
	t.Parallel()

	store := &batchRecorder{MemoryStore: audit.NewMemoryStore()}
	w, closeFn := audit.NewAsyncWriter(store, audit.AsyncOptions{BatchSize: 100, BatchTimeout: 10 * time.Millisecond})
	defer func() { _ = closeFn(context.Background()) }()

	require.NoError(t, w.Append(context.Background(), record("r1", audit.ActionCreate, "product", "p", "u", time.Now(), true)))
	assert.Eventually(t, func() bool {
		n, err := w.Count(context.Background(), audit.Filter{})
		return err == nil && n == 1
	}, time.Second, 5*time.Millisecond)
}

func TestAsyncWriter_RejectsAfterClose(t *testing.T) {
	t.Parallel()

	w, closeFn := audit.NewAsyncWriter(audit.NewMemoryStore(), audit.AsyncOptions{})
	require.NoError(t, closeFn(context.Background()))
	require.NoError(t, w.Close(context.Background()))

	err := w.Append(context.Background(), record("r1", audit.ActionCreate, "product", "p", "u", time.Now(), true))
	assert.ErrorIs(t, err, audit.ErrStorageNotAvailable)
}

func TestAsyncWriter_ValidatesBeforeQueueing(t *testing.T) {
	t.Parallel()

	w, closeFn := audit.NewAsyncWriter(audit.NewMemoryStore(), audit.AsyncOptions{})
	defer func() { _ = closeFn(context.Background()) }()

	err := w.Append(context.Background(), audit.Record{ID: "r1"})
	assert.ErrorIs(t, err, audit.ErrInvalidRecord)
}

func TestAsyncWriter_ConcurrentAppendAndClose(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStore()
	w, closeFn := audit.NewAsyncWriter(store, audit.AsyncOptions{BufferSize: 4, BatchSize: 3})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := w.Append(context.Background(), record(fmt.Sprintf("r%d", i), audit.ActionRead, "product", "p", "u", time.Now(), true))
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	time.Sleep(time.Millisecond)
	require.NoError(t, closeFn(context.Background()))
	wg.Wait()

	assert.Equal(t, accepted, store.Len())
}
