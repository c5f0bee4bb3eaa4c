package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/stockline/stockline/pkg/logger"
)

// BatchStore is a Store able to insert records in bulk.
type BatchStore interface {
	Store
	BatchAppender
}

// AsyncOptions configures the batching and buffering behavior.
type AsyncOptions struct {
	BufferSize     int           // records queued in memory before writes fall through synchronously
	BatchSize      int           // records per bulk insert
	BatchTimeout   time.Duration // max time a partial batch waits
	StorageTimeout time.Duration // per-batch storage timeout
	Logger         *slog.Logger  // receives batch write failures
}

// AsyncWriter queues records and writes them in batches from a background
// goroutine. Append returns once the record is queued. When the queue is
// full the record is written synchronously so nothing is dropped.
type AsyncWriter struct {
	store   BatchStore
	queue   chan Record
	options AsyncOptions
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAsyncWriter starts the batching goroutine. The returned function drains
// the queue and stops it; call it on shutdown.
func NewAsyncWriter(store BatchStore, opts AsyncOptions) (*AsyncWriter, func(context.Context) error) {
	if store == nil {
		panic("audit: batch store cannot be nil")
	}

	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = 100 * time.Millisecond
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	aw := &AsyncWriter{
		store:   store,
		queue:   make(chan Record, opts.BufferSize),
		options: opts,
	}

	aw.wg.Add(1)
	go aw.worker()

	return aw, aw.Close
}

// Append queues r for the next batch.
func (aw *AsyncWriter) Append(ctx context.Context, r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}

	aw.mu.RLock()
	defer aw.mu.RUnlock()
	if aw.closed {
		return ErrStorageNotAvailable
	}

	select {
	case aw.queue <- r:
		return nil
	default:
		// queue full, keep the record by writing through
		return aw.store.AppendBatch(ctx, []Record{r})
	}
}

// Query reads from the underlying store. Queued records are not visible
// until their batch is written.
func (aw *AsyncWriter) Query(ctx context.Context, f Filter) ([]Record, error) {
	return aw.store.Query(ctx, f)
}

// Count delegates to the underlying store when it can count.
func (aw *AsyncWriter) Count(ctx context.Context, f Filter) (int64, error) {
	if c, ok := aw.store.(Counter); ok {
		return c.Count(ctx, f)
	}
	records, err := aw.store.Query(ctx, f)
	return int64(len(records)), err
}

func (aw *AsyncWriter) worker() {
	defer aw.wg.Done()

	batch := make([]Record, 0, aw.options.BatchSize)
	ticker := time.NewTicker(aw.options.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// detached from any request: callers are long gone by now
		ctx, cancel := context.WithTimeout(context.Background(), aw.options.StorageTimeout)
		defer cancel()

		if err := aw.store.AppendBatch(ctx, batch); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = errors.Join(ErrStorageTimeout, err)
			}
			aw.options.Logger.ErrorContext(ctx, "audit batch dropped",
				logger.Count(len(batch)),
				logger.Error(errors.Join(ErrPersist, err)),
			)
		}
		clear(batch)
		batch = batch[:0]
	}

	for {
		select {
		case r, ok := <-aw.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, r)
			if len(batch) >= aw.options.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Close stops accepting records and waits until queued ones are written or
// ctx expires.
func (aw *AsyncWriter) Close(ctx context.Context) error {
	aw.mu.Lock()
	if aw.closed {
		aw.mu.Unlock()
		return nil
	}
	aw.closed = true
	close(aw.queue)
	aw.mu.Unlock()

	done := make(chan struct{})
	go func() {
		aw.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
