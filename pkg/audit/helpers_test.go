package audit_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stockline/stockline/pkg/audit"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// failingStore rejects every write.
type failingStore struct {
	*audit.MemoryStore
	err error
}

func (s failingStore) Append(context.Context, audit.Record) error { return s.err }

// blockingStore never finishes a write before the context ends.
type blockingStore struct {
	*audit.MemoryStore
}

func (s *blockingStore) Append(ctx context.Context, _ audit.Record) error {
	<-ctx.Done()
	return ctx.Err()
}

var errOutOfStock = errors.New("insufficient stock")

func record(id string, action audit.Action, entityType, entityID, user string, at time.Time, success bool) audit.Record {
	return audit.Record{
		ID:         id,
		TenantID:   "tenant-a",
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     user,
		UserEmail:  user + "@example.com",
		Success:    success,
		CreatedAt:  at,
	}
}
