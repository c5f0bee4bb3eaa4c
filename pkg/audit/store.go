package audit

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Store persists audit records. It is append-only: records are never
// updated or deleted. Query returns records newest first.
type Store interface {
	Append(ctx context.Context, r Record) error
	Query(ctx context.Context, f Filter) ([]Record, error)
}

// BatchAppender is implemented by stores that can insert many records at once.
type BatchAppender interface {
	AppendBatch(ctx context.Context, records []Record) error
}

// Counter is implemented by stores that can count matches without loading them.
type Counter interface {
	Count(ctx context.Context, f Filter) (int64, error)
}

// Filter selects audit records. Zero fields do not constrain the result.
// From and To bound a closed interval on the record timestamp.
type Filter struct {
	TenantID      string    `json:"tenant_id,omitempty"`
	UserID        string    `json:"user_id,omitempty"`
	Action        Action    `json:"action,omitempty"`
	EntityType    string    `json:"entity_type,omitempty"`
	EntityID      string    `json:"entity_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Success       *bool     `json:"success,omitempty"`
	From          time.Time `json:"from,omitzero"`
	To            time.Time `json:"to,omitzero"`
	Limit         int       `json:"limit,omitempty"`
	Offset        int       `json:"offset,omitempty"`
}

// Validate rejects filters no store could answer.
func (f Filter) Validate() error {
	switch {
	case f.Limit < 0 || f.Offset < 0:
		return fmt.Errorf("%w: negative limit or offset", ErrInvalidFilter)
	case !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From):
		return fmt.Errorf("%w: end before start", ErrInvalidFilter)
	case f.Action != "" && !f.Action.Valid():
		return fmt.Errorf("%w: unknown action %q", ErrInvalidFilter, f.Action)
	}
	return nil
}

// Match reports whether r satisfies every set criterion.
func (f Filter) Match(r *Record) bool {
	switch {
	case f.TenantID != "" && r.TenantID != f.TenantID,
		f.UserID != "" && r.UserID != f.UserID,
		f.Action != "" && r.Action != f.Action,
		f.EntityType != "" && r.EntityType != f.EntityType,
		f.EntityID != "" && r.EntityID != f.EntityID,
		f.CorrelationID != "" && r.CorrelationID != f.CorrelationID,
		f.Success != nil && r.Success != *f.Success,
		!f.From.IsZero() && r.CreatedAt.Before(f.From),
		!f.To.IsZero() && r.CreatedAt.After(f.To):
		return false
	}
	return true
}

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, r Record) error {
	return s.AppendBatch(ctx, []Record{r})
}

func (s *MemoryStore) AppendBatch(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records = append(s.records, r.Clone())
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, f Filter) ([]Record, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var out []Record
	// newest insert first so equal timestamps keep insertion recency
	for i := len(s.records) - 1; i >= 0; i-- {
		if f.Match(&s.records[i]) {
			out = append(out, s.records[i].Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Record) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return paginate(out, f.Offset, f.Limit), nil
}

func (s *MemoryStore) Count(ctx context.Context, f Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for i := range s.records {
		if f.Match(&s.records[i]) {
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func paginate(records []Record, offset, limit int) []Record {
	if offset >= len(records) {
		return nil
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}
