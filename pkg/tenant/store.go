package tenant

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Store persists tenant records. Implementations must enforce code and domain
// uniqueness, returning ErrDuplicateCode / ErrDuplicateDomain, and return
// ErrTenantNotFound for missing records.
type Store interface {
	Create(ctx context.Context, t *Tenant) error
	Update(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetByCode(ctx context.Context, code string) (*Tenant, error)
	GetByDomain(ctx context.Context, domain string) (*Tenant, error)
	List(ctx context.Context) ([]*Tenant, error)
}

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*Tenant
	codes   map[string]uuid.UUID
	domains map[string]uuid.UUID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[uuid.UUID]*Tenant),
		codes:   make(map[string]uuid.UUID),
		domains: make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) Create(_ context.Context, t *Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.codes[t.Code]; ok {
		return ErrDuplicateCode
	}
	if _, ok := s.domains[t.Domain]; ok {
		return ErrDuplicateDomain
	}
	s.byID[t.ID] = t.Clone()
	s.codes[t.Code] = t.ID
	s.domains[t.Domain] = t.ID
	return nil
}

func (s *MemoryStore) Update(_ context.Context, t *Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[t.ID]
	if !ok {
		return ErrTenantNotFound
	}
	if id, ok := s.codes[t.Code]; ok && id != t.ID {
		return ErrDuplicateCode
	}
	if id, ok := s.domains[t.Domain]; ok && id != t.ID {
		return ErrDuplicateDomain
	}

	delete(s.codes, current.Code)
	delete(s.domains, current.Domain)
	s.byID[t.ID] = t.Clone()
	s.codes[t.Code] = t.ID
	s.domains[t.Domain] = t.ID
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[id]
	if !ok {
		return nil, ErrTenantNotFound
	}
	return t.Clone(), nil
}

func (s *MemoryStore) GetByCode(ctx context.Context, code string) (*Tenant, error) {
	s.mu.RLock()
	id, ok := s.codes[code]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrTenantNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *MemoryStore) GetByDomain(ctx context.Context, domain string) (*Tenant, error) {
	s.mu.RLock()
	id, ok := s.domains[domain]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrTenantNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *MemoryStore) List(_ context.Context) ([]*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Tenant, 0, len(s.byID))
	for _, t := range s.byID {
		out = append(out, t.Clone())
	}
	slices.SortFunc(out, func(a, b *Tenant) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}
