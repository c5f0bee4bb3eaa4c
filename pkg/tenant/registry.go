package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/stockline/stockline/core"
	"github.com/stockline/stockline/pkg/logger"
)

// StatusListener is notified after a tenant changes status.
type StatusListener func(ctx context.Context, t *Tenant, previous Status)

// ChangeListener is notified after any stored change to a tenant, including
// status changes, with the record before and after the write.
type ChangeListener func(ctx context.Context, previous, updated *Tenant)

// Registry stores tenant records and resolves tenants from request signals.
type Registry struct {
	store  Store
	cache  Cache
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	listeners []StatusListener
	changes   []ChangeListener

	// fillMu orders cache fills against invalidations. A fill whose store
	// read started before the latest invalidation is dropped.
	fillMu     sync.Mutex
	generation atomic.Uint64
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCache sets the cache used for signal resolution.
func WithCache(c Cache) RegistryOption {
	return func(r *Registry) {
		if c != nil {
			r.cache = c
		}
	}
}

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithStatusListener registers a callback run after every status change.
func WithStatusListener(fn StatusListener) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.listeners = append(r.listeners, fn)
		}
	}
}

// WithChangeListener registers a callback run after every tenant update.
func WithChangeListener(fn ChangeListener) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.changes = append(r.changes, fn)
		}
	}
}

// WithRegistryClock overrides the time source.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// Subscribe registers a status listener after construction, for collaborators
// that themselves depend on the registry.
func (r *Registry) Subscribe(fn StatusListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// OnChange registers a change listener after construction.
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, fn)
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store Store, opts ...RegistryOption) *Registry {
	if store == nil {
		panic("tenant: store cannot be nil")
	}
	r := &Registry{
		store:  store,
		cache:  NoopCache{},
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the active tenant matching the signal. Unknown, inactive
// and suspended tenants all yield ErrTenantNotResolved.
func (r *Registry) Resolve(ctx context.Context, sig Signal) (*Tenant, error) {
	if sig.Value == "" {
		return nil, ErrTenantNotResolved
	}
	key := sig.String()

	if t, ok := r.cache.Get(ctx, key); ok {
		if !t.IsActive() {
			return nil, ErrTenantNotResolved
		}
		return t, nil
	}

	gen := r.generation.Load()
	var (
		t   *Tenant
		err error
	)
	switch sig.Kind {
	case SignalCode:
		t, err = r.store.GetByCode(ctx, NormalizeCode(sig.Value))
	case SignalDomain:
		t, err = r.store.GetByDomain(ctx, NormalizeDomain(sig.Value))
	default:
		return nil, ErrTenantNotResolved
	}
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, ErrTenantNotResolved
		}
		return nil, fmt.Errorf("resolve tenant %s: %w", sig, err)
	}

	r.fill(ctx, key, t, gen)

	if !t.IsActive() {
		return nil, ErrTenantNotResolved
	}
	return t, nil
}

// Get returns a tenant by id regardless of status.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return r.store.GetByID(ctx, id)
}

// Lookup returns a tenant by id only if it is still active. It is the
// routing-time check: a tenant deactivated after request binding yields
// ErrTenantNotFound.
func (r *Registry) Lookup(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	t, err := r.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsActive() {
		return nil, fmt.Errorf("%w: tenant %s is %s", ErrTenantNotFound, id, t.Status)
	}
	return t, nil
}

// List returns every tenant, including inactive and suspended ones.
func (r *Registry) List(ctx context.Context) ([]*Tenant, error) {
	return r.store.List(ctx)
}

// Create registers a new active tenant.
func (r *Registry) Create(ctx context.Context, p CreateParams) (*Tenant, error) {
	now := r.now().UTC()
	t := &Tenant{
		ID:        uuid.New(),
		Code:      NormalizeCode(p.Code),
		Domain:    NormalizeDomain(p.Domain),
		Database:  p.Database,
		Status:    StatusActive,
		Config:    p.Config,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := validate(t); err != nil {
		return nil, err
	}
	if err := r.store.Create(ctx, t); err != nil {
		return nil, err
	}
	r.invalidate(ctx, t)
	r.logger.InfoContext(ctx, "tenant created", slog.String("tenant_id", t.ID.String()), slog.String("code", t.Code))
	return t, nil
}

// Update changes mutable tenant fields.
func (r *Registry) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*Tenant, error) {
	current, err := r.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := current.Clone()
	if p.Code != nil {
		updated.Code = NormalizeCode(*p.Code)
	}
	if p.Domain != nil {
		updated.Domain = NormalizeDomain(*p.Domain)
	}
	if p.Database != nil {
		updated.Database = *p.Database
	}
	if p.Config != nil {
		updated.Config = p.Config
	}
	updated.UpdatedAt = r.now().UTC()

	if err := validate(updated); err != nil {
		return nil, err
	}
	if err := r.store.Update(ctx, updated); err != nil {
		return nil, err
	}
	r.invalidate(ctx, current, updated)
	r.notifyChange(ctx, current, updated)
	return updated, nil
}

// SetStatus moves a tenant to the given status and notifies listeners.
func (r *Registry) SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Tenant, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatusTransition, status)
	}
	current, err := r.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current, nil
	}

	updated := current.Clone()
	updated.Status = status
	updated.UpdatedAt = r.now().UTC()
	if err := r.store.Update(ctx, updated); err != nil {
		return nil, err
	}
	r.invalidate(ctx, current, updated)

	r.logger.InfoContext(ctx, "tenant status changed",
		slog.String("tenant_id", id.String()),
		slog.String("from", string(current.Status)),
		slog.String("to", string(status)),
	)
	r.mu.RLock()
	listeners := slices.Clone(r.listeners)
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, updated, current.Status)
	}
	r.notifyChange(ctx, current, updated)
	return updated, nil
}

func (r *Registry) notifyChange(ctx context.Context, previous, updated *Tenant) {
	r.mu.RLock()
	changes := slices.Clone(r.changes)
	r.mu.RUnlock()
	for _, fn := range changes {
		fn(ctx, previous, updated)
	}
}

// fill caches t under key unless an invalidation ran since gen was read.
func (r *Registry) fill(ctx context.Context, key string, t *Tenant, gen uint64) {
	r.fillMu.Lock()
	defer r.fillMu.Unlock()
	if r.generation.Load() != gen {
		return
	}
	if err := r.cache.Set(ctx, key, t); err != nil {
		r.logger.WarnContext(ctx, "tenant cache write failed", slog.String("key", key), logger.Error(err))
	}
}

func (r *Registry) invalidate(ctx context.Context, tenants ...*Tenant) {
	r.fillMu.Lock()
	r.generation.Add(1)
	r.fillMu.Unlock()

	var keys []string
	for _, t := range tenants {
		keys = append(keys, cacheKeys(t)...)
	}
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.logger.WarnContext(ctx, "tenant cache invalidation failed", logger.Error(err))
	}
}

// validate reports every invalid field at once as a core.ValidationError
// that also matches ErrInvalidTenant.
func validate(t *Tenant) error {
	fields := core.NewValidationError()
	if err := validateCode(t.Code); err != nil {
		fields.Add("code", "must be 2-63 lowercase letters, digits or hyphens")
	}
	if err := validateDomain(t.Domain); err != nil {
		fields.Add("domain", "must be a dotted host name")
	}
	if t.Database == "" {
		fields.Add("database", "is required")
	}
	if fields.IsEmpty() {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidTenant, fields)
}
