package tenantdb

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
	"golang.org/x/sync/singleflight"

	"github.com/stockline/stockline/pkg/logger"
	"github.com/stockline/stockline/pkg/tenant"
)

// Handle is a live connection to a tenant database. *pgxpool.Pool satisfies it.
type Handle interface {
	Ping(ctx context.Context) error
	Close()
}

// Connector opens a connection to the database referenced by a tenant.
type Connector interface {
	Connect(ctx context.Context, t *tenant.Tenant) (Handle, error)
}

// ConnectorFunc is an adapter to allow the use of ordinary functions as Connectors.
type ConnectorFunc func(ctx context.Context, t *tenant.Tenant) (Handle, error)

// Connect calls f(ctx, t).
func (f ConnectorFunc) Connect(ctx context.Context, t *tenant.Tenant) (Handle, error) {
	return f(ctx, t)
}

// Lookup returns an active tenant by id. *tenant.Registry satisfies it.
type Lookup interface {
	Lookup(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
}

// ConnStats describes one cached connection.
type ConnStats struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
}

type entry struct {
	handle    Handle
	createdAt time.Time
	lastUsed  atomic.Int64 // unix nanoseconds
}

func (e *entry) touch(now time.Time) {
	e.lastUsed.Store(now.UnixNano())
}

func (e *entry) idle(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, e.lastUsed.Load()))
}

// Router hands out one connection per tenant. Cached lookups take a read
// lock only; creation is deduplicated per tenant id so concurrent first
// requests for the same tenant share a single connect while unrelated tenants
// never wait on each other.
type Router struct {
	connector Connector
	tenants   Lookup
	logger    *slog.Logger
	now       func() time.Time

	idleTimeout    time.Duration
	evictInterval  time.Duration
	pingAfter      time.Duration
	connectTimeout time.Duration

	mu     sync.RWMutex
	conns  map[uuid.UUID]*entry
	closes map[uuid.UUID]uint64 // bumped by Close, checked before caching
	closed bool
	group  singleflight.Group

	stopOnce sync.Once
	stop     chan struct{}
}

// Option configures a Router.
type Option func(*Router)

// WithConfig applies the timing settings of cfg. Zero values keep defaults.
func WithConfig(cfg Config) Option {
	return func(r *Router) {
		if cfg.IdleTimeout > 0 {
			r.idleTimeout = cfg.IdleTimeout
		}
		if cfg.EvictInterval > 0 {
			r.evictInterval = cfg.EvictInterval
		}
		if cfg.PingAfter > 0 {
			r.pingAfter = cfg.PingAfter
		}
		if cfg.ConnectTimeout > 0 {
			r.connectTimeout = cfg.ConnectTimeout
		}
	}
}

// WithIdleTimeout sets how long an unused connection survives eviction sweeps.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Router) { r.idleTimeout = d }
}

// WithPingAfter sets how long a connection may sit unused before it is
// pinged on the next Get. Zero disables liveness checks.
func WithPingAfter(d time.Duration) Option {
	return func(r *Router) { r.pingAfter = d }
}

// WithConnectTimeout bounds a single connection attempt.
func WithConnectTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.connectTimeout = d
		}
	}
}

// WithLogger sets the router logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRouter creates a router. It panics when connector or tenants is nil.
func NewRouter(connector Connector, tenants Lookup, opts ...Option) *Router {
	if connector == nil || tenants == nil {
		panic("tenantdb: connector and tenant lookup are required")
	}
	r := &Router{
		connector:      connector,
		tenants:        tenants,
		logger:         slog.New(slog.DiscardHandler),
		now:            time.Now,
		idleTimeout:    DefaultIdleTimeout,
		evictInterval:  DefaultEvictInterval,
		pingAfter:      DefaultPingAfter,
		connectTimeout: DefaultConnectTimeout,
		conns:          make(map[uuid.UUID]*entry),
		closes:         make(map[uuid.UUID]uint64),
		stop:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the connection for the tenant, opening it on first use.
//
// A tenant that is unknown or no longer active yields an error matching
// tenant.ErrTenantNotFound. Connect failures yield ErrConnectionEstablish and
// are not remembered.
func (r *Router) Get(ctx context.Context, id uuid.UUID) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	e, ok := r.conns[id]
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, ErrRouterClosed
	}

	if ok {
		now := r.now()
		if r.pingAfter <= 0 || e.idle(now) < r.pingAfter {
			e.touch(now)
			return e.handle, nil
		}
		err := e.handle.Ping(ctx)
		if err == nil {
			e.touch(r.now())
			return e.handle, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.WarnContext(ctx, "dropping dead tenant connection", logger.TenantID(id), logger.Error(err))
		r.evict(id, e)
	}

	ch := r.group.DoChan(id.String(), func() (any, error) {
		return r.create(context.WithoutCancel(ctx), id)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Handle), nil
	}
}

// FromContext returns the connection of the tenant bound to ctx.
func (r *Router) FromContext(ctx context.Context) (Handle, error) {
	id, ok := tenant.IDFromContext(ctx)
	if !ok {
		return nil, tenant.ErrNoTenantInContext
	}
	return r.Get(ctx, id)
}

// maxConnectAttempts bounds how often create starts over because the tenant
// was closed while its connection was being opened.
const maxConnectAttempts = 3

// create runs at most once at a time per tenant id.
func (r *Router) create(ctx context.Context, id uuid.UUID) (Handle, error) {
	for attempt := 1; ; attempt++ {
		h, superseded, err := r.connect(ctx, id)
		if err != nil || !superseded {
			return h, err
		}
		if attempt == maxConnectAttempts {
			return nil, fmt.Errorf("%w: tenant %s: closed %d times while connecting", ErrConnectionEstablish, id, attempt)
		}
	}
}

// connect looks the tenant up and opens its connection. A Close for the same
// tenant landing in between discards the fresh handle and reports superseded,
// so a suspended or moved tenant never gets a connection cached after it.
func (r *Router) connect(ctx context.Context, id uuid.UUID) (h Handle, superseded bool, err error) {
	r.mu.RLock()
	if e, ok := r.conns[id]; ok {
		r.mu.RUnlock()
		return e.handle, false, nil
	}
	gen := r.closes[id]
	r.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, r.connectTimeout)
	defer cancel()

	t, err := r.tenants.Lookup(ctx, id)
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("lookup tenant %s: %w", id, err)
	}

	start := r.now()
	h, err = r.connector.Connect(ctx, t)
	if err != nil {
		r.logger.ErrorContext(ctx, "tenant connection failed", logger.TenantID(id), logger.Error(err))
		return nil, false, fmt.Errorf("%w: tenant %s: %w", ErrConnectionEstablish, id, err)
	}
	if h == nil {
		return nil, false, fmt.Errorf("%w: tenant %s: connector returned no handle", ErrConnectionEstablish, id)
	}

	now := r.now()
	e := &entry{handle: h, createdAt: now}
	e.touch(now)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		h.Close()
		return nil, false, ErrRouterClosed
	}
	if r.closes[id] != gen {
		r.mu.Unlock()
		h.Close()
		r.logger.InfoContext(ctx, "tenant closed while connecting, retrying", logger.TenantID(id))
		return nil, true, nil
	}
	r.conns[id] = e
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "tenant connection opened",
		logger.TenantID(id),
		slog.String("code", t.Code),
		logger.Duration(now.Sub(start)),
	)
	return h, false, nil
}

// Close tears down and forgets the tenant's connection. A connection being
// opened for the tenant at the same time is discarded instead of cached.
func (r *Router) Close(ctx context.Context, id uuid.UUID) {
	r.mu.Lock()
	r.closes[id]++
	e, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	r.mu.Unlock()

	if ok {
		e.handle.Close()
		r.logger.InfoContext(ctx, "tenant connection closed", logger.TenantID(id))
	}
}

// CloseAll closes every cached connection. The router stays usable.
func (r *Router) CloseAll() int {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[uuid.UUID]*entry)
	r.mu.Unlock()

	for _, e := range conns {
		e.handle.Close()
	}
	return len(conns)
}

// evict removes e only if it is still the cached entry for id.
func (r *Router) evict(id uuid.UUID, e *entry) bool {
	r.mu.Lock()
	current, ok := r.conns[id]
	if !ok || current != e {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, id)
	r.mu.Unlock()

	e.handle.Close()
	return true
}

// EvictIdle closes connections unused for longer than the idle timeout and
// returns how many were closed.
func (r *Router) EvictIdle(ctx context.Context) int {
	if r.idleTimeout <= 0 {
		return 0
	}
	now := r.now()

	r.mu.RLock()
	var stale []uuid.UUID
	entries := make(map[uuid.UUID]*entry)
	for id, e := range r.conns {
		if e.idle(now) >= r.idleTimeout {
			stale = append(stale, id)
			entries[id] = e
		}
	}
	r.mu.RUnlock()

	n := 0
	for _, id := range stale {
		if r.evict(id, entries[id]) {
			n++
		}
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "evicted idle tenant connections", logger.Count(n))
	}
	return n
}

// Start runs the idle eviction loop until ctx is cancelled or the router is
// shut down.
func (r *Router) Start(ctx context.Context) error {
	if r.evictInterval <= 0 || r.idleTimeout <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(r.evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.stop:
			return nil
		case <-ticker.C:
			r.EvictIdle(ctx)
		}
	}
}

// Shutdown stops the eviction loop, rejects further Gets and closes every
// cached connection.
func (r *Router) Shutdown(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	n := r.CloseAll()
	r.logger.InfoContext(ctx, "tenant connection router stopped", logger.Count(n))
	return nil
}

// Len returns the number of cached connections.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Stats returns a snapshot of cached connections ordered by creation time.
func (r *Router) Stats() []ConnStats {
	r.mu.RLock()
	stats := make([]ConnStats, 0, len(r.conns))
	for id, e := range r.conns {
		stats = append(stats, ConnStats{
			TenantID:  id,
			CreatedAt: e.createdAt,
			LastUsed:  time.Unix(0, e.lastUsed.Load()),
		})
	}
	r.mu.RUnlock()

	slices.SortFunc(stats, func(a, b ConnStats) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return stats
}

// ChangeListener closes a tenant's connection as soon as the tenant stops
// being active or its database reference changes. Register it with
// tenant.Registry.OnChange.
func (r *Router) ChangeListener() tenant.ChangeListener {
	return func(ctx context.Context, previous, updated *tenant.Tenant) {
		if !updated.IsActive() || previous.Database != updated.Database {
			r.Close(ctx, updated.ID)
		}
	}
}
