package tenants

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stockline/stockline/pkg/audit"
	"github.com/stockline/stockline/pkg/tenant"
	"github.com/stockline/stockline/pkg/tenantdb"
)

// EntityType is the audit entity type of tenant records.
const EntityType = "tenant"

// Registry is the subset of *tenant.Registry the admin service needs.
type Registry interface {
	Create(ctx context.Context, p tenant.CreateParams) (*tenant.Tenant, error)
	Update(ctx context.Context, id uuid.UUID, p tenant.UpdateParams) (*tenant.Tenant, error)
	SetStatus(ctx context.Context, id uuid.UUID, status tenant.Status) (*tenant.Tenant, error)
	Get(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
	List(ctx context.Context) ([]*tenant.Tenant, error)
}

// Connections is the subset of *tenantdb.Router the admin service needs.
type Connections interface {
	Stats() []tenantdb.ConnStats
	Close(ctx context.Context, id uuid.UUID)
}

type updateRequest struct {
	ID uuid.UUID `json:"-" path:"id"`
	tenant.UpdateParams
}

type statusRequest struct {
	ID     uuid.UUID     `json:"-" path:"id"`
	Status tenant.Status `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

type idRequest struct {
	ID uuid.UUID `path:"id"`
}

// Service exposes tenant administration over HTTP. Every mutation is audited.
type Service struct {
	registry Registry
	conns    Connections
	capture  *audit.Capture
	logger   *slog.Logger

	create    audit.Operation[tenant.CreateParams, *tenant.Tenant]
	update    audit.Operation[updateRequest, *tenant.Tenant]
	setStatus audit.Operation[statusRequest, *tenant.Tenant]
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for unexpected errors.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates the tenant admin service.
func NewService(registry Registry, conns Connections, capture *audit.Capture, opts ...Option) *Service {
	if registry == nil || conns == nil || capture == nil {
		panic("tenants: registry, connections and audit capture are required")
	}
	s := &Service{
		registry: registry,
		conns:    conns,
		capture:  capture,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.create = audit.Wrap(capture, audit.Options[tenant.CreateParams, *tenant.Tenant]{
		Action:     audit.ActionCreate,
		EntityType: EntityType,
		EntityID: func(_ tenant.CreateParams, t *tenant.Tenant) string {
			return t.ID.String()
		},
		TenantID: func(_ tenant.CreateParams, t *tenant.Tenant) string {
			if t == nil {
				return ""
			}
			return t.ID.String()
		},
		After: func(_ tenant.CreateParams, t *tenant.Tenant) map[string]any {
			return snapshot(t)
		},
	}, func(ctx context.Context, p tenant.CreateParams) (*tenant.Tenant, error) {
		return s.registry.Create(ctx, p)
	})

	s.update = audit.Wrap(capture, audit.Options[updateRequest, *tenant.Tenant]{
		Action:          audit.ActionUpdate,
		EntityType:      EntityType,
		RequestEntityID: func(req updateRequest) string { return req.ID.String() },
		TenantID:        func(req updateRequest, _ *tenant.Tenant) string { return req.ID.String() },
		Before: func(ctx context.Context, req updateRequest) (map[string]any, error) {
			return s.before(ctx, req.ID)
		},
		After: func(_ updateRequest, t *tenant.Tenant) map[string]any {
			return snapshot(t)
		},
	}, func(ctx context.Context, req updateRequest) (*tenant.Tenant, error) {
		return s.registry.Update(ctx, req.ID, req.UpdateParams)
	})

	s.setStatus = audit.Wrap(capture, audit.Options[statusRequest, *tenant.Tenant]{
		Action:          audit.ActionUpdate,
		EntityType:      EntityType,
		RequestEntityID: func(req statusRequest) string { return req.ID.String() },
		TenantID:        func(req statusRequest, _ *tenant.Tenant) string { return req.ID.String() },
		RequestReason:   func(req statusRequest) string { return req.Reason },
		Before: func(ctx context.Context, req statusRequest) (map[string]any, error) {
			return s.before(ctx, req.ID)
		},
		After: func(_ statusRequest, t *tenant.Tenant) map[string]any {
			return snapshot(t)
		},
		Metadata: map[string]any{"operation": "status_change"},
	}, func(ctx context.Context, req statusRequest) (*tenant.Tenant, error) {
		return s.registry.SetStatus(ctx, req.ID, req.Status)
	})

	return s
}

// Handle returns the admin routes. Mount them outside the tenant gate.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.handleCreate)
	r.Get("/", s.handleList)
	r.Get("/connections", s.handleConnections)
	r.Get("/{id}", s.handleGet)
	r.Patch("/{id}", s.handleUpdate)
	r.Post("/{id}/status", s.handleSetStatus)
	r.With(s.capture.Middleware(audit.HTTPOptions{
		Action:        audit.ActionDelete,
		EntityType:    "tenant_connection",
		EntityIDParam: "id",
		TenantIDParam: "id",
		Reason:        "manual connection close",
	})).Delete("/{id}/connection", s.handleCloseConnection)

	return r
}

func (s *Service) before(ctx context.Context, id uuid.UUID) (map[string]any, error) {
	t, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return snapshot(t), nil
}

// snapshot flattens a tenant for the audit trail with database credentials removed.
func snapshot(t *tenant.Tenant) map[string]any {
	if t == nil {
		return nil
	}
	m := audit.Snapshot(t)
	if m != nil {
		m["database"] = redactDatabase(t.Database)
	}
	return m
}

func redactDatabase(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.User == nil {
		return ref
	}
	return u.Redacted()
}
