package main

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/stockline/stockline/core"
	"github.com/stockline/stockline/modules/auditlog"
	"github.com/stockline/stockline/modules/tenants"
	"github.com/stockline/stockline/pkg/audit"
	"github.com/stockline/stockline/pkg/clientip"
	"github.com/stockline/stockline/pkg/environment"
	"github.com/stockline/stockline/pkg/httpserver"
	"github.com/stockline/stockline/pkg/requestid"
	"github.com/stockline/stockline/pkg/tenant"
	"github.com/stockline/stockline/pkg/tenantdb"
	"github.com/stockline/stockline/pkg/useragent"
)

const readinessTimeout = 5 * time.Second

type routerDeps struct {
	env       environment.Environment
	log       *slog.Logger
	registry  *tenant.Registry
	resolver  tenant.Resolver
	conns     *tenantdb.Router
	capture   *audit.Capture
	queries   *audit.QueryService
	checks    []httpserver.Check
	skipPaths []string
}

// newRouter assembles the HTTP surface. Health and tenant administration are
// served without a tenant; everything under /api passes the tenant gate.
func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		requestid.Middleware,
		clientip.Middleware,
		useragent.Middleware,
		environment.Middleware(d.env),
		audit.CorrelationMiddleware,
	)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(d.log, readinessTimeout, d.checks...))

	r.Mount("/admin/tenants", tenants.NewService(d.registry, d.conns, d.capture, tenants.WithLogger(d.log)).Handle())

	r.Route("/api", func(api chi.Router) {
		api.Use(tenant.Middleware(d.resolver, d.registry,
			tenant.WithLogger(d.log),
			tenant.WithSkipPaths(d.skipPaths),
		))
		api.Get("/tenant", currentTenant(d.conns))
		api.Mount("/audit", auditlog.NewService(d.queries,
			auditlog.WithCapture(d.capture),
			auditlog.WithLogger(d.log),
		).Handle())
	})

	return r
}

type tenantStatus struct {
	ID       uuid.UUID     `json:"id"`
	Code     string        `json:"code"`
	Status   tenant.Status `json:"status"`
	Database string        `json:"database"`
}

// currentTenant reports the bound tenant and whether its database answers.
func currentTenant(conns *tenantdb.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := tenant.MustFromContext(r.Context())
		h, err := conns.FromContext(r.Context())
		if err == nil {
			err = h.Ping(r.Context())
		}
		if err != nil {
			core.Render(w, r, core.JSONError(routingError(err)))
			return
		}
		core.Render(w, r, core.JSON("tenant", tenantStatus{ID: t.ID, Code: t.Code, Status: t.Status, Database: "ok"}, nil))
	}
}

func routingError(err error) error {
	switch {
	case errors.Is(err, tenantdb.ErrConnectionEstablish), errors.Is(err, tenantdb.ErrRouterClosed):
		return core.ErrServiceUnavailable.WithCause(err)
	}
	return tenant.HTTPError(err)
}
