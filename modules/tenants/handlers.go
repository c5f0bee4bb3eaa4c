package tenants

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stockline/stockline/core"
	"github.com/stockline/stockline/pkg/binder"
	"github.com/stockline/stockline/pkg/logger"
	"github.com/stockline/stockline/pkg/tenant"
)

func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req tenant.CreateParams
	if err := binder.Bind(r, &req, binder.JSON()); err != nil {
		s.fail(w, r, err)
		return
	}
	t, err := s.create(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	core.Render(w, r, core.JSONWithStatus(http.StatusCreated, "tenant_created", t, nil))
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.registry.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*tenant.Tenant{}
	}
	core.Render(w, r, core.JSON("tenants", list, map[string]any{"total": len(list)}))
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := binder.Bind(r, &req, binder.Path(chi.URLParam)); err != nil {
		s.fail(w, r, err)
		return
	}
	t, err := s.registry.Get(r.Context(), req.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	core.Render(w, r, core.JSON("tenant", t, nil))
}

func (s *Service) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := binder.Bind(r, &req, binder.Path(chi.URLParam), binder.JSON()); err != nil {
		s.fail(w, r, err)
		return
	}
	t, err := s.update(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	core.Render(w, r, core.JSON("tenant_updated", t, nil))
}

func (s *Service) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := binder.Bind(r, &req, binder.Path(chi.URLParam), binder.JSON()); err != nil {
		s.fail(w, r, err)
		return
	}
	t, err := s.setStatus(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	core.Render(w, r, core.JSON("tenant_status_changed", t, nil))
}

func (s *Service) handleConnections(w http.ResponseWriter, r *http.Request) {
	stats := s.conns.Stats()
	core.Render(w, r, core.JSON("tenant_connections", stats, map[string]any{"total": len(stats)}))
}

func (s *Service) handleCloseConnection(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := binder.Bind(r, &req, binder.Path(chi.URLParam)); err != nil {
		s.fail(w, r, err)
		return
	}
	s.conns.Close(r.Context(), req.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, binder.ErrUnsupportedMediaType), errors.Is(err, binder.ErrMissingContentType):
		err = errUnsupportedMediaType.WithCause(err)
	case errors.Is(err, binder.ErrFailedToParseJSON),
		errors.Is(err, binder.ErrFailedToParsePath),
		errors.Is(err, binder.ErrFailedToParseQuery):
		err = core.ErrBadRequest.WithCause(err)
	case errors.Is(err, tenant.ErrTenantNotFound):
		// a missing id on the admin surface is a client error, unlike routing
		err = core.ErrNotFound.WithCause(err)
	default:
		err = tenant.HTTPError(err)
	}

	if _, ok := core.AsHTTPError(err); !ok {
		s.logger.ErrorContext(r.Context(), "tenant admin request failed",
			slog.String("path", r.URL.Path), logger.Error(err))
	}
	core.Render(w, r, core.JSONError(err))
}

var errUnsupportedMediaType = core.NewHTTPError(http.StatusUnsupportedMediaType, "unsupported_media_type")
