package auditlog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockline/stockline/core"
	"github.com/stockline/stockline/pkg/audit"
	"github.com/stockline/stockline/pkg/binder"
	"github.com/stockline/stockline/pkg/logger"
)

// Export response headers.
const (
	HeaderTotalCount = "X-Total-Count"
	HeaderTruncated  = "X-Audit-Truncated"
)

// Queries is the read side of the audit trail. *audit.QueryService implements it.
type Queries interface {
	Trail(ctx context.Context, entityType, entityID string, limit int) ([]audit.Record, error)
	UserActivity(ctx context.Context, userID string, start, end time.Time) ([]audit.Record, error)
	Statistics(ctx context.Context, days int) (*audit.Statistics, error)
	Report(ctx context.Context, f audit.Filter) (*audit.Report, error)
	Export(ctx context.Context, w io.Writer, f audit.Filter, format audit.Format) (*audit.Summary, error)
}

// Service exposes the audit trail over HTTP.
type Service struct {
	queries Queries
	capture *audit.Capture
	logger  *slog.Logger
	now     func() time.Time
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

// WithCapture records every export as an EXPORT audit entry.
func WithCapture(c *audit.Capture) Option {
	return func(s *Service) { s.capture = c }
}

// WithClock overrides the time used in export file names.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the audit trail service.
func NewService(queries Queries, opts ...Option) *Service {
	if queries == nil {
		panic("auditlog: queries cannot be nil")
	}
	s := &Service{
		queries: queries,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle returns the audit trail routes.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()

	r.Get("/trail/{entityType}/{entityID}", s.handleTrail)
	r.Get("/users/{userID}", s.handleUserActivity)
	r.Get("/stats", s.handleStatistics)
	r.Get("/report", s.handleReport)
	r.Get("/export", s.handleExport)

	return r
}

type trailRequest struct {
	EntityType string `path:"entityType"`
	EntityID   string `path:"entityID"`
	Limit      int    `query:"limit"`
}

type userActivityRequest struct {
	UserID string    `path:"userID"`
	Start  time.Time `query:"start"`
	End    time.Time `query:"end"`
}

type statisticsRequest struct {
	Days int `query:"days"`
}

type filterRequest struct {
	UserID        string    `query:"user_id"`
	Action        string    `query:"action"`
	EntityType    string    `query:"entity_type"`
	EntityID      string    `query:"entity_id"`
	CorrelationID string    `query:"correlation_id"`
	Success       *bool     `query:"success"`
	From          time.Time `query:"from"`
	To            time.Time `query:"to"`
	Limit         int       `query:"limit"`
	Offset        int       `query:"offset"`
	Format        string    `query:"format"`
}

func (f filterRequest) filter() audit.Filter {
	return audit.Filter{
		UserID:        f.UserID,
		Action:        audit.Action(strings.ToUpper(strings.TrimSpace(f.Action))),
		EntityType:    f.EntityType,
		EntityID:      f.EntityID,
		CorrelationID: f.CorrelationID,
		Success:       f.Success,
		From:          f.From,
		To:            f.To,
		Limit:         f.Limit,
		Offset:        f.Offset,
	}
}

func (s *Service) handleTrail(w http.ResponseWriter, r *http.Request) {
	var req trailRequest
	if err := binder.Bind(r, &req, binder.Path(chi.URLParam), binder.Query()); err != nil {
		s.fail(w, r, err)
		return
	}
	records, err := s.queries.Trail(r.Context(), req.EntityType, req.EntityID, req.Limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderRecords(w, r, "audit_trail", records)
}

func (s *Service) handleUserActivity(w http.ResponseWriter, r *http.Request) {
	var req userActivityRequest
	if err := binder.Bind(r, &req, binder.Path(chi.URLParam), binder.Query()); err != nil {
		s.fail(w, r, err)
		return
	}
	records, err := s.queries.UserActivity(r.Context(), req.UserID, req.Start, req.End)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderRecords(w, r, "user_activity", records)
}

func (s *Service) handleStatistics(w http.ResponseWriter, r *http.Request) {
	var req statisticsRequest
	if err := binder.Bind(r, &req, binder.Query()); err != nil {
		s.fail(w, r, err)
		return
	}
	stats, err := s.queries.Statistics(r.Context(), req.Days)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	core.Render(w, r, core.JSON("audit_statistics", stats, nil))
}

func (s *Service) handleReport(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := binder.Bind(r, &req, binder.Query()); err != nil {
		s.fail(w, r, err)
		return
	}
	report, err := s.queries.Report(r.Context(), req.filter())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	core.Render(w, r, core.JSON("audit_report", report, nil))
}

// handleExport buffers the whole export so a failing query still yields a
// JSON error instead of a truncated download.
func (s *Service) handleExport(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := binder.Bind(r, &req, binder.Query()); err != nil {
		s.fail(w, r, err)
		return
	}
	format, err := audit.ParseFormat(req.Format)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	start := time.Now()
	filter := req.filter()
	var buf bytes.Buffer
	summary, err := s.queries.Export(r.Context(), &buf, filter, format)
	s.recordExport(r.Context(), filter, format, summary, err, time.Since(start))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	filename := audit.ReportFilename(format, s.now())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set(HeaderTotalCount, strconv.FormatInt(summary.TotalMatching, 10))
	w.Header().Set(HeaderTruncated, strconv.FormatBool(summary.Truncated))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.WarnContext(r.Context(), "audit export write failed", logger.Error(err))
	}
}

func (s *Service) recordExport(ctx context.Context, f audit.Filter, format audit.Format, summary *audit.Summary, err error, elapsed time.Duration) {
	if s.capture == nil {
		return
	}
	meta := map[string]any{
		"format": string(format),
		"filter": audit.Snapshot(f),
	}
	if summary != nil {
		meta["exported"] = summary.Total
		meta["truncated"] = summary.Truncated
	}
	s.capture.Record(ctx, audit.Entry{
		Action:     audit.ActionExport,
		EntityType: "audit_report",
		Metadata:   meta,
		Err:        err,
		Duration:   elapsed,
	})
}

func (s *Service) renderRecords(w http.ResponseWriter, r *http.Request, code string, records []audit.Record) {
	if records == nil {
		records = []audit.Record{}
	}
	core.Render(w, r, core.JSON(code, records, map[string]any{"total": len(records)}))
}

func (s *Service) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, binder.ErrFailedToParseQuery),
		errors.Is(err, binder.ErrFailedToParsePath),
		errors.Is(err, audit.ErrInvalidFilter),
		errors.Is(err, audit.ErrUnsupportedFormat):
		err = core.ErrBadRequest.WithCause(err)
	case errors.Is(err, audit.ErrStorageTimeout):
		err = core.ErrGatewayTimeout.WithCause(err)
	case errors.Is(err, audit.ErrStorageNotAvailable):
		err = core.ErrServiceUnavailable.WithCause(err)
	}

	if _, ok := core.AsHTTPError(err); !ok {
		s.logger.ErrorContext(r.Context(), "audit query failed",
			slog.String("path", r.URL.Path), logger.Error(err))
	}
	core.Render(w, r, core.JSONError(err))
}
