package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/stockline/stockline/pkg/logger"
)

// DefaultWriteTimeout bounds a single audit write.
const DefaultWriteTimeout = 5 * time.Second

// Extractor reads a string value from the request context.
type Extractor func(ctx context.Context) (string, bool)

// Capture records the outcome of business operations. Persisting a record
// never fails the operation: write errors are logged and dropped.
type Capture struct {
	store        Store
	logger       *slog.Logger
	writeTimeout time.Duration
	redactor     *Redactor
	now          func() time.Time

	tenantID  Extractor
	ip        Extractor
	userAgent Extractor
	requestID Extractor
	sessionID Extractor
	actor     func(ctx context.Context) (Actor, bool)
}

// Option configures a Capture.
type Option func(*Capture)

// WithLogger sets the logger receiving write failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Capture) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithWriteTimeout bounds each audit write. Non-positive values keep the default.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Capture) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// WithRedactor scrubs snapshots, captured bodies and metadata before writing.
func WithRedactor(r *Redactor) Option {
	return func(c *Capture) { c.redactor = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Capture) {
		if now != nil {
			c.now = now
		}
	}
}

func WithTenantExtractor(fn Extractor) Option {
	return func(c *Capture) { c.tenantID = fn }
}

func WithIPExtractor(fn Extractor) Option {
	return func(c *Capture) { c.ip = fn }
}

func WithUserAgentExtractor(fn Extractor) Option {
	return func(c *Capture) { c.userAgent = fn }
}

func WithRequestIDExtractor(fn Extractor) Option {
	return func(c *Capture) { c.requestID = fn }
}

func WithSessionIDExtractor(fn Extractor) Option {
	return func(c *Capture) { c.sessionID = fn }
}

// WithActorExtractor replaces the default actor lookup (ActorFromContext).
func WithActorExtractor(fn func(ctx context.Context) (Actor, bool)) Option {
	return func(c *Capture) {
		if fn != nil {
			c.actor = fn
		}
	}
}

// NewCapture creates a Capture writing to store.
func NewCapture(store Store, opts ...Option) *Capture {
	if store == nil {
		panic("audit: store cannot be nil")
	}
	c := &Capture{
		store:        store,
		logger:       slog.New(slog.DiscardHandler),
		writeTimeout: DefaultWriteTimeout,
		now:          time.Now,
		actor:        ActorFromContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Entry describes a finished operation for Capture.Record.
type Entry struct {
	Action     Action
	EntityType string
	EntityID   string
	Reason     string
	OldValues  map[string]any
	NewValues  map[string]any
	Metadata   map[string]any
	Err        error
	Duration   time.Duration
}

// Record persists an audit record for an operation that was not run through
// Wrap or Middleware, such as a login handled elsewhere.
func (c *Capture) Record(ctx context.Context, e Entry) {
	rec := c.begin(ctx, e.Action, e.EntityType, e.Reason)
	rec.EntityID = e.EntityID
	rec.Metadata = mergeMetadata(rec.Metadata, e.Metadata)
	c.finish(ctx, rec, e.OldValues, e.NewValues, e.Err, e.Duration)
}

// begin snapshots the contextual identifiers before the operation runs.
func (c *Capture) begin(ctx context.Context, action Action, entityType, reason string) Record {
	rec := Record{
		ID:            uuid.NewString(),
		Action:        action,
		EntityType:    entityType,
		Reason:        reason,
		TransactionID: TransactionIDFromContext(ctx),
		CorrelationID: CorrelationIDFromContext(ctx),
	}
	if rec.TransactionID == "" {
		rec.TransactionID = NewCorrelationID(TransactionPrefix)
	}
	if rec.CorrelationID == "" {
		rec.CorrelationID = NewCorrelationID(CorrelationPrefix)
	}

	if a, ok := c.actor(ctx); ok {
		rec.UserID = a.ID
		rec.UserEmail = a.Email
		rec.SessionID = a.SessionID
	}
	rec.TenantID = extract(ctx, c.tenantID)
	rec.IPAddress = extract(ctx, c.ip)
	rec.UserAgent = extract(ctx, c.userAgent)
	rec.RequestID = extract(ctx, c.requestID)
	if sid := extract(ctx, c.sessionID); sid != "" {
		rec.SessionID = sid
	}
	return rec
}

// finish completes rec with the operation outcome and persists it.
func (c *Capture) finish(ctx context.Context, rec Record, oldValues, newValues map[string]any, opErr error, elapsed time.Duration) {
	rec.OldValues = c.redactor.Redact(oldValues)
	rec.NewValues = c.redactor.Redact(newValues)
	rec.Success = opErr == nil
	if opErr != nil {
		rec.ErrorMessage = opErr.Error()
		rec.NewValues = nil
	} else {
		rec.Changes = Diff(rec.OldValues, rec.NewValues)
	}
	rec.Metadata = c.redactor.Redact(rec.Metadata)
	rec.DurationMS = elapsed.Milliseconds()
	rec.CreatedAt = c.now().UTC()

	c.persist(ctx, rec)
}

// persist writes on a context detached from the caller's cancellation so an
// aborted request is still recorded, bounded by the write timeout.
func (c *Capture) persist(ctx context.Context, rec Record) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.writeTimeout)
	defer cancel()

	if err := c.store.Append(ctx, rec); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.Join(ErrStorageTimeout, err)
		}
		c.logger.WarnContext(ctx, "audit record not persisted",
			logger.Action(string(rec.Action)),
			logger.Entity(rec.EntityType, rec.EntityID),
			logger.CorrelationID(rec.CorrelationID),
			logger.Error(errors.Join(ErrPersist, err)),
		)
	}
}

// Operation is a business operation that can be audited.
type Operation[Req, Res any] func(ctx context.Context, req Req) (Res, error)

// Options describe how an Operation is audited.
type Options[Req, Res any] struct {
	Action     Action
	EntityType string

	// EntityID derives the entity id from a successful result.
	EntityID func(req Req, res Res) string
	// RequestEntityID derives the entity id from the request alone. It is
	// used when the operation fails or EntityID yields nothing.
	RequestEntityID func(req Req) string

	// TenantID names the tenant the record belongs to when the context
	// carries none, such as admin operations acting on a tenant from
	// outside it. res is the zero value when op failed.
	TenantID func(req Req, res Res) string

	Reason string
	// RequestReason overrides Reason when it returns a non-empty string.
	RequestReason func(req Req) string

	// Before loads the old-value snapshot. A failing Before is logged and
	// leaves the snapshot empty; the operation still runs.
	Before func(ctx context.Context, req Req) (map[string]any, error)
	// After builds the new-value snapshot from a successful result.
	After func(req Req, res Res) map[string]any

	IncludeRequest  bool
	IncludeResponse bool
	Metadata        map[string]any
}

// Wrap returns op audited according to opts. Exactly one record is written
// per call. The error returned by op is passed through unchanged, and a panic
// in op is recorded as a failure before it propagates.
func Wrap[Req, Res any](c *Capture, opts Options[Req, Res], op Operation[Req, Res]) Operation[Req, Res] {
	if c == nil || op == nil {
		panic("audit: capture and operation are required")
	}

	return func(ctx context.Context, req Req) (res Res, err error) {
		rec := c.begin(ctx, opts.Action, opts.EntityType, opts.Reason)
		if opts.RequestReason != nil {
			if reason := opts.RequestReason(req); reason != "" {
				rec.Reason = reason
			}
		}
		rec.Metadata = maps.Clone(opts.Metadata)
		start := c.now()

		var oldValues map[string]any
		if opts.Before != nil {
			snapshot, berr := opts.Before(ctx, req)
			if berr != nil {
				c.logger.WarnContext(ctx, "audit snapshot failed",
					logger.Action(string(opts.Action)), logger.Error(berr))
			} else {
				oldValues = snapshot
			}
		}
		if opts.IncludeRequest {
			rec.Metadata = mergeMetadata(rec.Metadata, map[string]any{"request": toSnapshot(req)})
		}

		returned := false
		defer func() {
			if returned {
				return
			}
			p := recover()
			if opts.RequestEntityID != nil {
				rec.EntityID = opts.RequestEntityID(req)
			}
			if p == nil {
				// runtime.Goexit
				c.finish(ctx, rec, oldValues, nil, errors.New("operation aborted"), c.now().Sub(start))
				return
			}
			c.finish(ctx, rec, oldValues, nil, fmt.Errorf("panic: %v", p), c.now().Sub(start))
			panic(p)
		}()

		res, err = op(ctx, req)
		returned = true

		if err == nil && opts.EntityID != nil {
			rec.EntityID = opts.EntityID(req, res)
		}
		if rec.EntityID == "" && opts.RequestEntityID != nil {
			rec.EntityID = opts.RequestEntityID(req)
		}
		if rec.TenantID == "" && opts.TenantID != nil {
			rec.TenantID = opts.TenantID(req, res)
		}

		var newValues map[string]any
		if err == nil {
			if opts.After != nil {
				newValues = opts.After(req, res)
			}
			if opts.IncludeResponse {
				rec.Metadata = mergeMetadata(rec.Metadata, map[string]any{"response": toSnapshot(res)})
			}
		} else if ctxErr := ctx.Err(); ctxErr != nil {
			rec.Metadata = mergeMetadata(rec.Metadata, map[string]any{"aborted": ctxErr.Error()})
		}

		c.finish(ctx, rec, oldValues, newValues, err, c.now().Sub(start))
		return res, err
	}
}

func extract(ctx context.Context, fn Extractor) string {
	if fn == nil {
		return ""
	}
	if v, ok := fn(ctx); ok {
		return v
	}
	return ""
}

func mergeMetadata(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	maps.Copy(dst, src)
	return dst
}

// toSnapshot turns v into a JSON-shaped value so it can be redacted and stored.
func toSnapshot(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return string(data)
	}
	return out
}

// Snapshot converts a struct or map into a flat field map suitable for
// Options.Before and Options.After. Non-object values yield nil.
func Snapshot(v any) map[string]any {
	m, _ := toSnapshot(v).(map[string]any)
	return m
}
