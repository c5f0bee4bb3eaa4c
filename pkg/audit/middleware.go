package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultMaxBodyBytes caps captured request and response bodies.
const DefaultMaxBodyBytes = 64 << 10

// HTTPOptions describe how an HTTP handler is audited.
type HTTPOptions struct {
	Action     Action
	EntityType string
	// EntityIDParam names the chi URL parameter holding the entity id.
	EntityIDParam string
	// TenantIDParam names the chi URL parameter holding the tenant the
	// request acts on. It is used only when the context carries no tenant.
	TenantIDParam string
	Reason        string

	// IncludeRequest and IncludeResponse store JSON bodies up to
	// MaxBodyBytes in the record metadata.
	IncludeRequest  bool
	IncludeResponse bool
	MaxBodyBytes    int64
}

// Middleware audits every request passing through it. Responses with a
// status of 400 or above are recorded as failures. The response already
// produced by the handler is never altered by the audit write.
func (c *Capture) Middleware(opts HTTPOptions) func(http.Handler) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			rec := c.begin(ctx, opts.Action, opts.EntityType, opts.Reason)
			rec.Metadata = map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			}
			start := c.now()

			if opts.IncludeRequest && isJSON(r.Header.Get("Content-Type")) && r.Body != nil {
				body, err := peekBody(r, opts.MaxBodyBytes)
				if v := decodeBody(body); err == nil && v != nil {
					rec.Metadata["request"] = v
				}
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			var respBody *bytes.Buffer
			if opts.IncludeResponse {
				respBody = &bytes.Buffer{}
				ww.Tee(&limitedWriter{w: respBody, remaining: opts.MaxBodyBytes})
			}

			completed := false
			defer func() {
				if completed {
					return
				}
				p := recover()
				rec.EntityID = entityIDParam(r, opts.EntityIDParam)
				if p == nil {
					c.finish(ctx, rec, nil, nil, errors.New("handler aborted"), c.now().Sub(start))
					return
				}
				c.finish(ctx, rec, nil, nil, fmt.Errorf("panic: %v", p), c.now().Sub(start))
				panic(p)
			}()

			next.ServeHTTP(ww, r)
			completed = true

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			rec.Metadata["status"] = status
			rec.EntityID = entityIDParam(r, opts.EntityIDParam)
			if rec.TenantID == "" {
				rec.TenantID = entityIDParam(r, opts.TenantIDParam)
			}
			if respBody != nil && isJSON(ww.Header().Get("Content-Type")) {
				if v := decodeBody(respBody.Bytes()); v != nil {
					rec.Metadata["response"] = v
				}
			}

			var opErr error
			switch {
			case status >= http.StatusBadRequest:
				opErr = errors.New(http.StatusText(status))
			case ww.Status() == 0 && ctx.Err() != nil:
				rec.Metadata["aborted"] = ctx.Err().Error()
				opErr = fmt.Errorf("request aborted: %w", ctx.Err())
			}
			c.finish(ctx, rec, nil, nil, opErr, c.now().Sub(start))
		})
	}
}

func entityIDParam(r *http.Request, name string) string {
	if name == "" {
		return ""
	}
	return chi.URLParam(r, name)
}

// peekBody reads up to limit bytes and restores the full body for the handler.
func peekBody(r *http.Request, limit int64) ([]byte, error) {
	buf, err := io.ReadAll(io.LimitReader(r.Body, limit))
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(buf), r.Body), Closer: r.Body}
	return buf, err
}

type readCloser struct {
	io.Reader
	io.Closer
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && (mt == "application/json" || strings.HasSuffix(mt, "+json"))
}

func decodeBody(body []byte) any {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		// truncated or malformed, keep nothing rather than half a document
		return nil
	}
	return v
}

// limitedWriter silently drops bytes past its limit so the tee never fails
// the real response write.
type limitedWriter struct {
	w         io.Writer
	remaining int64
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if l.remaining <= 0 {
		return n, nil
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	written, err := l.w.Write(p)
	l.remaining -= int64(written)
	if err != nil {
		return written, err
	}
	return n, nil
}
