package requestid

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

const (
	Header      = "X-Request-ID"
	maxIDLength = 128
)

var validID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Option configures the request id middleware.
type Option func(*options)

type options struct {
	header   string
	generate func() string
}

// WithHeader reads and echoes the id under a different header name.
func WithHeader(name string) Option {
	return func(o *options) {
		if name != "" {
			o.header = name
		}
	}
}

// WithGenerator replaces the UUIDv4 generator.
func WithGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.generate = fn
		}
	}
}

// New returns middleware that binds a request id to every request. A valid
// inbound id is reused, anything else is replaced by a generated one.
func New(opts ...Option) func(http.Handler) http.Handler {
	o := options{header: Header, generate: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(o.header)
			if !isValidRequestID(id) {
				id = o.generate()
			}
			w.Header().Set(o.header, id)
			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), id)))
		})
	}
}

// Middleware is New with default options.
func Middleware(next http.Handler) http.Handler {
	return New()(next)
}

func isValidRequestID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	return validID.MatchString(id)
}
