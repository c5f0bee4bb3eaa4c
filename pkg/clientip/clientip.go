package clientip

import (
	"net"
	"net/http"
	"strings"
)

// DefaultHeaders is the proxy header priority used when none is configured.
var DefaultHeaders = []string{
	"CF-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// Resolver extracts the client address from a request, trusting the
// configured proxy headers in order before falling back to RemoteAddr.
type Resolver struct {
	headers []string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHeaders replaces the trusted header list. An empty list trusts only
// the TCP peer address.
func WithHeaders(headers ...string) Option {
	return func(r *Resolver) {
		r.headers = headers
	}
}

// NewResolver creates a resolver trusting DefaultHeaders unless overridden.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{headers: DefaultHeaders}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IP returns the normalized client address, or "" when nothing valid is found.
// X-Forwarded-For style lists yield their first valid entry.
func (res *Resolver) IP(r *http.Request) string {
	for _, h := range res.headers {
		value := r.Header.Get(h)
		if value == "" {
			continue
		}
		for candidate := range strings.SplitSeq(value, ",") {
			if ip := parseIP(candidate); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

// GetIP resolves the client address with the default header list.
func GetIP(r *http.Request) string {
	return defaultResolver.IP(r)
}

var defaultResolver = NewResolver()

func parseIP(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}
