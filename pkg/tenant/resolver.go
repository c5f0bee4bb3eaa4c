package tenant

import (
	"fmt"
	"net/http"
	"strings"
)

// DefaultHeader is the request header carrying a tenant code for the header strategy.
const DefaultHeader = "X-Tenant-ID"

// Strategy names the resolution strategy used by the whole process.
type Strategy string

const (
	StrategyDomain Strategy = "domain"
	StrategyHeader Strategy = "header"
)

// SignalKind tells the registry which tenant field a signal is matched against.
type SignalKind string

const (
	SignalDomain SignalKind = "domain"
	SignalCode   SignalKind = "code"
)

// Signal is the request-carried piece of information used to identify a tenant.
type Signal struct {
	Kind  SignalKind
	Value string
}

func (s Signal) String() string {
	return string(s.Kind) + ":" + s.Value
}

// Resolver extracts a resolution signal from HTTP requests.
type Resolver interface {
	// Signal returns the signal carried by the request and false when the
	// request carries none.
	Signal(r *http.Request) (Signal, bool)
}

// DomainResolver matches the request host against tenant domains.
type DomainResolver struct{}

// NewDomainResolver creates a host-based resolver.
func NewDomainResolver() *DomainResolver {
	return &DomainResolver{}
}

// Signal extracts the normalized host (port stripped, lower-cased).
func (DomainResolver) Signal(r *http.Request) (Signal, bool) {
	host := r.Host
	if host == "" && r.URL != nil {
		host = r.URL.Host
	}
	domain := NormalizeDomain(host)
	if domain == "" {
		return Signal{}, false
	}
	return Signal{Kind: SignalDomain, Value: domain}, true
}

// HeaderResolver matches a request header against tenant codes.
type HeaderResolver struct {
	// HeaderName is the header to read. Lookup is case-insensitive.
	HeaderName string
}

// NewHeaderResolver creates a header resolver. An empty name defaults to X-Tenant-ID.
func NewHeaderResolver(headerName string) *HeaderResolver {
	if headerName == "" {
		headerName = DefaultHeader
	}
	return &HeaderResolver{HeaderName: headerName}
}

// Signal extracts the tenant code from the configured header.
func (h *HeaderResolver) Signal(r *http.Request) (Signal, bool) {
	// http.Header.Get canonicalizes the key, so any casing sent by the client matches.
	code := NormalizeCode(r.Header.Get(h.HeaderName))
	if code == "" {
		return Signal{}, false
	}
	return Signal{Kind: SignalCode, Value: code}, true
}

// NewResolver returns the resolver for the configured strategy. It is meant
// to be called once at startup.
func NewResolver(strategy Strategy, headerName string) (Resolver, error) {
	switch Strategy(strings.ToLower(string(strategy))) {
	case StrategyDomain:
		return NewDomainResolver(), nil
	case StrategyHeader, "":
		return NewHeaderResolver(headerName), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// ResolverFunc is an adapter to allow the use of ordinary functions as Resolvers.
type ResolverFunc func(r *http.Request) (Signal, bool)

// Signal calls f(r).
func (f ResolverFunc) Signal(r *http.Request) (Signal, bool) {
	return f(r)
}
