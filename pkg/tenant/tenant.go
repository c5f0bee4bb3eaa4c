package tenant

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a tenant. Tenants are never hard-deleted;
// they move between statuses instead.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}

// Tenant is an isolated customer/organization unit with its own data scope.
type Tenant struct {
	ID        uuid.UUID      `json:"id"`
	Code      string         `json:"code"`
	Domain    string         `json:"domain"`
	Database  string         `json:"database"`
	Status    Status         `json:"status"`
	Config    map[string]any `json:"config,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// IsActive reports whether the tenant may serve requests.
func (t *Tenant) IsActive() bool {
	return t != nil && t.Status == StatusActive
}

// Clone returns a deep-enough copy so callers cannot mutate cached values.
func (t *Tenant) Clone() *Tenant {
	if t == nil {
		return nil
	}
	c := *t
	if t.Config != nil {
		c.Config = make(map[string]any, len(t.Config))
		for k, v := range t.Config {
			c.Config[k] = v
		}
	}
	return &c
}

// CreateParams holds the fields required to register a tenant.
type CreateParams struct {
	Code     string         `json:"code"`
	Domain   string         `json:"domain"`
	Database string         `json:"database"`
	Config   map[string]any `json:"config,omitempty"`
}

// UpdateParams holds the mutable fields of a tenant. Nil fields are left unchanged.
type UpdateParams struct {
	Code     *string        `json:"code,omitempty"`
	Domain   *string        `json:"domain,omitempty"`
	Database *string        `json:"database,omitempty"`
	Config   map[string]any `json:"config,omitempty"`
}

var codePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}$`)

// NormalizeCode trims and lower-cases a tenant code.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// NormalizeDomain lower-cases a host name and strips any port and trailing dot.
func NormalizeDomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if strings.HasPrefix(host, "[") {
		// IPv6 literal, never a tenant domain
		return ""
	}
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return strings.TrimSuffix(host, ".")
}

func validateCode(code string) error {
	if !codePattern.MatchString(code) {
		return ErrInvalidTenant
	}
	return nil
}

func validateDomain(domain string) error {
	if domain == "" || !strings.Contains(domain, ".") || strings.ContainsAny(domain, " /") {
		return ErrInvalidTenant
	}
	return nil
}
