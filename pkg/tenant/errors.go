package tenant

import "errors"

var (
	// ErrTenantNotResolved is returned when a request carries no resolution
	// signal or the signal matches no active tenant.
	ErrTenantNotResolved = errors.New("tenant not resolved")

	// ErrTenantNotFound is returned when a tenant cannot be found by id, or is
	// no longer active when a connection is routed for it.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrInvalidTenant is returned when tenant fields fail validation.
	ErrInvalidTenant = errors.New("invalid tenant data")

	// ErrDuplicateCode is returned when another tenant already uses the code.
	ErrDuplicateCode = errors.New("tenant code already in use")

	// ErrDuplicateDomain is returned when another tenant already uses the domain.
	ErrDuplicateDomain = errors.New("tenant domain already in use")

	// ErrInvalidStatusTransition is returned for unknown target statuses.
	ErrInvalidStatusTransition = errors.New("invalid tenant status transition")

	// ErrNoTenantInContext is returned when no tenant is bound to the context.
	ErrNoTenantInContext = errors.New("no tenant in context")

	// ErrTenantAlreadyBound is returned when a context already carries a tenant.
	ErrTenantAlreadyBound = errors.New("tenant already bound to context")

	// ErrUnknownStrategy is returned for unsupported resolution strategies.
	ErrUnknownStrategy = errors.New("unknown tenant resolution strategy")
)
