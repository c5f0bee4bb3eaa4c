package tenantdb

import "errors"

var (
	// ErrConnectionEstablish is returned when a tenant database cannot be reached.
	// Failures are never cached; the next call retries.
	ErrConnectionEstablish = errors.New("failed to establish tenant connection")

	// ErrRouterClosed is returned once the router has been shut down.
	ErrRouterClosed = errors.New("tenant connection router closed")

	// ErrInvalidDatabaseRef is returned when a tenant database reference cannot
	// be turned into a connection target.
	ErrInvalidDatabaseRef = errors.New("invalid tenant database reference")
)
