// Package tenant provides tenant records, request-scoped tenant binding and
// the HTTP gate that resolves the tenant of every inbound request.
//
// # Architecture
//
// The package is built around four pieces:
//
// 1. Store - persists tenant records (MemoryStore, PostgresStore)
// 2. Registry - administrative CRUD plus signal resolution with caching
// 3. Resolver - extracts a resolution signal from a request (domain or header)
// 4. Middleware - the gate that binds the resolved tenant to the request context
//
// Exactly one resolution strategy is active per process. It is chosen once at
// startup with NewResolver:
//
//	resolver, err := tenant.NewResolver(tenant.StrategyHeader, "X-Tenant-ID")
//	registry := tenant.NewRegistry(tenant.NewPostgresStore(pool),
//		tenant.WithCache(tenant.NewMemoryCache(1000, 5*time.Minute)),
//	)
//	router.Use(tenant.Middleware(resolver, registry,
//		tenant.WithSkipPaths([]string{"/health"}),
//	))
//
// Only active tenants resolve. Inactive and suspended tenants are treated
// exactly like unknown ones and yield ErrTenantNotResolved, which the default
// error handler renders as 400 Bad Request. There is no default tenant.
//
// # Context
//
// The resolved tenant travels in the request context. A binding is immutable:
// WithTenant refuses to rebind a context that already carries a tenant.
//
//	t := tenant.MustFromContext(ctx) // panics when no tenant is bound
//	id, ok := tenant.IDFromContext(ctx)
//
// # Status changes
//
// Tenants are never deleted. Registry.SetStatus moves a tenant between
// active, inactive and suspended and notifies registered StatusListeners,
// which is how routed database connections get closed on suspension.
package tenant
