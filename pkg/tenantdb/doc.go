// Package tenantdb routes each tenant to its own database connection.
//
// A [Router] keeps at most one live [Handle] per tenant. The first request for
// a tenant looks the tenant up, opens a connection through a [Connector] and
// caches it; concurrent first requests for the same tenant wait on that single
// attempt and receive the same handle. Failed attempts are not cached.
//
//	router := tenantdb.NewRouter(tenantdb.NewPgConnector(cfg, pgCfg), registry,
//		tenantdb.WithConfig(cfg),
//		tenantdb.WithLogger(log),
//	)
//	go router.Start(ctx) // idle eviction
//	defer router.Shutdown(ctx)
//
//	h, err := router.FromContext(r.Context())
//	pool, _ := tenantdb.Pool(h)
//
// Connections are dropped explicitly with [Router.Close], by the idle eviction
// loop, or when a tenant leaves the active status or moves to another
// database if [Router.ChangeListener] is registered with the tenant registry.
package tenantdb
