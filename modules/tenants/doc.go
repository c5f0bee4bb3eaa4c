// Package tenants is the tenant administration module.
//
// It exposes create, list, read, update and status changes for tenants plus
// a view of the routed tenant database connections:
//
//	POST   /                 create a tenant (201)
//	GET    /                 list tenants in every status
//	GET    /connections      cached tenant connections
//	GET    /{id}             read one tenant
//	PATCH  /{id}             update code, domain, database or config
//	POST   /{id}/status      {"status": "suspended", "reason": "..."}
//	DELETE /{id}/connection  drop the cached connection of a tenant
//
// Mutations run through audit.Wrap, so each one leaves exactly one audit
// record with before and after snapshots. Records are stamped with the id of
// the administered tenant, so they appear in that tenant's scoped audit
// queries. Database references are stored with any password redacted.
//
// The routes administer tenants and must be mounted outside the tenant
// resolution gate:
//
//	admin := tenants.NewService(registry, connRouter, capture, tenants.WithLogger(log))
//	r.Mount("/admin/tenants", admin.Handle())
package tenants
