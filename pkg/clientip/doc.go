// Package clientip resolves the originating client address of an HTTP
// request deployed behind reverse proxies.
//
// A Resolver walks its trusted headers in order (by default
// CF-Connecting-IP, X-Forwarded-For, X-Real-IP) and returns the first valid
// address, falling back to the TCP peer. Only list headers your edge
// actually sets: anything else is client controlled.
//
//	res := clientip.NewResolver(clientip.WithHeaders("X-Forwarded-For"))
//	r.Use(res.Middleware)
//
// The resolved address is available through FromContext, and
// AuditExtractor copies it onto audit records.
package clientip
