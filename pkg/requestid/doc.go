// Package requestid binds a request identifier to every HTTP request.
//
// The middleware reuses a well-formed inbound X-Request-ID header (letters,
// digits, '-' and '_', at most 128 characters) and generates a UUIDv4
// otherwise. The id is stored in the request context and echoed on the
// response.
//
//	r := chi.NewRouter()
//	r.Use(requestid.Middleware)
//
// LoggerExtractor feeds the id into slog records created through
// pkg/logger, and AuditExtractor copies it onto audit records:
//
//	capture := audit.NewCapture(store,
//		audit.WithRequestIDExtractor(requestid.AuditExtractor()),
//	)
package requestid
