// Package useragent classifies the User-Agent header of incoming requests.
//
// Middleware parses the header once and stores the result in the request
// context. The raw value, truncated to MaxLength, feeds the audit trail
// through AuditExtractor; the device class goes to logs through
// LoggerExtractor.
//
//	r.Use(useragent.Middleware)
//	capture := audit.NewCapture(store, audit.WithUserAgentExtractor(useragent.AuditExtractor()))
package useragent
