// Package auditlog serves the audit trail.
//
//	GET /trail/{entityType}/{entityID}?limit=50
//	GET /users/{userID}?start=2025-05-01&end=2025-05-31T23:59:59Z
//	GET /stats?days=30
//	GET /report?action=UPDATE&entity_type=product&success=false&from=...&to=...
//	GET /export?format=csv&...report filters...
//
// Mounted behind the tenant gate, every query is confined to the tenant of
// the request by the audit.QueryService tenant extractor. Exports are sent
// as attachments named audit_report_<date>.<csv|json> and, when a capture is
// configured, are themselves recorded with the EXPORT action.
package auditlog
