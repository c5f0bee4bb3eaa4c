// Package audit captures an append-only trail of business operations and
// answers queries over it.
//
// # Capturing
//
// A [Capture] turns the outcome of an operation into a [Record]. Contextual
// identifiers (actor, tenant, IP, user agent, transaction and correlation
// ids) are read from the context before the operation runs. Exactly one
// record is written per operation, on success and on failure alike, and the
// operation's own error is returned unchanged. Writing a record never fails
// the operation: write errors are logged and the record is dropped.
//
// Service calls are audited by wrapping them:
//
//	adjust := audit.Wrap(capture, audit.Options[AdjustStock, *Product]{
//		Action:     audit.ActionAdjustment,
//		EntityType: "product",
//		EntityID:   func(_ AdjustStock, p *Product) string { return p.ID },
//		Before: func(ctx context.Context, req AdjustStock) (map[string]any, error) {
//			p, err := products.Get(ctx, req.ProductID)
//			return audit.Snapshot(p), err
//		},
//		After: func(_ AdjustStock, p *Product) map[string]any { return audit.Snapshot(p) },
//	}, products.Adjust)
//
// HTTP handlers are audited with [Capture.Middleware]; a response status of
// 400 or above is recorded as a failure.
//
// When both snapshots are present the record carries their field-level
// [Diff]. A missing snapshot on either side means no diff at all.
//
// # Storage
//
// [MemoryStore], [PostgresStore] and [MongoStore] implement [Store]. Stores
// that support bulk inserts can be fronted by an [AsyncWriter].
// A [Redactor] scrubs credentials and personal data from snapshots and
// captured bodies before they are written.
//
// # Querying
//
// [QueryService] provides entity trails, per-user activity, trailing-window
// statistics, filtered reports with summaries and CSV or JSON exports.
package audit
