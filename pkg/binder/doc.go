// Package binder populates request structs from HTTP requests.
//
// Each binder handles one source and only touches fields tagged for it, so
// binders can be chained over one struct:
//
//	type trailRequest struct {
//		EntityType string `path:"entityType"`
//		EntityID   string `path:"entityID"`
//		Limit      int    `query:"limit"`
//	}
//
//	var req trailRequest
//	err := binder.Bind(r, &req, binder.Path(chi.URLParam), binder.Query())
//
// Query and path values support strings, numbers, booleans, time.Time
// (RFC 3339 or YYYY-MM-DD), encoding.TextUnmarshaler types such as
// uuid.UUID, pointers for optional values and comma separated slices.
// Failures wrap one of the package's sentinel errors.
package binder
