package binder

import "net/http"

// Query binds URL query parameters using `query` struct tags.
func Query() Func {
	return func(r *http.Request, v any) error {
		return bindToStruct(v, "query", r.URL.Query(), ErrFailedToParseQuery)
	}
}

// Path binds route parameters using `path` struct tags. extractor is the
// router's parameter lookup, e.g. chi.URLParam.
func Path(extractor func(r *http.Request, name string) string) Func {
	return func(r *http.Request, v any) error {
		values := make(map[string][]string)
		lookup := func(name string) []string {
			if vals, ok := values[name]; ok {
				return vals
			}
			vals := []string{}
			if s := extractor(r, name); s != "" {
				vals = append(vals, s)
			}
			values[name] = vals
			return vals
		}
		return bindFields(v, "path", lookup, ErrFailedToParsePath)
	}
}
