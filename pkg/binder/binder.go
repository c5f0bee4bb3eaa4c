package binder

import "net/http"

// Func populates v from part of the request.
type Func func(r *http.Request, v any) error

// Bind applies binders to v in order and stops at the first failure.
func Bind(r *http.Request, v any, binders ...Func) error {
	for _, b := range binders {
		if err := b(r, v); err != nil {
			return err
		}
	}
	return nil
}
