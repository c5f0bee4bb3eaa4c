package binder

import "errors"

// Media type failures map to 415, parse failures to 400.
var (
	ErrUnsupportedMediaType = errors.New("binder: unsupported content type")
	ErrMissingContentType   = errors.New("binder: content type header is missing")
	ErrFailedToParseJSON    = errors.New("binder: malformed JSON body")
	ErrFailedToParseQuery   = errors.New("binder: malformed query string")
	ErrFailedToParsePath    = errors.New("binder: malformed path parameter")
)
