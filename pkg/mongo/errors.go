package mongo

import "errors"

var (
	ErrMissingURL  = errors.New("mongo: MONGODB_URL is not set")
	ErrConnect     = errors.New("mongo: deployment unreachable")
	ErrUnavailable = errors.New("mongo: deployment not answering")
)
