package config

import "errors"

var (
	ErrParsingConfig  = errors.New("config: environment does not match struct tags")
	ErrLoadingEnvFile = errors.New("config: reading .env file")
	ErrNilPointer     = errors.New("config: Load needs a non-nil pointer")
)
