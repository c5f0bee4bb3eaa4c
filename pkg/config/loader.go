package config

import (
	"errors"
	"io/fs"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var defaultEnvLoaded sync.Once

// Option adjusts how environment variables are parsed.
type Option func(*env.Options)

// WithPrefix only considers variables starting with prefix. The prefix is
// stripped before tags are matched.
func WithPrefix(prefix string) Option {
	return func(o *env.Options) { o.Prefix = prefix }
}

// WithEnvironment parses from the given map instead of the process
// environment.
func WithEnvironment(vars map[string]string) Option {
	return func(o *env.Options) { o.Environment = vars }
}

// Load parses environment variables into v based on its env tags. The
// default .env file in the working directory is read once, if present, and
// never overrides variables already set.
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}
	defaultEnvLoaded.Do(func() {
		_ = godotenv.Load()
	})

	var o env.Options
	for _, opt := range opts {
		opt(&o)
	}
	if err := env.ParseWithOptions(v, o); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad is like Load but panics on failure.
func MustLoad[T any](opts ...Option) T {
	var v T
	if err := Load(&v, opts...); err != nil {
		panic(err)
	}
	return v
}

// LoadEnv reads the given .env files into the process environment. Later
// files do not override earlier ones, and neither overrides real variables.
// With no paths the default .env is read and a missing file is not an error.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Join(ErrLoadingEnvFile, err)
		}
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}
