// Package config loads typed configuration from environment variables.
//
// It wraps github.com/caarlos0/env/v11 for struct parsing and
// github.com/joho/godotenv for optional .env files:
//
//	type Config struct {
//		HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
//		DatabaseURL string `env:"DATABASE_URL,required"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// Nested structs share a tag prefix through env's envPrefix tag, which is how
// each package's Config (pg, redis, tenantdb) is embedded into the service
// configuration. Parse failures wrap ErrParsingConfig.
package config
