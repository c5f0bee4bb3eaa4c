package tenantdb

import "time"

// Config holds router and per-tenant pool settings.
type Config struct {
	// BaseURL is the connection string tenant references are resolved against.
	BaseURL        string        `env:"TENANTDB_BASE_URL"`
	IdleTimeout    time.Duration `env:"TENANTDB_IDLE_TIMEOUT" envDefault:"15m"`
	EvictInterval  time.Duration `env:"TENANTDB_EVICT_INTERVAL" envDefault:"1m"`
	PingAfter      time.Duration `env:"TENANTDB_PING_AFTER" envDefault:"30s"`
	ConnectTimeout time.Duration `env:"TENANTDB_CONNECT_TIMEOUT" envDefault:"10s"`
	MaxConns       int32         `env:"TENANTDB_MAX_CONNS" envDefault:"5"`
}

const (
	DefaultIdleTimeout    = 15 * time.Minute
	DefaultEvictInterval  = time.Minute
	DefaultPingAfter      = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)
