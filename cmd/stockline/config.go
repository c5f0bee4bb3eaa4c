package main

import (
	"time"

	"github.com/stockline/stockline/pkg/httpserver"
	"github.com/stockline/stockline/pkg/logger"
	"github.com/stockline/stockline/pkg/mongo"
	"github.com/stockline/stockline/pkg/pg"
	"github.com/stockline/stockline/pkg/redis"
	"github.com/stockline/stockline/pkg/tenantdb"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Name string `env:"APP_NAME" envDefault:"stockline"`

	Log      logger.Config
	HTTP     httpserver.Config
	PG       pg.Config
	Redis    redis.Config
	Mongo    mongo.Config
	TenantDB tenantdb.Config
	Tenant   TenantConfig
	Audit    AuditConfig
}

// TenantConfig selects how tenants are resolved and cached.
type TenantConfig struct {
	Strategy  string        `env:"TENANT_STRATEGY" envDefault:"header"`    // domain or header
	Header    string        `env:"TENANT_HEADER" envDefault:"X-Tenant-ID"` // header carrying the tenant code
	Cache     string        `env:"TENANT_CACHE" envDefault:"memory"`       // memory, redis or none
	CacheTTL  time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`       // how long a resolved tenant is trusted
	CacheSize int           `env:"TENANT_CACHE_SIZE" envDefault:"1000"`    // in-memory cache capacity
	SkipPaths []string      `env:"TENANT_SKIP_PATHS"`                      // paths under /api served without a tenant, matched per segment
}

// AuditConfig selects the audit store and its write path.
type AuditConfig struct {
	Store            string        `env:"AUDIT_STORE" envDefault:"postgres"`              // postgres, mongo or memory
	WriteTimeout     time.Duration `env:"AUDIT_WRITE_TIMEOUT" envDefault:"5s"`            // bound of a single audit write
	AsyncBuffer      int           `env:"AUDIT_ASYNC_BUFFER" envDefault:"0"`              // queued records; 0 writes synchronously
	BatchSize        int           `env:"AUDIT_BATCH_SIZE" envDefault:"100"`              // records per bulk insert
	BatchTimeout     time.Duration `env:"AUDIT_BATCH_TIMEOUT" envDefault:"100ms"`         // max wait of a partial batch
	MongoCollection  string        `env:"AUDIT_MONGO_COLLECTION" envDefault:"audit_logs"` // collection used by the mongo store
	MaxReportRecords int           `env:"AUDIT_MAX_REPORT_RECORDS" envDefault:"10000"`    // cap on records loaded by reports and statistics
}
