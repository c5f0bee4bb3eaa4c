package tenantdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockline/stockline/pkg/pg"
	"github.com/stockline/stockline/pkg/tenant"
)

const schemaPrefix = "schema:"

// Target is where a tenant's database reference points.
type Target struct {
	ConnString string
	Database   string // replaces the database of ConnString when set
	Schema     string // pins search_path when set
}

// ParseDatabaseRef resolves a tenant database reference against base.
//
//	postgres://...   full connection string, used as is
//	schema:<name>    base database, search_path set to <name>
//	<name>           base server, database <name>
func ParseDatabaseRef(base, ref string) (Target, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return Target{}, fmt.Errorf("%w: empty reference", ErrInvalidDatabaseRef)
	case strings.HasPrefix(ref, "postgres://"), strings.HasPrefix(ref, "postgresql://"):
		return Target{ConnString: ref}, nil
	}

	if base == "" {
		return Target{}, fmt.Errorf("%w: %q needs a base connection string", ErrInvalidDatabaseRef, ref)
	}
	if name, ok := strings.CutPrefix(ref, schemaPrefix); ok {
		if name == "" {
			return Target{}, fmt.Errorf("%w: empty schema name", ErrInvalidDatabaseRef)
		}
		return Target{ConnString: base, Schema: name}, nil
	}
	return Target{ConnString: base, Database: ref}, nil
}

// PgConnector opens one pgx pool per tenant.
type PgConnector struct {
	base pg.Config
}

// NewPgConnector creates a connector whose pools share the limits of cfg.
// Tenant pools keep no warm connections and are not retried here: retry is
// the caller's policy.
func NewPgConnector(cfg Config, pool pg.Config) *PgConnector {
	pool.ConnectionString = cfg.BaseURL
	if cfg.MaxConns > 0 {
		pool.MaxOpenConns = cfg.MaxConns
	}
	pool.MaxIdleConns = 0
	pool.RetryAttempts = 1
	return &PgConnector{base: pool}
}

// Connect implements Connector.
func (c *PgConnector) Connect(ctx context.Context, t *tenant.Tenant) (Handle, error) {
	target, err := ParseDatabaseRef(c.base.ConnectionString, t.Database)
	if err != nil {
		return nil, err
	}
	cfg := c.base
	cfg.ConnectionString = target.ConnString

	pool, err := pg.Connect(ctx, cfg, pg.WithDatabase(target.Database), pg.WithSearchPath(target.Schema))
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// Pool returns the pgx pool behind a handle opened by PgConnector.
func Pool(h Handle) (*pgxpool.Pool, bool) {
	p, ok := h.(*pgxpool.Pool)
	return p, ok
}
