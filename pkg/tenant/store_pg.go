package tenant

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stockline/stockline/pkg/pg"
)

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists tenants in the shared control-plane database.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a Store backed by the tenants table.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const tenantColumns = `id, code, domain, database, status, config, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, t *Tenant) error {
	cfg, err := marshalConfig(t.Config)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO tenants (`+tenantColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Code, t.Domain, t.Database, t.Status, cfg, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create tenant: %w", uniqueViolation(err))
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, t *Tenant) error {
	cfg, err := marshalConfig(t.Config)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE tenants SET code = $2, domain = $3, database = $4, status = $5, config = $6, updated_at = $7
		 WHERE id = $1`,
		t.ID, t.Code, t.Domain, t.Database, t.Status, cfg, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update tenant %s: %w", t.ID, uniqueViolation(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update tenant %s: %w", t.ID, ErrTenantNotFound)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return s.getBy(ctx, "id", id)
}

func (s *PostgresStore) GetByCode(ctx context.Context, code string) (*Tenant, error) {
	return s.getBy(ctx, "code", code)
}

func (s *PostgresStore) GetByDomain(ctx context.Context, domain string) (*Tenant, error) {
	return s.getBy(ctx, "domain", domain)
}

func (s *PostgresStore) getBy(ctx context.Context, column string, value any) (*Tenant, error) {
	row := s.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE `+column+` = $1`, value)
	t, err := scanTenant(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("get tenant by %s: %w", column, err)
	}
	return t, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Tenant, error) {
	rows, err := s.db.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func scanTenant(row pgx.Row) (*Tenant, error) {
	var (
		t      Tenant
		status string
		cfg    []byte
	)
	if err := row.Scan(&t.ID, &t.Code, &t.Domain, &t.Database, &status, &cfg, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = Status(status)
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &t.Config); err != nil {
			return nil, fmt.Errorf("decode tenant config: %w", err)
		}
	}
	return &t, nil
}

func marshalConfig(cfg map[string]any) ([]byte, error) {
	if cfg == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: config: %v", ErrInvalidTenant, err)
	}
	return data, nil
}

// uniqueViolation maps unique index violations onto the tenant taxonomy.
func uniqueViolation(err error) error {
	if !pg.IsDuplicateKeyError(err) {
		return err
	}
	switch pg.ConstraintName(err) {
	case "tenants_code_key":
		return ErrDuplicateCode
	case "tenants_domain_key":
		return ErrDuplicateDomain
	}
	return err
}
