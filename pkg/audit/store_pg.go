package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresStore keeps audit records in the audit_logs table.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a Store backed by PostgreSQL.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `id, tenant_id, user_id, user_email, session_id, action, entity_type, entity_id,
	old_values, new_values, changes, reason, ip_address, user_agent,
	correlation_id, transaction_id, request_id, metadata, success, error_message, duration_ms, created_at`

const insertRecord = `INSERT INTO audit_logs (` + recordColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`

func (s *PostgresStore) Append(ctx context.Context, r Record) error {
	args, err := insertArgs(&r)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, insertRecord, args...); err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// AppendBatch inserts all records in one round trip.
func (s *PostgresStore) AppendBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i := range records {
		args, err := insertArgs(&records[i])
		if err != nil {
			return err
		}
		batch.Queue(insertRecord, args...)
	}

	br := s.db.SendBatch(ctx, batch)
	for range records {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert audit batch: %w", err)
		}
	}
	return br.Close()
}

func (s *PostgresStore) Query(ctx context.Context, f Filter) ([]Record, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	where, args := buildWhere(f)
	query := `SELECT ` + recordColumns + ` FROM audit_logs` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context, f Filter) (int64, error) {
	where, args := buildWhere(f)
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit records: %w", err)
	}
	return n, nil
}

// buildWhere renders the filter as a parameterized WHERE clause.
func buildWhere(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}

	if f.TenantID != "" {
		add("tenant_id = ?", f.TenantID)
	}
	if f.UserID != "" {
		add("user_id = ?", f.UserID)
	}
	if f.Action != "" {
		add("action = ?", string(f.Action))
	}
	if f.EntityType != "" {
		add("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		add("entity_id = ?", f.EntityID)
	}
	if f.CorrelationID != "" {
		add("correlation_id = ?", f.CorrelationID)
	}
	if f.Success != nil {
		add("success = ?", *f.Success)
	}
	if !f.From.IsZero() {
		add("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= ?", f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func insertArgs(r *Record) ([]any, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	oldValues, err := jsonArg(r.OldValues)
	if err != nil {
		return nil, err
	}
	newValues, err := jsonArg(r.NewValues)
	if err != nil {
		return nil, err
	}
	changes, err := jsonArg(r.Changes)
	if err != nil {
		return nil, err
	}
	metadata, err := jsonArg(r.Metadata)
	if err != nil {
		return nil, err
	}
	return []any{
		r.ID, r.TenantID, r.UserID, r.UserEmail, r.SessionID, string(r.Action), r.EntityType, r.EntityID,
		oldValues, newValues, changes, r.Reason, r.IPAddress, r.UserAgent,
		r.CorrelationID, r.TransactionID, r.RequestID, metadata, r.Success, r.ErrorMessage, r.DurationMS, r.CreatedAt,
	}, nil
}

// jsonArg encodes v for a JSONB column; nil maps become NULL.
func jsonArg[M ~map[string]V, V any](v M) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encode json column: %v", ErrInvalidRecord, err)
	}
	return data, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		r                                   Record
		action                              string
		oldValues, newValues, changes, meta []byte
	)
	err := row.Scan(
		&r.ID, &r.TenantID, &r.UserID, &r.UserEmail, &r.SessionID, &action, &r.EntityType, &r.EntityID,
		&oldValues, &newValues, &changes, &r.Reason, &r.IPAddress, &r.UserAgent,
		&r.CorrelationID, &r.TransactionID, &r.RequestID, &meta, &r.Success, &r.ErrorMessage, &r.DurationMS, &r.CreatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	r.Action = Action(action)

	for _, col := range []struct {
		data []byte
		dst  any
	}{
		{oldValues, &r.OldValues},
		{newValues, &r.NewValues},
		{changes, &r.Changes},
		{meta, &r.Metadata},
	} {
		if len(col.data) == 0 {
			continue
		}
		if err := json.Unmarshal(col.data, col.dst); err != nil {
			return Record{}, err
		}
	}
	return r, nil
}
