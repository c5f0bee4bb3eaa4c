package pg

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/stockline/stockline/pkg/logger"
)

// Migrate runs every pending goose migration under dir of fsys against the
// pool. goose output is forwarded to log.
func Migrate(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, dir string, cfg Config, log *slog.Logger) error {
	if fsys == nil {
		return fmt.Errorf("%w: nil filesystem", ErrMigrationsMissing)
	}
	if _, err := fs.Stat(fsys, dir); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationsMissing, err)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With(logger.Component("migrate"))

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(gooseLogger{ctx: ctx, log: log})
	goose.SetTableName(cfg.MigrationsTable)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrate, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			log.WarnContext(ctx, "closing migration handle", logger.Error(err))
		}
	}()

	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrate, err)
	}
	return nil
}

// gooseLogger turns goose's printf output into structured records.
type gooseLogger struct {
	ctx context.Context
	log *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.InfoContext(l.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.ErrorContext(l.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}
