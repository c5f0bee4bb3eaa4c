// Package pg bootstraps PostgreSQL access on top of pgx/v5.
//
// It covers the pieces every database-backed component of the service needs:
// opening a *pgxpool.Pool with retries ([Connect]), pinning a pool to a
// database or schema ([WithDatabase], [WithSearchPath]), applying embedded
// goose migrations ([Migrate]), readiness probes ([Probe]) and error
// classification helpers such as [IsDuplicateKeyError] and [ConstraintName].
//
// Configuration is read from PG_* environment variables through [Config]:
//
//	cfg, err := config.Load[pg.Config]()
//	pool, err := pg.Connect(ctx, cfg)
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, migrations.FS, ".", cfg, log); err != nil {
//		return err
//	}
//
// The tenant connection router reuses [Connect] with per-tenant options so
// each tenant gets its own pool while sharing the same limits.
package pg
