// Command stockline runs the multi-tenant inventory service: tenant
// resolution, per-tenant database routing and the audit trail.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/stockline/stockline/migrations"
	"github.com/stockline/stockline/pkg/audit"
	"github.com/stockline/stockline/pkg/clientip"
	"github.com/stockline/stockline/pkg/config"
	"github.com/stockline/stockline/pkg/environment"
	"github.com/stockline/stockline/pkg/httpserver"
	"github.com/stockline/stockline/pkg/logger"
	"github.com/stockline/stockline/pkg/mongo"
	"github.com/stockline/stockline/pkg/pg"
	"github.com/stockline/stockline/pkg/redis"
	"github.com/stockline/stockline/pkg/requestid"
	"github.com/stockline/stockline/pkg/tenant"
	"github.com/stockline/stockline/pkg/tenantdb"
	"github.com/stockline/stockline/pkg/useragent"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("stockline stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return err
	}
	env := environment.Parse(cfg.Env)

	log := logger.New(
		logger.WithEnvironment(env, cfg.Name),
		logger.WithConfig(cfg.Log),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			clientip.LoggerExtractor(),
			useragent.LoggerExtractor(),
			tenant.LoggerExtractor(),
			audit.LoggerExtractor(),
			environment.LoggerExtractor(),
		),
	)
	logger.SetAsDefault(log)

	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool, migrations.FS, ".", cfg.PG, log); err != nil {
		return err
	}
	checks := []httpserver.Check{{Name: "postgres", Fn: pg.Probe(pool)}}

	var redisClient *goredis.Client
	if cfg.Redis.ConnectionURL != "" {
		redisClient, err = redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		checks = append(checks, httpserver.Check{Name: "redis", Fn: redis.Probe(redisClient)})
	}

	cache, err := newTenantCache(cfg, redisClient)
	if err != nil {
		return err
	}
	registry := tenant.NewRegistry(tenant.NewPostgresStore(pool),
		tenant.WithCache(cache),
		tenant.WithRegistryLogger(log.With(logger.Component("tenant"))),
	)
	resolver, err := tenant.NewResolver(tenant.Strategy(cfg.Tenant.Strategy), cfg.Tenant.Header)
	if err != nil {
		return err
	}

	if cfg.TenantDB.BaseURL == "" {
		cfg.TenantDB.BaseURL = cfg.PG.ConnectionString
	}
	connRouter := tenantdb.NewRouter(tenantdb.NewPgConnector(cfg.TenantDB, cfg.PG), registry,
		tenantdb.WithConfig(cfg.TenantDB),
		tenantdb.WithLogger(log.With(logger.Component("tenantdb"))),
	)
	registry.OnChange(connRouter.ChangeListener())

	store, closeStore, storeCheck, err := newAuditStore(ctx, cfg, pool, log)
	if err != nil {
		return err
	}
	if storeCheck != nil {
		checks = append(checks, *storeCheck)
	}

	capture := audit.NewCapture(store,
		audit.WithLogger(log.With(logger.Component("audit"))),
		audit.WithWriteTimeout(cfg.Audit.WriteTimeout),
		audit.WithRedactor(audit.NewRedactor()),
		audit.WithTenantExtractor(tenant.AuditExtractor()),
		audit.WithIPExtractor(clientip.AuditExtractor()),
		audit.WithUserAgentExtractor(useragent.AuditExtractor()),
		audit.WithRequestIDExtractor(requestid.AuditExtractor()),
	)
	queries := audit.NewQueryService(store,
		audit.WithQueryTenantExtractor(tenant.AuditExtractor()),
		audit.WithMaxReportRecords(cfg.Audit.MaxReportRecords),
	)

	handler := newRouter(routerDeps{
		env:       env,
		log:       log,
		registry:  registry,
		resolver:  resolver,
		conns:     connRouter,
		capture:   capture,
		queries:   queries,
		checks:    checks,
		skipPaths: cfg.Tenant.SkipPaths,
	})

	server := httpserver.NewFromConfig(cfg.HTTP,
		httpserver.WithLogger(log.With(logger.Component("http"))),
		httpserver.WithShutdownHook("audit store", closeStore),
		httpserver.WithShutdownHook("tenant connections", connRouter.Shutdown),
	)

	log.InfoContext(ctx, "stockline starting",
		slog.String("addr", cfg.HTTP.Addr),
		slog.String("tenant_strategy", cfg.Tenant.Strategy),
		slog.String("audit_store", cfg.Audit.Store),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return connRouter.Start(gctx) })
	g.Go(func() error { return server.Run(gctx, handler) })
	return g.Wait()
}

func newTenantCache(cfg Config, client *goredis.Client) (tenant.Cache, error) {
	switch cfg.Tenant.Cache {
	case "memory", "":
		return tenant.NewMemoryCache(cfg.Tenant.CacheSize, cfg.Tenant.CacheTTL), nil
	case "redis":
		if client == nil {
			return nil, errors.Join(redis.ErrMissingURL, errors.New("TENANT_CACHE=redis requires REDIS_URL"))
		}
		return tenant.NewRedisCache(client, cfg.Redis.KeyPrefix+"tenant:", cfg.Tenant.CacheTTL), nil
	case "none":
		return tenant.NoopCache{}, nil
	}
	return nil, fmt.Errorf("unknown tenant cache %q", cfg.Tenant.Cache)
}

// newAuditStore builds the configured store, optionally behind the batching
// writer. The returned close function flushes queued records and releases
// the backend.
func newAuditStore(ctx context.Context, cfg Config, pool *pgxpool.Pool, log *slog.Logger) (audit.Store, func(context.Context) error, *httpserver.Check, error) {
	var (
		store   audit.BatchStore
		check   *httpserver.Check
		release = func(context.Context) error { return nil }
	)

	switch cfg.Audit.Store {
	case "postgres", "":
		store = audit.NewPostgresStore(pool)
	case "mongo":
		db, err := mongo.NewWithDatabase(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, nil, err
		}
		ms := audit.NewMongoStore(db, cfg.Audit.MongoCollection)
		if err := ms.EnsureIndexes(ctx); err != nil {
			return nil, nil, nil, err
		}
		store = ms
		check = &httpserver.Check{Name: "mongo", Fn: mongo.Probe(db.Client())}
		release = db.Client().Disconnect
	case "memory":
		store = audit.NewMemoryStore()
	default:
		return nil, nil, nil, fmt.Errorf("unknown audit store %q", cfg.Audit.Store)
	}

	if cfg.Audit.AsyncBuffer <= 0 {
		return store, release, check, nil
	}

	writer, flush := audit.NewAsyncWriter(store, audit.AsyncOptions{
		BufferSize:     cfg.Audit.AsyncBuffer,
		BatchSize:      cfg.Audit.BatchSize,
		BatchTimeout:   cfg.Audit.BatchTimeout,
		StorageTimeout: cfg.Audit.WriteTimeout,
		Logger:         log.With(logger.Component("audit")),
	})
	closeAll := func(ctx context.Context) error {
		return errors.Join(flush(ctx), release(ctx))
	}
	return writer, closeAll, check, nil
}
