// Package bootstrap opens the shared runtime of the stockledger binaries:
// configuration, logging, tracing, the database and the optional Redis cache.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"stockledger/internal/app"
	"stockledger/internal/config"
	corenumerator "stockledger/internal/core/numerator"
	"stockledger/internal/core/tenant"
	"stockledger/internal/domain/policy"
	"stockledger/internal/infrastructure/cache"
	"stockledger/internal/infrastructure/numerator"
	"stockledger/internal/infrastructure/observability"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/stores"
	"stockledger/pkg/logger"
)

// Runtime is everything a binary needs after startup.
type Runtime struct {
	Config   *config.Config
	Log      *logger.Logger
	Tracer   trace.TracerProvider
	Pool     *postgres.Pool
	Backend  *stores.Backend
	Services *app.Services
	Registry *tenant.PostgresRegistry

	// Redis and Cache are nil when redis.addr is empty.
	Redis redis.UniversalClient
	Cache *cache.BalanceCache

	closers []func(context.Context) error
}

// NewLogger builds the process logger from cfg and installs it as the default.
func NewLogger(cfg *config.Config, component string) (*logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.Development(),
		Service:     cfg.App.Name,
		Version:     cfg.App.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log = log.WithComponent(component)
	logger.SetDefault(log)
	return log, nil
}

// Open connects every dependency described by cfg. On error, whatever was opened is closed.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (rt *Runtime, err error) {
	rt = &Runtime{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			rt.Close(context.Background())
			rt = nil
		}
	}()

	tp, shutdown, err := observability.SetupTracing(ctx, observability.Config{
		Enabled:        cfg.Otel.Enabled,
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Endpoint:       cfg.Otel.Endpoint,
		URLPath:        cfg.Otel.URLPath,
		Insecure:       cfg.Otel.Insecure,
		AuthHeader:     cfg.Otel.AuthHeader,
		SampleRatio:    cfg.Otel.SampleRatio,
	})
	if err != nil {
		return rt, fmt.Errorf("setup tracing: %w", err)
	}
	rt.Tracer = tp
	rt.closers = append(rt.closers, shutdown)

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN)
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	if cfg.Database.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return rt, fmt.Errorf("connect database: %w", err)
	}
	rt.Pool = pool
	rt.closers = append(rt.closers, func(context.Context) error { pool.Close(); return nil })
	log.Infow("database connection established", "max_conns", poolCfg.MaxConns)

	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			return rt, fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema migrated")
	}

	backend, err := stores.New(postgres.NewTxManager(pool), numerator.Options{
		Strategy:  numberingStrategy(cfg.Numbering.Strategy),
		RangeSize: cfg.Numbering.RangeSize,
	})
	if err != nil {
		return rt, fmt.Errorf("build stores: %w", err)
	}
	rt.Backend = backend
	rt.Registry = tenant.NewPostgresRegistry(pool.Pool)

	opts := app.Options{IdempotencyTTL: cfg.Idempotency.TTL}
	if cfg.Approval.Expression != "" {
		approval, err := policy.NewApproval(cfg.Approval.Expression)
		if err != nil {
			return rt, fmt.Errorf("approval rule: %w", err)
		}
		opts.Approver = approval
		log.Infow("document approval rule loaded", "expression", approval.Expression())
	}

	if cfg.Redis.Enabled() {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.Redis = rdb
		rt.closers = append(rt.closers, func(context.Context) error { return rdb.Close() })

		cacheCfg := cache.DefaultConfig()
		if cfg.Redis.TTL > 0 {
			cacheCfg.TTL = cfg.Redis.TTL
		}
		if cfg.Redis.LocalTTL > 0 {
			cacheCfg.LocalTTL = cfg.Redis.LocalTTL
		}
		bc := cache.New(rdb, cacheCfg)
		if err := bc.Start(ctx); err != nil {
			return rt, fmt.Errorf("start balance cache: %w", err)
		}
		rt.Cache = bc
		rt.closers = append(rt.closers, func(context.Context) error { bc.Stop(); return nil })
		opts.Cache = bc
		opts.Observer = bc
		log.Infow("balance cache enabled", "addr", cfg.Redis.Addr)
	}

	rt.Services = app.NewServices(backend.Stores, opts)
	return rt, nil
}

// Close releases resources in reverse order of opening.
func (rt *Runtime) Close(ctx context.Context) {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	if err := errors.Join(errs...); err != nil && rt.Log != nil {
		rt.Log.Warnw("shutdown finished with errors", "error", err)
	}
}

func numberingStrategy(s string) corenumerator.Strategy {
	if s == "cached" {
		return corenumerator.StrategyCached
	}
	return corenumerator.StrategyStrict
}
