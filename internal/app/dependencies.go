package app

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taxbridge/internal/auth"
	"github.com/noah-isme/taxbridge/internal/bundle"
	"github.com/noah-isme/taxbridge/internal/config"
	"github.com/noah-isme/taxbridge/internal/lock"
	"github.com/noah-isme/taxbridge/internal/obs"
	"github.com/noah-isme/taxbridge/internal/order"
	"github.com/noah-isme/taxbridge/internal/quote"
	"github.com/noah-isme/taxbridge/internal/resilience"
	"github.com/noah-isme/taxbridge/internal/session"
)

// Dependencies holds the shared infrastructure of the API and the worker.
type Dependencies struct {
	Config   *config.Config
	Logger   zerolog.Logger
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Engine   *Engine
	Orders   *order.PgRepository
	Verifier *auth.Verifier
}

// New connects Postgres and Redis and builds the tax engine against AvaTax.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, appName string) (*Dependencies, error) {
	pool, err := NewPool(ctx, cfg.DatabaseURL, appName)
	if err != nil {
		return nil, err
	}
	rdb, err := NewRedis(ctx, cfg.RedisURL, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	breaker := resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("avatax").WithLogger(logger)
	client, err := quote.NewAvaTaxClient(quote.AvaTaxConfig{
		AccountNumber: cfg.Avalara.AccountNumber,
		LicenseKey:    cfg.Avalara.LicenseKey,
		LiveMode:      cfg.Avalara.LiveMode,
		Timeout:       cfg.Avalara.Timeout,
		MaxAttempts:   2,
		AppName:       appName,
	}, breaker, logger)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, err
	}

	catalog := bundle.CachedCatalog{
		Next:  bundle.PgCatalog{DB: pool},
		Cache: bundle.NewCache(rdb, cfg.CatalogCacheTTL),
	}
	engine := NewEngine(EngineConfig{
		Provider:     client,
		Catalog:      catalog,
		Session:      session.NewStore(rdb, cfg.SessionTTL, cfg.Avalara.HeadlessMode),
		Builder:      BuilderFromConfig(cfg),
		Routes:       cfg.TaxUpdateRoutes,
		BlockOnError: cfg.Avalara.BlockCartOnError,
		Logger:       logger,
	})

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, err
	}

	return &Dependencies{
		Config:   cfg,
		Logger:   logger,
		DB:       pool,
		Redis:    rdb,
		Engine:   engine,
		Orders:   order.NewPgRepository(pool),
		Verifier: verifier,
	}, nil
}

// Reconciler returns the order persistence reconciler.
func (d *Dependencies) Reconciler() *order.Reconciler {
	return &order.Reconciler{
		Repo:    d.Orders,
		Locker:  lock.Locker{R: d.Redis},
		LockTTL: d.Config.OrderLockTTL,
		Logger:  d.Logger.With().Str("component", "order").Logger(),
	}
}

// Close releases connections.
func (d *Dependencies) Close() {
	if err := d.Redis.Close(); err != nil {
		d.Logger.Error().Err(err).Msg("close redis")
	}
	d.DB.Close()
}

// BuilderFromConfig returns the quote request builder for cfg.
func BuilderFromConfig(cfg *config.Config) quote.Builder {
	return quote.Builder{
		CompanyCode:     cfg.Avalara.CompanyCode,
		ShippingTaxCode: cfg.Avalara.ShippingTaxCode,
		DefaultTaxCode:  cfg.Avalara.DefaultTaxCode,
		TaxCountries:    cfg.Avalara.TaxCountries,
	}
}

// NewPool opens a traced pgx pool and pings it.
func NewPool(ctx context.Context, databaseURL, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = appName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewRedis opens an instrumented Redis client and pings it.
func NewRedis(ctx context.Context, redisURL string, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisConnOpt returns the asynq connection options for redisURL.
func RedisConnOpt(redisURL string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse queue redis url: %w", err)
	}
	return opt, nil
}
