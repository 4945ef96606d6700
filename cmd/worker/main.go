package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-bundles/internal/catalog"
	"github.com/noah-isme/toko-bundles/internal/config"
	"github.com/noah-isme/toko-bundles/internal/lock"
	"github.com/noah-isme/toko-bundles/internal/obs"
	"github.com/noah-isme/toko-bundles/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
	resilience.MustRegisterMetrics(cfg.Obs.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RedisURL == "" {
		logger.Fatal().Msg("REDIS_URL is required for the worker")
	}
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	var source catalog.Source = catalog.FileSource{Path: cfg.CatalogPath}
	if cfg.CatalogSource == config.CatalogSourcePostgres {
		pool := mustInitDatabase(ctx, cfg, logger)
		defer pool.Close()
		source = guardSource(cfg, catalog.PGSource{DB: pool}, logger)
	}

	service := catalog.NewService(catalog.ServiceConfig{
		Source:  source,
		Cache:   catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		Locker:  lock.Locker{R: redisClient, RetryBackoff: cfg.LockRetryBackoff},
		LockTTL: cfg.LockTTL,
		MaxAge:  cfg.CatalogCacheTTL,
		Logger:  logger,
	})

	mux := asynq.NewServeMux()
	mux.Handle(catalog.TypeCatalogRefresh, catalog.RefreshHandler{Service: service, Logger: logger})

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.WorkerConcurrency,
		ShutdownTimeout: 10 * time.Second,
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("schedule catalog refresh")
				return
			}
			logger.Debug().Str("task_id", info.ID).Msg("catalog refresh scheduled")
		},
	})
	if _, err := scheduler.Register(cfg.CatalogRefreshCron, catalog.NewRefreshTask()); err != nil {
		logger.Fatal().Err(err).Str("cron", cfg.CatalogRefreshCron).Msg("register catalog refresh")
	}

	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}
	logger.Info().Str("cron", cfg.CatalogRefreshCron).Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")

	<-ctx.Done()
	scheduler.Shutdown()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func guardSource(cfg *config.Config, source catalog.Source, logger zerolog.Logger) catalog.Source {
	return catalog.GuardedSource{
		Source: source,
		Breaker: resilience.NewBreaker(resilience.BreakerConfig{
			Target:       "catalog_" + source.Name(),
			MinRequests:  cfg.CatalogLoad.BreakerMinRequests,
			FailureRatio: cfg.CatalogLoad.BreakerFailureRatio,
			OpenFor:      cfg.CatalogLoad.BreakerOpenFor,
			Logger:       logger,
		}),
		Policy: resilience.Policy{Attempts: cfg.CatalogLoad.Attempts, Base: cfg.CatalogLoad.Backoff, Jitter: 0.2},
	}
}
