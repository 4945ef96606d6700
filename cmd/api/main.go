package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-bundles/internal/auth"
	"github.com/noah-isme/toko-bundles/internal/catalog"
	"github.com/noah-isme/toko-bundles/internal/config"
	"github.com/noah-isme/toko-bundles/internal/health"
	"github.com/noah-isme/toko-bundles/internal/lock"
	"github.com/noah-isme/toko-bundles/internal/obs"
	"github.com/noah-isme/toko-bundles/internal/ratelimit"
	"github.com/noah-isme/toko-bundles/internal/resilience"
	"github.com/noah-isme/toko-bundles/internal/transform"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
	resilience.MustRegisterMetrics(cfg.Obs.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracingEnabled := cfg.Obs.EnableTracing
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "toko-bundles-api",
			Endpoint:      cfg.Obs.OTLPEndpoint,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	var checks []health.Check

	var pool *pgxpool.Pool
	if cfg.CatalogSource == config.CatalogSourcePostgres {
		pool = mustInitDatabase(ctx, cfg, logger)
		defer pool.Close()
		checks = append(checks, health.Postgres(pool))
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient = mustInitRedis(ctx, cfg, logger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		checks = append(checks, health.Redis(redisClient))
	}

	catalogService := newCatalogService(cfg, pool, redisClient, logger)
	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	cat, err := catalogService.Load(startCtx)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("load bundle catalog")
	}
	logger.Info().Int("definitions", cat.Len()).Str("source", cfg.CatalogSource).Msg("bundle catalog ready")
	checks = append(checks, health.Check{Name: "catalog", Ping: func(context.Context) error {
		_, err := catalogService.Snapshot()
		return err
	}})

	var tasks catalog.Enqueuer
	if redisClient != nil {
		redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse task queue redis url")
		}
		taskClient := asynq.NewClient(redisOpt)
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close task client")
			}
		}()
		tasks = taskClient
	}

	var verifier *auth.Verifier
	if cfg.AdminEnabled() {
		verifier, err = auth.NewVerifier(auth.VerifierConfig{
			Secret:   cfg.AdminJWTSecret,
			Issuer:   cfg.AdminJWTIssuer,
			Audience: cfg.AdminJWTAudience,
			Role:     "admin",
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise admin verifier")
		}
	} else {
		logger.Warn().Msg("ADMIN_JWT_SECRET not set, admin endpoints disabled")
	}

	var limiter ratelimit.Allower
	if redisClient != nil {
		limiter = ratelimit.SlidingWindow{Client: redisClient, Prefix: "bundles:ratelimit:", Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax}
	} else {
		limiter = ratelimit.NewMemory(cfg.RateLimitWindow, cfg.RateLimitMax)
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.EnablePrometheus {
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, nil, nil)
	}

	router := newRouter(routerDeps{
		Logger:         logger,
		Config:         cfg,
		Transform:      transform.NewHandler(transform.NewService(transform.ServiceConfig{Catalogs: catalogService, Logger: logger})),
		Catalog:        catalog.NewHandler(catalog.HandlerConfig{Service: catalogService, Tasks: tasks}),
		Health:         health.Handler{Checks: checks},
		Admin:          auth.Middleware{Verifier: verifier},
		Limiter:        limiter,
		HTTPMetrics:    httpMetrics,
		TracingEnabled: tracingEnabled,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func newCatalogService(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, logger zerolog.Logger) *catalog.Service {
	var source catalog.Source
	switch cfg.CatalogSource {
	case config.CatalogSourcePostgres:
		source = guardSource(cfg, catalog.PGSource{DB: pool}, logger)
	default:
		source = catalog.FileSource{Path: cfg.CatalogPath}
	}
	svcCfg := catalog.ServiceConfig{
		Source:  source,
		MaxAge:  cfg.CatalogCacheTTL,
		LockTTL: cfg.LockTTL,
		Logger:  logger.With().Str("component", "catalog").Logger(),
	}
	if redisClient != nil {
		svcCfg.Cache = catalog.NewCache(redisClient, cfg.CatalogCacheTTL)
		svcCfg.Locker = lock.Locker{R: redisClient, RetryBackoff: cfg.LockRetryBackoff}
	}
	return catalog.NewService(svcCfg)
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "toko-bundles"

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
	if cfg.Obs.EnablePrometheus {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
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
