package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-bundles/internal/auth"
	"github.com/noah-isme/toko-bundles/internal/catalog"
	"github.com/noah-isme/toko-bundles/internal/config"
	"github.com/noah-isme/toko-bundles/internal/health"
	"github.com/noah-isme/toko-bundles/internal/obs"
	"github.com/noah-isme/toko-bundles/internal/ratelimit"
	"github.com/noah-isme/toko-bundles/internal/security"
	"github.com/noah-isme/toko-bundles/internal/transform"
)

type routerDeps struct {
	Logger         zerolog.Logger
	Config         *config.Config
	Transform      *transform.Handler
	Catalog        *catalog.Handler
	Health         health.Handler
	Admin          auth.Middleware
	Limiter        ratelimit.Allower
	HTTPMetrics    *obs.HTTPMetrics
	TracingEnabled bool
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if d.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: d.Config.AppEnv == "production"}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(d.Config),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", obs.ShopDomainHeader},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))

	if d.HTTPMetrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Get("/health/live", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)

	r.Route("/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: d.Config.BodyLimitBytes}.Middleware)

		v.Group(func(g chi.Router) {
			g.Use(ratelimit.Handler{
				Limiter: d.Limiter,
				OnError: func(err error) { d.Logger.Warn().Err(err).Msg("rate limiter unavailable") },
			}.Middleware)
			g.Post("/cart-transform/run", d.Transform.Run)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(d.Admin.RequireAdmin)
			admin.Get("/catalog", d.Catalog.Get)
			admin.Post("/catalog/refresh", d.Catalog.Refresh)
		})
	})
	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
