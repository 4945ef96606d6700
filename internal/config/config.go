package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const (
	// CatalogSourceFile loads bundle definitions from a JSON file.
	CatalogSourceFile = "file"
	// CatalogSourcePostgres loads bundle definitions from Postgres.
	CatalogSourcePostgres = "postgres"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	CatalogSource      string
	CatalogPath        string
	CatalogCacheTTL    time.Duration
	CatalogRefreshCron string
	CatalogLoad        CatalogLoadConfig
	DatabaseURL        string
	RedisURL           string
	AdminJWTSecret     string
	AdminJWTIssuer     string
	AdminJWTAudience   string
	CORSAllowedOrigins []string
	BodyLimitBytes     int64
	RateLimitMax       int
	RateLimitWindow    time.Duration
	LockTTL            time.Duration
	LockRetryBackoff   time.Duration
	WorkerConcurrency  int
	Obs                ObsConfig
}

// CatalogLoadConfig controls retries and the circuit breaker around the catalog source.
type CatalogLoadConfig struct {
	Attempts            int
	Backoff             time.Duration
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration
}

// ObsConfig groups logging, metrics and tracing settings.
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	EnablePrometheus bool
	EnableTracing    bool
	OTLPEndpoint     string
	SamplingRatio    float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		CatalogSource:      strings.ToLower(valueOrDefault(k.String("CATALOG_SOURCE"), CatalogSourceFile)),
		CatalogPath:        valueOrDefault(k.String("CATALOG_PATH"), "config/bundles.json"),
		CatalogCacheTTL:    parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		CatalogRefreshCron: valueOrDefault(k.String("CATALOG_REFRESH_CRON"), "@every 5m"),
		CatalogLoad: CatalogLoadConfig{
			Attempts:            int(parseInt64(k.String("CATALOG_LOAD_ATTEMPTS"), 3)),
			Backoff:             parseDuration(k.String("CATALOG_LOAD_BACKOFF"), "200ms"),
			BreakerMinRequests:  int(parseInt64(k.String("CATALOG_BREAKER_MIN_REQUESTS"), 5)),
			BreakerFailureRatio: parseFloat(k.String("CATALOG_BREAKER_FAILURE_RATIO"), 0.5),
			BreakerOpenFor:      parseDuration(k.String("CATALOG_BREAKER_OPEN_FOR"), "30s"),
		},
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		AdminJWTSecret:     k.String("ADMIN_JWT_SECRET"),
		AdminJWTIssuer:     valueOrDefault(k.String("ADMIN_JWT_ISSUER"), "toko-bundles"),
		AdminJWTAudience:   valueOrDefault(k.String("ADMIN_JWT_AUDIENCE"), "toko-bundles-admin"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		BodyLimitBytes:     parseInt64(k.String("BODY_LIMIT_BYTES"), 1<<20),
		RateLimitMax:       int(parseInt64(k.String("RATE_LIMIT_MAX"), 600)),
		RateLimitWindow:    parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		LockTTL:            parseDuration(k.String("LOCK_TTL"), "30s"),
		LockRetryBackoff:   parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),
		WorkerConcurrency:  int(parseInt64(k.String("WORKER_CONCURRENCY"), 2)),
		Obs: ObsConfig{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "toko_bundles"),
			EnablePrometheus: parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
			EnableTracing:    parseBoolDefault(k.String("OBS_ENABLE_TRACING"), false),
			OTLPEndpoint:     k.String("OBS_OTLP_ENDPOINT"),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		},
	}

	switch cfg.CatalogSource {
	case CatalogSourceFile:
		if strings.TrimSpace(cfg.CatalogPath) == "" {
			return nil, errors.New("CATALOG_PATH is required when CATALOG_SOURCE=file")
		}
	case CatalogSourcePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when CATALOG_SOURCE=postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported CATALOG_SOURCE %q", cfg.CatalogSource)
	}
	if cfg.RateLimitWindow <= 0 {
		return nil, errors.New("RATE_LIMIT_WINDOW must be positive")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// AdminEnabled reports whether admin endpoints can authenticate callers.
func (c *Config) AdminEnabled() bool {
	return strings.TrimSpace(c.AdminJWTSecret) != ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt64(value string, fallback int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
