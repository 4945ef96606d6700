package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips the process readiness flag; it is cleared while draining on shutdown.
func SetReady(v bool) { ready.Store(v) }

// Check is one named readiness check.
type Check struct {
	Name    string
	Timeout time.Duration
	Ping    func(ctx context.Context) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checks []Check
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency checks.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{}
	healthy := ready.Load()
	if !healthy {
		status["process"] = "draining"
	}
	for _, c := range h.Checks {
		result := "ok"
		if err := c.run(r.Context()); err != nil {
			result = err.Error()
			healthy = false
		}
		status[c.Name] = result
	}
	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func (c Check) run(ctx context.Context) error {
	if c.Ping == nil {
		return nil
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Ping(ctx)
}

// Postgres pings a pgx pool.
func Postgres(pool *pgxpool.Pool) Check {
	return Check{Name: "db", Timeout: 500 * time.Millisecond, Ping: pool.Ping}
}

// Redis pings a go-redis client.
func Redis(client *redis.Client) Check {
	return Check{Name: "redis", Timeout: 300 * time.Millisecond, Ping: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}
