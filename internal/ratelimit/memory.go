package ratelimit

import (
	"context"
	"time"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Memory is a fixed-window in-process limiter used when Redis is not configured.
type Memory struct {
	lim *limiter.Limiter
}

// NewMemory builds a limiter allowing max events per window per key.
func NewMemory(window time.Duration, max int) *Memory {
	store := memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          "bundles_ratelimit",
		CleanUpInterval: window,
	})
	return &Memory{lim: limiter.New(store, limiter.Rate{Period: window, Limit: int64(max)})}
}

// Allow registers an event for key.
func (m *Memory) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := m.lim.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !res.Reached,
		Limit:     int(res.Limit),
		Remaining: int(res.Remaining),
		ResetAt:   time.Unix(res.Reset, 0),
	}, nil
}
