package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheKey is the Redis key holding the serialised static catalog.
const CacheKey = "bundles:catalog:v1"

// Cache stores the validated catalog document in Redis so that replicas skip
// reparsing the source on cold start.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get loads the cached document. It reports whether the key existed.
func (c *Cache) Get(ctx context.Context) (Document, bool, error) {
	var doc Document
	if c == nil || c.client == nil {
		return doc, false, nil
	}
	data, err := c.client.Get(ctx, CacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return doc, false, nil
		}
		return doc, false, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, false, err
	}
	return doc, true, nil
}

// Set serialises doc and stores it with the configured TTL.
func (c *Cache) Set(ctx context.Context, doc Document) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, CacheKey, data, c.ttl).Err()
}

// Delete drops the cached document.
func (c *Cache) Delete(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, CacheKey).Err()
}
