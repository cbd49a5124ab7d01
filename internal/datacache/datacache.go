// Package datacache persists computed datasets in Redis between restarts.
//
// Every operation degrades gracefully: a failing backend logs a warning and
// behaves like a cache miss. Nothing in the load pipeline may fail because
// Redis is down.
package datacache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yakutia-transit/routesearch/internal/model"
)

// KeyPrefix namespaces dataset keys in the shared Redis instance.
const KeyPrefix = "transport-dataset:"

// DatasetCache is the TTL-bound key/value store for datasets.
type DatasetCache struct {
	client    *redis.Client
	log       *zap.Logger
	enabled   bool
	opTimeout time.Duration
}

// New creates a dataset cache. When enabled is false every operation is a
// no-op, which is how the CACHE_ENABLED feature flag is implemented.
func New(client *redis.Client, log *zap.Logger, enabled bool, opTimeout time.Duration) *DatasetCache {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &DatasetCache{
		client:    client,
		log:       log.Named("datacache"),
		enabled:   enabled && client != nil,
		opTimeout: opTimeout,
	}
}

// Get returns the cached dataset for the key, or nil on miss or backend
// failure. Timestamps survive the JSON round-trip (RFC 3339).
func (c *DatasetCache) Get(ctx context.Context, key string) *model.Dataset {
	if !c.enabled {
		return nil
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	raw, err := c.client.Get(opCtx, KeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil
	}

	var d model.Dataset
	if err := json.Unmarshal(raw, &d); err != nil {
		c.log.Warn("cached dataset is unreadable, dropping it",
			zap.String("key", key), zap.Error(err))
		c.Invalidate(ctx, key)
		return nil
	}
	return &d
}

// Set stores the dataset under the key with the given TTL. Failures are
// logged and swallowed.
func (c *DatasetCache) Set(ctx context.Context, key string, d *model.Dataset, ttl time.Duration) {
	if !c.enabled || d == nil {
		return
	}
	raw, err := json.Marshal(d)
	if err != nil {
		c.log.Warn("cache set: marshal failed", zap.String("key", key), zap.Error(err))
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Set(opCtx, KeyPrefix+key, raw, ttl).Err(); err != nil {
		c.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes the key. Failures are logged and swallowed.
func (c *DatasetCache) Invalidate(ctx context.Context, key string) {
	if !c.enabled {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Del(opCtx, KeyPrefix+key).Err(); err != nil {
		c.log.Warn("cache invalidate failed", zap.String("key", key), zap.Error(err))
	}
}

// Exists reports whether the key is present. A failing backend reads as
// absent.
func (c *DatasetCache) Exists(ctx context.Context, key string) bool {
	if !c.enabled {
		return false
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	n, err := c.client.Exists(opCtx, KeyPrefix+key).Result()
	if err != nil {
		c.log.Warn("cache exists failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return n > 0
}
