package utils

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = time.Hour

// Cache is a best-effort Redis cache. A nil *Cache or a Cache without client is a no-op.
type Cache struct {
	rc  *redis.Client
	ttl time.Duration
}

// NewCache wraps rc; ttl <= 0 falls back to one hour.
func NewCache(rc *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{rc: rc, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.rc != nil
}

// GetBytes returns cached bytes for key.
func (c *Cache) GetBytes(ctx context.Context, key string) ([]byte, bool) {
	if !c.enabled() {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := c.rc.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			Sugar.Debugf("cache get failed key=%s err=%v", key, err)
		}
		return nil, false
	}
	return b, true
}

// SetJSON marshals v and stores it under key with the cache TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v interface{}) {
	if !c.enabled() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.rc.Set(ctx, key, b, c.ttl).Err(); err != nil {
		Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}

// InvalidateByPrefix deletes keys that match the given prefix using SCAN.
func (c *Cache) InvalidateByPrefix(ctx context.Context, prefix string) {
	if !c.enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // limit rounds to avoid long loops
		keys, cur, err := c.rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			Sugar.Warnf("cache scan failed prefix=%s err=%v", prefix, err)
			return
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := c.rc.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		if cursor == 0 {
			return
		}
	}
}

const generationKeyPrefix = "cache:gen:"

// Generation reads the counter for name; a missing counter is generation 0.
// ok is false when the cache is disabled or Redis fails, and callers should
// then skip caching.
func (c *Cache) Generation(ctx context.Context, name string) (int64, bool) {
	if !c.enabled() {
		return 0, false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	gen, err := c.rc.Get(ctx, generationKeyPrefix+name).Int64()
	if err == redis.Nil {
		return 0, true
	}
	if err != nil {
		Sugar.Warnf("cache generation read failed name=%s err=%v", name, err)
		return 0, false
	}
	return gen, true
}

// Bump advances the counter for name so keys built from an older generation are never read again.
func (c *Cache) Bump(ctx context.Context, name string) {
	if !c.enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.rc.Incr(ctx, generationKeyPrefix+name).Err(); err != nil {
		Sugar.Warnf("cache generation bump failed name=%s err=%v", name, err)
	}
}
