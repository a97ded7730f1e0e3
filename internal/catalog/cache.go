package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/store-bridge/internal/obs"
)

// Cache keeps catalog listings in Redis as JSON for a fixed TTL. A nil Cache,
// or one without a client, never hits.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache. A non-positive ttl defaults to one minute.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

// Get decodes the payload under key into dst and reports whether it existed.
func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, dst)
}

// Set stores v under key until the TTL lapses.
func (c *Cache) Set(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// remember serves key from the cache, or loads it once for all concurrent
// callers and caches the result. Cache failures degrade to a direct load.
func remember[T any](ctx context.Context, s *Service, key string, load func(context.Context) (T, error)) (T, error) {
	var out T
	hit, err := s.cache.Get(ctx, key, &out)
	switch {
	case err != nil:
		obs.ObserveCatalogCache("error")
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog_cache_get_failed")
	case hit:
		obs.ObserveCatalogCache("hit")
		return out, nil
	case s.cache != nil:
		obs.ObserveCatalogCache("miss")
	}

	v, err, _ := s.loads.Do(key, func() (any, error) {
		fresh, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, key, fresh); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("catalog_cache_set_failed")
		}
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
