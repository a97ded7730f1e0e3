package health

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// UpstreamPinger is satisfied by the Fake Store client.
type UpstreamPinger interface {
	Ping(ctx context.Context, timeout time.Duration) error
}

// Probes implements Checker over the bridge's runtime dependencies. A nil
// Redis client reports ok since the cache is optional.
type Probes struct {
	Upstream UpstreamPinger
	Redis    *redis.Client
}

// PingUpstream probes the catalog provider.
func (p Probes) PingUpstream(ctx context.Context, timeout time.Duration) error {
	if p.Upstream == nil {
		return nil
	}
	return p.Upstream.Ping(ctx, timeout)
}

// PingRedis probes the cache.
func (p Probes) PingRedis(ctx context.Context, timeout time.Duration) error {
	if p.Redis == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Redis.Ping(ctx).Err()
}
