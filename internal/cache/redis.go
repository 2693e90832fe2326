package cache

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"
)

// rateLimitKey namespaces limiter counters in Redis.
const rateLimitKey = "campus:ratelimit:%s"

// RedisLimiter shares counters across API instances through Redis INCR/EXPIRE.
type RedisLimiter struct {
	client rueidis.Client
}

// NewRedisLimiter connects to the given Redis addresses.
func NewRedisLimiter(addrs []string, password string) (*RedisLimiter, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  addrs,
		Password:     password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rate limit redis: %w", err)
	}
	return &RedisLimiter{client: client}, nil
}

func (r *RedisLimiter) Allow(ctx context.Context, key string, perMinute int) (int, error) {
	k := fmt.Sprintf(rateLimitKey, key)
	count, err := r.client.Do(ctx, r.client.B().Incr().Key(k).Build()).AsInt64()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := r.client.Do(ctx, r.client.B().Expire().Key(k).Seconds(int64(window.Seconds())).Build()).Error(); err != nil {
			return 0, err
		}
	}
	if int(count) <= perMinute {
		return 0, nil
	}
	ttl, err := r.client.Do(ctx, r.client.B().Ttl().Key(k).Build()).AsInt64()
	if err != nil {
		return 0, err
	}
	if ttl < 1 {
		// Key lost its expiry (e.g. EXPIRE failed after INCR); restore it.
		_ = r.client.Do(ctx, r.client.B().Expire().Key(k).Seconds(int64(window.Seconds())).Build()).Error()
		ttl = int64(window.Seconds())
	}
	return int(ttl), nil
}

// Ping checks the Redis connection.
func (r *RedisLimiter) Ping(ctx context.Context) error {
	return r.client.Do(ctx, r.client.B().Ping().Build()).Error()
}

func (r *RedisLimiter) Close() error {
	r.client.Close()
	return nil
}
