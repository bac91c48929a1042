package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDedup is the Redis-backed DedupCache for deployments where more than
// one engine instance may dispatch the same cycle.
type RedisDedup struct {
	client *redis.Client
}

// NewRedisDedup wraps an existing Redis client.
func NewRedisDedup(client *redis.Client) *RedisDedup {
	return &RedisDedup{client: client}
}

// MarkDelivered sets the key if absent and reports whether this caller won.
func (r *RedisDedup) MarkDelivered(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}
