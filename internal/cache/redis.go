package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend is the optional distributed cache backing store: multiple
// controller replicas share a response cache instead of each cold-starting
// its own. The in-process map remains a read-through layer in front of it.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend wraps an existing client. prefix namespaces keys so the
// cache can share a Redis instance with other controller state.
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "masterctl:cache:"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	val, err := b.client.Get(ctx, b.prefix+key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (b *RedisBackend) Set(key, value string, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = b.client.Set(ctx, b.prefix+key, value, ttl).Err()
}
