package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/hotelbooking/config"
	"github.com/redis/go-redis/v9"
)

// RedisCache remembers which workflow id a client idempotency key was first
// bound to.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(cfg config.RedisConfig) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
	}
}

// ReserveWorkflowID binds key to workflowID unless the key is already bound,
// in which case the earlier workflow id is returned.
func (c *RedisCache) ReserveWorkflowID(ctx context.Context, key, workflowID string, ttl time.Duration) (string, error) {
	for range 2 {
		ok, err := c.client.SetNX(ctx, idempotencyKey(key), workflowID, ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return workflowID, nil
		}

		existing, err := c.client.Get(ctx, idempotencyKey(key)).Result()
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, redis.Nil) {
			return "", err
		}
		// Expired between SETNX and GET; try to claim it again.
	}
	return "", fmt.Errorf("idempotency key %q could not be reserved", key)
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:booking:%s", key)
}
