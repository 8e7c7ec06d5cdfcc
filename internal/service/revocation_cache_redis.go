package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisRevocationCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRevocationCache(client redis.UniversalClient, prefix string) *RedisRevocationCache {
	if prefix == "" {
		prefix = "revoked_refresh"
	}
	return &RedisRevocationCache{client: client, prefix: prefix}
}

func (c *RedisRevocationCache) IsRevoked(ctx context.Context, token string) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	n, err := c.client.Exists(ctx, c.key(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisRevocationCache) MarkRevoked(ctx context.Context, token string, ttl time.Duration) error {
	if c.client == nil || ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, c.key(token), "1", ttl).Err()
}

func (c *RedisRevocationCache) key(token string) string {
	return c.prefix + ":" + tokenDigest(token)
}
