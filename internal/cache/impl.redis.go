package cache

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
)

var _ iface.RecordCache = new(RedisCache)

// RedisCache maps cache entries onto redis string keys with SETEX.
type RedisCache struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedisCache(client redis.UniversalClient, keyPrefix string) *RedisCache {
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.SetEx(ctx, r.keyPrefix+key, value, ttl).Err(); err != nil {
		return pkgerrors.Wrap(err, "redis setex")
	}
	return nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, pkgerrors.Wrap(err, "redis get")
	}
	return val, true, nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.keyPrefix+key).Err(); err != nil {
		return pkgerrors.Wrap(err, "redis del")
	}
	return nil
}
