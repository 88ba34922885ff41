package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	c := NewRedisCache(client, "")

	_, found, err := c.Get(ctx, "example.com:A")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, c.Set(ctx, "example.com:A", "192.0.2.1", time.Hour))
	val, found, err := c.Get(ctx, "example.com:A")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "192.0.2.1", val)
	require.Equal(t, time.Hour, mr.TTL("example.com:A"))

	mr.FastForward(time.Hour + time.Second)
	_, found, err = c.Get(ctx, "example.com:A")
	require.NoError(t, err)
	require.False(t, found, "entry must not outlive its ttl")

	require.NoError(t, c.Set(ctx, "example.com:A", "192.0.2.1", time.Hour))
	require.NoError(t, c.Delete(ctx, "example.com:A"))
	require.False(t, mr.Exists("example.com:A"))
	require.NoError(t, c.Delete(ctx, "example.com:A"))
}

func TestRedisCacheKeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedisCache(client, "dns:")
	require.NoError(t, c.Set(context.Background(), "example.com:A", "192.0.2.1", time.Minute))
	got, err := mr.Get("dns:example.com:A")
	require.NoError(t, err)
	require.Equal(t, "192.0.2.1", got)
}

func TestRedisCacheUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	c := NewRedisCache(client, "")
	_, _, err := c.Get(context.Background(), "example.com:A")
	require.Error(t, err)
}

func TestMemCacheExpiry(t *testing.T) {
	c := NewMemCache()
	defer c.Close()
	now := time.Now()
	c.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "example.com:A", "192.0.2.1", time.Minute))
	val, found, err := c.Get(ctx, "example.com:A")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "192.0.2.1", val)

	now = now.Add(time.Minute)
	_, found, _ = c.Get(ctx, "example.com:A")
	require.False(t, found)

	c.sweep()
	require.Equal(t, 0, c.Len())
}

func TestMemCacheDelete(t *testing.T) {
	c := NewMemCache()
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "example.com:A", "192.0.2.1", time.Minute))
	require.NoError(t, c.Delete(ctx, "example.com:A"))
	_, found, _ := c.Get(ctx, "example.com:A")
	require.False(t, found)
}
