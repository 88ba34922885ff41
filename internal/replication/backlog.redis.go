package replication

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
	"github.com/meidoworks/nekoq-dnsreplica/internal/shared"
)

var _ iface.PendingBacklog = new(RedisBacklog)

// RedisBacklog keeps each queue in a redis list: LPUSH on write, RPOP on
// drain, so entries come out oldest first.
type RedisBacklog struct {
	client redis.UniversalClient
}

func NewRedisBacklog(client redis.UniversalClient) *RedisBacklog {
	return &RedisBacklog{client: client}
}

func (r *RedisBacklog) Push(ctx context.Context, queue string, ev shared.Event) error {
	if err := r.client.LPush(ctx, queue, ev.String()).Err(); err != nil {
		return pkgerrors.Wrap(err, "redis lpush")
	}
	return nil
}

func (r *RedisBacklog) Pop(ctx context.Context, queue string) (string, bool, error) {
	val, err := r.client.RPop(ctx, queue).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, pkgerrors.Wrap(err, "redis rpop")
	}
	return val, true, nil
}

func (r *RedisBacklog) Requeue(ctx context.Context, queue, raw string) error {
	if err := r.client.RPush(ctx, queue, raw).Err(); err != nil {
		return pkgerrors.Wrap(err, "redis rpush")
	}
	return nil
}

func (r *RedisBacklog) Len(ctx context.Context, queue string) (int64, error) {
	return r.client.LLen(ctx, queue).Result()
}
