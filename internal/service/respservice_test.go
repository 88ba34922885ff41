package service

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
)

func startRespService(t *testing.T, h *testHarness) *redis.Client {
	svc := NewResp2Service(&RespServiceConfig{Addr: "127.0.0.1:0"})
	NewRespRecordHandler(h.records).Register(svc)
	require.NoError(t, svc.Startup())
	client := redis.NewClient(&redis.Options{
		Addr:             svc.Addr(),
		Protocol:         2,
		DisableIndentity: true,
	})
	t.Cleanup(func() {
		_ = client.Close()
		_ = svc.Stop()
	})
	return client
}

func TestRespRecordCommands(t *testing.T) {
	h := newTestHarness(t, iface.RoleSecondary, false)
	client := startRespService(t, h)
	ctx := context.Background()

	pong, err := client.Do(ctx, "PING").Text()
	require.NoError(t, err)
	assert.Equal(t, "PONG", pong)

	role, err := client.Do(ctx, CommandRole).Int()
	require.NoError(t, err)
	assert.Equal(t, 2, role)

	_, err = client.Do(ctx, CommandRecordGet, "example.com", "A").Result()
	assert.ErrorIs(t, err, redis.Nil)

	ok, err := client.Do(ctx, CommandRecordSet, "example.com", "A", "192.0.2.1").Text()
	require.NoError(t, err)
	assert.Equal(t, "OK", ok)

	vals, err := client.Do(ctx, CommandRecordGet, "example.com", "A").StringSlice()
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.1", "cache"}, vals)

	ok, err = client.Do(ctx, CommandRecordDel, "example.com", "A").Text()
	require.NoError(t, err)
	assert.Equal(t, "OK", ok)
	_, err = client.Do(ctx, CommandRecordGet, "example.com", "A").Result()
	assert.ErrorIs(t, err, redis.Nil)
}

func TestRespRejectsBadArguments(t *testing.T) {
	h := newTestHarness(t, iface.RolePrimary, false)
	client := startRespService(t, h)
	ctx := context.Background()

	err := client.Do(ctx, CommandRecordSet, "example.com", "A").Err()
	require.Error(t, err)
	err = client.Do(ctx, CommandRecordSet, "bad domain", "A", "1").Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid domain")
	err = client.Do(ctx, "NOSUCH.COMMAND").Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown Command")
}
