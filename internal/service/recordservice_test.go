package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meidoworks/nekoq-dnsreplica/internal/cache"
	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
	"github.com/meidoworks/nekoq-dnsreplica/internal/replication"
	"github.com/meidoworks/nekoq-dnsreplica/internal/shared"
	"github.com/meidoworks/nekoq-dnsreplica/internal/storage"
)

type testHarness struct {
	records *RecordService
	store   *storage.BoltStorage
	cache   *cache.MemCache
	bus     *replication.MemBus
	backlog *replication.MemBacklog
	queue   string
}

func newTestHarness(t *testing.T, role iface.ReplicatorRole, applyToStore bool) *testHarness {
	store, err := storage.NewBoltStorage(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	memCache := cache.NewMemCache()
	t.Cleanup(func() {
		_ = memCache.Close()
		_ = store.Close()
	})
	h := &testHarness{
		store:   store,
		cache:   memCache,
		bus:     replication.NewMemBus(),
		backlog: replication.NewMemBacklog(),
		queue:   replication.QueueName("pending_updates", role),
	}
	h.records = NewRecordService(&RecordServiceConfig{
		Role:         role,
		Storage:      store,
		Cache:        memCache,
		Replication:  NewPublishAndEnqueue(h.bus, h.backlog, h.queue),
		ApplyToStore: applyToStore,
	})
	return h
}

func TestQueryIsCacheAside(t *testing.T) {
	h := newTestHarness(t, iface.RolePrimary, false)
	ctx := context.Background()

	_, err := h.records.Query(ctx, "example.com", "A")
	require.ErrorIs(t, err, shared.ErrStorageNotFound)

	require.NoError(t, h.records.AddOrUpdate(ctx, "example.com", "A", "192.0.2.1"))
	res, err := h.records.Query(ctx, "example.com", "A")
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, "192.0.2.1", res.Record.Value)

	require.NoError(t, h.cache.Delete(ctx, shared.CacheKey("example.com", "A")))
	res, err = h.records.Query(ctx, "example.com", "A")
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, "192.0.2.1", res.Record.Value)

	res, err = h.records.Query(ctx, "example.com", "A")
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.EqualValues(t, 2, h.records.Metrics().CacheHitsTotal.Load())
}

func TestUpsertKeepsOneRecord(t *testing.T) {
	h := newTestHarness(t, iface.RolePrimary, false)
	ctx := context.Background()

	require.NoError(t, h.records.AddOrUpdate(ctx, "example.com", "A", "192.0.2.1"))
	require.NoError(t, h.records.AddOrUpdate(ctx, "example.com", "A", "192.0.2.2"))
	count, err := h.store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	rec, found, err := h.store.GetRecord("example.com", "A")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "192.0.2.2", rec.Value)
}

func TestWriteIsEnqueuedForPeer(t *testing.T) {
	h := newTestHarness(t, iface.RolePrimary, false)
	ctx := context.Background()

	require.NoError(t, h.records.AddOrUpdate(ctx, "example.com", "AAAA", "2001:db8::1"))
	require.NoError(t, h.records.Delete(ctx, "example.com", "AAAA"))
	require.Equal(t, 2, h.backlog.Len(h.queue))

	raw, found, err := h.backlog.Pop(ctx, h.queue)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "ADD:example.com:AAAA:2001:db8::1", raw)
	raw, _, _ = h.backlog.Pop(ctx, h.queue)
	assert.Equal(t, "DELETE:example.com:AAAA", raw)
}

func TestDeleteIsIdempotent(t *testing.T) {
	h := newTestHarness(t, iface.RolePrimary, false)
	ctx := context.Background()

	require.NoError(t, h.records.Delete(ctx, "missing.example", "A"))
	require.NoError(t, h.records.AddOrUpdate(ctx, "example.com", "A", "192.0.2.1"))
	require.NoError(t, h.records.Delete(ctx, "example.com", "A"))
	require.NoError(t, h.records.Delete(ctx, "example.com", "A"))

	_, err := h.records.Query(ctx, "example.com", "A")
	assert.ErrorIs(t, err, shared.ErrStorageNotFound)
}

func TestApplyReplicatedIsIdempotent(t *testing.T) {
	h := newTestHarness(t, iface.RoleSecondary, false)
	ctx := context.Background()
	ev := shared.NewUpsertEvent(shared.Record{Domain: "example.com", RecordType: "A", Value: "192.0.2.1"})

	require.NoError(t, h.records.ApplyReplicated(ctx, ev))
	require.NoError(t, h.records.ApplyReplicated(ctx, ev))
	val, found, err := h.cache.Get(ctx, "example.com:A")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "192.0.2.1", val)
	assert.Equal(t, 1, h.cache.Len())

	// replicated writes stay out of the local store unless enabled
	_, found, err = h.store.GetRecord("example.com", "A")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, h.backlog.Len(h.queue))

	del := shared.NewDeleteEvent("example.com", "A")
	require.NoError(t, h.records.ApplyReplicated(ctx, del))
	require.NoError(t, h.records.ApplyReplicated(ctx, del))
	_, found, _ = h.cache.Get(ctx, "example.com:A")
	assert.False(t, found)
}

func TestApplyReplicatedToStore(t *testing.T) {
	h := newTestHarness(t, iface.RoleSecondary, true)
	ctx := context.Background()

	ev := shared.NewUpsertEvent(shared.Record{Domain: "example.com", RecordType: "TXT", Value: "v=spf1 -all"})
	require.NoError(t, h.records.ApplyReplicated(ctx, ev))
	rec, found, err := h.store.GetRecord("example.com", "TXT")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v=spf1 -all", rec.Value)

	require.NoError(t, h.records.ApplyReplicated(ctx, shared.NewDeleteEvent("example.com", "TXT")))
	_, found, err = h.store.GetRecord("example.com", "TXT")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestApplyReplicatedRejectsUnknownAction(t *testing.T) {
	h := newTestHarness(t, iface.RoleSecondary, false)
	err := h.records.ApplyReplicated(context.Background(), shared.Event{Action: "RENAME", Domain: "example.com", RecordType: "A"})
	assert.ErrorIs(t, err, shared.ErrUnknownAction)
}

func TestInvalidIdentityIsRejected(t *testing.T) {
	h := newTestHarness(t, iface.RolePrimary, false)
	ctx := context.Background()

	assert.ErrorIs(t, h.records.AddOrUpdate(ctx, "", "A", "192.0.2.1"), shared.ErrInvalidArgument)
	assert.ErrorIs(t, h.records.AddOrUpdate(ctx, "exa mple.com", "A", "192.0.2.1"), shared.ErrInvalidArgument)
	assert.ErrorIs(t, h.records.Delete(ctx, "example.com", ""), shared.ErrInvalidArgument)
	_, err := h.records.Query(ctx, "example.com", "A:B")
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	assert.Equal(t, 0, h.backlog.Len(h.queue))
}

type brokenCache struct {
	*cache.MemCache
	deleted []string
}

func (b *brokenCache) Set(context.Context, string, string, time.Duration) error {
	return errors.New("cache unavailable")
}

func (b *brokenCache) Delete(ctx context.Context, key string) error {
	b.deleted = append(b.deleted, key)
	return b.MemCache.Delete(ctx, key)
}

func TestCacheFailureFailsWriteAfterStore(t *testing.T) {
	h := newTestHarness(t, iface.RolePrimary, false)
	broken := &brokenCache{MemCache: h.cache}
	records := NewRecordService(&RecordServiceConfig{
		Role:        iface.RolePrimary,
		Storage:     h.store,
		Cache:       broken,
		Replication: NewPublishAndEnqueue(h.bus, h.backlog, h.queue),
	})

	err := records.AddOrUpdate(context.Background(), "example.com", "A", "192.0.2.1")
	require.Error(t, err)
	assert.Equal(t, []string{"example.com:A"}, broken.deleted)
	assert.EqualValues(t, 1, records.Metrics().WriteFailuresTotal.Load())
	// the store write is kept, nothing is replicated
	_, found, err := h.store.GetRecord("example.com", "A")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 0, h.backlog.Len(h.queue))
}

type brokenBus struct{}

func (brokenBus) Publish(context.Context, shared.Event) error {
	return errors.New("bus unavailable")
}

func (brokenBus) Listen(ctx context.Context, _ iface.ApplyReplicatedEvent) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestReplicationFailureKeepsWrite(t *testing.T) {
	h := newTestHarness(t, iface.RolePrimary, false)
	records := NewRecordService(&RecordServiceConfig{
		Role:        iface.RolePrimary,
		Storage:     h.store,
		Cache:       h.cache,
		Replication: NewPublishAndEnqueue(brokenBus{}, h.backlog, h.queue),
	})

	require.NoError(t, records.AddOrUpdate(context.Background(), "example.com", "A", "192.0.2.1"))
	assert.EqualValues(t, 1, records.Metrics().ReplicationFailureTotal.Load())
	assert.Equal(t, 1, h.backlog.Len(h.queue))
}
