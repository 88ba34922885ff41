package cache

import (
	"context"
	"sync"
	"time"

	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
)

var _ iface.RecordCache = new(MemCache)

type memEntry struct {
	value    string
	expireAt time.Time
}

// MemCache is a process-local cache. Expired entries are treated as absent on
// read and swept by a background job.
type MemCache struct {
	rwlock sync.RWMutex
	cache  map[string]memEntry

	now              func() time.Time
	cleanUpJobTicker *time.Ticker
	closeChan        chan struct{}
	closeOnce        sync.Once
}

func NewMemCache() *MemCache {
	cache := &MemCache{
		cache:            map[string]memEntry{},
		now:              time.Now,
		cleanUpJobTicker: time.NewTicker(1 * time.Minute),
		closeChan:        make(chan struct{}),
	}
	go cache.cleanupJob()
	return cache
}

func (m *MemCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.rwlock.Lock()
	defer m.rwlock.Unlock()
	m.cache[key] = memEntry{value: value, expireAt: m.now().Add(ttl)}
	return nil
}

func (m *MemCache) Get(_ context.Context, key string) (string, bool, error) {
	m.rwlock.RLock()
	defer m.rwlock.RUnlock()
	e, ok := m.cache[key]
	if !ok || !m.now().Before(e.expireAt) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *MemCache) Delete(_ context.Context, key string) error {
	m.rwlock.Lock()
	defer m.rwlock.Unlock()
	delete(m.cache, key)
	return nil
}

func (m *MemCache) Len() int {
	m.rwlock.RLock()
	defer m.rwlock.RUnlock()
	return len(m.cache)
}

func (m *MemCache) Close() error {
	m.closeOnce.Do(func() {
		m.cleanUpJobTicker.Stop()
		close(m.closeChan)
	})
	return nil
}

func (m *MemCache) cleanupJob() {
	for {
		select {
		case <-m.closeChan:
			return
		case <-m.cleanUpJobTicker.C:
			m.sweep()
		}
	}
}

func (m *MemCache) sweep() {
	now := m.now()
	m.rwlock.Lock()
	defer m.rwlock.Unlock()
	for k, v := range m.cache {
		if !now.Before(v.expireAt) {
			delete(m.cache, k)
		}
	}
}
