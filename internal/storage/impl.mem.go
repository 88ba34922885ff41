package storage

import (
	"sync"

	"github.com/meidoworks/nekoq-dnsreplica/internal/shared"
)

// MemStorage keeps records in a map. Nothing survives a restart.
type MemStorage struct {
	records map[string]shared.Record

	rwlock sync.RWMutex
}

func NewMemStorage() *MemStorage {
	return &MemStorage{
		records: map[string]shared.Record{},
	}
}

func (m *MemStorage) PutRecord(r shared.Record) error {
	key, err := recordKey(r.Domain, r.RecordType)
	if err != nil {
		return err
	}
	m.rwlock.Lock()
	defer m.rwlock.Unlock()
	m.records[string(key)] = r
	return nil
}

func (m *MemStorage) GetRecord(domain, recordType string) (shared.Record, bool, error) {
	key, err := recordKey(domain, recordType)
	if err != nil {
		return shared.Record{}, false, err
	}
	m.rwlock.RLock()
	defer m.rwlock.RUnlock()
	r, ok := m.records[string(key)]
	return r, ok, nil
}

func (m *MemStorage) DeleteRecord(domain, recordType string) (bool, error) {
	key, err := recordKey(domain, recordType)
	if err != nil {
		return false, err
	}
	m.rwlock.Lock()
	defer m.rwlock.Unlock()
	_, ok := m.records[string(key)]
	delete(m.records, string(key))
	return ok, nil
}

func (m *MemStorage) Count() (int, error) {
	m.rwlock.RLock()
	defer m.rwlock.RUnlock()
	return len(m.records), nil
}

func (m *MemStorage) Close() error {
	return nil
}
