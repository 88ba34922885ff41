package iface

import (
	"context"
	"time"

	"github.com/meidoworks/nekoq-dnsreplica/internal/shared"
)

type ClosableStorage interface {
	Close() error
}

// RecordStorage is the durable table of records keyed by (domain, record type).
type RecordStorage interface {
	PutRecord(r shared.Record) error
	GetRecord(domain, recordType string) (shared.Record, bool, error)
	// DeleteRecord reports whether a row existed.
	DeleteRecord(domain, recordType string) (bool, error)
}

// RecordCache is the expiring view over records. A missing entry is never an error.
type RecordCache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}
