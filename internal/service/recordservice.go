package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
	"github.com/meidoworks/nekoq-dnsreplica/internal/metrics"
	"github.com/meidoworks/nekoq-dnsreplica/internal/shared"
	"github.com/meidoworks/nekoq-dnsreplica/logging"
)

const DefaultCacheTTL = 3600 * time.Second

type RecordServiceConfig struct {
	Role     iface.ReplicatorRole
	Storage  iface.RecordStorage
	Cache    iface.RecordCache
	CacheTTL time.Duration

	Replication ReplicationStrategy
	// ApplyToStore makes replicated upserts and deletes reach the local store
	// as well as the cache.
	ApplyToStore bool

	Metrics *metrics.Metrics
}

type QueryResult struct {
	Record    shared.Record
	FromCache bool
}

// RecordService applies record operations to the local store and cache and
// hands accepted writes to the replication strategy. Primary and secondary
// run the same service and differ only by configuration.
type RecordService struct {
	role         iface.ReplicatorRole
	storage      iface.RecordStorage
	cache        iface.RecordCache
	ttl          time.Duration
	replication  ReplicationStrategy
	applyToStore bool
	metrics      *metrics.Metrics

	log *logrus.Entry
}

func NewRecordService(config *RecordServiceConfig) *RecordService {
	s := &RecordService{
		role:         config.Role,
		storage:      config.Storage,
		cache:        config.Cache,
		ttl:          config.CacheTTL,
		replication:  config.Replication,
		applyToStore: config.ApplyToStore,
		metrics:      config.Metrics,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultCacheTTL
	}
	if s.replication == nil {
		s.replication = noReplication{}
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	s.log = logging.Component("record").WithField("role", s.role.String())
	return s
}

func (s *RecordService) Role() iface.ReplicatorRole {
	return s.role
}

func (s *RecordService) Metrics() *metrics.Metrics {
	return s.metrics
}

// Query reads through the cache. A store hit repopulates the cache.
func (s *RecordService) Query(ctx context.Context, domain, recordType string) (QueryResult, error) {
	if err := shared.ValidateIdentity(domain, recordType); err != nil {
		return QueryResult{}, err
	}
	s.metrics.QueriesTotal.Add(1)
	key := shared.CacheKey(domain, recordType)

	val, found, err := s.cache.Get(ctx, key)
	if err != nil {
		return QueryResult{}, errors.Wrap(err, "cache lookup")
	}
	if found {
		s.metrics.CacheHitsTotal.Add(1)
		return QueryResult{
			Record:    shared.Record{Domain: domain, RecordType: recordType, Value: val},
			FromCache: true,
		}, nil
	}

	rec, found, err := s.storage.GetRecord(domain, recordType)
	if err != nil {
		return QueryResult{}, errors.Wrap(err, "store lookup")
	}
	if !found {
		s.metrics.NotFoundTotal.Add(1)
		return QueryResult{}, shared.ErrStorageNotFound
	}
	if err := s.cache.Set(ctx, key, rec.Value, s.ttl); err != nil {
		// the store answered, a cold cache only costs the next reader a lookup
		s.log.WithError(err).Warn("[WARN] Populate cache failed: ", key)
	}
	return QueryResult{Record: rec}, nil
}

// ResolveRecord is the read path of the DNS endpoint.
func (s *RecordService) ResolveRecord(ctx context.Context, domain, recordType string) (string, error) {
	r, err := s.Query(ctx, domain, recordType)
	if err != nil {
		return "", err
	}
	return r.Record.Value, nil
}

// AddOrUpdate upserts the record, refreshes its cache entry and replicates
// the write. The write reaches the store before it is published.
func (s *RecordService) AddOrUpdate(ctx context.Context, domain, recordType, value string) error {
	if err := shared.ValidateIdentity(domain, recordType); err != nil {
		return err
	}
	rec := shared.Record{Domain: domain, RecordType: recordType, Value: value}
	if err := s.storage.PutRecord(rec); err != nil {
		s.metrics.WriteFailuresTotal.Add(1)
		return errors.Wrap(err, "store put")
	}
	if err := s.cache.Set(ctx, rec.CacheKey(), value, s.ttl); err != nil {
		s.metrics.WriteFailuresTotal.Add(1)
		s.invalidate(ctx, rec.CacheKey())
		return errors.Wrap(err, "cache set")
	}
	s.metrics.WritesTotal.Add(1)
	s.replicate(ctx, shared.NewUpsertEvent(rec))
	return nil
}

// Delete removes the record from both layers. A missing record is not an error.
func (s *RecordService) Delete(ctx context.Context, domain, recordType string) error {
	if err := shared.ValidateIdentity(domain, recordType); err != nil {
		return err
	}
	if _, err := s.storage.DeleteRecord(domain, recordType); err != nil {
		s.metrics.WriteFailuresTotal.Add(1)
		return errors.Wrap(err, "store delete")
	}
	if err := s.cache.Delete(ctx, shared.CacheKey(domain, recordType)); err != nil {
		s.metrics.WriteFailuresTotal.Add(1)
		return errors.Wrap(err, "cache delete")
	}
	s.metrics.DeletesTotal.Add(1)
	s.replicate(ctx, shared.NewDeleteEvent(domain, recordType))
	return nil
}

// ApplyReplicated applies an event written by the peer. Upserts set the
// cache entry, deletes remove it; both are idempotent.
func (s *RecordService) ApplyReplicated(ctx context.Context, ev shared.Event) error {
	if err := shared.ValidateIdentity(ev.Domain, ev.RecordType); err != nil {
		return err
	}
	key := shared.CacheKey(ev.Domain, ev.RecordType)
	switch ev.Action {
	case shared.ActionAdd, shared.ActionUpdate:
		if s.applyToStore {
			if err := s.storage.PutRecord(ev.Record()); err != nil {
				return errors.Wrap(err, "store put")
			}
		}
		if err := s.cache.Set(ctx, key, ev.Value, s.ttl); err != nil {
			return errors.Wrap(err, "cache set")
		}
		s.log.Info("[INFO] Synced ", string(ev.Action), " operation for ", ev.RecordType, " record of ", ev.Domain, ": ", ev.Value)
	case shared.ActionDelete:
		if s.applyToStore {
			if _, err := s.storage.DeleteRecord(ev.Domain, ev.RecordType); err != nil {
				return errors.Wrap(err, "store delete")
			}
		}
		if err := s.cache.Delete(ctx, key); err != nil {
			return errors.Wrap(err, "cache delete")
		}
		s.log.Info("[INFO] Synced delete operation for ", ev.RecordType, " record of ", ev.Domain)
	default:
		return shared.ErrUnknownAction
	}
	s.metrics.ReplicatedAppliedTotal.Add(1)
	return nil
}

func (s *RecordService) replicate(ctx context.Context, ev shared.Event) {
	if err := s.replication.Replicate(ctx, ev); err != nil {
		s.metrics.ReplicationFailureTotal.Add(1)
	}
}

func (s *RecordService) invalidate(ctx context.Context, key string) {
	if err := s.cache.Delete(ctx, key); err != nil {
		s.log.WithError(err).Error("[ERROR] Invalidate cache entry failed, it may be stale: ", key)
	}
}
