package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/meidoworks/nekoq-dnsreplica/config"
	"github.com/meidoworks/nekoq-dnsreplica/internal/cache"
	"github.com/meidoworks/nekoq-dnsreplica/internal/dnscore"
	"github.com/meidoworks/nekoq-dnsreplica/internal/httpserver"
	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
	"github.com/meidoworks/nekoq-dnsreplica/internal/metrics"
	"github.com/meidoworks/nekoq-dnsreplica/internal/replication"
	"github.com/meidoworks/nekoq-dnsreplica/internal/storage"
	"github.com/meidoworks/nekoq-dnsreplica/logging"
)

type NodeOption func(n *nodeOptions)

type nodeOptions struct {
	redisClient redis.UniversalClient
	bus         iface.ReplicationBus
	backlog     iface.PendingBacklog
}

// WithRedisClient shares an existing client instead of dialing redis.address.
// The node does not close a shared client.
func WithRedisClient(client redis.UniversalClient) NodeOption {
	return func(n *nodeOptions) {
		n.redisClient = client
	}
}

// WithBus overrides the replication bus chosen from the cache provider.
func WithBus(bus iface.ReplicationBus) NodeOption {
	return func(n *nodeOptions) {
		n.bus = bus
	}
}

// WithBacklog overrides the pending update backlog chosen from the cache provider.
func WithBacklog(backlog iface.PendingBacklog) NodeOption {
	return func(n *nodeOptions) {
		n.backlog = backlog
	}
}

// ReplicaNode is one server process: store, cache, replication and the
// network endpoints assembled from a Config.
type ReplicaNode struct {
	config *config.Config

	store       storage.RecordStorage
	redisClient redis.UniversalClient
	ownsRedis   bool
	memCache    *cache.MemCache

	records  *RecordService
	text     *TextService
	resp     *Resp2Service
	http     *HttpServiceContainer
	dns      *dnscore.DnsEndpoint
	listener *replication.Listener
	drainer  *replication.Drainer

	log *logrus.Entry
}

func NewReplicaNode(cfg *config.Config, opts ...NodeOption) (*ReplicaNode, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := new(nodeOptions)
	for _, opt := range opts {
		opt(o)
	}
	role := cfg.Role()
	n := &ReplicaNode{
		config: cfg,
		log:    logging.Component("node").WithField("role", role.String()),
	}

	store, err := storage.Open(cfg.Store.Provider, cfg.StorePath())
	if err != nil {
		return nil, errors.Wrap(err, "open record store")
	}
	n.store = store

	var (
		recordCache iface.RecordCache
		bus         = o.bus
		backlog     = o.backlog
	)
	switch cfg.Cache.Provider {
	case "redis":
		n.redisClient = o.redisClient
		if n.redisClient == nil {
			n.redisClient = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Address,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
				Protocol: cfg.Redis.Protocol,
			})
			n.ownsRedis = true
		}
		recordCache = cache.NewRedisCache(n.redisClient, cfg.Cache.KeyPrefix)
		if bus == nil {
			bus = replication.NewRedisBus(n.redisClient, cfg.Replication.Channel)
		}
		if backlog == nil {
			backlog = replication.NewRedisBacklog(n.redisClient)
		}
	default:
		n.memCache = cache.NewMemCache()
		recordCache = n.memCache
		if bus == nil {
			bus = replication.NewMemBus()
		}
		if backlog == nil {
			backlog = replication.NewMemBacklog()
		}
	}

	n.records = NewRecordService(&RecordServiceConfig{
		Role:         role,
		Storage:      store,
		Cache:        recordCache,
		CacheTTL:     cfg.CacheTTL(),
		Replication:  NewPublishAndEnqueue(bus, backlog, replication.QueueName(cfg.Replication.BacklogKey, role)),
		ApplyToStore: cfg.Replication.ApplyToStore,
		Metrics:      metrics.New(),
	})

	n.text = NewTextService(&TextServiceConfig{
		Addr:           cfg.ListenAddress(),
		MaxConnections: cfg.Listener.MaxConnections,
		MaxRequestSize: cfg.Listener.MaxRequestSize,
		ReadTimeout:    cfg.ReadTimeout(),
	}, n.records)

	if cfg.Listener.RespAddress != "" {
		n.resp = NewResp2Service(&RespServiceConfig{Addr: cfg.Listener.RespAddress})
		NewRespRecordHandler(n.records).Register(n.resp)
	}
	if cfg.Listener.HttpAddress != "" {
		n.http = NewHttpServiceContainer(httpserver.NewHttpServer(cfg.Listener.HttpAddress)).SetupRecordService(n.records)
	}
	if cfg.Listener.DnsAddress != "" {
		n.dns, err = dnscore.NewDnsEndpoint(cfg.Listener.DnsAddress, n.records, cfg.Main.Debug)
		if err != nil {
			_ = n.closeResources()
			return nil, errors.Wrap(err, "dns endpoint")
		}
	}

	if cfg.Subscribe() {
		n.listener = replication.NewListener(bus, n.records.ApplyReplicated)
	}
	m := n.records.Metrics()
	n.drainer = replication.NewDrainer(backlog, replication.QueueName(cfg.Replication.BacklogKey, role.Peer()), n.records.ApplyReplicated, cfg.DrainInterval())
	n.drainer.OnDrained = func(applied int, err error) {
		m.BacklogDrainedTotal.Add(int64(applied))
		if err != nil {
			m.BacklogDrainFailTotal.Add(1)
		}
	}

	return n, nil
}

func (n *ReplicaNode) Records() *RecordService {
	return n.records
}

func (n *ReplicaNode) TextService() *TextService {
	return n.text
}

func (n *ReplicaNode) RespService() *Resp2Service {
	return n.resp
}

func (n *ReplicaNode) HttpService() *HttpServiceContainer {
	return n.http
}

func (n *ReplicaNode) DnsEndpoint() *dnscore.DnsEndpoint {
	return n.dns
}

// Startup replays the peer backlog, starts the replication goroutines and
// then opens the endpoints.
func (n *ReplicaNode) Startup(ctx context.Context) error {
	if _, err := n.drainer.DrainOnce(ctx); err != nil {
		n.log.WithError(err).Error("[ERROR] Processing pending updates failed")
	}
	n.drainer.Start(ctx)
	if n.listener != nil {
		n.listener.Start(ctx)
		n.log.Info("[INFO] Listening for updates on ", n.config.Replication.Channel)
	}

	if err := n.text.Startup(); err != nil {
		return errors.Wrap(err, "text endpoint")
	}
	if n.resp != nil {
		if err := n.resp.Startup(); err != nil {
			return errors.Wrap(err, "resp endpoint")
		}
	}
	if n.http != nil {
		if err := n.http.Startup(); err != nil {
			return errors.Wrap(err, "http endpoint")
		}
		n.log.Info("[INFO] HTTP endpoint is listening on ", n.http.Addr())
	}
	if n.dns != nil {
		if err := n.dns.Startup(); err != nil {
			return errors.Wrap(err, "dns endpoint")
		}
	}
	return nil
}

// Stop closes endpoints first, then replication, then storage.
func (n *ReplicaNode) Stop() error {
	var errs []error
	if n.dns != nil {
		errs = append(errs, n.dns.Stop())
	}
	if n.http != nil {
		errs = append(errs, n.http.Stop())
	}
	if n.resp != nil {
		errs = append(errs, n.resp.Stop())
	}
	errs = append(errs, n.text.Stop())
	if n.listener != nil {
		n.listener.Stop()
	}
	n.drainer.Stop()
	errs = append(errs, n.closeResources())
	for _, err := range errs {
		if err != nil {
			n.log.WithError(err).Warn("[WARN] Shutdown step failed")
		}
	}
	n.log.Info("[INFO] Server stopped")
	return firstError(errs)
}

func (n *ReplicaNode) closeResources() error {
	var errs []error
	if n.memCache != nil {
		errs = append(errs, n.memCache.Close())
	}
	if n.ownsRedis && n.redisClient != nil {
		errs = append(errs, n.redisClient.Close())
	}
	errs = append(errs, n.store.Close())
	return firstError(errs)
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
