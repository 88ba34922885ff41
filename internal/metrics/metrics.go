package metrics

import "sync/atomic"

// Metrics holds atomic counters for observability.
type Metrics struct {
	QueriesTotal            atomic.Int64
	CacheHitsTotal          atomic.Int64
	NotFoundTotal           atomic.Int64
	WritesTotal             atomic.Int64
	DeletesTotal            atomic.Int64
	WriteFailuresTotal      atomic.Int64
	ReplicationFailureTotal atomic.Int64
	ReplicatedAppliedTotal  atomic.Int64
	BacklogDrainedTotal     atomic.Int64
	BacklogDrainFailTotal   atomic.Int64
	ConnectionsTotal        atomic.Int64
	ConnectionsRejected     atomic.Int64
	MalformedRequestsTotal  atomic.Int64
}

func New() *Metrics {
	return new(Metrics)
}

// Snapshot returns all metrics as a string-keyed map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"queries_total":             m.QueriesTotal.Load(),
		"cache_hits_total":          m.CacheHitsTotal.Load(),
		"not_found_total":           m.NotFoundTotal.Load(),
		"writes_total":              m.WritesTotal.Load(),
		"deletes_total":             m.DeletesTotal.Load(),
		"write_failures_total":      m.WriteFailuresTotal.Load(),
		"replication_failure_total": m.ReplicationFailureTotal.Load(),
		"replicated_applied_total":  m.ReplicatedAppliedTotal.Load(),
		"backlog_drained_total":     m.BacklogDrainedTotal.Load(),
		"backlog_drain_fail_total":  m.BacklogDrainFailTotal.Load(),
		"connections_total":         m.ConnectionsTotal.Load(),
		"connections_rejected":      m.ConnectionsRejected.Load(),
		"malformed_requests_total":  m.MalformedRequestsTotal.Load(),
	}
}
