// Package metrics provides Prometheus metrics for packstore
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for packstore. A nil *Metrics is
// valid and records nothing, so instrumentation points never need guards.
type Metrics struct {
	EntriesStored  prometheus.Counter
	EntriesDeleted prometheus.Counter

	SearchQueriesTotal prometheus.Counter
	SearchResultsTotal prometheus.Counter

	IndexLoadsTotal  prometheus.Counter
	SyncOpsTotal     *prometheus.CounterVec
	HydrationBatches prometheus.Counter

	RelayRequestsTotal *prometheus.CounterVec
}

// New creates and registers all packstore metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EntriesStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "packstore_entries_stored_total",
			Help: "Total number of entries stored",
		}),
		EntriesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "packstore_entries_deleted_total",
			Help: "Total number of entries deleted",
		}),
		SearchQueriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "packstore_search_queries_total",
			Help: "Total number of search queries",
		}),
		SearchResultsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "packstore_search_results_total",
			Help: "Total number of search results returned",
		}),
		IndexLoadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "packstore_index_loads_total",
			Help: "Total number of pack index loads from metadata records",
		}),
		SyncOpsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "packstore_sync_ops_total",
				Help: "Total number of metadata synchronization operations",
			},
			[]string{"op"},
		),
		HydrationBatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "packstore_hydration_batches_total",
			Help: "Total number of bulk payload hydration fetches",
		}),
		RelayRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "packstore_relay_requests_total",
				Help: "Total number of proxied relay requests",
			},
			[]string{"handler", "outcome"},
		),
	}
}

// RecordStore counts one stored entry.
func (m *Metrics) RecordStore() {
	if m == nil {
		return
	}
	m.EntriesStored.Inc()
}

// RecordDelete counts one deleted entry.
func (m *Metrics) RecordDelete() {
	if m == nil {
		return
	}
	m.EntriesDeleted.Inc()
}

// RecordSearch counts one search and its result size.
func (m *Metrics) RecordSearch(results int) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.Inc()
	m.SearchResultsTotal.Add(float64(results))
}

// RecordIndexLoad counts one metadata record load.
func (m *Metrics) RecordIndexLoad() {
	if m == nil {
		return
	}
	m.IndexLoadsTotal.Inc()
}

// RecordSyncOp counts one synchronizer operation by kind.
func (m *Metrics) RecordSyncOp(op string) {
	if m == nil {
		return
	}
	m.SyncOpsTotal.WithLabelValues(op).Inc()
}

// RecordHydrationBatch counts one bulk hydration fetch.
func (m *Metrics) RecordHydrationBatch() {
	if m == nil {
		return
	}
	m.HydrationBatches.Inc()
}

// RecordRelayRequest counts one proxied request and its outcome.
func (m *Metrics) RecordRelayRequest(handler, outcome string) {
	if m == nil {
		return
	}
	m.RelayRequestsTotal.WithLabelValues(handler, outcome).Inc()
}
