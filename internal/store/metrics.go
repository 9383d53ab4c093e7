package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rowInserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventsyncor_store_row_inserts_total",
			Help: "Total rows written by the sync store, by table",
		},
		[]string{"table"},
	)

	intervalMerges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventsyncor_store_interval_merges_total",
			Help: "Total per-fragment interval merge operations",
		},
	)

	eventPages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventsyncor_store_event_pages_total",
			Help: "Total event stream pages served",
		},
	)

	eventsServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventsyncor_store_events_total",
			Help: "Total events yielded by the event iterator",
		},
	)

	reorgTruncations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventsyncor_store_reorg_truncations_total",
			Help: "Total realtime data truncations",
		},
	)

	rpcCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventsyncor_store_rpc_cache_lookups_total",
			Help: "Total RPC request cache lookups, by result",
		},
		[]string{"result"},
	)

	opDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventsyncor_store_op_duration_seconds",
			Help:    "Duration of sync store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

func RowInsertsAdd(table string, n int) {
	rowInserts.WithLabelValues(table).Add(float64(n))
}

func IntervalMergesInc() {
	intervalMerges.Inc()
}

func EventPageServed(events int) {
	eventPages.Inc()
	eventsServed.Add(float64(events))
}

func ReorgTruncationsInc() {
	reorgTruncations.Inc()
}

func RPCCacheHitInc() {
	rpcCacheLookups.WithLabelValues("hit").Inc()
}

func RPCCacheMissInc() {
	rpcCacheLookups.WithLabelValues("miss").Inc()
}

func OpDurationLog(op string, duration time.Duration) {
	opDuration.WithLabelValues(op).Observe(duration.Seconds())
}
