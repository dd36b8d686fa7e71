package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"chatledger/pkg/store"
)

var (
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatledger_messages_total",
		Help: "Messages appended to chat threads, by author kind.",
	}, []string{"author"})

	TransactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatledger_transactions_total",
		Help: "Applied ledger debits, by reason.",
	}, []string{"reason"})

	InsufficientTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatledger_insufficient_balance_total",
		Help: "Sends refused because the debit failed.",
	})

	DetectionRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatledger_detection_requests_total",
		Help: "Detection gateway calls, by outcome (ok, unreachable, server_error, rejected).",
	}, []string{"outcome"})

	DetectionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatledger_detection_duration_seconds",
		Help:    "Latency of detection gateway calls.",
		Buckets: prometheus.DefBuckets,
	})
)

// Register installs all collectors plus a disk usage gauge backed by
// the store, onto the given registerer.
func Register(reg prometheus.Registerer, kv *store.KV) {
	reg.MustRegister(
		MessagesTotal,
		TransactionsTotal,
		InsufficientTotal,
		DetectionRequests,
		DetectionDuration,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "chatledger_store_disk_bytes",
			Help: "Best-effort on-disk size of the pebble store.",
		}, func() float64 { return float64(kv.DiskUsage()) }),
	)
}
