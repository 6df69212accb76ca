package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TriggersReceived counts inbound webhook deliveries by outcome
	// (accepted, invalid_signature, unknown_endpoint, missing_signature).
	TriggersReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paymirror_webhook_triggers_total",
		Help: "Total number of webhook deliveries received, by outcome",
	}, []string{"outcome"})

	// EventsProcessed counts event processing results. "duplicate" means the
	// event ID had already been processed and handlers were skipped.
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paymirror_events_processed_total",
		Help: "Total number of remote events processed, by status",
	}, []string{"status", "event_type"})

	// RecordsSynchronized counts mirrored record upserts and deletions
	RecordsSynchronized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paymirror_records_synchronized_total",
		Help: "Total number of mirrored records written, by entity type and operation",
	}, []string{"entity_type", "op"})

	// RemoteFetches counts on-demand reads against the remote platform,
	// issued while expanding object references during synchronization
	RemoteFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paymirror_remote_fetches_total",
		Help: "Total number of on-demand remote object fetches, by entity type and result",
	}, []string{"entity_type", "result"})

	// SyncDuration measures how long one top-level synchronize call takes,
	// including recursive expansion fetches
	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "paymirror_sync_duration_seconds",
		Help:    "Duration of one top-level record synchronization in seconds",
		Buckets: prometheus.DefBuckets,
	})
)
