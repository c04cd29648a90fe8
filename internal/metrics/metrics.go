// Package metrics defines the Prometheus instrumentation surface, exposed
// on the media endpoint's mux at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsIngested counts raw events accepted into the ingestion queue.
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayline_events_ingested_total",
		Help: "Raw events accepted into the ingestion queue, by account.",
	}, []string{"account"})

	// DedupDrops counts events suppressed by the dedup window.
	DedupDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayline_dedup_drops_total",
		Help: "Events dropped as duplicates within the dedup window.",
	})

	// FilterDrops counts events vetoed by filter rules.
	FilterDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayline_filter_drops_total",
		Help: "Events dropped by filter rules.",
	})

	// DeliveryAttempts counts delivery attempts by platform and outcome.
	DeliveryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayline_delivery_attempts_total",
		Help: "Delivery attempts, by platform and status.",
	}, []string{"platform", "status"})

	// DeliveryLatency observes delivery call latency per platform.
	DeliveryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relayline_delivery_latency_seconds",
		Help:    "Latency of destination delivery calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"platform"})

	// RetriesScheduled counts tasks handed to the retry queue.
	RetriesScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayline_retries_scheduled_total",
		Help: "Delivery tasks scheduled for retry.",
	})

	// RetriesAbandoned counts retry records that hit the attempt ceiling.
	RetriesAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayline_retries_abandoned_total",
		Help: "Retry records abandoned after exhausting attempts.",
	})

	// MediaRehosts counts attachments served through the tokened endpoint.
	MediaRehosts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayline_media_rehosts_total",
		Help: "Attachments downloaded, transcoded and rehosted.",
	})
)
