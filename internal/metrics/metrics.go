package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsIngested counts canonical events persisted, labelled by
	// organization slug and source format. The "org" label feeds the
	// tenant-filtered exposition endpoint.
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "logfort",
			Name:      "events_ingested_total",
			Help:      "Total number of canonical events persisted.",
		},
		[]string{"org", "source"},
	)

	// LinesSkipped counts per-line parse failures that did not fail the
	// request (recorded, not fatal).
	LinesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "logfort",
			Name:      "lines_skipped_total",
			Help:      "Total number of unparseable lines skipped within otherwise valid batches.",
		},
		[]string{"org", "source"},
	)

	// RequestsRejected counts ingest requests rejected before persistence,
	// labelled by the failure kind (the server-side taxonomy, not the
	// uniform client-facing message).
	RequestsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "logfort",
			Name:      "requests_rejected_total",
			Help:      "Total number of rejected ingest requests by failure kind.",
		},
		[]string{"kind"},
	)

	// IngestDuration observes the end-to-end pipeline time per accepted request.
	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "logfort",
			Name:      "ingest_duration_seconds",
			Help:      "Histogram of ingest pipeline durations in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"source"},
	)

	// SweeperDeletions counts rows removed by the retention sweeper.
	SweeperDeletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "logfort",
			Name:      "sweeper_deletions_total",
			Help:      "Total number of rows deleted by the retention sweeper.",
		},
		[]string{"table"},
	)
)
