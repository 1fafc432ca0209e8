// Package metrics provides Prometheus metrics for the inventory service.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tcg_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Scryfall Metrics
	ScryfallRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_scryfall_requests_total",
			Help: "Total Scryfall API requests",
		},
		[]string{"endpoint", "result"}, // endpoint: "exact" or "fuzzy", result: "found", "not_found", "mismatch", "error"
	)

	ScryfallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tcg_scryfall_latency_seconds",
			Help:    "Scryfall API call latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"endpoint"},
	)

	LookupCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcg_lookup_cache_hits_total",
			Help: "Card metadata cache hit count",
		},
	)

	LookupCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcg_lookup_cache_misses_total",
			Help: "Card metadata cache miss count",
		},
	)

	// Import Metrics
	ImportRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_import_rows_total",
			Help: "Imported rows by outcome",
		},
		[]string{"result"}, // "inserted", "merged", "invalid", "failed"
	)

	// Enrichment Metrics
	EnrichedRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcg_enriched_records_total",
			Help: "Records processed by enrichment jobs by outcome",
		},
		[]string{"result"}, // "updated", "not_found", "skipped"
	)

	EnrichmentBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tcg_enrichment_batch_commit_seconds",
			Help:    "Time taken to commit an enrichment batch",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	// Job Metrics
	JobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tcg_jobs_active",
			Help: "Background jobs currently running",
		},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tcg_job_duration_seconds",
			Help:    "Background job duration by kind",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"kind", "result"},
	)

	JobsRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcg_jobs_rejected_total",
			Help: "Job triggers rejected because the owner already had one running",
		},
	)

	// Alert Metrics
	PriceAlertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcg_price_alerts_total",
			Help: "Price alerts created",
		},
	)

	// Collection Metrics
	CollectionValueUSD = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tcg_collection_value_usd",
			Help: "Total estimated value of all inventories at the last snapshot",
		},
	)

	CollectionCardsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tcg_collection_cards_total",
			Help: "Total number of cards across all inventories at the last snapshot",
		},
	)
)
