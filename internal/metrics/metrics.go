// Package metrics provides Prometheus metrics for standardstore
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for standardstore. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Processing metrics
	RecordsProcessedTotal prometheus.Counter
	NodeFailuresTotal     prometheus.Counter
	ProcessDuration       prometheus.Histogram

	// Standards API metrics
	APIRequestsTotal  *prometheus.CounterVec
	APIRetriesTotal   *prometheus.CounterVec
	APICacheHitsTotal *prometheus.CounterVec

	// Index metrics
	UpsertBatchesTotal *prometheus.CounterVec
	UpsertRecordsTotal prometheus.Counter
	UpsertRetriesTotal prometheus.Counter
	IndexRecords       prometheus.Gauge

	// Tool metrics
	SearchQueriesTotal *prometheus.CounterVec
	SearchResultsTotal prometheus.Counter
	SearchDuration     prometheus.Histogram
	LookupsTotal       *prometheus.CounterVec

	ServerStartTime time.Time
}

// NewMetrics creates all metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer for the process-wide /metrics endpoint.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	m.GrpcRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standardstore_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "standardstore_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "standardstore_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	m.RecordsProcessedTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "standardstore_records_processed_total",
			Help: "Total number of records produced from standard sets",
		},
	)

	m.NodeFailuresTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "standardstore_node_failures_total",
			Help: "Total number of nodes that failed validation",
		},
	)

	m.ProcessDuration = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "standardstore_process_duration_seconds",
			Help:    "Duration of standard set processing in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	m.APIRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standardstore_api_requests_total",
			Help: "Total number of standards API requests",
		},
		[]string{"endpoint", "status"},
	)

	m.APIRetriesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standardstore_api_retries_total",
			Help: "Total number of standards API request retries",
		},
		[]string{"reason"},
	)

	m.APICacheHitsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standardstore_api_cache_hits_total",
			Help: "Total number of responses served from the local cache",
		},
		[]string{"kind"},
	)

	m.UpsertBatchesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standardstore_upsert_batches_total",
			Help: "Total number of index upsert batches",
		},
		[]string{"status"},
	)

	m.UpsertRecordsTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "standardstore_upsert_records_total",
			Help: "Total number of records written to the index",
		},
	)

	m.UpsertRetriesTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "standardstore_upsert_retries_total",
			Help: "Total number of upsert batch retries",
		},
	)

	m.IndexRecords = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "standardstore_index_records",
			Help: "Number of records in the index",
		},
	)

	m.SearchQueriesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standardstore_search_queries_total",
			Help: "Total number of search queries",
		},
		[]string{"status"},
	)

	m.SearchResultsTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "standardstore_search_results_total",
			Help: "Total number of search results returned",
		},
	)

	m.SearchDuration = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "standardstore_search_duration_seconds",
			Help:    "Duration of search queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.LookupsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standardstore_lookups_total",
			Help: "Total number of standard lookups by id",
		},
		[]string{"status"},
	)

	f.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "standardstore_server_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.ServerStartTime).Seconds() },
	)

	return m
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordProcessRun records the outcome of processing one standard set
func (m *Metrics) RecordProcessRun(succeeded, failed int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RecordsProcessedTotal.Add(float64(succeeded))
	m.NodeFailuresTotal.Add(float64(failed))
	m.ProcessDuration.Observe(duration.Seconds())
}

// RecordAPIRequest records one standards API response
func (m *Metrics) RecordAPIRequest(endpoint, status string) {
	if m == nil {
		return
	}
	m.APIRequestsTotal.WithLabelValues(endpoint, status).Inc()
}

// RecordAPIRetry records a retried standards API request
func (m *Metrics) RecordAPIRetry(reason string) {
	if m == nil {
		return
	}
	m.APIRetriesTotal.WithLabelValues(reason).Inc()
}

// RecordCacheHit records a response served from the local cache
func (m *Metrics) RecordCacheHit(kind string) {
	if m == nil {
		return
	}
	m.APICacheHitsTotal.WithLabelValues(kind).Inc()
}

// RecordUpsertBatch records one finished upsert batch
func (m *Metrics) RecordUpsertBatch(status string, records, retries int) {
	if m == nil {
		return
	}
	m.UpsertBatchesTotal.WithLabelValues(status).Inc()
	m.UpsertRecordsTotal.Add(float64(records))
	m.UpsertRetriesTotal.Add(float64(retries))
}

// RecordSearch records a search query
func (m *Metrics) RecordSearch(status string, results int, duration time.Duration) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(status).Inc()
	m.SearchResultsTotal.Add(float64(results))
	m.SearchDuration.Observe(duration.Seconds())
}

// RecordLookup records a lookup by id
func (m *Metrics) RecordLookup(status string) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(status).Inc()
}

// UpdateIndexStats updates the index size gauge
func (m *Metrics) UpdateIndexStats(records int64) {
	if m == nil {
		return
	}
	m.IndexRecords.Set(float64(records))
}

// InFlight tracks a gRPC request in progress; call the returned func when done
func (m *Metrics) InFlight() func() {
	if m == nil {
		return func() {}
	}
	m.GrpcRequestsInFlight.Inc()
	return m.GrpcRequestsInFlight.Dec
}
