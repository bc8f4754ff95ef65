// Package metrics provides Prometheus metrics for the scorebrawl settlement service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Settlement
	matchesSettled     *prometheus.CounterVec
	matchesReverted    prometheus.Counter
	settlementFailures *prometheus.CounterVec
	settlementLatency  *prometheus.HistogramVec
	teamsCreated       prometheus.Counter
	idempotentReplays  prometheus.Counter
	reconcileRepairs   prometheus.Counter

	// Read models
	standingsEntries prometheus.Gauge
	achievements     *prometheus.CounterVec

	// Achievement queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec
	workerCount        prometheus.Gauge
	workerLatency      prometheus.Histogram
	workerErrors       prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// Storage
	storeLatency *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps default Go collectors out of /metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "scorebrawl",
		subsystem:        "settlement",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.matchesSettled = auto.NewCounterVec(m.counterOpts("matches_settled_total", "Matches settled, by scoring mode"), []string{"mode"})
	m.matchesReverted = auto.NewCounter(m.counterOpts("matches_reverted_total", "Matches removed by reversal"))
	m.settlementFailures = auto.NewCounterVec(m.counterOpts("failures_total", "Failed settlement operations, by operation and error code"), []string{"operation", "code"})
	m.settlementLatency = auto.NewHistogramVec(m.histogramOpts("latency_milliseconds", "Settlement operation latency in milliseconds"), []string{"operation"})
	m.teamsCreated = auto.NewCounter(m.counterOpts("teams_created_total", "Teams created lazily from never seen rosters"))
	m.idempotentReplays = auto.NewCounter(m.counterOpts("idempotent_replays_total", "Match submissions answered from the idempotency cache"))
	m.reconcileRepairs = auto.NewCounter(m.counterOpts("reconcile_repairs_total", "Live scores repaired by reconciliation"))

	m.standingsEntries = auto.NewGauge(m.gaugeOpts("standings_entries", "Participants tracked by the standings index across seasons"))
	m.achievements = auto.NewCounterVec(m.counterOpts("achievements_recorded_total", "Achievement occurrences recorded, by type"), []string{"type"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Pending achievement events"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Capacity of the achievement event queue"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Achievement events enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Achievement events dequeued"))
	m.queueEnqueueErrors = auto.NewCounterVec(m.counterOpts("queue_enqueue_errors_total", "Achievement events dropped at enqueue, by reason"), []string{"reason"})
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Achievement workers running"))
	m.workerLatency = auto.NewHistogram(m.histogramOpts("worker_processing_milliseconds", "Achievement event processing latency in milliseconds"))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Achievement events that failed processing"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by route, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})
	m.httpErrors = auto.NewCounterVec(m.counterOpts("http_errors_total", "HTTP error responses by route, method and error type"), []string{"endpoint", "method", "error_type"})

	m.storeLatency = auto.NewHistogramVec(m.histogramOpts("store_latency_milliseconds", "Storage call latency in milliseconds"), []string{"store", "operation"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_milliseconds",
		Help:        "Average GC pause in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
	})
}

// RecordMatchSettled counts a committed settlement.
func RecordMatchSettled(mode string) {
	globalManager.matchesSettled.WithLabelValues(mode).Inc()
}

// RecordMatchReverted counts a committed reversal.
func RecordMatchReverted() {
	globalManager.matchesReverted.Inc()
}

// RecordSettlementFailure counts a failed settlement operation.
func RecordSettlementFailure(operation, code string) {
	globalManager.settlementFailures.WithLabelValues(operation, code).Inc()
}

// RecordSettlementLatency records the latency of a settlement operation.
func RecordSettlementLatency(operation string, latencyMs float64) {
	globalManager.settlementLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordTeamCreated counts a lazily created team.
func RecordTeamCreated() {
	globalManager.teamsCreated.Inc()
}

// RecordIdempotentReplay counts a submission answered from the idempotency cache.
func RecordIdempotentReplay() {
	globalManager.idempotentReplays.Inc()
}

// RecordReconcileRepairs adds repaired live scores.
func RecordReconcileRepairs(n int) {
	globalManager.reconcileRepairs.Add(float64(n))
}

// UpdateStandingsEntries sets the number of indexed participants.
func UpdateStandingsEntries(n int) {
	globalManager.standingsEntries.Set(float64(n))
}

// RecordAchievement counts a recorded achievement occurrence.
func RecordAchievement(kind string) {
	globalManager.achievements.WithLabelValues(kind).Inc()
}

// UpdateQueueSize sets the number of pending events.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an enqueued event.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts a dequeued event.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts an event dropped at enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records how long one event took.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed event.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPError records an error response.
func RecordHTTPError(endpoint, method, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordStoreLatency records the latency of a storage call.
func RecordStoreLatency(store, operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(store, operation).Observe(latencyMs)
}

// UpdateSystemMemoryUsage sets the heap allocation in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry backing the global metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
