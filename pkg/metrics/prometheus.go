// Package metrics provides Prometheus metrics for the trajan pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Pipeline metrics
	episodesProcessed prometheus.Counter
	episodesRejected  *prometheus.CounterVec
	recordsEmitted    prometheus.Counter
	recordsExcluded   *prometheus.CounterVec
	framesDuplicate   prometheus.Counter
	episodeLatency    prometheus.Histogram
	comparisons       *prometheus.CounterVec
	kmeansIterations  prometheus.Histogram
	storeEpisodes     prometheus.Gauge

	// Queue metrics
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueEnqueueErrs prometheus.Counter

	// Worker metrics
	workerCount   prometheus.Gauge
	workerActive  prometheus.Gauge
	workerErrors  prometheus.Counter
	workerLatency prometheus.Histogram

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with configuration options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "trajan",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.episodesProcessed = m.counter("episodes_processed_total", "Episodes extracted and aggregated")
	m.episodesRejected = m.counterVec("episodes_rejected_total", "Episodes rejected by the store", "reason")
	m.recordsEmitted = m.counter("records_emitted_total", "Feature records emitted")
	m.recordsExcluded = m.counterVec("records_excluded_total", "Agent records excluded from results", "reason")
	m.framesDuplicate = m.counter("frames_duplicate_total", "Duplicate frame rows dropped during ingest")
	m.episodeLatency = m.histogram("episode_latency_milliseconds", "Per-episode extraction and aggregation latency", m.histogramBuckets)
	m.comparisons = m.counterVec("comparisons_total", "Comparisons run by kind and status", "kind", "status")
	m.kmeansIterations = m.histogram("kmeans_iterations", "Iterations until k-means converged",
		[]float64{1, 2, 5, 10, 20, 50, 100, 200})
	m.storeEpisodes = m.gauge("store_episodes", "Episodes held by the frozen store")

	m.queueSize = m.gauge("queue_size", "Current number of queued episode jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queued episode jobs")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size over capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Jobs dequeued")
	m.queueEnqueueErrs = m.counter("queue_enqueue_errors_total", "Failed enqueue attempts")

	m.workerCount = m.gauge("worker_count", "Configured workers")
	m.workerActive = m.gauge("worker_active_count", "Workers currently processing a job")
	m.workerErrors = m.counter("worker_errors_total", "Jobs that failed in a worker")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds", "Job processing latency", m.histogramBuckets)

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordEpisodeProcessed increments the processed episodes counter.
func RecordEpisodeProcessed() {
	globalManager.episodesProcessed.Inc()
}

// RecordEpisodeRejected counts an episode the store rejected.
func RecordEpisodeRejected(reason string) {
	globalManager.episodesRejected.WithLabelValues(reason).Inc()
}

// RecordRecordsEmitted adds n emitted feature records.
func RecordRecordsEmitted(n int) {
	globalManager.recordsEmitted.Add(float64(n))
}

// RecordRecordExcluded counts one excluded agent record.
func RecordRecordExcluded(reason string) {
	globalManager.recordsExcluded.WithLabelValues(reason).Inc()
}

// RecordFrameDuplicate counts one dropped duplicate frame row.
func RecordFrameDuplicate() {
	globalManager.framesDuplicate.Inc()
}

// RecordEpisodeLatency records per-episode latency in milliseconds.
func RecordEpisodeLatency(latencyMs float64) {
	globalManager.episodeLatency.Observe(latencyMs)
}

// RecordComparison counts one comparison by kind and status.
func RecordComparison(kind, status string) {
	globalManager.comparisons.WithLabelValues(kind, status).Inc()
}

// RecordKMeansIterations records the iterations of one k-means run.
func RecordKMeansIterations(n int) {
	globalManager.kmeansIterations.Observe(float64(n))
}

// UpdateStoreEpisodes sets the number of episodes in the store.
func UpdateStoreEpisodes(n int) {
	globalManager.storeEpisodes.Set(float64(n))
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrs.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActive.Set(float64(count))
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
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

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
