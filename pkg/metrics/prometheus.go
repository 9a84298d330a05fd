// Package metrics provides Prometheus metrics for the vinyl aggregation service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	enabled        bool
	constLabels    map[string]string
	metricPrefix   string
	registry       prometheus.Registerer

	// Aggregation
	recordsAdded     prometheus.Counter
	recordsRejected  *prometheus.CounterVec
	recordsDuplicate prometheus.Counter
	samplesGenerated prometheus.Counter
	accumulators     prometheus.Gauge
	contributors     prometheus.Gauge
	queries          *prometheus.CounterVec

	// Homomorphic operations
	heOperationLatency *prometheus.HistogramVec
	heOperationErrors  *prometheus.CounterVec
	heRefreshes        prometheus.Counter
	heSetupDuration    prometheus.Gauge

	// Persistence
	persistLatency   *prometheus.HistogramVec
	persistErrors    *prometheus.CounterVec
	persistLastUnix  prometheus.Gauge
	persistBytesSize prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "vinyl",
		subsystem:      "aggregation",
		latencyBuckets: defaultLatencyBuckets,
		enabled:        true,
		registry:       prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.recordsAdded = m.counter("records_added_total", "Total number of records folded into accumulators")
	m.recordsRejected = m.counterVec("records_rejected_total", "Total number of rejected records by reason", "reason")
	m.recordsDuplicate = m.counter("records_duplicate_total", "Total number of duplicate submissions detected")
	m.samplesGenerated = m.counter("samples_generated_total", "Total number of synthesized sample records")
	m.accumulators = m.gauge("accumulators", "Number of active encrypted accumulators")
	m.contributors = m.gauge("contributors", "Number of distinct contributing artists")
	m.queries = m.counterVec("queries_total", "Total number of aggregate queries by kind and status", "query", "status")

	m.heOperationLatency = m.histogramVec("he_operation_latency_milliseconds",
		"Latency of homomorphic operations in milliseconds", m.latencyBuckets, "op")
	m.heOperationErrors = m.counterVec("he_operation_errors_total", "Total number of failed homomorphic operations", "op")
	m.heRefreshes = m.counter("he_refreshes_total", "Total number of ciphertext noise refreshes")
	m.heSetupDuration = m.gauge("he_setup_duration_milliseconds", "Time spent building the cryptographic context")

	m.persistLatency = m.histogramVec("persist_latency_milliseconds", "Persistence latency in milliseconds", m.latencyBuckets, "op")
	m.persistErrors = m.counterVec("persist_errors_total", "Total number of persistence failures", "op")
	m.persistLastUnix = m.gauge("persist_last_unix", "Unix timestamp of the last successful write")
	m.persistBytesSize = m.histogram("persist_payload_bytes", "Size of persisted payloads after compression",
		prometheus.ExponentialBuckets(256, 4, 10))

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		m.latencyBuckets, "endpoint", "method", "status_code")

	m.queueSize = m.gauge("queue_size", "Current size of the ingestion queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of records enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of records dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue errors")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Queue enqueue latency in milliseconds",
		m.latencyBuckets)

	m.workerCount = m.gauge("worker_count", "Configured number of ingestion workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers currently folding a record")
	m.workerMessagesPerSecond = m.gauge("worker_messages_per_second", "Average records processed per second by workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker processing latency in milliseconds",
		m.latencyBuckets)
	m.workerErrorRate = m.counter("worker_errors_total", "Total number of worker errors")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of operations that resulted in errors",
		m.latencyBuckets, "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Enabled reports whether recording is on for the global manager.
func Enabled() bool { return globalManager.enabled }

// Aggregation metrics.

// RecordRecordAdded increments the folded records counter.
func RecordRecordAdded() {
	if globalManager.enabled {
		globalManager.recordsAdded.Inc()
	}
}

// RecordRecordRejected increments the rejected records counter for reason.
func RecordRecordRejected(reason string) {
	if globalManager.enabled {
		globalManager.recordsRejected.WithLabelValues(reason).Inc()
	}
}

// RecordDuplicate increments the duplicate submissions counter.
func RecordDuplicate() {
	if globalManager.enabled {
		globalManager.recordsDuplicate.Inc()
	}
}

// RecordSamplesGenerated adds n to the synthesized samples counter.
func RecordSamplesGenerated(n int) {
	if globalManager.enabled {
		globalManager.samplesGenerated.Add(float64(n))
	}
}

// UpdateAccumulators sets the number of active accumulators.
func UpdateAccumulators(n int) {
	globalManager.accumulators.Set(float64(n))
}

// UpdateContributors sets the number of distinct contributing artists.
func UpdateContributors(n int) {
	globalManager.contributors.Set(float64(n))
}

// RecordQuery counts an aggregate query.
func RecordQuery(query, status string) {
	if globalManager.enabled {
		globalManager.queries.WithLabelValues(query, status).Inc()
	}
}

// Homomorphic operation metrics.

// RecordHEOperation records the latency of a homomorphic operation.
func RecordHEOperation(op string, latencyMs float64) {
	if globalManager.enabled {
		globalManager.heOperationLatency.WithLabelValues(op).Observe(latencyMs)
	}
}

// RecordHEError counts a failed homomorphic operation.
func RecordHEError(op string) {
	if globalManager.enabled {
		globalManager.heOperationErrors.WithLabelValues(op).Inc()
	}
}

// RecordHERefresh counts a ciphertext noise refresh.
func RecordHERefresh() {
	if globalManager.enabled {
		globalManager.heRefreshes.Inc()
	}
}

// UpdateHESetupDuration records how long context setup took.
func UpdateHESetupDuration(d time.Duration) {
	globalManager.heSetupDuration.Set(float64(d.Milliseconds()))
}

// Persistence metrics.

// RecordPersistLatency records the latency of a persistence operation.
func RecordPersistLatency(op string, latencyMs float64) {
	if globalManager.enabled {
		globalManager.persistLatency.WithLabelValues(op).Observe(latencyMs)
	}
}

// RecordPersistError counts a failed persistence operation.
func RecordPersistError(op string) {
	if globalManager.enabled {
		globalManager.persistErrors.WithLabelValues(op).Inc()
	}
}

// RecordPersistSuccess stamps the time of the last successful write.
func RecordPersistSuccess(at time.Time) {
	globalManager.persistLastUnix.Set(float64(at.Unix()))
}

// RecordPersistPayload records the compressed size of a persisted payload.
func RecordPersistPayload(bytes int) {
	if globalManager.enabled {
		globalManager.persistBytesSize.Observe(float64(bytes))
	}
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue metrics.

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
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker metrics.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddWorkerActive adjusts the number of busy workers by delta.
func AddWorkerActive(delta int) {
	globalManager.workerActiveCount.Add(float64(delta))
}

// UpdateWorkerMessagesPerSecond sets the average records processed per second.
func UpdateWorkerMessagesPerSecond(rate float64) {
	globalManager.workerMessagesPerSecond.Set(rate)
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System metrics.

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
