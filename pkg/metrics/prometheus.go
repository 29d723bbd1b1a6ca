// Package metrics provides Prometheus metrics for the race rating service.
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
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Rating engine
	recordsValidated prometheus.Counter
	violations       *prometheus.CounterVec
	auditRuns        *prometheus.CounterVec
	auditDuration    prometheus.Histogram
	auditsDuplicate  prometheus.Counter
	classifications  *prometheus.CounterVec
	ratedRaces       prometheus.Gauge
	corpusSkipped    prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount       prometheus.Gauge
	workerActiveCount prometheus.Gauge
	workerLatency     prometheus.Histogram
	workerErrors      prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager. Without WithPrometheusRegistry the
// collectors are registered on the default registerer.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "racetier",
		subsystem:        "rating",
		histogramBuckets: prometheus.DefBuckets,
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

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() {
	m.recordsValidated = m.counter("records_validated_total", "Total number of rating records validated")
	m.violations = m.counterVec("violations_total", "Total number of violations found by kind and severity", "kind", "severity")
	m.auditRuns = m.counterVec("audit_runs_total", "Total number of audit runs by result", "result")
	m.auditDuration = m.histogram("audit_duration_milliseconds", "Duration of corpus audits in milliseconds")
	m.auditsDuplicate = m.counter("audits_duplicate_total", "Total number of audit submissions replayed with a known idempotency key")
	m.classifications = m.counterVec("classifications_total", "Total number of classifications by effective tier and override state", "tier", "state")
	m.ratedRaces = m.gauge("rated_races", "Number of races in the current ratings index")
	m.corpusSkipped = m.counter("corpus_files_skipped_total", "Total number of corpus files skipped as unreadable or malformed")

	m.queueSize = m.gauge("queue_size", "Current number of queued audit jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Total number of audit jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Total number of audit jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected enqueues")

	m.workerCount = m.gauge("worker_count", "Number of audit workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers currently running an audit")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds", "Time a worker spends on one audit job in milliseconds")
	m.workerErrors = m.counter("worker_errors_total", "Total number of failed audit jobs")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordRecordsValidated adds n validated records.
func RecordRecordsValidated(n int) {
	globalManager.recordsValidated.Add(float64(n))
}

// RecordViolation counts one violation.
func RecordViolation(kind, severity string) {
	globalManager.violations.WithLabelValues(kind, severity).Inc()
}

// RecordAuditRun counts a finished audit; result is passed, failed or error.
func RecordAuditRun(result string, durationMs float64) {
	globalManager.auditRuns.WithLabelValues(result).Inc()
	globalManager.auditDuration.Observe(durationMs)
}

// RecordAuditDuplicate counts a replayed audit submission.
func RecordAuditDuplicate() {
	globalManager.auditsDuplicate.Inc()
}

// RecordClassification counts one classification.
func RecordClassification(tier, state string) {
	globalManager.classifications.WithLabelValues(tier, state).Inc()
}

// UpdateRatedRaces sets the size of the ratings index.
func UpdateRatedRaces(count int) {
	globalManager.ratedRaces.Set(float64(count))
}

// RecordCorpusSkipped adds n skipped corpus files.
func RecordCorpusSkipped(n int) {
	globalManager.corpusSkipped.Add(float64(n))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
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
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records how long one job took.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
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

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap memory in use.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
