package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OutcomeOK labels fits that produced an origin. Failed fits are labelled
// with their error kind.
const OutcomeOK = "ok"

// Manager owns the Prometheus collectors of the TDoA service.
type Manager struct {
	namespace        string
	subsystem        string
	latencyBuckets   []float64
	iterationBuckets []float64
	registry         prometheus.Registerer

	// Fitting
	fits             *prometheus.CounterVec
	solverIterations prometheus.Histogram
	solverResidual   prometheus.Histogram
	fitLatency       prometheus.Histogram
	batchesSubmitted prometheus.Counter
	batchesCompleted prometheus.Counter
	batchesDuplicate prometheus.Counter
	nodeCount        prometheus.Gauge

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager. Without WithPrometheusRegistry the
// collectors land on prometheus.DefaultRegisterer.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tdoa",
		subsystem:        "locator",
		latencyBuckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		iterationBuckets: []float64{1, 2, 5, 10, 20, 50, 100, 200},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one block per collector
	auto := promauto.With(m.registry)

	m.fits = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fits_total",
		Help:      "Origin fits by outcome (ok or error kind)",
	}, []string{"outcome"})

	m.solverIterations = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "solver_iterations",
		Help:      "Levenberg-Marquardt iterations per successful fit",
		Buckets:   m.iterationBuckets,
	})

	m.solverResidual = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "solver_residual_norm",
		Help:      "Euclidean norm of the residual vector at the fitted origin",
		Buckets:   prometheus.ExponentialBuckets(1e-9, 10, 14),
	})

	m.fitLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fit_latency_milliseconds",
		Help:      "Time spent extracting delays and fitting one event",
		Buckets:   m.latencyBuckets,
	})

	m.batchesSubmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batches_submitted_total",
		Help:      "Event batches accepted for processing",
	})

	m.batchesCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batches_completed_total",
		Help:      "Event batches with every event resolved",
	})

	m.batchesDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batches_duplicate_total",
		Help:      "Batch submissions rejected as duplicates",
	})

	m.nodeCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "nodes",
		Help:      "Nodes in the loaded node table",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Jobs waiting in the queue",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum number of queued jobs",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_utilization_ratio",
		Help:      "Queue size divided by capacity",
	})

	m.queueEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueued_total",
		Help:      "Jobs enqueued",
	})

	m.queueDequeued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeued_total",
		Help:      "Jobs dequeued",
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Jobs rejected because the queue was full or closed",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Running fitting workers",
	})

	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_processing_latency_milliseconds",
		Help:      "Time a worker spends on one job, including result storage",
		Buckets:   m.latencyBuckets,
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Jobs whose outcome could not be stored",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_component_total",
		Help:      "Errors by component and error type",
	}, []string{"component", "error_type"})
}

// RecordFit counts one fit. Solver statistics are observed for successful
// fits only.
func (m *Manager) RecordFit(outcome string, iterations int, residualNorm, latencyMs float64) {
	m.fits.WithLabelValues(outcome).Inc()
	m.fitLatency.Observe(latencyMs)
	if outcome == OutcomeOK {
		m.solverIterations.Observe(float64(iterations))
		m.solverResidual.Observe(residualNorm)
	}
}

// RecordBatchSubmitted increments the accepted batch counter.
func (m *Manager) RecordBatchSubmitted() { m.batchesSubmitted.Inc() }

// RecordBatchCompleted increments the completed batch counter.
func (m *Manager) RecordBatchCompleted() { m.batchesCompleted.Inc() }

// RecordBatchDuplicate increments the duplicate batch counter.
func (m *Manager) RecordBatchDuplicate() { m.batchesDuplicate.Inc() }

// UpdateNodeCount sets the node table size.
func (m *Manager) UpdateNodeCount(n int) { m.nodeCount.Set(float64(n)) }

// UpdateQueue sets size, capacity and utilization in one call.
func (m *Manager) UpdateQueue(size, capacity int) {
	m.queueSize.Set(float64(size))
	m.queueCapacity.Set(float64(capacity))
	if capacity > 0 {
		m.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func (m *Manager) RecordQueueEnqueue() { m.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func (m *Manager) RecordQueueDequeue() { m.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func (m *Manager) RecordQueueEnqueueError() { m.queueEnqueueErrors.Inc() }

// UpdateWorkerCount sets the running worker count.
func (m *Manager) UpdateWorkerCount(n int) { m.workerCount.Set(float64(n)) }

// RecordWorkerProcessingLatency records time spent on one job.
func (m *Manager) RecordWorkerProcessingLatency(latencyMs float64) {
	m.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func (m *Manager) RecordWorkerError() { m.workerErrors.Inc() }

// RecordHTTPRequest records one request and its duration.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func (m *Manager) RecordErrorByComponent(component, errorType string) {
	m.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// Package-level helpers delegate to the global manager.

func RecordFit(outcome string, iterations int, residualNorm, latencyMs float64) {
	globalManager.RecordFit(outcome, iterations, residualNorm, latencyMs)
}

func RecordBatchSubmitted()                    { globalManager.RecordBatchSubmitted() }
func RecordBatchCompleted()                    { globalManager.RecordBatchCompleted() }
func RecordBatchDuplicate()                    { globalManager.RecordBatchDuplicate() }
func UpdateNodeCount(n int)                    { globalManager.UpdateNodeCount(n) }
func UpdateQueue(size, capacity int)           { globalManager.UpdateQueue(size, capacity) }
func RecordQueueEnqueue()                      { globalManager.RecordQueueEnqueue() }
func RecordQueueDequeue()                      { globalManager.RecordQueueDequeue() }
func RecordQueueEnqueueError()                 { globalManager.RecordQueueEnqueueError() }
func UpdateWorkerCount(n int)                  { globalManager.UpdateWorkerCount(n) }
func RecordWorkerProcessingLatency(ms float64) { globalManager.RecordWorkerProcessingLatency(ms) }
func RecordWorkerError()                       { globalManager.RecordWorkerError() }

func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

func RecordErrorByComponent(component, errorType string) {
	globalManager.RecordErrorByComponent(component, errorType)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
