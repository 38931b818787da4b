package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Job metrics
	activeJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "asr_gateway_active_jobs",
		Help: "Number of transcription jobs currently running",
	})

	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asr_gateway_jobs_total",
		Help: "Total number of transcription jobs by terminal state",
	}, []string{"status"}) // completed, failed, cancelled

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "asr_gateway_job_duration_seconds",
		Help:    "Wall-clock duration of transcription jobs in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	})

	segmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asr_gateway_segments_total",
		Help: "Total number of segments emitted across all jobs",
	})

	// Engine metrics
	engineSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asr_gateway_engine_sessions_total",
		Help: "Total number of recognition engine sessions",
	}, []string{"device", "status"})

	firstSegmentLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "asr_gateway_first_segment_latency_seconds",
		Help:    "Latency from job start to first emitted segment",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})

	// Device pool metrics
	poolWaiting = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "asr_gateway_pool_waiting",
		Help: "Jobs waiting for a device pool slot",
	}, []string{"device"})

	poolInUse = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "asr_gateway_pool_in_use",
		Help: "Device pool slots currently held",
	}, []string{"device"})

	// Transport metrics
	uploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asr_gateway_upload_bytes_total",
		Help: "Total bytes received through media uploads",
	})

	deliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asr_gateway_delivery_failures_total",
		Help: "Streams terminated because a frame could not be delivered",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asr_gateway_errors_total",
		Help: "Total number of errors by type and component",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "asr_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})
)

// JobMetrics tracks metrics for one transcription job.
type JobMetrics struct {
	startTime    time.Time
	firstSegment bool
}

// NewJobMetrics starts tracking a job and bumps the active gauge.
func NewJobMetrics() *JobMetrics {
	activeJobs.Inc()
	return &JobMetrics{startTime: time.Now()}
}

// RecordSegment counts one emitted segment and, on the first one, observes
// the start-to-first-segment latency.
func (m *JobMetrics) RecordSegment() {
	segmentsTotal.Inc()
	if !m.firstSegment {
		m.firstSegment = true
		firstSegmentLatency.Observe(time.Since(m.startTime).Seconds())
	}
}

// RecordEnd finalizes the job with its terminal status.
func (m *JobMetrics) RecordEnd(status string) {
	activeJobs.Dec()
	jobsTotal.WithLabelValues(status).Inc()
	jobDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordEngineSession counts one engine invocation outcome.
func RecordEngineSession(device, status string) {
	engineSessions.WithLabelValues(device, status).Inc()
}

// RecordPoolWait adjusts the waiting gauge for a device pool.
func RecordPoolWait(device string, delta float64) {
	poolWaiting.WithLabelValues(device).Add(delta)
}

// RecordPoolSlot adjusts the in-use gauge for a device pool.
func RecordPoolSlot(device string, delta float64) {
	poolInUse.WithLabelValues(device).Add(delta)
}

// RecordUploadBytes counts bytes persisted from an upload.
func RecordUploadBytes(n int64) {
	uploadBytes.Add(float64(n))
}

// RecordDeliveryFailure counts a stream torn down by a failed push.
func RecordDeliveryFailure() {
	deliveryFailures.Inc()
}

// RecordError counts an error by type and component.
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState publishes a circuit breaker state change.
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}
