package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "telemetry"

// Metrics holds all Prometheus metrics
type Metrics struct {
	Registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Normalization metrics
	NormalizeTotal    *prometheus.CounterVec
	NormalizeDuration *prometheus.HistogramVec
	NormalizedBytes   *prometheus.HistogramVec

	// Sandbox metrics
	SandboxRuns      *prometheus.CounterVec
	SandboxDuration  prometheus.Histogram
	SandboxAvailable prometheus.Gauge

	// Event metrics
	EventsTotal  *prometheus.CounterVec
	PayloadBytes *prometheus.HistogramVec
	BreakerState *prometheus.GaugeVec

	startTime time.Time

	// Snapshot for JSON API
	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	AvgDurationMS   float64 `json:"avg_duration_ms"`
	EventsAccepted  int64   `json:"events_accepted"`
	EventsForwarded int64   `json:"events_forwarded"`
	UptimeSeconds   float64 `json:"uptime_seconds"`

	totalDuration float64
}

// NewMetrics creates a collector on its own registry, which also carries
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	sizeBuckets := []float64{100, 1000, 10000, 100000, 1000000, 10000000}

	m := &Metrics{
		Registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_size_bytes",
				Help:      "HTTP request size in bytes",
				Buckets:   sizeBuckets,
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   sizeBuckets,
			},
			[]string{"method", "path"},
		),

		NormalizeTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "normalize_total",
				Help:      "Total number of normalizations",
			},
			[]string{"mode"},
		),
		NormalizeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "normalize_duration_seconds",
				Help:      "Normalization duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"mode"},
		),
		NormalizedBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "normalized_bytes",
				Help:      "JSON size of normalized output in bytes",
				Buckets:   sizeBuckets,
			},
			[]string{"mode"},
		),

		SandboxRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sandbox_runs_total",
				Help:      "Total number of sandboxed script runs",
			},
			[]string{"outcome"},
		),
		SandboxDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sandbox_duration_seconds",
				Help:      "Sandboxed script duration in seconds",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10},
			},
		),
		SandboxAvailable: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sandbox_available",
				Help:      "Number of idle sandbox runtimes",
			},
		),

		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Total number of events by outcome",
			},
			[]string{"outcome"},
		),
		PayloadBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "event_payload_bytes",
				Help:      "Encoded event size in bytes before compression",
				Buckets:   sizeBuckets,
			},
			[]string{"codec"},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordNormalize records one normalization and the JSON size of its output
func (m *Metrics) RecordNormalize(mode string, duration time.Duration, size int) {
	m.NormalizeTotal.WithLabelValues(mode).Inc()
	m.NormalizeDuration.WithLabelValues(mode).Observe(duration.Seconds())
	m.NormalizedBytes.WithLabelValues(mode).Observe(float64(size))
}

// RecordSandboxRun records a script run. Outcome is ok, exception or error.
func (m *Metrics) RecordSandboxRun(outcome string, duration time.Duration) {
	m.SandboxRuns.WithLabelValues(outcome).Inc()
	m.SandboxDuration.Observe(duration.Seconds())
}

// SetSandboxAvailable sets the number of idle runtimes
func (m *Metrics) SetSandboxAvailable(n int) {
	m.SandboxAvailable.Set(float64(n))
}

// RecordEvent records an event outcome: accepted, forwarded, rejected or failed
func (m *Metrics) RecordEvent(outcome string) {
	m.EventsTotal.WithLabelValues(outcome).Inc()

	m.mu.Lock()
	switch outcome {
	case "accepted":
		m.snapshot.EventsAccepted++
	case "forwarded":
		m.snapshot.EventsForwarded++
	}
	m.mu.Unlock()
}

// RecordPayload records the encoded size of an event
func (m *Metrics) RecordPayload(codec string, size int) {
	m.PayloadBytes.WithLabelValues(codec).Observe(float64(size))
}

// SetBreakerState publishes a breaker state as its numeric value
func (m *Metrics) SetBreakerState(name string, state int) {
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// Snapshot returns current values for the JSON API
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	if s.TotalRequests > 0 {
		s.AvgDurationMS = s.totalDuration / float64(s.TotalRequests) * 1000
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
