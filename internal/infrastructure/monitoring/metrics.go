package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec
	RateLimited     *prometheus.CounterVec

	// Service metrics
	ServiceCalls    *prometheus.CounterVec
	ServiceDuration *prometheus.HistogramVec

	// Hosted project metrics
	ProjectsCreated prometheus.Counter
	ProjectsDeleted *prometheus.CounterVec
	ProjectViews    prometheus.Counter
	BackupsTotal    *prometheus.CounterVec

	// Playground metrics
	ShareCodec    *prometheus.CounterVec
	SandboxRuns   *prometheus.CounterVec
	SandboxActive prometheus.Gauge
	ConsoleEvents *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds current metric values for the JSON stats API
type MetricsSnapshot struct {
	TotalRequests int64
	TotalErrors   int64
	SandboxRuns   int64
	TotalDuration float64
	RequestCount  int64
	WSConnections int64
}

// NewMetrics creates a metrics collector registered with reg.
// A nil reg creates unregistered collectors, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{startTime: time.Now()}

	m.RequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livepen_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.RequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "livepen_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
	m.RequestSize = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "livepen_http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
		},
		[]string{"method", "path"},
	)
	m.ResponseSize = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "livepen_http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
		},
		[]string{"method", "path"},
	)
	m.RateLimited = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livepen_http_rate_limited_total",
			Help: "Requests rejected by the per-client limiter",
		},
		[]string{"bucket"},
	)

	m.ServiceCalls = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livepen_service_calls_total",
			Help: "Total number of internal service calls",
		},
		[]string{"service", "method", "status"},
	)
	m.ServiceDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "livepen_service_duration_seconds",
			Help:    "Internal service call duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"service", "method"},
	)

	m.ProjectsCreated = f.NewCounter(prometheus.CounterOpts{
		Name: "livepen_projects_created_total",
		Help: "Hosted projects created",
	})
	m.ProjectsDeleted = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livepen_projects_deleted_total",
			Help: "Hosted projects deleted, by reason",
		},
		[]string{"reason"},
	)
	m.ProjectViews = f.NewCounter(prometheus.CounterOpts{
		Name: "livepen_project_views_total",
		Help: "Permalink page views",
	})
	m.BackupsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livepen_backups_total",
			Help: "Database snapshots taken",
		},
		[]string{"status"},
	)

	m.ShareCodec = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livepen_share_codec_total",
			Help: "Share token encode and decode operations",
		},
		[]string{"op", "status"},
	)
	m.SandboxRuns = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livepen_sandbox_runs_total",
			Help: "Headless sandbox runs, by outcome",
		},
		[]string{"status"},
	)
	m.SandboxActive = f.NewGauge(prometheus.GaugeOpts{
		Name: "livepen_sandbox_active",
		Help: "Sandbox runs in progress",
	})
	m.ConsoleEvents = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livepen_console_events_total",
			Help: "Console events received from sandboxes",
		},
		[]string{"kind"},
	)

	m.WSConnections = f.NewGauge(prometheus.GaugeOpts{
		Name: "livepen_ws_connections",
		Help: "Number of active WebSocket connections",
	})
	m.WSMessages = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livepen_ws_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction", "type"},
	)

	f.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "livepen_uptime_seconds",
			Help: "Service uptime in seconds",
		},
		func() float64 { return m.Uptime().Seconds() },
	)

	return m
}

// Uptime returns the time since the collector was created.
func (m *Metrics) Uptime() time.Duration {
	if m == nil {
		return 0
	}
	return time.Since(m.startTime)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordRateLimited records a request rejected by the limiter bucket
func (m *Metrics) RecordRateLimited(bucket string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(bucket).Inc()
}

// RecordServiceCall records an internal service call
func (m *Metrics) RecordServiceCall(service, method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ServiceCalls.WithLabelValues(service, method, status).Inc()
	m.ServiceDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// IncProjectsCreated counts a new hosted project
func (m *Metrics) IncProjectsCreated() {
	if m == nil {
		return
	}
	m.ProjectsCreated.Inc()
}

// AddProjectsDeleted counts n deleted hosted projects
func (m *Metrics) AddProjectsDeleted(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ProjectsDeleted.WithLabelValues(reason).Add(float64(n))
}

// IncProjectViews counts a permalink view
func (m *Metrics) IncProjectViews() {
	if m == nil {
		return
	}
	m.ProjectViews.Inc()
}

// RecordBackup records a snapshot attempt
func (m *Metrics) RecordBackup(status string) {
	if m == nil {
		return
	}
	m.BackupsTotal.WithLabelValues(status).Inc()
}

// RecordShare records a share codec operation
func (m *Metrics) RecordShare(op, status string) {
	if m == nil {
		return
	}
	m.ShareCodec.WithLabelValues(op, status).Inc()
}

// RecordSandboxRun records a finished sandbox run
func (m *Metrics) RecordSandboxRun(status string) {
	if m == nil {
		return
	}
	m.SandboxRuns.WithLabelValues(status).Inc()
	m.mu.Lock()
	m.snapshot.SandboxRuns++
	m.mu.Unlock()
}

// SandboxStarted and SandboxFinished track in-flight runs
func (m *Metrics) SandboxStarted() {
	if m == nil {
		return
	}
	m.SandboxActive.Inc()
}

func (m *Metrics) SandboxFinished() {
	if m == nil {
		return
	}
	m.SandboxActive.Dec()
}

// RecordConsoleEvent records a console event of kind
func (m *Metrics) RecordConsoleEvent(kind string) {
	if m == nil {
		return
	}
	m.ConsoleEvents.WithLabelValues(kind).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.WSConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.WSConnections--
	m.mu.Unlock()
}

// Snapshot returns a copy of the running totals
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
