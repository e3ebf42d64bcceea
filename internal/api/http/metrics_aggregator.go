package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/livepen/internal/domain/hosting"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/livepen/internal/providers/sandbox"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// PoolStatser reports sandbox slot usage.
type PoolStatser interface {
	Stats() sandbox.PoolStats
}

// MetricsAggregator collects metrics from all components with circuit breaker protection
type MetricsAggregator struct {
	metrics *monitoring.Metrics
	hosting *hosting.Service
	pool    PoolStatser
	breaker *resilience.Breaker
}

// NewMetricsAggregator creates a metrics aggregator. hosting and pool may be nil.
func NewMetricsAggregator(metrics *monitoring.Metrics, hostingSvc *hosting.Service, pool PoolStatser) *MetricsAggregator {
	// Database totals are non-critical; stop asking after repeated failures
	breaker := resilience.New("metrics-hosting", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &MetricsAggregator{
		metrics: metrics,
		hosting: hostingSvc,
		pool:    pool,
		breaker: breaker,
	}
}

// MetricsSnapshot represents a snapshot of all service metrics
type MetricsSnapshot struct {
	Timestamp time.Time          `json:"timestamp"`
	Backend   map[string]any     `json:"backend"`
	Sandbox   *sandbox.PoolStats `json:"sandbox,omitempty"`
	Hosting   *types.HostedStats `json:"hosting,omitempty"`
	Summary   MetricsSummary     `json:"summary"`
}

// MetricsSummary provides high-level metrics
type MetricsSummary struct {
	TotalRequests     int64   `json:"total_requests"`
	AverageLatencyMs  float64 `json:"average_latency_ms"`
	ErrorRate         float64 `json:"error_rate"`
	ActiveConnections int64   `json:"active_connections"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// Collect gathers a snapshot. Hosting totals are omitted while the
// database is failing.
func (ma *MetricsAggregator) Collect(ctx context.Context) MetricsSnapshot {
	snapshot := MetricsSnapshot{
		Timestamp: time.Now(),
		Backend:   ma.backendMetrics(),
		Summary:   ma.calculateSummary(),
	}
	if ma.pool != nil {
		stats := ma.pool.Stats()
		snapshot.Sandbox = &stats
	}
	if ma.hosting != nil {
		stats, err := resilience.Execute(ctx, ma.breaker, func(ctx context.Context) (*types.HostedStats, error) {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return ma.hosting.Stats(ctx)
		})
		if err == nil {
			snapshot.Hosting = stats
		}
	}
	return snapshot
}

// GetAggregatedMetrics returns all metrics as JSON
func (ma *MetricsAggregator) GetAggregatedMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, ma.Collect(c.Request.Context()))
}

func (ma *MetricsAggregator) backendMetrics() map[string]any {
	s := ma.metrics.Snapshot()
	return map[string]any{
		"total_requests": s.TotalRequests,
		"total_errors":   s.TotalErrors,
		"sandbox_runs":   s.SandboxRuns,
		"ws_connections": s.WSConnections,
		"breaker_state":  ma.breaker.State().String(),
	}
}

// calculateSummary computes high-level summary metrics
func (ma *MetricsAggregator) calculateSummary() MetricsSummary {
	snapshot := ma.metrics.Snapshot()

	var avgLatency float64
	if snapshot.RequestCount > 0 {
		avgLatency = (snapshot.TotalDuration / float64(snapshot.RequestCount)) * 1000
	}

	var errorRate float64
	if snapshot.TotalRequests > 0 {
		errorRate = float64(snapshot.TotalErrors) / float64(snapshot.TotalRequests)
	}

	return MetricsSummary{
		TotalRequests:     snapshot.TotalRequests,
		AverageLatencyMs:  avgLatency,
		ErrorRate:         errorRate,
		ActiveConnections: snapshot.WSConnections,
		UptimeSeconds:     ma.metrics.Uptime().Seconds(),
	}
}
